package pattern

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/deskwarrior/simulator/internal/rng"
)

// Fitness scores a pattern; higher is better.
type Fitness func(ctx context.Context, p *AllocationPattern) (float64, error)

// Genetic evolves allocation patterns toward a higher fitness.
type Genetic struct {
	StatIDs        []string
	PopulationSize int
	Generations    int
	MutationRate   float64
	CrossoverRate  float64
	EliteCount     int
	TournamentSize int

	src rng.Source
}

// NewGenetic returns an optimizer with the default parameters, drawing from a
// stream seeded with seed.
func NewGenetic(statIDs []string, seed uint64) *Genetic {
	return &Genetic{
		StatIDs:        statIDs,
		PopulationSize: 50,
		Generations:    100,
		MutationRate:   0.1,
		CrossoverRate:  0.7,
		EliteCount:     5,
		TournamentSize: 3,
		src:            rng.New(seed),
	}
}

type scored struct {
	p       *AllocationPattern
	fitness float64
}

// Evolve runs the configured number of generations starting from seeds and
// returns the fittest pattern seen. progress, if set, is called at the start
// of every generation. A cancelled ctx stops between evaluations and returns
// the best pattern so far together with ctx.Err().
func (g *Genetic) Evolve(ctx context.Context, seeds []*AllocationPattern, fitness Fitness, progress func(gen, total int)) (*AllocationPattern, error) {
	if g.src == nil {
		g.src = rng.New(0)
	}
	popSize := max(g.PopulationSize, 2)
	population := g.initial(seeds, popSize)

	var best *AllocationPattern
	bestFitness := math.Inf(-1)

	for gen := 0; gen < g.Generations; gen++ {
		if progress != nil {
			progress(gen+1, g.Generations)
		}
		evaluated := make([]scored, 0, len(population))
		for _, p := range population {
			if err := ctx.Err(); err != nil {
				return g.fallback(best, population), err
			}
			f, err := fitness(ctx, p)
			if err != nil {
				return g.fallback(best, population), err
			}
			evaluated = append(evaluated, scored{p, f})
		}
		sort.SliceStable(evaluated, func(i, j int) bool { return evaluated[i].fitness > evaluated[j].fitness })

		if evaluated[0].fitness > bestFitness {
			bestFitness = evaluated[0].fitness
			best = evaluated[0].p.Clone()
		}

		next := make([]*AllocationPattern, 0, popSize)
		for i := 0; i < min(g.EliteCount, len(evaluated)); i++ {
			next = append(next, evaluated[i].p.Clone())
		}
		for len(next) < popSize {
			a := g.tournament(evaluated)
			b := g.tournament(evaluated)
			var child *AllocationPattern
			if g.src.Float64() < g.CrossoverRate {
				child = g.crossover(a, b)
			} else {
				child = a.Clone()
				child.ID = NewPattern(nil).ID
			}
			if g.src.Float64() < g.MutationRate {
				g.mutate(child)
			}
			next = append(next, child)
		}
		population = next
	}
	return g.fallback(best, population), nil
}

func (g *Genetic) fallback(best *AllocationPattern, population []*AllocationPattern) *AllocationPattern {
	if best != nil {
		return best
	}
	return population[0].Clone()
}

// initial takes up to half the population from seeds and fills the rest
// with random patterns.
func (g *Genetic) initial(seeds []*AllocationPattern, size int) []*AllocationPattern {
	pop := make([]*AllocationPattern, 0, size)
	for _, s := range seeds {
		if len(pop) >= size/2 {
			break
		}
		pop = append(pop, s.Clone())
	}
	for len(pop) < size {
		pop = append(pop, g.random())
	}
	return pop
}

// random splits the budget by repeatedly taking a random share of what is
// left, visiting the stats in shuffled order.
func (g *Genetic) random() *AllocationPattern {
	ids := slices.Clone(g.StatIDs)
	for i := len(ids) - 1; i > 0; i-- {
		j := g.src.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	p := NewPattern(nil)
	remaining := 1.0
	for i, id := range ids {
		if i == len(ids)-1 {
			p.Allocation[id] = remaining
			break
		}
		r := g.src.Float64() * remaining
		p.Allocation[id] = r
		remaining -= r
	}
	p.Normalize()
	return p
}

func (g *Genetic) tournament(evaluated []scored) *AllocationPattern {
	best := evaluated[g.src.IntN(len(evaluated))]
	for i := 1; i < max(g.TournamentSize, 1); i++ {
		c := evaluated[g.src.IntN(len(evaluated))]
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best.p
}

// crossover takes each share from one parent at random or averages both.
func (g *Genetic) crossover(a, b *AllocationPattern) *AllocationPattern {
	child := NewPattern(nil)
	for _, id := range g.StatIDs {
		va, vb := a.Allocation[id], b.Allocation[id]
		if g.src.Float64() < 0.5 {
			if g.src.Float64() < 0.5 {
				child.Allocation[id] = va
			} else {
				child.Allocation[id] = vb
			}
		} else {
			child.Allocation[id] = (va + vb) / 2
		}
	}
	child.Normalize()
	return child
}

// mutate moves up to 15% between two stats and occasionally brings in an
// unused stat at up to 10%.
func (g *Genetic) mutate(p *AllocationPattern) {
	keys := p.Keys()
	if len(keys) < 2 {
		return
	}
	s1 := keys[g.src.IntN(len(keys))]
	s2 := keys[g.src.IntN(len(keys))]
	if s1 == s2 {
		return
	}
	transfer := g.src.Float64() * 0.15
	if p.Allocation[s1] >= transfer {
		p.Allocation[s1] -= transfer
		p.Allocation[s2] += transfer
	}

	if g.src.Float64() < 0.1 {
		var unused []string
		for _, id := range g.StatIDs {
			if p.Allocation[id] <= 0.01 {
				unused = append(unused, id)
			}
		}
		if len(unused) > 0 {
			id := unused[g.src.IntN(len(unused))]
			share := g.src.Float64() * 0.1
			cut := share / float64(len(p.Allocation))
			for _, k := range p.Keys() {
				if p.Allocation[k] > cut {
					p.Allocation[k] -= cut
				}
			}
			p.Allocation[id] = share
		}
	}
	p.Normalize()
}

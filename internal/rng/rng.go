// Package rng provides seeded random sources for reproducible simulations.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/crypto/blake2b"
)

// Source is the random stream a simulation consumes.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// New returns a PCG-backed source for the given seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

// DeriveSeed derives an independent sub-stream seed for run index i of a batch.
// The mapping is stable across platforms: blake2b-256 over the big-endian
// encoding of (master, i), truncated to the first 8 bytes.
func DeriveSeed(master uint64, i int) uint64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], master)
	binary.BigEndian.PutUint64(buf[8:], uint64(i))
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

// NewSeed generates a fresh master seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Chance returns true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Normal draws a standard normal value using the Box-Muller transform.
func Normal(src Source) float64 {
	u1 := 1.0 - src.Float64()
	u2 := 1.0 - src.Float64()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
}

package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskwarrior/simulator/internal/logger"
)

// Job kinds.
const (
	KindBatch       = "batch"
	KindProgression = "progression"
)

// Job states.
const (
	StateRunning   = "running"
	StateDone      = "done"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// maxFinishedJobs is how many finished job statuses are kept for
// GET /api/jobs/{id}. Older ones are forgotten; their results stay in the
// store.
const maxFinishedJobs = 500

// ErrBusy is returned when every job slot is taken.
var ErrBusy = errors.New("too many jobs running")

// JobStatus is the externally visible state of a background job.
type JobStatus struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      string     `json:"state"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// jobFunc runs one job. It reports progress through the callback and
// returns the job's error, if any.
type jobFunc func(ctx context.Context, id string, progress func(completed, total int)) error

// jobManager runs jobs in the background with a bounded number of slots
// and publishes their progress on the hub.
type jobManager struct {
	hub    *Hub
	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	jobs     map[string]*JobStatus
	finished []string // oldest first
	keep     int
}

func newJobManager(hub *Hub, maxConcurrent int) *jobManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &jobManager{
		hub:    hub,
		slots:  make(chan struct{}, maxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*JobStatus),
		keep:   maxFinishedJobs,
	}
}

// start launches fn as a new job of the given kind and returns its id.
func (m *jobManager) start(kind string, total int, fn jobFunc) (string, error) {
	select {
	case m.slots <- struct{}{}:
	default:
		return "", ErrBusy
	}

	id := uuid.NewString()
	st := &JobStatus{ID: id, Kind: kind, State: StateRunning, Total: total, StartedAt: time.Now().UTC()}
	m.mu.Lock()
	m.jobs[id] = st
	m.mu.Unlock()

	logger.Info("Job started", "job", id, "kind", kind, "total", total)
	m.hub.Broadcast(Event{Type: EventStarted, Job: id, Kind: kind, Total: total})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() { <-m.slots }()

		step := max(1, total/100)
		err := fn(m.ctx, id, func(completed, total int) {
			// Workers report out of order; keep the high-water mark.
			m.mu.Lock()
			st.Completed, st.Total = max(st.Completed, completed), total
			m.mu.Unlock()
			if completed%step == 0 || completed == total {
				m.hub.Broadcast(Event{Type: EventProgress, Job: id, Kind: kind, Completed: completed, Total: total})
			}
		})
		m.finish(st, err)
	}()
	return id, nil
}

func (m *jobManager) finish(st *JobStatus, err error) {
	now := time.Now().UTC()
	ev := Event{Type: EventDone, Job: st.ID, Kind: st.Kind}

	m.mu.Lock()
	st.FinishedAt = &now
	switch {
	case err == nil:
		st.State = StateDone
	case errors.Is(err, context.Canceled):
		st.State = StateCancelled
		st.Error = err.Error()
	default:
		st.State = StateFailed
		st.Error = err.Error()
	}
	ev.Completed, ev.Total, ev.Message, ev.Error = st.Completed, st.Total, st.State, st.Error
	m.finished = append(m.finished, st.ID)
	if n := len(m.finished) - m.keep; n > 0 {
		for _, id := range m.finished[:n] {
			delete(m.jobs, id)
		}
		m.finished = append(m.finished[:0], m.finished[n:]...)
	}
	m.mu.Unlock()

	if err != nil {
		logger.Warning("Job finished with error", "job", st.ID, "kind", st.Kind, "error", err)
	} else {
		logger.Info("Job finished", "job", st.ID, "kind", st.Kind)
	}
	m.hub.Broadcast(ev)
}

// running returns the number of jobs holding a slot.
func (m *jobManager) running() int {
	return len(m.slots)
}

// status returns a copy of the job's status.
func (m *jobManager) status(id string) (JobStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

// stop cancels running jobs and waits for them to return.
func (m *jobManager) stop() {
	m.cancel()
	m.wg.Wait()
}

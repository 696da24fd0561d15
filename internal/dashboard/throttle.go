package dashboard

import (
	"sync"
	"time"
)

// SubmitThrottle limits how many jobs each client may start within a
// sliding window, and optionally rejects the same job submitted again
// too soon.
type SubmitThrottle struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	repeat  time.Duration
	clients map[string]*submitHistory
	now     func() time.Time
}

type submitHistory struct {
	times []time.Time
	last  map[string]time.Time // job key -> last accepted
}

// CheckResult is the outcome of a throttle check.
type CheckResult struct {
	Allowed     bool
	Reason      string
	WaitSeconds int
}

// NewSubmitThrottle creates a throttle. A limit of 0 disables the window
// check and a repeat of 0 disables the duplicate check.
func NewSubmitThrottle(limit int, window, repeat time.Duration) *SubmitThrottle {
	return &SubmitThrottle{
		limit:   limit,
		window:  window,
		repeat:  repeat,
		clients: make(map[string]*submitHistory),
		now:     time.Now,
	}
}

// Check decides whether ip may start the job identified by key, and
// records it if so.
func (t *SubmitThrottle) Check(ip, key string) CheckResult {
	if t.limit <= 0 && t.repeat <= 0 {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	h := t.clients[ip]
	if h == nil {
		h = &submitHistory{last: make(map[string]time.Time)}
		t.clients[ip] = h
	}

	if t.repeat > 0 {
		if at, ok := h.last[key]; ok {
			if remaining := t.repeat - now.Sub(at); remaining > 0 {
				return CheckResult{
					Reason:      "identical job submitted recently",
					WaitSeconds: waitSeconds(remaining),
				}
			}
		}
	}

	if t.limit > 0 && len(h.times) >= t.limit {
		return CheckResult{
			Reason:      "too many jobs started",
			WaitSeconds: waitSeconds(h.times[0].Add(t.window).Sub(now)),
		}
	}

	if t.limit > 0 {
		h.times = append(h.times, now)
	}
	if t.repeat > 0 {
		h.last[key] = now
	}
	return CheckResult{Allowed: true}
}

// cleanup drops entries older than the window or cooldown, and clients
// with nothing left.
func (t *SubmitThrottle) cleanup(now time.Time) {
	cutoff := now.Add(-t.window)
	repeatCutoff := now.Add(-t.repeat)
	for ip, h := range t.clients {
		kept := h.times[:0]
		for _, at := range h.times {
			if at.After(cutoff) {
				kept = append(kept, at)
			}
		}
		h.times = kept

		for key, at := range h.last {
			if !at.After(repeatCutoff) {
				delete(h.last, key)
			}
		}
		if len(h.times) == 0 && len(h.last) == 0 {
			delete(t.clients, ip)
		}
	}
}

// Reset forgets everything recorded for ip.
func (t *SubmitThrottle) Reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, ip)
}

func waitSeconds(d time.Duration) int {
	return int(d.Seconds()) + 1
}

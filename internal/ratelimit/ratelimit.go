package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate blocks until the caller may proceed with one upstream request.
// A nil-safe no-op gate lets clients take an optional gate from config.
type Gate interface {
	Wait(ctx context.Context) error
}

// MinInterval enforces a minimum time between calls. Concurrent callers wait
// until the interval has elapsed since the last call, or return early if the
// context is canceled.
type MinInterval struct {
	Interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func (m *MinInterval) Wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.mu.Lock()
	wait := time.Until(m.last.Add(m.Interval))
	m.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	m.mu.Lock()
	m.last = time.Now()
	m.mu.Unlock()
	return nil
}

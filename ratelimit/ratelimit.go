// Package ratelimit implements a per-key sliding-window abuse throttle with
// a block cooldown. State is process-local; horizontally scaled deployments
// need a shared backing store behind the same interface.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	timestamps []time.Time
	blockUntil time.Time
}

// Limiter tracks recent attempts per key. Exceeding max attempts inside the
// window starts a block; idle keys are evicted to bound memory.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	block   time.Duration
	entries map[string]*entry

	now func() time.Time
}

func New(window time.Duration, max int, block time.Duration) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		block:   block,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow records an attempt for the key and reports whether it may proceed.
// When denied, retryAfter is how long the caller should wait.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(key, now)

	e := l.entries[key]
	if e == nil {
		e = &entry{}
		l.entries[key] = e
	}

	if e.blockUntil.After(now) {
		return false, e.blockUntil.Sub(now)
	}

	e.timestamps = append(e.timestamps, now)
	if len(e.timestamps) > l.max {
		e.blockUntil = now.Add(l.block)
		return false, l.block
	}
	return true, 0
}

// prune drops attempts older than the window, clears elapsed blocks, and
// evicts the key entirely once nothing remains. Callers hold l.mu.
func (l *Limiter) prune(key string, now time.Time) {
	e := l.entries[key]
	if e == nil {
		return
	}
	kept := e.timestamps[:0]
	for _, t := range e.timestamps {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	e.timestamps = kept
	if !e.blockUntil.After(now) {
		e.blockUntil = time.Time{}
	}
	if len(e.timestamps) == 0 && e.blockUntil.IsZero() {
		delete(l.entries, key)
	}
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

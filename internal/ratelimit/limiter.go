// Package ratelimit implements the per-client submission limiter: a sliding
// log of submission instants kept in process memory.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit         = 5
	DefaultWindow        = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// FirstDenial is set on the first denied attempt of a blocked period,
	// so callers can record one event per period instead of one per attempt.
	FirstDenial bool
}

// Stats describes the live state of one identifier.
type Stats struct {
	Count   int
	ResetAt time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSweepInterval sets how often Start purges expired identifiers.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) { l.sweepEvery = d }
}

// Limiter allows at most limit submissions per identifier within any
// trailing window. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string][]time.Time
	deniedUntil map[string]time.Time

	limit      int
	window     time.Duration
	sweepEvery time.Duration
	now        func() time.Time

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a limiter. Non-positive limit or window fall back to the defaults.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		entries:     make(map[string][]time.Time),
		deniedUntil: make(map[string]time.Time),
		limit:       limit,
		window:      window,
		sweepEvery:  DefaultSweepInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured cap.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured trailing window.
func (l *Limiter) Window() time.Duration { return l.window }

// Check records a submission attempt for identifier and reports whether it
// is allowed. Denied attempts are not recorded.
func (l *Limiter) Check(identifier string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.prune(l.entries[identifier], now)

	if len(live) >= l.limit {
		l.entries[identifier] = live
		resetAt := live[0].Add(l.window)
		first := !l.deniedUntil[identifier].Equal(resetAt)
		l.deniedUntil[identifier] = resetAt
		return Result{
			Allowed:     false,
			Limit:       l.limit,
			Remaining:   0,
			ResetAt:     resetAt,
			FirstDenial: first,
		}
	}

	delete(l.deniedUntil, identifier)
	live = append(live, now)
	l.entries[identifier] = live
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(live),
		ResetAt:   live[0].Add(l.window),
	}
}

// Stats returns the live count for identifier, or false when it has none.
func (l *Limiter) Stats(identifier string) (Stats, bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.prune(l.entries[identifier], now)
	if len(live) == 0 {
		return Stats{}, false
	}
	return Stats{Count: len(live), ResetAt: live[0].Add(l.window)}, true
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops all tracked identifiers.
func (l *Limiter) Clear() {
	l.mu.Lock()
	l.entries = make(map[string][]time.Time)
	l.deniedUntil = make(map[string]time.Time)
	l.mu.Unlock()
}

// Sweep drops expired instants and removes identifiers left empty.
// It returns how many identifiers were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, until := range l.deniedUntil {
		if !now.Before(until) {
			delete(l.deniedUntil, key)
		}
	}

	removed := 0
	for key, instants := range l.entries {
		live := l.prune(instants, now)
		if len(live) == 0 {
			delete(l.entries, key)
			removed++
			continue
		}
		l.entries[key] = live
	}
	return removed
}

// Start launches the background sweep. It stops when ctx ends or Stop is
// called. Calling Start on a running limiter is a no-op.
func (l *Limiter) Start(ctx context.Context) {
	if l.sweepEvery <= 0 {
		return
	}

	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	ticker := time.NewTicker(l.sweepEvery)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit.
func (l *Limiter) Stop() {
	l.lifecycle.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// prune keeps instants with now - t < window. Instants are stored in
// ascending order so the live tail starts at the first survivor.
func (l *Limiter) prune(instants []time.Time, now time.Time) []time.Time {
	for i, t := range instants {
		if now.Sub(t) < l.window {
			if i == 0 {
				return instants
			}
			live := make([]time.Time, len(instants)-i)
			copy(live, instants[i:])
			return live
		}
	}
	return nil
}

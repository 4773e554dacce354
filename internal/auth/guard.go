package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// AttemptState is the failure record kept per login identifier.
type AttemptState struct {
	Failures    int
	LockedUntil *time.Time
}

// Locked reports whether the state blocks attempts at the given instant.
func (s AttemptState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// AttemptCounter stores AttemptState per key.
// RecordFailure must be atomic per key: concurrent failures are never lost,
// and a failure recorded while locked leaves the state untouched.
type AttemptCounter interface {
	Get(ctx context.Context, key string) (AttemptState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, max int, lockout time.Duration) (AttemptState, error)
	Reset(ctx context.Context, key string) error
}

// MemoryAttemptCounter keeps attempt state in process memory.
// State is lost on restart.
type MemoryAttemptCounter struct {
	mu      sync.Mutex
	records map[string]AttemptState
}

func NewMemoryAttemptCounter() *MemoryAttemptCounter {
	return &MemoryAttemptCounter{records: make(map[string]AttemptState)}
}

func (c *MemoryAttemptCounter) Get(_ context.Context, key string) (AttemptState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[key], nil
}

func (c *MemoryAttemptCounter) RecordFailure(_ context.Context, key string, now time.Time, max int, lockout time.Duration) (AttemptState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.records[key]
	if state.Locked(now) {
		return state, nil
	}

	state.Failures++
	if state.Failures >= max {
		until := now.Add(lockout)
		state.LockedUntil = &until
	}
	c.records[key] = state
	return state, nil
}

func (c *MemoryAttemptCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, key)
	return nil
}

// LockedError is returned by LoginGuard.Check while an identifier is locked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// LoginGuard applies the lockout policy on top of an AttemptCounter.
type LoginGuard struct {
	counter     AttemptCounter
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

func NewLoginGuard(counter AttemptCounter, maxAttempts int, lockout time.Duration) *LoginGuard {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}
	return &LoginGuard{
		counter:     counter,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// WithClock replaces the guard's time source.
func (g *LoginGuard) WithClock(now func() time.Time) *LoginGuard {
	g.now = now
	return g
}

// Check returns a *LockedError when key is currently locked.
func (g *LoginGuard) Check(ctx context.Context, key string) error {
	state, err := g.counter.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load attempt state: %w", err)
	}
	if state.Locked(g.now()) {
		return &LockedError{Until: *state.LockedUntil}
	}
	return nil
}

// Fail records a failed attempt. An expired lockout keeps its count,
// so the next failure locks again immediately.
func (g *LoginGuard) Fail(ctx context.Context, key string) (AttemptState, error) {
	state, err := g.counter.RecordFailure(ctx, key, g.now(), g.maxAttempts, g.lockout)
	if err != nil {
		return AttemptState{}, fmt.Errorf("record failure: %w", err)
	}
	return state, nil
}

// Succeed clears the failure record for key.
func (g *LoginGuard) Succeed(ctx context.Context, key string) error {
	if err := g.counter.Reset(ctx, key); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

// Package occ executes read-modify-write sequences against the document
// store with optimistic concurrency: conflicts detected via the store's
// version token are retried with a configurable backoff, every other error
// surfaces immediately.
package occ

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/lattice/store"
)

// DefaultMaxAttempts is the number of read-modify-write attempts made
// before giving up with ErrExhausted.
const DefaultMaxAttempts = 3

// ErrExhausted marks failures where every retry attempt lost to a
// concurrent writer. Match with errors.Is; the full context travels in
// *ExhaustedError, matched with errors.As.
var ErrExhausted = errors.New("lattice/occ: retries exhausted")

// ExhaustedError reports a retry loop that conflicted on every attempt.
// Last carries the entity state observed by the final attempt so the caller
// can decide whether to surface the failure or recompute differently.
type ExhaustedError struct {
	// ID and Scope identify the contested entity.
	ID    string
	Scope string

	// Attempts is the number of read-modify-write attempts made.
	Attempts int

	// Last is the entity read by the final attempt. Its Version is the
	// token that was already stale by the time the write was issued.
	Last *store.Entity
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("lattice/occ: update of %s/%s lost %d conflict round(s)", e.Scope, e.ID, e.Attempts)
}

func (e *ExhaustedError) Unwrap() error { return ErrExhausted }

// MutateFunc produces the next entity state from the current one. It must be
// a pure function of its argument: the controller may invoke it once per
// attempt, and discarded invocations must leave no external side effects.
// The argument is a private clone; mutating it in place and returning it is
// fine.
type MutateFunc func(current *store.Entity) (*store.Entity, error)

// BackoffPolicy builds the wait schedule for one retry loop. Policies are
// factories because backoff.BackOff values are stateful; each Update call
// gets a fresh instance.
type BackoffPolicy func() backoff.BackOff

// NoDelay retries immediately. This is the default.
func NoDelay() BackoffPolicy {
	return func() backoff.BackOff { return &backoff.ZeroBackOff{} }
}

// FixedDelay waits the same duration between attempts.
func FixedDelay(d time.Duration) BackoffPolicy {
	return func() backoff.BackOff { return backoff.NewConstantBackOff(d) }
}

// Jitter waits a uniformly random duration in [min, max] between attempts,
// decorrelating competing writers that would otherwise retry in lockstep.
func Jitter(min, max time.Duration) BackoffPolicy {
	return func() backoff.BackOff { return newJitterBackOff(min, max) }
}

// Controller runs conditional-write retry loops against a document store.
// The zero value is not usable; construct with New.
type Controller struct {
	store       store.DocumentStore
	maxAttempts int
	policy      BackoffPolicy
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxAttempts bounds the retry loop. Values below 1 are clamped to 1.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n < 1 {
			n = 1
		}
		c.maxAttempts = n
	}
}

// WithBackoff sets the wait policy applied between conflicting attempts.
func WithBackoff(p BackoffPolicy) Option {
	return func(c *Controller) {
		if p != nil {
			c.policy = p
		}
	}
}

// New creates a Controller with DefaultMaxAttempts and no delay between
// attempts.
func New(ds store.DocumentStore, opts ...Option) *Controller {
	c := &Controller{
		store:       ds,
		maxAttempts: DefaultMaxAttempts,
		policy:      NoDelay(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update reads the current entity, applies mutate, and issues a conditional
// write guarded by the version token just read. On store.ErrConflict it
// re-reads and retries, waiting per the backoff policy, up to the configured
// attempt bound; exhaustion fails with *ExhaustedError. Any non-conflict
// error (not-found, permission, transport) fails immediately and is never
// reinterpreted as a conflict.
//
// On success the returned entity carries the newly assigned version token,
// and exactly one durable write has occurred.
func (c *Controller) Update(ctx context.Context, id, scope string, mutate MutateFunc) (*store.Entity, error) {
	wait := c.policy()
	var last *store.Entity

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		current, err := c.store.Get(ctx, id, scope)
		if err != nil {
			return nil, fmt.Errorf("lattice/occ: read %s/%s (attempt %d): %w", scope, id, attempt, err)
		}
		last = current

		next, err := mutate(current.Clone())
		if err != nil {
			return nil, fmt.Errorf("lattice/occ: mutate %s/%s (attempt %d): %w", scope, id, attempt, err)
		}

		token, err := c.store.ConditionalWrite(ctx, next, current.Version)
		if err == nil {
			next.Version = token
			return next, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("lattice/occ: write %s/%s (attempt %d): %w", scope, id, attempt, err)
		}

		if attempt < c.maxAttempts {
			if err := sleep(ctx, wait.NextBackOff()); err != nil {
				return nil, fmt.Errorf("lattice/occ: update %s/%s interrupted after attempt %d: %w", scope, id, attempt, err)
			}
		}
	}

	return nil, &ExhaustedError{ID: id, Scope: scope, Attempts: c.maxAttempts, Last: last}
}

// sleep waits for d or until the context is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

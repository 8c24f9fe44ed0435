// Package hydrate resolves persisted ID references into transient in-memory
// associations using one batched fetch per partition scope, never one fetch
// per identifier.
package hydrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/lattice/internal/batch"
	"github.com/jacentio/lattice/store"
)

// DefaultMaxConcurrent bounds how many partition groups are fetched in
// parallel during one Hydrate call.
const DefaultMaxConcurrent = 8

// ErrTooManyRefs is returned when a single entity's reference list exceeds
// batch.MaxRefsPerEntity. Lists that large should be inverted into a query
// on the referencing side rather than stored inline.
var ErrTooManyRefs = errors.New("lattice/hydrate: reference list exceeds limit")

// PartialError reports that one or more partition-group fetches failed.
// Entities whose groups succeeded are still hydrated; entities referencing
// only failed scopes are returned un-hydrated. The caller decides whether
// partial hydration is acceptable.
type PartialError struct {
	// Field is the reference field being hydrated.
	Field string

	// Failed maps each failed partition scope to its fetch error.
	Failed map[string]error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("lattice/hydrate: %d partition group(s) failed for field %q: %v",
		len(e.Failed), e.Field, e.FailedScopes())
}

// FailedScopes returns the failed partition scopes in sorted order.
func (e *PartialError) FailedScopes() []string {
	scopes := make([]string, 0, len(e.Failed))
	for s := range e.Failed {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}

// Resolver hydrates reference fields against a document store.
type Resolver struct {
	store         store.DocumentStore
	maxBatchSize  int
	maxConcurrent int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxBatchSize caps the keys per batched fetch. Groups larger than the
// cap are split into consecutive batches against the same scope.
func WithMaxBatchSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBatchSize = n
		}
	}
}

// WithMaxConcurrent bounds parallel partition-group fetches.
func WithMaxConcurrent(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// New creates a Resolver with the store's default batch ceiling.
func New(ds store.DocumentStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:         ds,
		maxBatchSize:  batch.DefaultSize,
		maxConcurrent: DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hydrate resolves the named reference field on every input entity and
// attaches the targets as transient associations, in reference-list order.
//
// Identifiers are deduplicated across all inputs and grouped by partition
// scope; each group is resolved by one batched fetch (split only when a
// group exceeds the batch ceiling). Referenced identifiers with no stored
// target are silently omitted; dangling references degrade gracefully.
//
// The persisted Refs lists are never mutated. Group fetches that fail leave
// their entities un-hydrated and are reported together in a *PartialError;
// entities served by surviving groups are hydrated as usual.
func (r *Resolver) Hydrate(ctx context.Context, entities []*store.Entity, field string) ([]*store.Entity, error) {
	groups := map[string][]string{}
	seen := map[store.Ref]bool{}
	for _, e := range entities {
		refs := e.Refs[field]
		if len(refs) > batch.MaxRefsPerEntity {
			return entities, fmt.Errorf("%w: entity %s/%s has %d refs in field %q (limit %d)",
				ErrTooManyRefs, e.Scope, e.ID, len(refs), field, batch.MaxRefsPerEntity)
		}
		for _, ref := range refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			groups[ref.Scope] = append(groups[ref.Scope], ref.ID)
		}
	}

	var (
		mu       sync.Mutex
		resolved = map[store.Ref]*store.Entity{}
		failed   = map[string]error{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)
	for scope, ids := range groups {
		g.Go(func() error {
			var fetched []*store.Entity
			for _, chunk := range batch.Chunk(ids, r.maxBatchSize) {
				part, err := r.store.BatchGet(gctx, scope, chunk)
				if err != nil {
					mu.Lock()
					failed[scope] = err
					mu.Unlock()
					// Other groups keep going; partial success is allowed.
					return nil
				}
				fetched = append(fetched, part...)
			}
			mu.Lock()
			for _, target := range fetched {
				resolved[store.Ref{ID: target.ID, Scope: target.Scope}] = target
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entities, err
	}
	// Deadline expiry is a cancellation, not a partial-hydration outcome.
	if err := ctx.Err(); err != nil {
		return entities, err
	}

	for _, e := range entities {
		refs := e.Refs[field]
		if skipEntity(refs, failed) {
			continue
		}
		targets := make([]*store.Entity, 0, len(refs))
		for _, ref := range refs {
			if target, ok := resolved[ref]; ok {
				targets = append(targets, target)
			}
		}
		e.SetAssociated(field, targets)
	}

	if len(failed) > 0 {
		return entities, &PartialError{Field: field, Failed: failed}
	}
	return entities, nil
}

// skipEntity reports whether any of the entity's references point into a
// failed partition group. Such entities stay un-hydrated rather than
// carrying an association that silently misses live targets.
func skipEntity(refs []store.Ref, failed map[string]error) bool {
	for _, ref := range refs {
		if _, ok := failed[ref.Scope]; ok {
			return true
		}
	}
	return false
}

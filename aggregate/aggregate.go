// Package aggregate keeps denormalized fields on parent documents correct
// under concurrent child mutations, using the occ retry loop instead of
// cross-document transactions.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/lattice/occ"
	"github.com/jacentio/lattice/store"
)

// ErrStale marks an aggregate refresh that exhausted its conflict retries.
// The parent keeps serving its last committed value; staleness is preferred
// over inconsistency. Match with errors.Is; the underlying attempt context
// is available via errors.As on *occ.ExhaustedError.
var ErrStale = errors.New("lattice/aggregate: aggregate is stale")

// Strategy selects how an aggregate field is recomputed.
type Strategy int

const (
	// RecomputeFromSource re-derives the aggregate by re-querying all
	// contributing children inside the retry loop. Correct under arbitrary
	// concurrent child changes; the default and the required choice when
	// multiple independent write paths affect the same field.
	RecomputeFromSource Strategy = iota

	// IncrementalDelta applies a known delta to the previously read value.
	// Cheaper, but only safe for fields with a single writer at a time;
	// the retry loop still protects against lost updates.
	IncrementalDelta
)

func (s Strategy) String() string {
	switch s {
	case RecomputeFromSource:
		return "recompute-from-source"
	case IncrementalDelta:
		return "incremental-delta"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// RecomputeFunc derives fresh aggregate field values for a parent. It runs
// inside the retry loop, so it must be pure apart from store reads: it may
// be invoked once per conflict round, each time against the parent state
// just read. The returned map is written onto the parent's Fields before
// the conditional write.
type RecomputeFunc func(ctx context.Context, parent *store.Entity) (map[string]any, error)

// Maintainer refreshes aggregate fields on parent documents through the
// concurrency controller.
type Maintainer struct {
	ctrl *occ.Controller
}

// New creates a Maintainer on top of an existing controller.
func New(ctrl *occ.Controller) *Maintainer {
	return &Maintainer{ctrl: ctrl}
}

// Refresh recomputes aggregate fields on a parent document using the
// recompute-from-source strategy: recompute runs against the parent state
// read in the current attempt, and the result is committed by a conditional
// write on that read's version token. Exhausted retries surface as ErrStale;
// the stored document is never left partially updated.
func (m *Maintainer) Refresh(ctx context.Context, parentID, parentScope string, recompute RecomputeFunc) (*store.Entity, error) {
	parent, err := m.ctrl.Update(ctx, parentID, parentScope, func(current *store.Entity) (*store.Entity, error) {
		values, err := recompute(ctx, current)
		if err != nil {
			return nil, err
		}
		for field, value := range values {
			current.SetField(field, value)
		}
		return current, nil
	})
	if err != nil {
		return nil, mapExhausted(parentID, parentScope, err)
	}
	return parent, nil
}

// ApplyDelta shifts a numeric aggregate field by a known delta, the
// incremental-delta strategy. A missing field starts from zero. Only use
// this for fields with one writer at a time; concurrent deltas from
// independent paths should go through Refresh instead.
func (m *Maintainer) ApplyDelta(ctx context.Context, parentID, parentScope, field string, delta int64) (*store.Entity, error) {
	parent, err := m.ctrl.Update(ctx, parentID, parentScope, func(current *store.Entity) (*store.Entity, error) {
		value, _ := current.Int64Field(field)
		current.SetField(field, value+delta)
		return current, nil
	})
	if err != nil {
		return nil, mapExhausted(parentID, parentScope, err)
	}
	return parent, nil
}

// CountChildren returns a RecomputeFunc that counts a parent's children of
// one type in a partition scope, matching children by a Ref-valued field
// pointing back at the parent plus an optional extra predicate.
func CountChildren(ds store.DocumentStore, childScope, childType, field string, pred store.Predicate) RecomputeFunc {
	return func(ctx context.Context, parent *store.Entity) (map[string]any, error) {
		children, err := ds.Query(ctx, childScope, pred)
		if err != nil {
			return nil, err
		}
		count := int64(0)
		for _, child := range children {
			if child.Type != childType {
				continue
			}
			if refersTo(child, parent) {
				count++
			}
		}
		return map[string]any{field: count}, nil
	}
}

// refersTo reports whether any of the child's reference lists contains the
// parent.
func refersTo(child, parent *store.Entity) bool {
	want := store.Ref{ID: parent.ID, Scope: parent.Scope}
	for _, refs := range child.Refs {
		for _, ref := range refs {
			if ref == want {
				return true
			}
		}
	}
	return false
}

// mapExhausted converts controller exhaustion into ErrStale while keeping
// the full attempt context on the chain.
func mapExhausted(id, scope string, err error) error {
	if errors.Is(err, occ.ErrExhausted) {
		return fmt.Errorf("%w: parent %s/%s keeps last committed value: %w", ErrStale, scope, id, err)
	}
	return err
}

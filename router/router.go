// Package router classifies queries as single-partition or fan-out and
// executes fan-out plans with a client-side merge, making the cost and
// correctness tradeoff of cross-partition queries explicit and testable.
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/lattice/store"
)

// DefaultMaxConcurrent bounds how many partitions a fan-out plan queries in
// parallel.
const DefaultMaxConcurrent = 8

// PlanKind distinguishes the two query shapes.
type PlanKind int

const (
	// SinglePartition targets exactly one partition scope, selected by an
	// equality constraint on the partition key.
	SinglePartition PlanKind = iota

	// FanOut queries every known partition scope and merges the results
	// client-side.
	FanOut
)

func (k PlanKind) String() string {
	switch k {
	case SinglePartition:
		return "single-partition"
	case FanOut:
		return "fan-out"
	default:
		return fmt.Sprintf("plan(%d)", int(k))
	}
}

// Plan is the routing decision for one predicate.
type Plan struct {
	Kind   PlanKind
	Scopes []string
}

// Options tunes plan execution.
type Options struct {
	// OrderBy names a field to order merged results by. Empty means the
	// per-partition order is kept, partitions concatenated in scope order.
	OrderBy string

	// Descending reverses the OrderBy ordering.
	Descending bool
}

// Router plans and executes queries against a partitioned store.
type Router struct {
	partitionKey  string
	scopes        []string
	maxConcurrent int
}

// Option configures a Router.
type Option func(*Router)

// WithMaxConcurrent bounds parallel per-partition queries during fan-out.
func WithMaxConcurrent(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// New creates a Router. partitionKey is the predicate field that carries the
// partition scope; scopes is the full set of known partition scopes a
// fan-out plan must cover.
func New(partitionKey string, scopes []string, opts ...Option) *Router {
	r := &Router{
		partitionKey:  partitionKey,
		scopes:        append([]string(nil), scopes...),
		maxConcurrent: DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route inspects the predicate for an equality constraint on the partition
// key. If one is present the plan targets that single partition; otherwise
// the plan fans out across every known scope.
func (r *Router) Route(pred store.Predicate) Plan {
	if v, ok := pred.Equality(r.partitionKey); ok {
		if scope, ok := v.(string); ok {
			return Plan{Kind: SinglePartition, Scopes: []string{scope}}
		}
	}
	return Plan{Kind: FanOut, Scopes: append([]string(nil), r.scopes...)}
}

// Execute routes the predicate and runs the resulting plan. Fan-out plans
// issue one query per scope, joined before returning; ordering requested via
// opts.OrderBy is restored by a stable client-side merge, not a distributed
// sort. The partition-key condition is stripped before querying since the
// scope already encodes it.
func (r *Router) Execute(ctx context.Context, ds store.DocumentStore, pred store.Predicate, opts Options) ([]*store.Entity, error) {
	plan := r.Route(pred)
	scoped := pred.Without(r.partitionKey)

	byScope := make(map[string][]*store.Entity, len(plan.Scopes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)
	for _, scope := range plan.Scopes {
		g.Go(func() error {
			results, err := ds.Query(gctx, scope, scoped)
			if err != nil {
				return fmt.Errorf("lattice/router: query scope %q: %w", scope, err)
			}
			mu.Lock()
			byScope[scope] = results
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scopes := append([]string(nil), plan.Scopes...)
	sort.Strings(scopes)
	var merged []*store.Entity
	for _, scope := range scopes {
		merged = append(merged, byScope[scope]...)
	}

	if opts.OrderBy != "" {
		sort.SliceStable(merged, func(i, j int) bool {
			a, aok := merged[i].Fields[opts.OrderBy]
			b, bok := merged[j].Fields[opts.OrderBy]
			if !aok || !bok {
				// Entities missing the sort field order after those that
				// have it.
				return aok && !bok
			}
			cmp, ok := store.CompareValues(a, b)
			if !ok {
				return false
			}
			if opts.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	return merged, nil
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stats counts store operations. Tests use it to assert observable behavior
// such as the number of batched fetches or committed conditional writes.
type Stats struct {
	// Gets is the number of point reads.
	Gets int

	// Writes is the number of committed conditional writes.
	Writes int

	// Conflicts is the number of conditional writes rejected for a stale
	// version token.
	Conflicts int

	// BatchGets is the number of batched fetch calls (not keys fetched).
	BatchGets int

	// Queries is the number of per-partition query calls.
	Queries int
}

// Memory is an in-process DocumentStore. It mints a fresh random version
// token on every committed write, making token opacity observable: callers
// that try to order or parse tokens break immediately.
//
// Memory is safe for concurrent use and is the reference implementation for
// the conditional-write semantics the rest of the module depends on.
type Memory struct {
	mu         sync.Mutex
	partitions map[string]map[string]*Entity
	stats      Stats
	failBatch  map[string]error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		partitions: map[string]map[string]*Entity{},
		failBatch:  map[string]error{},
	}
}

// Seed stores an entity unconditionally and returns its new version token.
// Intended for test and fixture setup.
func (m *Memory) Seed(e *Entity) Version {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := e.Clone()
	stored.Version = Version(uuid.NewString())
	now := time.Now().UTC().Format(time.RFC3339)
	if stored.CreatedAt == "" {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.partition(stored.Scope)[stored.ID] = stored
	return stored.Version
}

// FailBatchGet makes every subsequent BatchGet against the given scope fail
// with err. Used to exercise partial-hydration paths.
func (m *Memory) FailBatchGet(scope string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failBatch[scope] = err
}

// Stats returns a snapshot of the operation counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ResetStats zeroes the operation counters.
func (m *Memory) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
}

// Get implements DocumentStore.
func (m *Memory) Get(ctx context.Context, id, scope string) (*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Gets++

	e, ok := m.partition(scope)[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := e.Clone()
	return out, nil
}

// ConditionalWrite implements DocumentStore.
func (m *Memory) ConditionalWrite(ctx context.Context, e *Entity, expected Version) (Version, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	part := m.partition(e.Scope)
	current, exists := part[e.ID]

	if expected == "" {
		if exists {
			m.stats.Conflicts++
			return "", ErrConflict
		}
	} else {
		if !exists || current.Version != expected {
			m.stats.Conflicts++
			return "", ErrConflict
		}
	}

	stored := e.Clone()
	stored.Version = Version(uuid.NewString())
	now := time.Now().UTC().Format(time.RFC3339)
	if exists {
		stored.CreatedAt = current.CreatedAt
	} else if stored.CreatedAt == "" {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	part[e.ID] = stored
	m.stats.Writes++
	return stored.Version, nil
}

// BatchGet implements DocumentStore. Identifiers without a stored entity are
// omitted; result order follows the requested identifier order.
func (m *Memory) BatchGet(ctx context.Context, scope string, ids []string) ([]*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.BatchGets++

	if err, ok := m.failBatch[scope]; ok {
		return nil, err
	}

	part := m.partition(scope)
	var out []*Entity
	for _, id := range ids {
		if e, ok := part[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// Query implements DocumentStore. Results are ordered by entity ID so tests
// see deterministic output.
func (m *Memory) Query(ctx context.Context, scope string, pred Predicate) ([]*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Queries++

	var out []*Entity
	for _, e := range m.partition(scope) {
		if pred.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// partition returns the scope map, creating it if absent. Callers hold mu.
func (m *Memory) partition(scope string) map[string]*Entity {
	p, ok := m.partitions[scope]
	if !ok {
		p = map[string]*Entity{}
		m.partitions[scope] = p
	}
	return p
}

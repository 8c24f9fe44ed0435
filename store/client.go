package store

import "context"

// DocumentStore is the boundary to the underlying partitioned document store.
// Implementations must assign a fresh Version on every successful write and
// fail a conditional write with ErrConflict when the expected token is stale.
// All other failures (network, permission, serialization) must surface as
// their own errors and never as ErrConflict.
type DocumentStore interface {
	// Get point-reads an entity by identifier within a partition scope.
	// Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, id, scope string) (*Entity, error)

	// ConditionalWrite upserts the entity if and only if the stored version
	// token still equals expected. An empty expected token means the entity
	// must not exist yet. Returns the newly assigned token on success and
	// ErrConflict when the token is stale.
	ConditionalWrite(ctx context.Context, e *Entity, expected Version) (Version, error)

	// BatchGet reads many entities from a single partition scope in one
	// batched call. Identifiers with no stored entity are omitted from the
	// result; the call succeeds as long as the batch itself succeeds.
	BatchGet(ctx context.Context, scope string, ids []string) ([]*Entity, error)

	// Query returns all entities in one partition scope matching the
	// predicate. Each call restarts the enumeration; results are finite.
	Query(ctx context.Context, scope string, pred Predicate) ([]*Entity, error)
}

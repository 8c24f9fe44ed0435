package store

// Version is the opaque concurrency token assigned by the document store on
// every successful write. Callers must never parse, compare numerically, or
// cache a Version across logical operations; it is only valid as the expected
// token of the next conditional write.
type Version string

// Ref is a persisted reference to another entity: the foreign identifier
// paired with the partition scope needed to resolve it.
type Ref struct {
	// ID is the referenced entity's identifier.
	ID string

	// Scope is the partition scope the referenced entity lives in.
	Scope string
}

// Entity is a document in the store. Known fields are modeled explicitly;
// everything else lives in the open Fields map. Reference lists are persisted
// as identifiers only and are never expanded in storage.
type Entity struct {
	// ID is the entity's unique identifier within its partition scope.
	ID string

	// Scope is the partition scope (routing key) the entity lives in.
	Scope string

	// Type is the entity type name (e.g., "ticket").
	Type string

	// Version is the store-assigned concurrency token from the read that
	// produced this instance. Empty for entities not yet written.
	Version Version

	// CreatedAt is the ISO 8601 creation timestamp (store-managed).
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp (store-managed).
	UpdatedAt string

	// Fields holds the entity's document body.
	Fields map[string]any

	// Refs maps reference field names to ordered lists of foreign refs.
	Refs map[string][]Ref

	// associated holds hydrated associations: transient, process-local,
	// owned by this instance. Never persisted, never copied by Clone.
	associated map[string][]*Entity
}

// NewEntity creates an entity with initialized maps.
func NewEntity(id, scope, entityType string) *Entity {
	return &Entity{
		ID:     id,
		Scope:  scope,
		Type:   entityType,
		Fields: map[string]any{},
		Refs:   map[string][]Ref{},
	}
}

// Clone returns a copy safe to mutate independently of the receiver.
// Field values are copied shallowly; reference lists are copied deeply.
// Hydrated associations are deliberately not carried over: they belong to
// the instance that requested hydration.
func (e *Entity) Clone() *Entity {
	c := &Entity{
		ID:        e.ID,
		Scope:     e.Scope,
		Type:      e.Type,
		Version:   e.Version,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Fields != nil {
		c.Fields = make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			c.Fields[k] = v
		}
	}
	if e.Refs != nil {
		c.Refs = make(map[string][]Ref, len(e.Refs))
		for k, v := range e.Refs {
			refs := make([]Ref, len(v))
			copy(refs, v)
			c.Refs[k] = refs
		}
	}
	return c
}

// SetField sets a document field, initializing the Fields map if needed.
func (e *Entity) SetField(name string, value any) {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields[name] = value
}

// Field returns a document field value and whether it is present.
func (e *Entity) Field(name string) (any, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Int64Field returns a numeric field as int64. Numeric fields may come back
// from a store round trip as int, int64, or float64 depending on the codec.
func (e *Entity) Int64Field(name string) (int64, bool) {
	switch v := e.Fields[name].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// SetAssociated attaches resolved targets for a reference field. The
// attachment is transient: it is lost on Clone and on every reload.
func (e *Entity) SetAssociated(field string, targets []*Entity) {
	if e.associated == nil {
		e.associated = map[string][]*Entity{}
	}
	e.associated[field] = targets
}

// Associated returns the hydrated targets for a reference field, or nil if
// the field has not been hydrated on this instance.
func (e *Entity) Associated(field string) []*Entity {
	return e.associated[field]
}

// Hydrated reports whether a reference field has been hydrated on this
// instance. A field hydrated to zero targets still counts as hydrated.
func (e *Entity) Hydrated(field string) bool {
	_, ok := e.associated[field]
	return ok
}

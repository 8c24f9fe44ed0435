package aggregate

// Rule binds a child entity type to one aggregate field it affects on its
// parent. The stream handler consults rules to decide which parents to
// refresh after a child mutation.
type Rule struct {
	// ChildType is the child entity type (e.g., "ticket").
	ChildType string

	// ParentRefField is the child's reference field holding the parent ref
	// (e.g., "project"). The first entry in the list is the parent.
	ParentRefField string

	// Field is the aggregate field maintained on the parent
	// (e.g., "openCount").
	Field string

	// Strategy selects recompute-from-source (default) or incremental-delta.
	Strategy Strategy

	// Recompute derives the fresh field values. Required for
	// RecomputeFromSource; ignored for IncrementalDelta.
	Recompute RecomputeFunc
}

// Registry holds all known aggregate rules keyed by child type.
type Registry struct {
	rules   []Rule
	byChild map[string][]Rule
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:   []Rule{},
		byChild: make(map[string][]Rule),
	}
}

// Register adds a rule. This should be called during init() for each
// aggregate a child type affects.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
	r.byChild[rule.ChildType] = append(r.byChild[rule.ChildType], rule)
}

// RulesFor returns all rules triggered by mutations of the given child type.
func (r *Registry) RulesFor(childType string) []Rule {
	return r.byChild[childType]
}

// AllRules returns every registered rule.
func (r *Registry) AllRules() []Rule {
	return r.rules
}

// HasRules returns true if the child type affects any aggregate.
func (r *Registry) HasRules(childType string) bool {
	return len(r.byChild[childType]) > 0
}

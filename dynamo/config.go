package dynamo

// Config holds configuration for the DynamoDB-backed store.
type Config struct {
	// Table is the name of the documents table. Its schema is a partition
	// key "scope" (S) and a sort key "id" (S).
	// Default: "lattice_documents"
	Table string

	// UnprocessedRetries is how many extra rounds a batched read makes to
	// drain UnprocessedKeys before giving up.
	// Default: 3
	UnprocessedRetries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:              "lattice_documents",
		UnprocessedRetries: 3,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "lattice_documents"
	}
	if c.UnprocessedRetries < 0 {
		c.UnprocessedRetries = 3
	}
}

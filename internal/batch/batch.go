// Package batch provides chunking helpers and the size limits the store
// layer imposes on batched reads.
package batch

const (
	// DefaultSize is the maximum number of keys per batched fetch,
	// matching the DynamoDB BatchGetItem ceiling of 100 keys.
	DefaultSize = 100

	// MaxRefsPerEntity bounds the reference-list size a single entity may
	// carry into hydration. Larger lists indicate the reference should be
	// inverted (query children by parent) instead of stored inline.
	MaxRefsPerEntity = 1000
)

// Chunk splits ids into consecutive groups of at most size elements.
// A size <= 0 falls back to DefaultSize. The returned slices alias ids.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultSize
	}
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

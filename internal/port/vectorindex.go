package port

// VectorIndex searches a read-only set of embeddings by distance.
type VectorIndex interface {
	// Search returns up to k neighbours of query ordered by ascending
	// distance. k must be at least 1.
	Search(query []float32, k int) ([]Neighbor, error)

	// Dimension returns the declared vector dimension.
	Dimension() int

	// Len returns the number of indexed rows.
	Len() int

	// RowID returns the identifier stored for a row, or "" when none was stored.
	RowID(position int) string
}

// Neighbor is a search result addressed by row position, not by chunk id.
type Neighbor struct {
	Position int
	Distance float64
}

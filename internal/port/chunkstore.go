package port

import "ragqa/internal/domain"

// ChunkSource resolves index positions to chunks.
type ChunkSource interface {
	Len() int
	At(position int) (domain.Chunk, bool)
}

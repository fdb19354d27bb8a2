package usecase

import (
	"context"
	"fmt"

	"ragqa/internal/adapter/chunkstore"
	"ragqa/internal/adapter/vectorindex"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// ProgressFunc reports how many chunks have been embedded so far.
type ProgressFunc func(processed, total int)

// IndexUseCase embeds a chunk store into a vector index, one row per chunk
// in file order.
type IndexUseCase struct {
	embedder  port.Embedder
	metric    vectorindex.Metric
	batchSize int
}

func NewIndexUseCase(embedder port.Embedder, metric vectorindex.Metric, batchSize int) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &IndexUseCase{embedder: embedder, metric: metric, batchSize: batchSize}
}

// Build returns the index for store. The chunk store is never modified.
func (u *IndexUseCase) Build(ctx context.Context, store *chunkstore.Store, progress ProgressFunc) (*vectorindex.Flat, error) {
	texts := store.Texts()
	dim := u.embedder.Dimension()
	vectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += u.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(i+u.batchSize, len(texts))
		batch, err := u.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: chunks %d-%d: %v", domain.ErrEncoding, i, end-1, err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEncoding, end-i, len(batch))
		}
		for j, v := range batch {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d", domain.ErrEncoding, i+j, len(v), dim)
			}
		}
		vectors = append(vectors, batch...)

		if progress != nil {
			progress(len(vectors), len(texts))
		}
	}

	idx := vectorindex.NewFlat(dim, u.metric)
	if err := idx.Build(store.IDs(), vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

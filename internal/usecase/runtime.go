package usecase

import (
	"context"
	"fmt"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// Runtime is the immutable corpus state shared by every request: chunks,
// their index rows and the encoder that produced them.
type Runtime struct {
	Chunks   port.ChunkSource
	Index    port.VectorIndex
	Embedder port.Embedder
}

// NewRuntime checks that chunks and index describe the same corpus and that
// the encoder speaks the index's dimension.
func NewRuntime(chunks port.ChunkSource, index port.VectorIndex, embedder port.Embedder) (*Runtime, error) {
	if index.Len() != chunks.Len() {
		return nil, fmt.Errorf("%w: index has %d rows but chunk store has %d chunks", domain.ErrIndexUnavailable, index.Len(), chunks.Len())
	}
	if index.Len() > 0 && index.Dimension() != embedder.Dimension() {
		return nil, fmt.Errorf("%w: index dimension %d does not match encoder %s (%d)",
			domain.ErrIndexUnavailable, index.Dimension(), embedder.ModelName(), embedder.Dimension())
	}

	for pos := 0; pos < chunks.Len(); pos++ {
		chunk, _ := chunks.At(pos)
		rowID := index.RowID(pos)
		if rowID != "" && chunk.ID != "" && rowID != chunk.ID {
			return nil, fmt.Errorf("%w: row %d is %q but chunk is %q", domain.ErrIndexUnavailable, pos, rowID, chunk.ID)
		}
	}

	return &Runtime{Chunks: chunks, Index: index, Embedder: embedder}, nil
}

// Lazy builds a value once, on first use, and hands the same value or error
// to every caller after that.
type Lazy[T any] struct {
	once  sync.Once
	build func(context.Context) (T, error)
	val   T
	err   error
	done  chan struct{}
}

func NewLazy[T any](build func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build, done: make(chan struct{})}
}

// Ready wraps an already built value.
func Ready[T any](v T) *Lazy[T] {
	l := &Lazy[T]{val: v, done: make(chan struct{})}
	l.once.Do(func() { close(l.done) })
	return l
}

// Get runs the build on first call. A failed build is remembered.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.once.Do(func() {
		defer close(l.done)
		l.val, l.err = l.build(ctx)
	})
	return l.val, l.err
}

// Loaded reports whether the build has finished, and its error if any.
func (l *Lazy[T]) Loaded() (bool, error) {
	select {
	case <-l.done:
		return true, l.err
	default:
		return false, nil
	}
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// DefaultTopK is the number of passages returned as links.
const DefaultTopK = 3

// Answerer runs the retrieval pipeline for one question at a time. It holds
// no per-request state and is safe for concurrent use.
type Answerer struct {
	runtime   *Runtime
	extractor port.TextExtractor
	links     port.LinkBuilder
	topK      int
	fallback  string
	logger    *log.Logger
}

type AnswererOptions struct {
	TopK           int
	FallbackAnswer string
	Logger         *log.Logger
}

func NewAnswerer(rt *Runtime, extractor port.TextExtractor, links port.LinkBuilder, opts AnswererOptions) *Answerer {
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Answerer{
		runtime:   rt,
		extractor: extractor,
		links:     links,
		topK:      opts.TopK,
		fallback:  opts.FallbackAnswer,
		logger:    opts.Logger,
	}
}

// Runtime returns the loaded corpus state.
func (a *Answerer) Runtime() *Runtime {
	return a.runtime
}

// Answer returns the closest passage and the ranked links for q. An image
// that cannot be read is logged and ignored.
func (a *Answerer) Answer(ctx context.Context, q domain.Query) (domain.Answer, error) {
	if a.runtime.Index.Len() == 0 {
		return a.fallbackAnswer(), nil
	}

	question := a.augment(ctx, q)

	hits, err := a.Retrieve(ctx, question, a.topK)
	if err != nil {
		return domain.Answer{}, err
	}

	if len(hits) == 0 {
		return a.fallbackAnswer(), nil
	}

	links := make([]domain.Link, len(hits))
	for i, h := range hits {
		links[i] = a.links.Link(h.Chunk)
	}
	return domain.Answer{Answer: hits[0].Chunk.Text, Links: links}, nil
}

func (a *Answerer) fallbackAnswer() domain.Answer {
	return domain.Answer{Answer: a.fallback, Links: []domain.Link{}}
}

func (a *Answerer) augment(ctx context.Context, q domain.Query) string {
	if !q.HasImage() || a.extractor == nil {
		return q.Question
	}

	res := a.extractor.Extract(ctx, q.Image)
	if !res.OK() {
		a.logger.Warn("image ignored", "err", res.Err)
		return q.Question
	}

	a.logger.Debug("image text extracted", "chars", len(res.Text))
	return Augment(q.Question, res.Text)
}

// Retrieve embeds text and resolves the k nearest index rows to chunks.
func (a *Answerer) Retrieve(ctx context.Context, text string, k int) ([]domain.Hit, error) {
	rt := a.runtime

	vec, err := Encode(ctx, rt.Embedder, text)
	if err != nil {
		return nil, err
	}

	neighbors, err := rt.Index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]domain.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		chunk, ok := rt.Chunks.At(n.Position)
		if !ok {
			return nil, fmt.Errorf("%w: position %d outside chunk store of %d", domain.ErrIndexUnavailable, n.Position, rt.Chunks.Len())
		}
		hits = append(hits, domain.Hit{Position: n.Position, Chunk: chunk, Distance: n.Distance})
	}

	return hits, nil
}

// Augment appends extracted image text to the question with one separating
// space. Blank extractions leave the question unchanged.
func Augment(question, extracted string) string {
	extracted = strings.TrimSpace(extracted)
	if extracted == "" {
		return question
	}
	return question + " " + extracted
}

// Encode embeds a single text and checks the vector against the embedder's
// declared dimension.
func Encode(ctx context.Context, e port.Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", domain.ErrEncoding, len(vecs))
	}
	if len(vecs[0]) != e.Dimension() {
		return nil, fmt.Errorf("%w: embedding has dimension %d, want %d", domain.ErrEncoding, len(vecs[0]), e.Dimension())
	}
	return vecs[0], nil
}

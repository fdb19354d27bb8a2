package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"ragqa/internal/adapter/analyzer"
)

// HashEmbedder is an in-process embedder using signed feature hashing over
// stemmed terms and their bigrams. It needs no model files or network and is
// deterministic for a given dimension, which makes it suitable for offline
// corpora and tests. Texts with no surviving terms map to the zero vector.
type HashEmbedder struct {
	dimension    int
	tokenizer    *analyzer.Tokenizer
	bigramWeight float32
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{
		dimension:    dimension,
		tokenizer:    analyzer.NewTokenizer(true),
		bigramWeight: 0.5,
	}
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	terms := e.tokenizer.Tokenize(text)
	for _, term := range terms {
		e.add(vec, term, 1)
	}
	for _, bigram := range analyzer.Bigrams(terms) {
		e.add(vec, bigram, e.bigramWeight)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash-v1"
}

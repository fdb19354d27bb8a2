package embedding

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const maxBatch = 100

// OpenAIEmbedder embeds text through any OpenAI-compatible /embeddings API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
}

// Options configures an OpenAIEmbedder. Zero values fall back to the
// provider defaults.
type Options struct {
	Model     string
	BaseURL   string
	Dimension int
	BatchSize int
}

func NewOpenAIEmbedder(apiKeyEnv string, opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if opts.Model == "" {
		opts.Model = string(openai.SmallEmbedding3)
	}
	return newEmbedder(apiKey, opts), nil
}

func NewOllamaEmbedder(opts Options) *OpenAIEmbedder {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434/v1"
	}
	if opts.Model == "" {
		opts.Model = "all-minilm"
	}
	return newEmbedder("ollama", opts)
}

// NewCompatibleEmbedder targets a self-hosted OpenAI-compatible server. The
// API key is optional.
func NewCompatibleEmbedder(apiKeyEnv string, opts Options) (*OpenAIEmbedder, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for the compatible provider")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required for the compatible provider")
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		apiKey = "none"
	}
	return newEmbedder(apiKey, opts), nil
}

func newEmbedder(apiKey string, opts Options) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Dimension <= 0 {
		opts.Dimension = defaultDimension(opts.Model)
	}
	if opts.BatchSize <= 0 || opts.BatchSize > maxBatch {
		opts.BatchSize = maxBatch
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
	}
}

func defaultDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm", "all-MiniLM-L6-v2":
		return 384
	}
	return 1536
}

// Embed embeds texts in batches. Empty strings are not sent; they map to the
// zero vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		pending []string
		slots   []int
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		vecs, err := e.embedBatch(ctx, pending)
		if err != nil {
			return err
		}
		for i, slot := range slots {
			out[slot] = vecs[i]
		}
		pending, slots = pending[:0], slots[:0]
		return nil
	}

	for i, text := range texts {
		if text == "" {
			out[i] = make([]float32, e.dimension)
			continue
		}
		pending = append(pending, text)
		slots = append(slots, i)
		if len(pending) == e.batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("model %s returned dimension %d, configured %d", e.model, len(data.Embedding), e.dimension)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

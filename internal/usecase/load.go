package usecase

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"ragqa/config"
	"ragqa/internal/adapter/cache"
	"ragqa/internal/adapter/chunkstore"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/linker"
	"ragqa/internal/adapter/ocr"
	"ragqa/internal/adapter/vectorindex"
	"ragqa/internal/port"
)

// localDimension is used by the hash embedder when none is configured.
const localDimension = 384

// NewEmbedder creates the encoder named by cfg.Provider.
func NewEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := embedding.Options{
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
	}

	switch cfg.Provider {
	case "local", "":
		dim := cfg.Dimension
		if dim == 0 {
			dim = localDimension
		}
		return embedding.NewHashEmbedder(dim), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.APIKeyEnv, opts)
	case "ollama":
		return embedding.NewOllamaEmbedder(opts), nil
	case "compatible":
		return embedding.NewCompatibleEmbedder(cfg.APIKeyEnv, opts)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// NewExtractor returns the OCR extractor, or one that always fails when OCR
// is switched off.
func NewExtractor(cfg config.OCRConfig) port.TextExtractor {
	if !cfg.Enabled {
		return ocr.Disabled{}
	}
	return ocr.NewTesseract(ocr.Options{
		Command:  cfg.Command,
		Language: cfg.Language,
		Timeout:  cfg.Timeout,
		MaxBytes: cfg.MaxImageBytes,
	})
}

func NewLinker(cfg config.LinksConfig) (*linker.Builder, error) {
	rules := make([]linker.Rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = linker.Rule{Pattern: r.Match, BaseURL: r.BaseURL}
	}
	return linker.NewBuilder(cfg.BaseURL, linker.TextMode(cfg.Text), rules)
}

// LoadRuntime reads the chunk file and vector index under dir and checks
// them against the configured encoder.
func LoadRuntime(cfg *config.Config, dir string, logger *log.Logger) (*Runtime, error) {
	start := time.Now()

	chunks, err := chunkstore.Load(cfg.ChunksPath(dir))
	if err != nil {
		return nil, err
	}

	metric, err := vectorindex.ParseMetric(cfg.Corpus.Metric)
	if err != nil {
		return nil, err
	}
	index, err := vectorindex.Load(cfg.IndexPath(dir), vectorindex.Engine(cfg.Corpus.IndexEngine), metric)
	if err != nil {
		return nil, err
	}

	embedder, err := NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = cache.NewCachedEmbedder(embedder, cache.NewVectorCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL))
	}

	rt, err := NewRuntime(chunks, index, embedder)
	if err != nil {
		return nil, err
	}

	logger.Info("corpus loaded",
		"chunks", chunks.Len(),
		"dim", index.Dimension(),
		"metric", metric,
		"engine", cfg.Corpus.IndexEngine,
		"model", embedder.ModelName(),
		"elapsed", time.Since(start),
	)
	return rt, nil
}

// LoadAnswerer builds the full pipeline from configuration.
func LoadAnswerer(cfg *config.Config, dir string, logger *log.Logger) (*Answerer, error) {
	rt, err := LoadRuntime(cfg, dir, logger)
	if err != nil {
		return nil, err
	}
	links, err := NewLinker(cfg.Links)
	if err != nil {
		return nil, err
	}
	if cfg.OCR.Enabled {
		logger.Debug("ocr enabled", "command", cfg.OCR.Command, "language", cfg.OCR.Language)
	}
	return NewAnswerer(rt, NewExtractor(cfg.OCR), links, AnswererOptions{
		TopK:           cfg.Retrieve.TopK,
		FallbackAnswer: cfg.Retrieve.FallbackAnswer,
		Logger:         logger,
	}), nil
}

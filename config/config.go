package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFallbackAnswer is returned when the corpus yields no results.
const DefaultFallbackAnswer = "Sorry, I could not find an answer to that question."

// Config holds all configuration for the service.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	OCR       OCRConfig       `yaml:"ocr"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Links     LinksConfig     `yaml:"links"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig locates the chunk file and the vector index built from it.
type CorpusConfig struct {
	ChunksPath  string `yaml:"chunks_path"`
	IndexPath   string `yaml:"index_path"`
	IndexEngine string `yaml:"index_engine"` // "flat", "bolt"
	Metric      string `yaml:"metric"`       // "l2", "cosine"
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "local", "openai", "ollama", "compatible"
	Model     string        `yaml:"model"`       // provider default when empty
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"` // 0 uses the model's native size
	BatchSize int           `yaml:"batch_size"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the query vector cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// OCRConfig holds image text extraction configuration.
type OCRConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Command       string        `yaml:"command"`
	Language      string        `yaml:"language"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int           `yaml:"max_image_bytes"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK           int    `yaml:"top_k"`
	FallbackAnswer string `yaml:"fallback_answer"`
}

// LinksConfig controls how result links are built from chunk sources.
type LinksConfig struct {
	BaseURL string     `yaml:"base_url"`
	Text    string     `yaml:"text"` // "chunk", "source"
	Rules   []LinkRule `yaml:"rules"`
}

// LinkRule maps sources matching a doublestar pattern to a base URL.
type LinkRule struct {
	Match   string `yaml:"match"`
	BaseURL string `yaml:"base_url"`
}

// ServerConfig holds HTTP serving configuration.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	LazyLoad       bool          `yaml:"lazy_load"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json", "logfmt"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			ChunksPath:  "chunks.jsonl",
			IndexPath:   "index.bin",
			IndexEngine: "flat",
			Metric:      "l2",
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 100,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		OCR: OCRConfig{
			Enabled:       true,
			Command:       "tesseract",
			Language:      "eng",
			Timeout:       30 * time.Second,
			MaxImageBytes: 10 << 20,
		},
		Retrieve: RetrieveConfig{
			TopK:           3,
			FallbackAnswer: DefaultFallbackAnswer,
		},
		Links: LinksConfig{
			BaseURL: "https://discourse.onlinedegree.iitm.ac.in/",
			Text:    "chunk",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 60 * time.Second,
			MaxBodyBytes:   16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Corpus.IndexEngine {
	case "flat", "bolt":
	default:
		return fmt.Errorf("corpus.index_engine must be flat or bolt, got %q", c.Corpus.IndexEngine)
	}
	switch c.Corpus.Metric {
	case "l2", "cosine":
	default:
		return fmt.Errorf("corpus.metric must be l2 or cosine, got %q", c.Corpus.Metric)
	}
	switch c.Embedding.Provider {
	case "local", "openai", "ollama", "compatible":
	default:
		return fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	if c.Retrieve.TopK < 1 {
		return fmt.Errorf("retrieve.top_k must be at least 1, got %d", c.Retrieve.TopK)
	}
	switch c.Links.Text {
	case "chunk", "source":
	default:
		return fmt.Errorf("links.text must be chunk or source, got %q", c.Links.Text)
	}
	for i, r := range c.Links.Rules {
		if r.Match == "" {
			return fmt.Errorf("links.rules[%d].match is empty", i)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("logging.format must be text, json or logfmt, got %q", c.Logging.Format)
	}
	return nil
}

// Resolve returns path unchanged when absolute, otherwise joined onto dir.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// ChunksPath returns the chunk file location for a root directory.
func (c *Config) ChunksPath(dir string) string {
	return Resolve(dir, c.Corpus.ChunksPath)
}

// IndexPath returns the vector index location for a root directory.
func (c *Config) IndexPath(dir string) string {
	return Resolve(dir, c.Corpus.IndexPath)
}

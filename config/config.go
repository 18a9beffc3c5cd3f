// Package config loads the indexit application configuration from a
// YAML file, applying defaults for anything left unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/indexit/core"
)

// ProviderConfig configures the OpenAI-compatible embedding and chat
// backend. The API key is read from the named environment variable,
// never from the file itself.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// ChunkerConfig configures how extracted text is split before
// embedding. Size and overlap are measured in runes.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// PipelineConfig bounds the vectorization pipeline.
type PipelineConfig struct {
	PreprocessTimeoutSecs int `yaml:"preprocess_timeout_secs"`
	VectorizeTimeoutSecs  int `yaml:"vectorize_timeout_secs"`
	EmbedBatchSize        int `yaml:"embed_batch_size"`
	EmbedBatchTokens      int `yaml:"embed_batch_tokens"`
	Workers               int `yaml:"workers"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// Config is the root configuration structure.
type Config struct {
	DataDir   string         `yaml:"data_dir"`
	UploadDir string         `yaml:"upload_dir"`
	Provider  ProviderConfig `yaml:"provider"`
	Chunker   ChunkerConfig  `yaml:"chunker"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Search    SearchConfig   `yaml:"search"`
}

// Load reads a config from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("%w: chunker size must be positive, got %d", core.ErrInvalidConfig, c.Chunker.Size)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("%w: chunker overlap %d must be in [0, size)", core.ErrInvalidConfig, c.Chunker.Overlap)
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed batch size must be positive", core.ErrInvalidConfig)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: worker count must be positive", core.ErrInvalidConfig)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("%w: search top_k must be positive", core.ErrInvalidConfig)
	}
	return nil
}

// PreprocessTimeout returns the preprocessing stage deadline.
func (c *Config) PreprocessTimeout() time.Duration {
	return time.Duration(c.Pipeline.PreprocessTimeoutSecs) * time.Second
}

// VectorizeTimeout returns the vectorization stage deadline.
func (c *Config) VectorizeTimeout() time.Duration {
	return time.Duration(c.Pipeline.VectorizeTimeoutSecs) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = "gpt-4o-mini"
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = 60
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 100
	}
	if cfg.Pipeline.PreprocessTimeoutSecs == 0 {
		cfg.Pipeline.PreprocessTimeoutSecs = 120
	}
	if cfg.Pipeline.VectorizeTimeoutSecs == 0 {
		cfg.Pipeline.VectorizeTimeoutSecs = 600
	}
	if cfg.Pipeline.EmbedBatchSize == 0 {
		cfg.Pipeline.EmbedBatchSize = 32
	}
	if cfg.Pipeline.EmbedBatchTokens == 0 {
		cfg.Pipeline.EmbedBatchTokens = 8000
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 10
	}
}

// Package config loads and validates guardrag configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all guardrag configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM generation configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector index configuration
	Index IndexConfig `yaml:"index"`

	// Pipeline behavior
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Document ingestion
	Ingest IngestConfig `yaml:"ingest"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini, ollama
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // ollama, gemini
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
	Timeout    string `yaml:"timeout"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	Backend      string `yaml:"backend"` // memory, sqlite
	DatabasePath string `yaml:"database_path"`
}

// PipelineConfig configures query processing behavior.
type PipelineConfig struct {
	// Documents fetched for answer context
	RetrievalResults int `yaml:"retrieval_results"`

	// Documents fetched as policy guidance for flagged queries
	GuidanceResults int `yaml:"guidance_results"`

	// Number of recent queries kept per session for behavioral checks
	SessionHistorySize int `yaml:"session_history_size"`

	// Session idle lifetime
	SessionTTL string `yaml:"session_ttl"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	// Directory watched for new documents
	WatchDir string `yaml:"watch_dir"`

	// File extensions accepted during ingestion
	Extensions []string `yaml:"extensions"`

	// Doc type stamped on ingested files
	DefaultDocType string `yaml:"default_doc_type"`

	// Debounce window for filesystem events
	DebounceInterval string `yaml:"debounce_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Dir        string          `yaml:"dir"`        // log files directory
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging (production)
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "guardrag",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
			Timeout:    "30s",
		},

		Index: IndexConfig{
			Backend:      "sqlite",
			DatabasePath: "data/guardrag.db",
		},

		Pipeline: PipelineConfig{
			RetrievalResults:   5,
			GuidanceResults:    3,
			SessionHistorySize: 20,
			SessionTTL:         "24h",
		},

		Ingest: IngestConfig{
			WatchDir:         "data/documents",
			Extensions:       []string{".txt", ".md"},
			DefaultDocType:   "system",
			DebounceInterval: "500ms",
		},

		Logging: LoggingConfig{
			Level:     "info",
			Dir:       "logs",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
// Returns defaults if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (check in priority order)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}

	if url := os.Getenv("OLLAMA_HOST"); url != "" {
		c.Embedding.BaseURL = url
	}

	if path := os.Getenv("GUARDRAG_DB"); path != "" {
		c.Index.DatabasePath = path
	}
	if dir := os.Getenv("GUARDRAG_DOCS"); dir != "" {
		c.Ingest.WatchDir = dir
	}
	if os.Getenv("GUARDRAG_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetEmbeddingTimeout returns the embedding timeout as a duration.
func (c *Config) GetEmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.SessionTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetDebounceInterval returns the ingest debounce window as a duration.
func (c *Config) GetDebounceInterval() time.Duration {
	d, err := time.ParseDuration(c.Ingest.DebounceInterval)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "gemini", "ollama"}

// ValidEmbeddingProviders lists all supported embedding providers.
var ValidEmbeddingProviders = []string{"ollama", "gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	validEmbedding := false
	for _, p := range ValidEmbeddingProviders {
		if c.Embedding.Provider == p {
			validEmbedding = true
			break
		}
	}
	if !validEmbedding {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}

	if c.Index.Backend != "memory" && c.Index.Backend != "sqlite" {
		return fmt.Errorf("invalid index backend: %s (valid: [memory sqlite])", c.Index.Backend)
	}
	if c.Index.Backend == "sqlite" && c.Index.DatabasePath == "" {
		return fmt.Errorf("sqlite index backend requires database_path")
	}

	if c.Pipeline.RetrievalResults <= 0 {
		return fmt.Errorf("retrieval_results must be positive, got %d", c.Pipeline.RetrievalResults)
	}
	if c.Pipeline.GuidanceResults <= 0 {
		return fmt.Errorf("guidance_results must be positive, got %d", c.Pipeline.GuidanceResults)
	}

	return nil
}

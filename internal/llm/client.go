// Package llm provides text generation clients for the classification and
// synthesis stages. Supports OpenAI-compatible endpoints (OpenAI, Ollama) and
// Google GenAI.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteWithOptions(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
	Name() string
}

// Options tunes a single completion request. Zero values fall back to the
// client defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Config holds client configuration.
type Config struct {
	Provider string // openai, gemini, ollama
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		BaseURL:  "https://api.openai.com/v1",
		Timeout:  120 * time.Second,
	}
}

// NewClient creates an LLM client based on configuration.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "ollama":
		// Ollama exposes an OpenAI-compatible chat endpoint.
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434/v1"
		}
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'openai', 'ollama', or 'gemini')", cfg.Provider)
	}
}

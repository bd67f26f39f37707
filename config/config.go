// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port   string
	DBPath string

	// Provider selects the completion provider: "anthropic" or "stub".
	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string

	// Embedder selects the embedding provider: "mock", "openai", or "onnx".
	Embedder      string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// ONNX embedder paths, used only when Embedder is "onnx".
	ONNXLibraryPath   string
	ONNXModelPath     string
	ONNXTokenizerPath string

	// UseVectorIndex enables the in-process chromem index in front of the
	// linear scan.
	UseVectorIndex bool

	// ProviderClassification lets the dialogue manager consult the provider
	// for questions the keyword rules classify as general.
	ProviderClassification bool

	RecallLimit int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		DBPath:                 getEnv("DB_PATH", "./data/assist.db"),
		Provider:               getEnv("PROVIDER", "anthropic"),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:         getEnv("ANTHROPIC_MODEL", ""),
		Embedder:               getEnv("EMBEDDER", "openai"),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          getEnv("OPENAI_BASE_URL", ""),
		ONNXLibraryPath:        getEnv("ONNX_LIBRARY_PATH", ""),
		ONNXModelPath:          getEnv("ONNX_MODEL_PATH", ""),
		ONNXTokenizerPath:      getEnv("ONNX_TOKENIZER_PATH", ""),
		UseVectorIndex:         getEnvBool("USE_VECTOR_INDEX", false),
		ProviderClassification: getEnvBool("PROVIDER_CLASSIFICATION", true),
		RecallLimit:            getEnvInt("RECALL_LIMIT", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Provider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "stub":
	default:
		return fmt.Errorf("PROVIDER must be anthropic or stub, got %q", c.Provider)
	}
	switch c.Embedder {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai embedder")
		}
	case "onnx":
		if c.ONNXModelPath == "" || c.ONNXTokenizerPath == "" {
			return fmt.Errorf("ONNX_MODEL_PATH and ONNX_TOKENIZER_PATH are required for the onnx embedder")
		}
	case "mock":
	default:
		return fmt.Errorf("EMBEDDER must be mock, openai, or onnx, got %q", c.Embedder)
	}
	if c.RecallLimit <= 0 {
		return fmt.Errorf("RECALL_LIMIT must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

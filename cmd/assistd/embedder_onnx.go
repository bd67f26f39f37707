//go:build onnx

package main

import (
	"fmt"

	"github.com/balncd/assist/config"
	"github.com/balncd/assist/memory"
	"github.com/balncd/assist/memory/embedder/mock"
	"github.com/balncd/assist/memory/embedder/onnx"
	"github.com/balncd/assist/memory/embedder/openai"
)

func buildEmbedder(cfg *config.Config) (memory.Embedder, error) {
	switch cfg.Embedder {
	case "mock":
		return mock.New(), nil
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
	case "onnx":
		return onnx.New(onnx.Config{
			LibraryPath:   cfg.ONNXLibraryPath,
			ModelPath:     cfg.ONNXModelPath,
			TokenizerPath: cfg.ONNXTokenizerPath,
		})
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

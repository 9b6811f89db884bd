package ai

import (
	"fmt"

	"audioreport/internal/config"
	"audioreport/internal/logging"
)

// CreateGenerator creates the remote generator based on configuration
func CreateGenerator(cfg *config.Config) (Generator, error) {
	log := logging.Component("ai")

	switch cfg.GenerationBackend {
	case "ollama", "":
		log.Info().Str("url", cfg.OllamaURL).Str("model", cfg.ModelName).Msg("using Ollama generation backend")
		return NewOllamaClient(cfg.OllamaURL, cfg.ModelName, cfg.OllamaNumGPU), nil
	case "openai":
		log.Info().Str("base_url", cfg.OpenAIBaseURL).Str("model", cfg.ModelName).Msg("using OpenAI-compatible generation backend")
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ModelName), nil
	default:
		return nil, fmt.Errorf("unsupported generation backend: %s. Supported: ollama, openai", cfg.GenerationBackend)
	}
}

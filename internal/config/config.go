package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Report generation service
	GenerationBackend string // "ollama" or "openai"
	OllamaURL         string
	ModelName         string
	OllamaNumGPU      int
	OpenAIKey         string
	OpenAIBaseURL     string

	// Speech-to-text
	STTBackend          string // "cli" or "server"
	WhisperCLIPath      string
	WhisperModelsDir    string
	WhisperServerURL    string
	WhisperModelPattern string
	WhisperTier         string
	WhisperDevice       string // "auto", "cpu" or "cuda"
	WhisperLanguage     string

	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	maxUploadMB, err := getEnvInt("MAX_UPLOAD_MB", 25)
	if err != nil {
		return nil, err
	}
	numGPU, err := getEnvInt("OLLAMA_NUM_GPU", 1)
	if err != nil {
		return nil, err
	}
	shutdown, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:      getEnv("PORT", "5000"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "console")),

		GenerationBackend: strings.ToLower(getEnv("GENERATION_BACKEND", "ollama")),
		OllamaURL:         strings.TrimRight(getEnv("OLLAMA_API_URL", "http://localhost:11434"), "/"),
		ModelName:         getEnv("MODEL_NAME", "mistral:latest"),
		OllamaNumGPU:      numGPU,
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),

		STTBackend:          strings.ToLower(getEnv("STT_BACKEND", "cli")),
		WhisperCLIPath:      getEnv("WHISPER_CLI_PATH", "whisper-cli"),
		WhisperModelsDir:    getEnv("WHISPER_MODELS_DIR", "./models"),
		WhisperServerURL:    strings.TrimRight(getEnv("WHISPER_SERVER_URL", "http://localhost:8000"), "/"),
		WhisperModelPattern: getEnv("WHISPER_MODEL_PATTERN", "Systran/faster-whisper-%s"),
		WhisperTier:         strings.ToLower(getEnv("WHISPER_TIER", "medium")),
		WhisperDevice:       strings.ToLower(getEnv("WHISPER_DEVICE", "auto")),
		WhisperLanguage:     getEnv("WHISPER_LANGUAGE", "it"),

		MaxUploadBytes:  int64(maxUploadMB) << 20,
		ShutdownTimeout: shutdown,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and backend-specific requirements.
func (c *Config) Validate() error {
	switch c.GenerationBackend {
	case "ollama":
	case "openai":
		// Ollama and most local servers accept any key on their
		// OpenAI-compatible endpoint, so only the hosted API needs one.
		if c.OpenAIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when GENERATION_BACKEND=openai and OPENAI_BASE_URL is not set")
		}
	default:
		return fmt.Errorf("unsupported GENERATION_BACKEND: %s. Supported: ollama, openai", c.GenerationBackend)
	}

	switch c.STTBackend {
	case "cli", "server":
	default:
		return fmt.Errorf("unsupported STT_BACKEND: %s. Supported: cli, server", c.STTBackend)
	}

	switch c.WhisperTier {
	case "tiny", "base", "small", "medium", "large":
	default:
		return fmt.Errorf("unsupported WHISPER_TIER: %s. Supported: tiny, base, small, medium, large", c.WhisperTier)
	}

	switch c.WhisperDevice {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("unsupported WHISPER_DEVICE: %s. Supported: auto, cpu, cuda", c.WhisperDevice)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT: %s. Supported: console, json", c.LogFormat)
	}

	if !strings.Contains(c.WhisperModelPattern, "%s") {
		return fmt.Errorf("WHISPER_MODEL_PATTERN must contain %%s, got %q", c.WhisperModelPattern)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.OllamaNumGPU < 0 {
		return fmt.Errorf("OLLAMA_NUM_GPU cannot be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

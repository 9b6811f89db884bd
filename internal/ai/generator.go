package ai

import (
	"context"
	"fmt"
)

// Generator is a remote text generation service.
type Generator interface {
	// Generate returns the model's completion for prompt. Any failure to
	// obtain a usable completion is reported as *UnavailableError.
	Generate(ctx context.Context, prompt string) (string, error)

	// Status lists the service's models and runs a GPU self-check
	Status(ctx context.Context) (*ServiceStatus, error)

	// Name returns the backend name (e.g., "ollama", "openai")
	Name() string
}

// ServiceStatus is the generation service's self-report.
type ServiceStatus struct {
	Status       string `json:"status"`
	Models       []any  `json:"models"`
	CurrentModel any    `json:"current_model"`
	GPUCheck     string `json:"gpu_check"`
}

// UnavailableError means the remote service gave no usable answer:
// transport failure, non-2xx status or an empty completion.
type UnavailableError struct {
	Backend    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s unavailable (status %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

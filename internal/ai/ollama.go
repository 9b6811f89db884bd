package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"audioreport/internal/logging"
)

// OllamaClient talks to Ollama's native API. Requests carry no client-side
// timeout; the caller's context bounds them.
type OllamaClient struct {
	baseURL string
	model   string
	numGPU  int
	http    *http.Client
	log     zerolog.Logger
}

// NewOllamaClient creates a client for the Ollama server at baseURL.
func NewOllamaClient(baseURL, model string, numGPU int) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		numGPU:  numGPU,
		http:    &http.Client{},
		log:     logging.Component("ai"),
	}
}

func (c *OllamaClient) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumGPU int `json:"num_gpu"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Generate sends a non-streaming /api/generate request.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{NumGPU: c.numGPU},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	c.log.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("sending generate request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &UnavailableError{Backend: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnavailableError{Backend: c.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Backend: c.Name(), StatusCode: resp.StatusCode, Err: errors.New(truncate(string(raw), 300))}
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &UnavailableError{Backend: c.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", &UnavailableError{Backend: c.Name(), StatusCode: resp.StatusCode, Err: errors.New("empty response")}
	}
	return out.Response, nil
}

type ollamaTagsResponse struct {
	Models []map[string]any `json:"models"`
}

// Status lists installed models via /api/tags, picks out the configured one
// and asks it whether it runs on a GPU.
func (c *OllamaClient) Status(ctx context.Context) (*ServiceStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama API error: %s", truncate(string(raw), 300))
	}
	var tags ollamaTagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	st := &ServiceStatus{Status: "online", Models: make([]any, 0, len(tags.Models)), GPUCheck: "Unknown"}
	for _, m := range tags.Models {
		st.Models = append(st.Models, m)
		if name, _ := m["name"].(string); name == c.model {
			st.CurrentModel = m
		}
	}

	if answer, err := c.Generate(ctx, GPUCheckPrompt); err == nil {
		st.GPUCheck = strings.TrimSpace(answer)
	} else {
		c.log.Warn().Err(err).Msg("gpu self-check failed")
	}
	return st, nil
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

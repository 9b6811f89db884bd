package stt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ServerLoader drives an OpenAI-compatible speech server that loads and
// unloads models on request (POST/DELETE /api/ps/{model}).
type ServerLoader struct {
	baseURL  string
	pattern  string
	language string
	device   Device
	http     *http.Client
	client   *openai.Client
}

// NewServerLoader creates a loader for the server at baseURL. pattern turns
// a tier name into a model id, e.g. "Systran/faster-whisper-%s".
func NewServerLoader(baseURL, pattern, language, apiKey string, device Device) *ServerLoader {
	baseURL = strings.TrimRight(baseURL, "/")
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL + "/v1"
	return &ServerLoader{
		baseURL:  baseURL,
		pattern:  pattern,
		language: language,
		device:   device,
		http:     http.DefaultClient,
		client:   openai.NewClientWithConfig(cfg),
	}
}

func (l *ServerLoader) Name() string { return "speech-server" }

// ModelID maps a tier to the server's model id.
func (l *ServerLoader) ModelID(t Tier) string {
	return fmt.Sprintf(l.pattern, t.String())
}

func (l *ServerLoader) Load(ctx context.Context, tier Tier) (Model, error) {
	id := l.ModelID(tier)
	status, body, err := l.do(ctx, http.MethodPost, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	// 409 means the server already holds it.
	if status/100 != 2 && status != http.StatusConflict {
		return nil, fmt.Errorf("load %s: status %d: %s", id, status, body)
	}
	return &serverModel{loader: l, id: id}, nil
}

func (l *ServerLoader) do(ctx context.Context, method, id string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+"/api/ps/"+id, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, strings.TrimSpace(string(b)), nil
}

type serverModel struct {
	loader *ServerLoader
	id     string
}

func (m *serverModel) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := m.loader.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    m.id,
		FilePath: audioPath,
		Language: m.loader.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Offload asks the server to unload the model. 404 means it is already gone.
func (m *serverModel) Offload(ctx context.Context) error {
	status, body, err := m.loader.do(ctx, http.MethodDelete, m.id)
	if err != nil {
		return fmt.Errorf("unload %s: %w", m.id, err)
	}
	if status/100 != 2 && status != http.StatusNotFound {
		return fmt.Errorf("unload %s: status %d: %s", m.id, status, body)
	}
	return nil
}

func (m *serverModel) Close() error { return nil }

func (m *serverModel) Device() Device { return m.loader.device }

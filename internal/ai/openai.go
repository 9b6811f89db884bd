package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"audioreport/internal/logging"
)

// OpenAIClient generates text through any OpenAI-compatible chat
// completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIClient creates a client. An empty baseURL targets the hosted API.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    logging.Component("ai"),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// Generate sends prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.3, // Low temperature for factual output
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &UnavailableError{Backend: c.Name(), StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &UnavailableError{Backend: c.Name(), StatusCode: reqErr.HTTPStatusCode, Err: err}
		}
		return "", &UnavailableError{Backend: c.Name(), Err: err}
	}

	c.log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion received")

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &UnavailableError{Backend: c.Name(), Err: errors.New("empty response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Status lists the endpoint's models. There is no portable GPU probe, so
// the check asks the model like the Ollama backend does.
func (c *OpenAIClient) Status(ctx context.Context) (*ServiceStatus, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	st := &ServiceStatus{Status: "online", Models: make([]any, 0, len(list.Models)), GPUCheck: "Unknown"}
	for _, m := range list.Models {
		st.Models = append(st.Models, m)
		if m.ID == c.model {
			st.CurrentModel = m
		}
	}
	if answer, err := c.Generate(ctx, GPUCheckPrompt); err == nil {
		st.GPUCheck = strings.TrimSpace(answer)
	}
	return st, nil
}

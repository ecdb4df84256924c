// Package model wraps the vision-language model backend used to describe
// videos from their keyframes and transcript.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/heimdex/heimdex-stream/internal/apperr"
)

const (
	DefaultModel     = openai.GPT4oMini
	DefaultTimeout   = 60 * time.Second
	MaxImages        = 8
	defaultMaxTokens = 1000
	temperature      = 0.3
)

// Prompt is a single multimodal request: a system instruction, a user
// instruction and the image references that accompany it.
type Prompt struct {
	System    string
	User      string
	ImageURLs []string
}

type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// OpenAIClient calls any chat-completions compatible backend and asks for
// a JSON object answer.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAIClient(apiKey, baseURL, modelName string, timeout time.Duration, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
		logger: logger,
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (string, error) {
	images := p.ImageURLs
	if len(images) > MaxImages {
		images = images[:MaxImages]
	}

	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.User})
	for _, u := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    u,
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Upstream("model backend returned no choices", "", nil)
	}

	c.logger.Info("model completion received",
		"model", c.model,
		"images", len(images),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return resp.Choices[len(resp.Choices)-1].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperr.Upstream(fmt.Sprintf("model backend returned HTTP %d", apiErr.HTTPStatusCode), apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperr.Upstream(fmt.Sprintf("model backend returned HTTP %d", reqErr.HTTPStatusCode), string(reqErr.Body), err)
	}
	return apperr.Upstream("model backend request failed", "", err)
}

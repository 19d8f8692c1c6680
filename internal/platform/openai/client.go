// Package openai implements domain.ReasoningProvider on top of the
// go-openai chat-completions client.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

var _ domain.ReasoningProvider = (*Client)(nil)

// Unsure is the sentinel answer the model is told to give when it cannot
// decide.
const Unsure = "Unsure"

// ClientConfig holds configuration for the chat-completions client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client asks a language model to pick a market outcome. Each Ask is a single
// request; the SDK client never retries.
type Client struct {
	config ClientConfig
	api    *goopenai.Client
	logger *slog.Logger
}

// NewClient creates a chat-completions client. An empty APIKey is allowed;
// every Ask then fails with domain.ErrUnavailable without a network call.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = "gpt-4-turbo"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	apiCfg := goopenai.DefaultConfig(config.APIKey)
	apiCfg.BaseURL = config.BaseURL
	if config.HTTPClient != nil {
		apiCfg.HTTPClient = config.HTTPClient
	} else {
		apiCfg.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config: config,
		api:    goopenai.NewClientWithConfig(apiCfg),
		logger: config.Logger.With(slog.String("component", "openai")),
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.config.APIKey != "" }

// Ask returns the model's raw answer with surrounding whitespace trimmed.
// Mapping the answer onto an outcome label is the caller's job.
func (c *Client) Ask(ctx context.Context, question string, outcomes []string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("openai: no api key: %w", domain.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt(outcomes)},
			{Role: goopenai.ChatMessageRoleUser, Content: "Question: " + question + "\nDetermine the outcome."},
		},
		// A zero temperature is dropped by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai: HTTP %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, domain.ErrUnavailable)
		}
		return "", fmt.Errorf("openai: chat completion: %w: %w", domain.ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices: %w", domain.ErrUnavailable)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("reasoning answer", slog.String("answer", answer))
	return answer, nil
}

func systemPrompt(outcomes []string) string {
	var b strings.Builder
	b.WriteString("You are a prediction market oracle. Your job is to determine the outcome of a market question based on recent knowledge or logic. ")
	b.WriteString("Answer ONLY with one of the following outcome strings, exactly as written: ")
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s'", o)
	}
	b.WriteString(". If unsure, say '" + Unsure + "'.")
	return b.String()
}

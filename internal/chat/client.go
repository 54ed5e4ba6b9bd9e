// Package chat streams model-generated answers from an OpenAI-compatible
// gateway as an incremental sequence of text fragments.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ragbot/docchat/internal/prompt"
	"github.com/ragbot/docchat/internal/session"
)

const (
	// DefaultBaseURL is the OpenRouter chat completions gateway.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel serves requests when no model is configured.
	DefaultModel = "openai/gpt-3.5-turbo"

	// DefaultMaxConsecutiveMalformed is how many unusable events in a row the
	// stream tolerates before failing.
	DefaultMaxConsecutiveMalformed = 5
)

// Config configures the gateway client. APIKey is required.
type Config struct {
	APIKey                  string
	BaseURL                 string
	Model                   string
	MaxConsecutiveMalformed int
	Logger                  *slog.Logger
}

// Client sends assembled prompts to the gateway and exposes responses as
// fragment streams.
type Client struct {
	client       *openai.Client
	model        string
	maxMalformed int
	logger       *slog.Logger
}

// NewClient validates the config and builds a gateway client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxConsecutiveMalformed <= 0 {
		cfg.MaxConsecutiveMalformed = DefaultMaxConsecutiveMalformed
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)

	return &Client{
		client:       &client,
		model:        cfg.Model,
		maxMalformed: cfg.MaxConsecutiveMalformed,
		logger:       cfg.Logger,
	}, nil
}

// Generate sends the request and returns the response fragment stream. The
// stream is finite and not restartable. Cancelling ctx mid-stream aborts the
// request and releases the connection.
func (c *Client) Generate(ctx context.Context, req *prompt.GenerationRequest) (Stream, error) {
	raw := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: buildMessages(req),
	})

	return &sseStream{
		raw:          raw,
		state:        StateSending,
		maxMalformed: c.maxMalformed,
		logger:       c.logger,
	}, nil
}

// buildMessages flattens a generation request into chat messages: the
// grounding preamble, the (possibly truncated) history, then a user message
// carrying the context block and the current query.
func buildMessages(req *prompt.GenerationRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(req.SystemPreamble))

	for _, turn := range req.History {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	messages = append(messages, openai.UserMessage(
		fmt.Sprintf("Question: %s\n\nContext:\n%s", req.UserQuery, req.ContextBlock())))

	return messages
}

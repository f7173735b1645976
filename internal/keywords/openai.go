package keywords

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned when no OpenAI API key is configured.
var ErrMissingAPIKey = errors.New("missing OpenAI API key: set OPENAI_API_KEY")

// OpenAIConfig configures the OpenAI completion client and the extractor on top of it.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string // optional, for OpenAI-compatible gateways
	MaxTokens int
	Timeout   time.Duration
}

// ExtractorOptions returns AIExtractor options matching this configuration.
func (c OpenAIConfig) ExtractorOptions() AIOptions {
	return AIOptions{
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
}

// OpenAIClient implements CompletionClient with the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client, or returns ErrMissingAPIKey when cfg has no key.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	const op = "OpenAIClient.Complete"

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.User,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no response choices", op)
	}

	return resp.Choices[0].Message.Content, nil
}

// temperature maps 0 to the smallest non-zero float32: go-openai omits a zero
// temperature from the request and the API then applies its default of 1.
func temperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

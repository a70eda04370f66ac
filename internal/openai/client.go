// Package openai wraps the official OpenAI Go SDK for embeddings and chat
// completions. Any OpenAI-compatible endpoint works through WithBaseURL, which
// is how Gemini and self-hosted sentence-transformer servers are reached.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding or Generate is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
	// ErrNoChoices is returned when a chat completion has no choices.
	ErrNoChoices = errors.New("openai: no choices in completion")
)

const (
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = openaisdk.EmbeddingModelTextEmbedding3Small
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gemini-2.0-flash"
	// DefaultMaxTokens caps the length of a generated rationale.
	DefaultMaxTokens = 150
)

// Client calls the embeddings and chat completions APIs.
type Client struct {
	sdk            openaisdk.Client
	embeddingModel string
	chatModel      string
	dimensions     int
	maxTokens      int64

	baseURL    string
	httpClient option.HTTPClient
	maxRetries int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL points the client at an OpenAI-compatible server. Empty keeps the default.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithEmbeddingModel sets the embedding model. Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithChatModel sets the chat completion model. Empty keeps the default.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithDimensions requests and enforces an embedding dimension. 0 sends no
// dimension and accepts whatever the model returns.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithMaxTokens caps completion length. Non-positive values keep the default.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = int64(n)
		}
	}
}

// WithHTTPClient sets the transport used by the SDK (e.g. a retrying client).
func WithHTTPClient(client option.HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMaxRetries sets the SDK's own retry count. 0 makes one attempt per call.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = max(n, 0)
	}
}

// NewClient creates a client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		embeddingModel: DefaultEmbeddingModel,
		chatModel:      DefaultChatModel,
		maxTokens:      DefaultMaxTokens,
	}

	for _, opt := range opts {
		opt(client)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(client.maxRetries),
	}
	if client.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(client.baseURL))
	}

	if client.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(client.httpClient))
	}

	client.sdk = openaisdk.NewClient(reqOpts...)

	return client
}

// CreateEmbedding returns the embedding vector for the given text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model: c.embeddingModel,
	}
	if c.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(c.dimensions))
	}

	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if c.dimensions > 0 && len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}

// Generate sends prompt as a single user message and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Model:     c.chatModel,
		MaxTokens: openaisdk.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

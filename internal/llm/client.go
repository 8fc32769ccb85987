package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one turn in a completion request
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completion is the reply plus usage accounting from one completion call
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request carries everything needed for a single completion call
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completer issues exactly one completion request per call. No streaming,
// no tool loop, no retries: failures surface to the caller.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Client talks to any OpenAI-compatible chat completions endpoint
type Client struct {
	api *openai.Client
}

// NewClient creates a completion client. baseURL may point at any
// OpenAI-compatible provider.
func NewClient(baseURL, apiKey string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg)}
}

// Complete sends one chat completion request and returns the first choice
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion response contained no choices")
	}

	return &Completion{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

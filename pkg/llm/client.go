// Package llm wraps the Anthropic Messages API behind the small set of
// capabilities the request-handling engine needs: a single chat-completion
// call used by IntentClassifier/ResponseGenerator. Embeddings for the L2
// cache and KnowledgeRetriever come from HashEmbedder (embedder.go), which
// runs locally and makes no API call. The concrete client is
// constructed once as a process-wide singleton (see singleton.go) to avoid
// the concurrent-initialization race described in spec §9.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel, DefaultMaxTokens, DefaultTimeout mirror the
// teacher's pattern of environment-overridable defaults in
// pkg/llm/anthropic.Config (teradata-labs-loom).
const (
	DefaultModel     = anthropic.ModelClaude3_5SonnetLatest
	DefaultMaxTokens = 1024
	DefaultTimeout   = 60 * time.Second
)

// Message is a single chat turn passed to Chat.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Response is the normalized result of a Chat call.
type Response struct {
	Content      string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is the capability surface the rest of the engine depends on.
// IntentClassifier and ResponseGenerator both go through this interface
// rather than the concrete Client, so tests can substitute a fake.
type Provider interface {
	Chat(ctx context.Context, system string, messages []Message) (*Response, error)
}

// Client implements Provider against the real Anthropic Messages API.
type Client struct {
	sdk       anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// Config holds the client's construction parameters, grounded on
// teradata-labs-loom's pkg/llm/anthropic.Config (env-overridable model,
// explicit max tokens/timeout).
type Config struct {
	APIKey    string
	Model     anthropic.Model
	MaxTokens int64
	Timeout   time.Duration
}

// NewClient constructs a Client. Not exported as the sole construction
// path — use Singleton() from singleton.go in production code so only
// one Client (and its underlying HTTP transport) is ever created.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required (set LLM_API_KEY)")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	sdk := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	)

	return &Client{sdk: sdk, model: model, maxTokens: maxTokens}, nil
}

// Chat sends system + messages to Claude and returns the combined text
// content, usage, and stop reason.
func (c *Client) Chat(ctx context.Context, system string, messages []Message) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  toSDKMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion failed: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Response{
		Content:      text,
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func toSDKMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

var _ Provider = (*Client)(nil)

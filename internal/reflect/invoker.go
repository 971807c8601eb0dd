// Package reflect invokes the external generation backend that turns a
// window of memories into narrative prose. It composes the request,
// enforces a wall-clock timeout, and classifies failures; it never
// writes to any store.
package reflect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Sentinel errors. The runner classifies ErrTimeout separately from
// generation failure, so it must never be folded into a generic error.
var (
	ErrTimeout    = errors.New("reflect: generation timed out")
	ErrGeneration = errors.New("reflect: generation failed")
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
	defaultTimeout   = 5 * time.Minute
)

// Config holds the reflection backend configuration.
type Config struct {
	// APIKey authenticates against the Anthropic API. Falls back to the
	// ANTHROPIC_API_KEY environment variable when empty.
	APIKey string `yaml:"api_key"`

	// Model selects the generation model.
	Model string `yaml:"model"`

	// MaxTokens bounds the response length.
	MaxTokens int `yaml:"max_tokens"`

	// IdentityPath points to an optional identity file whose contents are
	// sent as the system prompt, so the narrative is written in the
	// subject's own voice.
	IdentityPath string `yaml:"identity_path"`
}

// Invoker calls the generation backend.
type Invoker struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	identity  string
}

// NewInvoker creates an Invoker. identity is the optional system prompt
// text (already loaded from cfg.IdentityPath by the caller).
func NewInvoker(cfg Config, identity string) *Invoker {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Invoker{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		identity:  identity,
	}
}

// Reflect sends the prompt to the backend under the given wall-clock
// timeout and returns the produced text. Expiry surfaces as ErrTimeout;
// any other backend failure as ErrGeneration.
func (iv *Invoker) Reflect(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(iv.model),
		MaxTokens: iv.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if iv.identity != "" {
		params.System = []anthropic.TextBlockParam{{Text: iv.identity}}
	}

	msg, err := iv.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

// classify maps a backend error onto the package's sentinel errors.
// Deadline expiry must stay distinguishable so the job wrapper records a
// Timeout outcome rather than a generic failure.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		// Both sentinels stay in the chain: the runner matches on
		// DeadlineExceeded, callers on ErrTimeout.
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}
}

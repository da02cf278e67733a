package interpreter

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hyperengineering/liftlog/internal/types"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// Compile-time interface checks
var (
	_ Interpreter = (*Anthropic)(nil)
	_ Answerer    = (*Anthropic)(nil)
)

// MessagesService defines the interface for making message API calls.
// This abstraction enables testing without calling the real API.
type MessagesService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Anthropic interprets input with an Anthropic model.
type Anthropic struct {
	messages  MessagesService
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic interpreter.
func NewAnthropic(apiKey, model string) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropic(&client.Messages, model)
}

func newAnthropic(messages MessagesService, model string) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{
		messages:  messages,
		model:     anthropic.Model(model),
		maxTokens: 1024,
	}
}

// Interpret sends input to the model and validates its reply.
func (a *Anthropic) Interpret(ctx context.Context, input string) (*Result, error) {
	if res := CheckInput(input); res != nil {
		return res, nil
	}

	msg, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: ParsePrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(strings.TrimSpace(input))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic interpret: %w", err)
	}

	text := firstText(msg)
	if text == "" {
		return nil, fmt.Errorf("anthropic interpret: %w: no text content", ErrInvalidResponse)
	}
	return DecodeReply(text), nil
}

// Answer asks the model a question about history.
func (a *Anthropic) Answer(ctx context.Context, question string, history []types.HistoryEntry) (string, error) {
	content, err := QueryMessage(question, history)
	if err != nil {
		return "", err
	}
	msg, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: QueryPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic answer: %w", err)
	}
	text := firstText(msg)
	if text == "" {
		return "", fmt.Errorf("anthropic answer: %w: no text content", ErrInvalidResponse)
	}
	return strings.TrimSpace(text), nil
}

func firstText(msg *anthropic.Message) string {
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}

// Name identifies the provider and model.
func (a *Anthropic) Name() string {
	return "anthropic:" + string(a.model)
}

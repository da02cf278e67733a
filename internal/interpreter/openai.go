package interpreter

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/liftlog/internal/types"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// Compile-time interface checks
var (
	_ Interpreter = (*OpenAI)(nil)
	_ Answerer    = (*OpenAI)(nil)
)

// CompletionsService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real OpenAI API.
type CompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI interprets input with an OpenAI chat model.
type OpenAI struct {
	completions CompletionsService
	model       openai.ChatModel
}

// NewOpenAI creates an OpenAI interpreter.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return newOpenAI(client.Chat.Completions, model)
}

func newOpenAI(completions CompletionsService, model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		completions: completions,
		model:       openai.ChatModel(model),
	}
}

// Interpret sends input to the model and validates its reply.
func (o *OpenAI) Interpret(ctx context.Context, input string) (*Result, error) {
	if res := CheckInput(input); res != nil {
		return res, nil
	}

	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(ParsePrompt),
			openai.UserMessage(strings.TrimSpace(input)),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai interpret: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai interpret: %w: no choices returned", ErrInvalidResponse)
	}
	return DecodeReply(resp.Choices[0].Message.Content), nil
}

// Answer asks the model a question about history.
func (o *OpenAI) Answer(ctx context.Context, question string, history []types.HistoryEntry) (string, error) {
	content, err := QueryMessage(question, history)
	if err != nil {
		return "", err
	}
	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(QueryPrompt),
			openai.UserMessage(content),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("openai answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai answer: %w: no choices returned", ErrInvalidResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name identifies the provider and model.
func (o *OpenAI) Name() string {
	return "openai:" + string(o.model)
}

// Package interpreter turns free-text workout notes into structured
// observations.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
)

// ErrInvalidResponse is returned when a provider reply cannot be used at all.
var ErrInvalidResponse = errors.New("invalid interpreter response")

// Result is the interpreter contract. A reply that could be obtained but not
// understood is a Result with Success false, not an error; errors are reserved
// for transport failures.
type Result struct {
	Success bool                `json:"success"`
	Data    []types.Observation `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Interpreter converts raw input into observations.
type Interpreter interface {
	Interpret(ctx context.Context, input string) (*Result, error)
	Name() string
}

// ParsePrompt is the system prompt sent to language-model providers.
const ParsePrompt = `You are an exercise log parser. Extract exercise information from the user's natural language input.

Return ONLY valid JSON with this exact structure (no markdown, no explanation):
{
  "exercises": [
    {
      "exercise": "exercise name in lowercase",
      "weight": number or null,
      "unit": "kg" or "lbs" or null,
      "reps": number or null,
      "sets": number or null
    }
  ]
}

Rules:
- Always return an array of exercises, even for single exercise input
- Normalize exercise names: "DL" -> "deadlift", "bench" -> "bench press"
- If no sets mentioned, default to 1 (if reps are given)
- Handle written numbers: "eight" -> 8, "sixty-five" -> 65
- If weight has no unit, assume kg
- "8x3" means 8 reps, 3 sets
- Return null for any field you cannot determine`

// Failure builds an unsuccessful result.
func Failure(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

// CheckInput validates raw input before it is sent to a provider. It returns
// nil when the input is acceptable.
func CheckInput(input string) *Result {
	if verr := validation.ValidateInput(input); verr != nil {
		return Failure(verr.Message)
	}
	return nil
}

type modelReply struct {
	Exercises *[]validation.RawObservation `json:"exercises"`
}

// DecodeReply parses a language-model reply, tolerating a Markdown code fence
// around the JSON, and validates every observation.
func DecodeReply(text string) *Result {
	text = stripCodeFence(text)

	var reply modelReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return Failure("Failed to parse LLM response as JSON")
	}
	if reply.Exercises == nil {
		return Failure("Response must contain an exercises array")
	}

	obs, verr := validation.ValidateObservations(*reply.Exercises)
	if verr != nil {
		return Failure(verr.Message)
	}
	return &Result{Success: true, Data: obs}
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperengineering/liftlog/internal/types"
)

// Answerer answers free-text questions about the workout history. The
// language-model providers implement it; the HTTP provider does not.
type Answerer interface {
	Answer(ctx context.Context, question string, history []types.HistoryEntry) (string, error)
}

// QueryPrompt is the system prompt for questions about the workout history.
const QueryPrompt = `You are a helpful fitness assistant that answers questions about the user's workout history.

You will receive:
1. A question from the user about their workout history
2. Their exercise log data in JSON format

Analyze the data to answer their question. Be concise and specific. Include relevant numbers, dates, and exercise names in your response.

If the data doesn't contain enough information to answer the question, say so clearly.

Examples of questions you might receive:
- "What's my bench press PR?"
- "How many times did I work out last week?"
- "What was my heaviest deadlift?"
- "Show me my chest exercises from this week"`

// QueryMessage builds the user message carrying the question and the history.
func QueryMessage(question string, history []types.HistoryEntry) (string, error) {
	body := "The user has no workout history yet."
	if len(history) > 0 {
		data, err := json.MarshalIndent(history, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode history: %w", err)
		}
		body = "Here is the user's workout history:\n" + string(data)
	}
	return fmt.Sprintf("Question: %s\n\n%s", strings.TrimSpace(question), body), nil
}

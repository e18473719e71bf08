// Package intent turns an operator message plus recent conversation history
// into a raw decision payload via one model call.
package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/donnabot/donna/internal/conv"
	"github.com/donnabot/donna/internal/logging"
)

// maxHistory bounds how many prior turns are embedded in the prompt.
const maxHistory = 3

// Model is the slice of the LLM client the classifier needs.
type Model interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier maps messages to raw decision payloads.
type Classifier struct {
	model Model
}

// New creates a classifier over the given model client.
func New(model Model) *Classifier {
	return &Classifier{model: model}
}

// Classify makes exactly one model call and returns its raw text. A failed
// call (network, auth) is surfaced as an error wrapping llm.ErrUnavailable;
// it is never masked as empty output.
func (c *Classifier) Classify(ctx context.Context, text string, recent []conv.Turn, now time.Time) (string, error) {
	user := buildUserPrompt(text, recent, now)
	logging.Debug("intent", "prompt: %s", logging.Truncate(user, 200))

	raw, err := c.model.Complete(ctx, systemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return raw, nil
}

// buildUserPrompt renders recent turns as plain dialogue, then the current
// time (so the model can resolve relative dates), then the verbatim message.
func buildUserPrompt(text string, recent []conv.Turn, now time.Time) string {
	var b strings.Builder

	if len(recent) > maxHistory {
		recent = recent[len(recent)-maxHistory:]
	}
	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range recent {
			fmt.Fprintf(&b, "Operator: %s\n", turn.UserText)
			fmt.Fprintf(&b, "Donna: %s\n", turn.AgentText)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format("Monday, 2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Message: %s", text)
	return b.String()
}

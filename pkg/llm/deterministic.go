package llm

import (
	"context"
	"fmt"
)

// Deterministic is a test/dev Client that always returns the same
// response text. Used when config.LLMRuntimeMode is "deterministic" so
// integration tests and local development never need a real provider
// key.
type Deterministic struct {
	ResponseText string
}

// NewDeterministic constructs a Deterministic client returning
// responseText for every call.
func NewDeterministic(responseText string) *Deterministic {
	return &Deterministic{ResponseText: responseText}
}

// Complete returns the fixed response text, ignoring the prompts.
func (d *Deterministic) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("deterministic complete: %w", err)
	}
	return d.ResponseText, nil
}

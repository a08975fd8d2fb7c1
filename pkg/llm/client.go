// Package llm defines the LLM provider port used by the run_llm1 and
// run_llm2 pipeline handlers, plus two implementations selected by
// config.LLMRuntimeMode: a deterministic stub for tests/dev and a
// gobreaker-wrapped go-openai client for production.
package llm

import "context"

// Client is the text-completion port consumed by pkg/pipeline: one
// system prompt, one user prompt, one completion string (expected to
// be JSON for run_llm1's structured extraction call).
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

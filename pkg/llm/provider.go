package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// Provider is a Client backed by a real OpenAI-compatible completion
// API, wrapped in a gobreaker circuit breaker so a flapping provider
// trips open instead of piling up retriable llm1/llm2 job failures.
type Provider struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewProvider constructs a Provider calling model via apiKey, tripping
// its circuit breaker after consecutive failures.
func NewProvider(apiKey, model string) *Provider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Provider{
		client:  openai.NewClient(apiKey),
		model:   model,
		breaker: breaker,
	}
}

// Complete issues a chat completion through the circuit breaker.
func (p *Provider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("llm provider returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("llm provider complete: %w", err)
	}
	return result.(string), nil
}

package scanning

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Groq implements the Completer interface using Groq's OpenAI-compatible API
type Groq struct {
	llm llms.Model
}

// NewGroq creates a new Groq Completer instance
// baseURL may point at any OpenAI-compatible endpoint; empty means Groq.
func NewGroq(apiKey, modelName, baseURL string) (*Groq, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq api key is required")
	}
	if modelName == "" {
		modelName = "llama-3.3-70b-versatile"
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating groq client: %w", err)
	}
	return &Groq{llm: llm}, nil
}

// Complete sends the prompt as a single user message
func (g *Groq) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return text, nil
}

// Close is a no-op; the underlying HTTP client needs no teardown
func (g *Groq) Close() error {
	return nil
}

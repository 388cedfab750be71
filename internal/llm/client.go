// Package llm adapts the Gemini API to the agent's model collaborators:
// the should-respond vote, reply generation and embedding similarity.
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"
)

var ErrEmptyResponse = errors.New("model returned no text")

// Models is the part of the genai models service the agent calls.
// *genai.Models satisfies it.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Persona describes the character the model speaks for.
type Persona struct {
	Name   string
	Handle string
	Bio    string
	Style  string
}

// NewModels creates a Gemini API client and returns its models service.
func NewModels(ctx context.Context, apiKey string) (Models, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client.Models, nil
}

func generateText(ctx context.Context, models Models, model, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

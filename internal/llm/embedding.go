package llm

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/genai"
)

// EmbeddingSimilarity scores texts by the cosine of their embeddings.
// It implements continuity.Similarity.
type EmbeddingSimilarity struct {
	models Models
	model  string
}

// NewEmbeddingSimilarity returns a similarity backed by model.
func NewEmbeddingSimilarity(m Models, model string) *EmbeddingSimilarity {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &EmbeddingSimilarity{models: m, model: model}
}

// Similarity embeds a, b and (when set) c in one batch and returns the
// better of cos(a,b) and cos(a,c).
func (e *EmbeddingSimilarity) Similarity(ctx context.Context, a, b, c string) (float64, error) {
	texts := []string{a, b}
	if c != "" {
		texts = append(texts, c)
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return 0, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return 0, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	score := cosine(result.Embeddings[0].Values, result.Embeddings[1].Values)
	if c != "" {
		score = math.Max(score, cosine(result.Embeddings[0].Values, result.Embeddings[2].Values))
	}
	return score, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / math.Sqrt(magA*magB)
}

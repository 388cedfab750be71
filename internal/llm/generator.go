package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// ReplyRequest is what the generator needs to write one reply.
type ReplyRequest struct {
	RoomID       string
	Message      models.Event
	Conversation []models.Memory // oldest first
}

// Generator writes replies in the persona's voice.
type Generator struct {
	models  Models
	model   string
	persona Persona
}

// NewGenerator returns a Generator. An empty model uses DefaultModel.
func NewGenerator(m Models, model string, persona Persona) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{models: m, model: model, persona: persona}
}

// Generate returns the reply text for req.
func (g *Generator) Generate(ctx context.Context, req ReplyRequest) (string, error) {
	prompt, err := render(replyTemplate, promptData{
		Persona:      g.persona,
		Conversation: req.Conversation,
		Message:      req.Message,
	})
	if err != nil {
		return "", fmt.Errorf("rendering reply prompt: %w", err)
	}

	text, err := generateText(ctx, g.models, g.model, prompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/eldtechnologies/aicq-agent/internal/decision"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Voter asks the model whether the agent should answer.
type Voter struct {
	models  Models
	model   string
	persona Persona
	logger  zerolog.Logger
}

// NewVoter returns a Voter. An empty model uses DefaultModel.
func NewVoter(m Models, model string, persona Persona, logger zerolog.Logger) *Voter {
	if model == "" {
		model = DefaultModel
	}
	return &Voter{
		models:  m,
		model:   model,
		persona: persona,
		logger:  logger.With().Str("component", "voter").Logger(),
	}
}

// Vote implements decision.Voter. Answers that name no verdict count as
// IGNORE.
func (v *Voter) Vote(ctx context.Context, req decision.VoteRequest) (models.Verdict, error) {
	persona := v.persona
	if req.AgentName != "" {
		persona.Name = req.AgentName
	}
	if req.AgentHandle != "" {
		persona.Handle = req.AgentHandle
	}

	prompt, err := render(shouldRespondTemplate, promptData{
		Persona:      persona,
		Conversation: req.Conversation,
		Message:      req.Message,
	})
	if err != nil {
		return models.VerdictIgnore, fmt.Errorf("rendering vote prompt: %w", err)
	}

	answer, err := generateText(ctx, v.models, v.model, prompt, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: 16,
	})
	if err != nil {
		return models.VerdictIgnore, err
	}

	verdict, ok := models.ParseVerdict(answer)
	if !ok {
		v.logger.Debug().Str("answer", answer).Str("room_id", req.RoomID).Msg("unparseable vote, ignoring")
		return models.VerdictIgnore, nil
	}
	return verdict, nil
}

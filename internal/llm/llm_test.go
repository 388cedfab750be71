package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/eldtechnologies/aicq-agent/internal/decision"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

type fakeModels struct {
	answer     string
	err        error
	embeddings [][]float32
	prompts    []string
	models     []string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.models = append(f.models, model)
	f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.answer, genai.RoleModel)}},
	}, nil
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.models = append(f.models, model)
	if f.err != nil {
		return nil, f.err
	}
	resp := &genai.EmbedContentResponse{}
	for i := range contents {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: f.embeddings[i]})
	}
	return resp, nil
}

func voteRequest() decision.VoteRequest {
	return decision.VoteRequest{
		AgentName:   "Ada",
		AgentHandle: "ada_bot",
		RoomID:      "room-1",
		Message:     models.Event{AuthorName: "sam", Text: "what do you think ada?"},
		Conversation: []models.Memory{
			{AuthorName: "sam", Text: "the launch went well"},
			{AuthorID: "1001", Text: "agreed"},
		},
	}
}

func TestVoteParsesVerdicts(t *testing.T) {
	tests := []struct {
		answer string
		want   models.Verdict
	}{
		{"[RESPOND]", models.VerdictRespond},
		{"Result: [STOP]", models.VerdictStop},
		{"IGNORE", models.VerdictIgnore},
		{"I am not sure", models.VerdictIgnore},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			m := &fakeModels{answer: tt.answer}
			v := NewVoter(m, "", Persona{Bio: "a helpful analyst"}, zerolog.Nop())

			got, err := v.Vote(context.Background(), voteRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, DefaultModel, m.models[0])
		})
	}
}

func TestVotePrompt(t *testing.T) {
	m := &fakeModels{answer: "[IGNORE]"}
	v := NewVoter(m, "custom-model", Persona{Bio: "a helpful analyst"}, zerolog.Nop())

	_, err := v.Vote(context.Background(), voteRequest())
	require.NoError(t, err)

	prompt := m.prompts[0]
	assert.Contains(t, prompt, "# About Ada:\na helpful analyst")
	assert.Contains(t, prompt, "sam: the launch went well\n1001: agreed\n")
	assert.Contains(t, prompt, "# Last message\nsam: what do you think ada?")
	assert.Contains(t, prompt, "@ada_bot")
	assert.Equal(t, "custom-model", m.models[0])
}

func TestVoteError(t *testing.T) {
	m := &fakeModels{err: errors.New("quota")}
	v := NewVoter(m, "", Persona{}, zerolog.Nop())

	got, err := v.Vote(context.Background(), voteRequest())
	assert.Error(t, err)
	assert.Equal(t, models.VerdictIgnore, got)
}

func TestGenerate(t *testing.T) {
	m := &fakeModels{answer: "  sounds good to me \n"}
	g := NewGenerator(m, "", Persona{Name: "Ada", Handle: "ada_bot", Bio: "analyst", Style: "brief"})

	out, err := g.Generate(context.Background(), ReplyRequest{
		Message: models.Event{AuthorName: "sam", Text: "ship it?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sounds good to me", out)
	assert.Contains(t, m.prompts[0], "# Style\nbrief")
	assert.Contains(t, m.prompts[0], "sam: ship it?")
}

func TestGenerateEmpty(t *testing.T) {
	m := &fakeModels{answer: ""}
	g := NewGenerator(m, "", Persona{Name: "Ada"})

	_, err := g.Generate(context.Background(), ReplyRequest{Message: models.Event{Text: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEmbeddingSimilarity(t *testing.T) {
	m := &fakeModels{embeddings: [][]float32{{1, 0}, {0, 1}, {1, 0}}}
	s := NewEmbeddingSimilarity(m, "")

	score, err := s.Similarity(context.Background(), "a", "b", "")
	require.NoError(t, err)
	assert.InDelta(t, 0, score, 1e-9)

	score, err = s.Similarity(context.Background(), "a", "b", "c")
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-9)
	assert.Equal(t, DefaultEmbeddingModel, m.models[0])
}

func TestEmbeddingSimilarityError(t *testing.T) {
	s := NewEmbeddingSimilarity(&fakeModels{err: errors.New("down")}, "")
	_, err := s.Similarity(context.Background(), "a", "b", "")
	assert.Error(t, err)
}

func TestCosineMismatch(t *testing.T) {
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 2}))
}

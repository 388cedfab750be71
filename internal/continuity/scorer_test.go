package continuity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type constSim float64

func (c constSim) Similarity(context.Context, string, string, string) (float64, error) {
	return float64(c), nil
}

type failingSim struct{}

func (failingSim) Similarity(context.Context, string, string, string) (float64, error) {
	return 0, errors.New("embedding backend down")
}

func TestScoreWithoutPreviousContext(t *testing.T) {
	s := NewScorer(constSim(0), 0, clock.Fake(t0))
	score, err := s.Score(context.Background(), "anything", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestScoreIdenticalTextsAtZeroElapsed(t *testing.T) {
	s := NewScorer(nil, 0, clock.Fake(t0))
	prev := &models.ContextSnapshot{Text: "the deploy failed on staging", CapturedAt: t0}

	score, err := s.Score(context.Background(), "The deploy failed on STAGING", prev, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestScoreDecaysLinearly(t *testing.T) {
	clk := clock.Fake(t0)
	s := NewScorer(constSim(0.8), 5*time.Minute, clk)
	prev := &models.ContextSnapshot{Text: "x", CapturedAt: t0}

	clk.Advance(150 * time.Second)
	score, err := s.Score(context.Background(), "x", prev, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, score, 1e-9)
}

func TestScoreZeroPastWindow(t *testing.T) {
	clk := clock.Fake(t0)
	s := NewScorer(constSim(1), 5*time.Minute, clk)
	prev := &models.ContextSnapshot{Text: "same words", CapturedAt: t0}

	for _, d := range []time.Duration{5 * time.Minute, 6 * time.Minute, time.Hour} {
		clk.Set(t0.Add(d))
		score, err := s.Score(context.Background(), "same words", prev, "")
		require.NoError(t, err)
		assert.Equal(t, 0.0, score, d.String())
	}
}

func TestScorePastWindowSkipsSimilarityCall(t *testing.T) {
	clk := clock.Fake(t0.Add(time.Hour))
	s := NewScorer(failingSim{}, 0, clk)
	score, err := s.Score(context.Background(), "a", &models.ContextSnapshot{Text: "a", CapturedAt: t0}, "")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestScoreSimilarityErrorIsTransient(t *testing.T) {
	s := NewScorer(failingSim{}, 0, clock.Fake(t0))
	_, err := s.Score(context.Background(), "a", &models.ContextSnapshot{Text: "a", CapturedAt: t0}, "")
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
}

func TestSimilarityClamped(t *testing.T) {
	s := NewScorer(constSim(1.7), 0, clock.Fake(t0))
	v, err := s.Similarity(context.Background(), "a", "b", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	s = NewScorer(constSim(-0.3), 0, clock.Fake(t0))
	v, err = s.Similarity(context.Background(), "a", "b", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestResolveThreshold(t *testing.T) {
	room, character := 0.3, 0.5
	assert.Equal(t, 0.3, ResolveThreshold(&room, &character, 0.6))
	assert.Equal(t, 0.5, ResolveThreshold(nil, &character, 0.6))
	assert.Equal(t, 0.6, ResolveThreshold(nil, nil, 0.6))
}

func TestCosine(t *testing.T) {
	ctx := context.Background()
	c := Cosine{}

	same, _ := c.Similarity(ctx, "red green blue", "blue green red", "")
	assert.Equal(t, 1.0, same)

	none, _ := c.Similarity(ctx, "red green", "cats dogs", "")
	assert.Equal(t, 0.0, none)

	partial, _ := c.Similarity(ctx, "red green", "red blue", "")
	assert.InDelta(t, 0.5, partial, 1e-9)

	third, _ := c.Similarity(ctx, "red green", "cats dogs", "green red")
	assert.Equal(t, 1.0, third)

	empty, _ := c.Similarity(ctx, "", "red", "")
	assert.Equal(t, 0.0, empty)

	punct, _ := c.Similarity(ctx, "deploy, failed!", "failed deploy", "")
	assert.Equal(t, 1.0, punct)
}

func TestScoreNonLatinScripts(t *testing.T) {
	s := NewScorer(nil, 0, clock.Fake(t0))
	for _, text := range []string{"добрый вечер друзья", "日本語 の テスト", "Ünïcode straße"} {
		prev := &models.ContextSnapshot{Text: text, CapturedAt: t0}
		score, err := s.Score(context.Background(), text, prev, "")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, 1e-9, text)
	}

	none, err := s.Score(context.Background(), "добрый вечер", &models.ContextSnapshot{Text: "日本語 テスト", CapturedAt: t0}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, none)
}

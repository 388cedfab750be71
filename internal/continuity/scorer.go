// Package continuity scores how well a new message continues the
// conversation the agent is handling.
package continuity

import (
	"context"
	"strings"
	"time"

	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// DefaultWindow is the age at which a previous context stops counting.
const DefaultWindow = 5 * time.Minute

// Similarity compares a text with one or two reference texts and returns
// a score in [0,1]. c may be empty.
type Similarity interface {
	Similarity(ctx context.Context, a, b, c string) (float64, error)
}

// Scorer applies linear time decay to a Similarity.
type Scorer struct {
	sim    Similarity
	window time.Duration
	clock  clock.Clock
}

// NewScorer returns a Scorer. A nil sim uses Cosine; window <= 0 uses
// DefaultWindow.
func NewScorer(sim Similarity, window time.Duration, clk clock.Clock) *Scorer {
	if sim == nil {
		sim = Cosine{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scorer{sim: sim, window: window, clock: clk}
}

// Score returns similarity(current, prev, lastSelf) weighted by
// max(0, 1 - elapsed/window). Without a previous context nothing stands
// in the way of continuing, so the score is 1.
func (s *Scorer) Score(ctx context.Context, current string, prev *models.ContextSnapshot, lastSelf string) (float64, error) {
	if prev == nil {
		return 1, nil
	}

	weight := s.Weight(prev.CapturedAt)
	if weight == 0 {
		return 0, nil
	}

	raw, err := s.Similarity(ctx, current, prev.Text, lastSelf)
	if err != nil {
		return 0, err
	}
	return raw * weight, nil
}

// Similarity runs the underlying comparison on lower-cased inputs and
// clamps the result to [0,1].
func (s *Scorer) Similarity(ctx context.Context, a, b, c string) (float64, error) {
	raw, err := s.sim.Similarity(ctx, strings.ToLower(a), strings.ToLower(b), strings.ToLower(c))
	if err != nil {
		return 0, models.Transient("similarity", err)
	}
	return clamp(raw), nil
}

// Weight returns the decay weight for a context captured at t.
func (s *Scorer) Weight(t time.Time) float64 {
	elapsed := s.clock.Now().Sub(t)
	if elapsed < 0 {
		elapsed = 0
	}
	w := 1 - float64(elapsed)/float64(s.window)
	if w < 0 {
		return 0
	}
	return w
}

// ResolveThreshold picks the similarity threshold: the room override,
// then the character's configured value, then global.
func ResolveThreshold(room, character *float64, global float64) float64 {
	if room != nil {
		return *room
	}
	if character != nil {
		return *character
	}
	return global
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Package team implements the hand-off protocol that lets several agent
// identities share a room without a coordinator. Agreement is eventual:
// peers only see each other through the shared message log, and jitter
// makes simultaneous replies unlikely rather than impossible.
package team

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/continuity"
	"github.com/eldtechnologies/aicq-agent/internal/interest"
	"github.com/eldtechnologies/aicq-agent/internal/mention"
	"github.com/eldtechnologies/aicq-agent/internal/metrics"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Outcome is the arbiter's answer for one message.
type Outcome int

const (
	// Proceed leaves the decision to the rest of the engine.
	Proceed Outcome = iota
	// Respond means this agent should answer.
	Respond
	// Suppress means a teammate is better placed to answer.
	Suppress
)

func (o Outcome) String() string {
	switch o {
	case Respond:
		return "respond"
	case Suppress:
		return "suppress"
	default:
		return "proceed"
	}
}

// Random is the source of jitter and coin flips.
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// LogReader reads the shared message log.
type LogReader interface {
	Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error)
}

// Deps are the collaborators of an Arbiter. Nil fields get defaults,
// except Log which disables the shared-log re-check.
type Deps struct {
	Registry *Registry
	Scorer   *continuity.Scorer
	Log      LogReader
	Clock    clock.Clock
	Rand     Random
	Logger   zerolog.Logger
}

// Arbiter answers team questions for one agent identity.
type Arbiter struct {
	cfg      Config
	registry *Registry
	scorer   *continuity.Scorer
	log      LogReader
	clock    clock.Clock
	rand     Random
	logger   zerolog.Logger
}

// NewArbiter builds an Arbiter for cfg.
func NewArbiter(cfg Config, deps Deps) *Arbiter {
	a := &Arbiter{
		cfg:      cfg.withDefaults(),
		registry: deps.Registry,
		scorer:   deps.Scorer,
		log:      deps.Log,
		clock:    deps.Clock,
		rand:     deps.Rand,
		logger:   deps.Logger.With().Str("component", "team_arbiter").Logger(),
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}
	if a.registry == nil {
		a.registry = NewRegistry(nil, deps.Logger)
	}
	if a.scorer == nil {
		a.scorer = continuity.NewScorer(nil, 0, a.clock)
	}
	if a.rand == nil {
		a.rand = globalRandom{}
	}
	return a
}

// Config returns the effective configuration.
func (a *Arbiter) Config() Config { return a.cfg }

// Enabled reports whether team mode is on.
func (a *Arbiter) Enabled() bool { return a.cfg.Enabled }

// IsLeader reports whether this agent leads the team.
func (a *Arbiter) IsLeader() bool { return IsLeader(a.cfg.SelfID, a.cfg) }

// IsSelf reports whether id is this agent.
func (a *Arbiter) IsSelf(id string) bool { return SameID(id, a.cfg.SelfID) }

// IsTeamMember reports whether id belongs to the team.
func (a *Arbiter) IsTeamMember(id string) bool { return IsTeamMember(id, a.cfg) }

// IsLeaderID reports whether id is the team leader.
func (a *Arbiter) IsLeaderID(id string) bool { return a.cfg.Enabled && SameID(id, a.cfg.LeaderID) }

// HasKeywordRelevance reports whether text contains one of this member's
// keywords.
func (a *Arbiter) HasKeywordRelevance(text string) bool {
	return containsAny(text, a.cfg.Keywords)
}

// IsCoordinationRequest reports whether text addresses the whole team.
func (a *Arbiter) IsCoordinationRequest(text string) bool {
	return containsAny(text, a.cfg.CoordinationKeywords)
}

// IsRelevant reports whether text matters to this member. The leader
// compares it with its own last reply when that reply is recent enough;
// everyone else, and a leader without a usable last reply, matches
// keywords.
func (a *Arbiter) IsRelevant(ctx context.Context, text string, lastSelf *models.Memory) (bool, error) {
	if a.IsLeader() && lastSelf != nil && lastSelf.Text != "" {
		if a.clock.Now().Sub(lastSelf.CreatedAt) > a.cfg.InterestDecay {
			return false, nil
		}
		sim, err := a.scorer.Similarity(ctx, text, lastSelf.Text, "")
		if err != nil {
			return false, err
		}
		return sim >= a.cfg.FollowUpThreshold, nil
	}
	return a.HasKeywordRelevance(text), nil
}

// MentionedTeammate returns the id of another team member whose cached
// handle is @-mentioned in text.
func (a *Arbiter) MentionedTeammate(text string) (string, bool) {
	if !a.cfg.Enabled {
		return "", false
	}
	for _, id := range a.cfg.MemberIDs {
		if a.IsSelf(id) {
			continue
		}
		handle, ok := a.registry.Name(id)
		if ok && mention.MentionsHandle(text, handle) {
			return id, true
		}
	}
	return "", false
}

// Arbitrate runs the hand-off protocol for ev. Steps short-circuit in
// order: direct address, coordination request, non-leader keyword match,
// leader without relevance. st is the room state before the decision and
// may be nil.
func (a *Arbiter) Arbitrate(ctx context.Context, ev models.Event, addressed bool, st *interest.State) (Outcome, string, error) {
	if addressed {
		return Respond, "addressed", nil
	}

	text := ev.Body()
	leader := a.IsLeader()

	if a.IsCoordinationRequest(text) {
		if !leader {
			if err := a.jitter(ctx, "coordination", a.cfg.Timing.TeamMemberDelayMin, a.cfg.Timing.TeamMemberDelayMax); err != nil {
				return Proceed, "", err
			}
		}
		return Respond, "coordination request", nil
	}

	relevant := a.HasKeywordRelevance(text)

	if !leader && relevant {
		if err := a.sleep(ctx, "member", a.cfg.Timing.TeamMemberDelay); err != nil {
			return Proceed, "", err
		}
		if st != nil && a.leaderSpokeRecently(*st) && a.SuppressAfterLeader() {
			return Suppress, "leader replied recently", nil
		}
		return Respond, "keyword relevance", nil
	}

	if leader && !relevant {
		if err := a.jitter(ctx, "leader", a.cfg.Timing.LeaderDelayMin, a.cfg.Timing.LeaderDelayMax); err != nil {
			return Proceed, "", err
		}
		answered, err := a.teammateAnswered(ctx, ev, st)
		if err != nil {
			return Proceed, "", err
		}
		if answered {
			return Suppress, "teammate answered", nil
		}
	}

	return Proceed, "", nil
}

// SuppressAfterLeader draws the coin used when the leader has just
// spoken. It returns true when this member should stay quiet.
func (a *Arbiter) SuppressAfterLeader() bool {
	return a.rand.Float64() >= a.cfg.Timing.AfterLeaderResponseChance
}

func (a *Arbiter) leaderSpokeRecently(st interest.State) bool {
	now := a.clock.Now()
	for _, m := range st.Tail(a.cfg.RecentMessageCount) {
		if a.IsLeaderID(m.ParticipantID) && now.Sub(m.SentAt) < a.cfg.Timing.LeaderRecencyWindow {
			return true
		}
	}
	return false
}

// teammateAnswered looks for another member's message in the room's
// recent history and in the shared log entries written since ev.
func (a *Arbiter) teammateAnswered(ctx context.Context, ev models.Event, st *interest.State) (bool, error) {
	if st != nil {
		for _, m := range st.Tail(a.cfg.RecentMessageCount) {
			if !a.IsSelf(m.ParticipantID) && a.IsTeamMember(m.ParticipantID) {
				return true, nil
			}
		}
	}
	if a.log == nil {
		return false, nil
	}
	recent, err := a.log.Recent(ctx, ev.RoomID, a.cfg.RecentMessageCount)
	if err != nil {
		return false, models.Transient("persistence", err)
	}
	for _, m := range recent {
		if m.CreatedAt.Before(ev.SentAt) {
			continue
		}
		if !a.IsSelf(m.AuthorID) && a.IsTeamMember(m.AuthorID) {
			return true, nil
		}
	}
	return false, nil
}

func (a *Arbiter) jitter(ctx context.Context, kind string, lo, hi time.Duration) error {
	d := lo
	if hi > lo {
		d += time.Duration(a.rand.Float64() * float64(hi-lo))
	}
	return a.sleep(ctx, kind, d)
}

func (a *Arbiter) sleep(ctx context.Context, kind string, d time.Duration) error {
	metrics.JitterDelay.WithLabelValues(kind).Observe(d.Seconds())
	a.logger.Debug().Str("kind", kind).Dur("delay", d).Msg("waiting before hand-off check")
	return a.clock.Sleep(ctx, d)
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

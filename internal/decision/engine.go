// Package decision turns an inbound message into a RESPOND, IGNORE or
// STOP verdict for one agent identity.
package decision

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aicq-agent/internal/continuity"
	"github.com/eldtechnologies/aicq-agent/internal/interest"
	"github.com/eldtechnologies/aicq-agent/internal/metrics"
	"github.com/eldtechnologies/aicq-agent/internal/models"
	"github.com/eldtechnologies/aicq-agent/internal/team"
)

// State is where a room stands for this agent.
type State int

const (
	NotInterested State = iota
	Watching
	ActiveHandler
	Suppressed
)

func (s State) String() string {
	switch s {
	case Watching:
		return "watching"
	case ActiveHandler:
		return "active_handler"
	case Suppressed:
		return "suppressed"
	default:
		return "not_interested"
	}
}

// VoteRequest is the context handed to the model vote.
type VoteRequest struct {
	AgentName    string
	AgentHandle  string
	RoomID       string
	Message      models.Event
	Conversation []models.Memory // oldest first
}

// Voter asks a model whether the agent should reply.
type Voter interface {
	Vote(ctx context.Context, req VoteRequest) (models.Verdict, error)
}

// History reads recent entries of the shared message log, newest first.
type History interface {
	Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error)
}

// Config holds the engine's identity and thresholds.
type Config struct {
	SelfID       string
	SelfName     string
	SelfHandle   string
	MentionsOnly bool

	// CadenceCap is how many of the last ChatHistoryCount messages the
	// agent may author before throttling starts.
	CadenceCap       int
	ChatHistoryCount int

	// SimilarityThreshold is the character's override, nil for none.
	SimilarityThreshold        *float64
	DefaultSimilarityThreshold float64

	// ConversationLength bounds the history sent to the model vote.
	ConversationLength int
}

func (c Config) withDefaults() Config {
	if c.CadenceCap <= 0 {
		c.CadenceCap = 2
	}
	if c.ChatHistoryCount <= 0 {
		c.ChatHistoryCount = 10
	}
	if c.DefaultSimilarityThreshold <= 0 {
		c.DefaultSimilarityThreshold = 0.6
	}
	if c.ConversationLength <= 0 {
		c.ConversationLength = 20
	}
	return c
}

// Deps are the engine's collaborators.
type Deps struct {
	Store   *interest.Store
	Arbiter *team.Arbiter
	Scorer  *continuity.Scorer
	Voter   Voter
	History History
	Rand    team.Random
	Logger  zerolog.Logger
}

// Decision is the engine's answer for one message.
type Decision struct {
	Verdict models.Verdict
	State   State
	Reason  string
}

// Engine owns the per-room state machine.
type Engine struct {
	cfg     Config
	store   *interest.Store
	arbiter *team.Arbiter
	scorer  *continuity.Scorer
	voter   Voter
	history History
	rand    team.Random
	logger  zerolog.Logger
}

// NewEngine wires an Engine. Store, Arbiter and Voter are required.
func NewEngine(cfg Config, deps Deps) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		store:   deps.Store,
		arbiter: deps.Arbiter,
		scorer:  deps.Scorer,
		voter:   deps.Voter,
		history: deps.History,
		rand:    deps.Rand,
		logger:  deps.Logger.With().Str("component", "decision").Logger(),
	}
	if e.scorer == nil {
		e.scorer = continuity.NewScorer(nil, 0, nil)
	}
	if e.rand == nil {
		e.rand = defaultRandom{}
	}
	return e
}

// Decide returns the verdict for ev. It never fails: any error reading
// state or calling a collaborator is logged and becomes IGNORE with the
// room state left as it was.
func (e *Engine) Decide(ctx context.Context, ev models.Event, addressed bool) Decision {
	d, err := e.decide(ctx, ev, addressed)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("room_id", ev.RoomID).
			Str("author_id", ev.AuthorID).
			Msg("decision failed, ignoring message")
		reason := "error"
		if models.IsTransient(err) {
			reason = "collaborator unavailable"
		}
		d = Decision{Verdict: models.VerdictIgnore, State: e.StateOf(ev.RoomID), Reason: reason}
	}
	metrics.Decisions.WithLabelValues(d.Verdict.String(), d.Reason).Inc()
	e.logger.Debug().
		Str("room_id", ev.RoomID).
		Str("verdict", d.Verdict.String()).
		Str("state", d.State.String()).
		Str("reason", d.Reason).
		Msg("decided")
	return d
}

// StateOf derives the room's state from the interest store.
func (e *Engine) StateOf(room string) State {
	st, ok := e.store.Get(room)
	if !ok {
		return NotInterested
	}
	if st.CurrentHandlerID != "" && e.isSelf(st.CurrentHandlerID) {
		return ActiveHandler
	}
	return Watching
}

func (e *Engine) decide(ctx context.Context, ev models.Event, addressed bool) (Decision, error) {
	if e.cfg.MentionsOnly {
		if addressed {
			return e.respond(ev, "mentioned"), nil
		}
		return e.ignore(ev, "not mentioned"), nil
	}
	if addressed {
		return e.respond(ev, "addressed"), nil
	}
	if ev.IsPrivate() {
		return e.respond(ev, "private room"), nil
	}
	if ev.ImageOnly() {
		return e.ignore(ev, "image in group room"), nil
	}

	st, has := e.store.Get(ev.RoomID)
	var stPtr *interest.State
	if has {
		stPtr = &st
	}

	teamMode := e.arbiter != nil && e.arbiter.Enabled()
	if teamMode {
		out, reason, err := e.arbiter.Arbitrate(ctx, ev, false, stPtr)
		if err != nil {
			return Decision{}, err
		}
		switch out {
		case team.Respond:
			return e.respond(ev, reason), nil
		case team.Suppress:
			return Decision{Verdict: models.VerdictIgnore, State: Suppressed, Reason: reason}, nil
		}

		if has && st.CurrentHandlerID != "" && !e.isSelf(st.CurrentHandlerID) && e.arbiter.IsTeamMember(st.CurrentHandlerID) {
			return e.ignore(ev, "teammate is handling"), nil
		}

		if has && e.isSelf(st.CurrentHandlerID) {
			selfCount := 0
			for _, m := range st.Tail(e.cfg.ChatHistoryCount) {
				if e.isSelf(m.ParticipantID) {
					selfCount++
				}
			}
			if e.rand.Float64() >= CadenceChance(selfCount, e.cfg.CadenceCap) {
				return Decision{Verdict: models.VerdictIgnore, State: Suppressed, Reason: "cadence"}, nil
			}

			ok, err := e.continues(ctx, ev, st)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return e.ignore(ev, "context drift"), nil
			}
		}
	}

	return e.vote(ctx, ev)
}

// continues reports whether ev stays close enough to the conversation
// this agent is handling.
func (e *Engine) continues(ctx context.Context, ev models.Event, st interest.State) (bool, error) {
	lastSelf, err := e.lastSelfText(ctx, ev.RoomID)
	if err != nil {
		return false, err
	}
	score, err := e.scorer.Score(ctx, ev.Body(), st.PreviousContext, lastSelf)
	if err != nil {
		return false, err
	}
	threshold := continuity.ResolveThreshold(st.SimilarityThresholdOverride, e.cfg.SimilarityThreshold, e.cfg.DefaultSimilarityThreshold)
	return score >= threshold, nil
}

func (e *Engine) vote(ctx context.Context, ev models.Event) (Decision, error) {
	conversation, err := e.conversation(ctx, ev.RoomID)
	if err != nil {
		return Decision{}, err
	}

	start := time.Now()
	verdict, err := e.voter.Vote(ctx, VoteRequest{
		AgentName:    e.cfg.SelfName,
		AgentHandle:  e.cfg.SelfHandle,
		RoomID:       ev.RoomID,
		Message:      ev,
		Conversation: conversation,
	})
	metrics.CollaboratorLatency.WithLabelValues("vote").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("vote").Inc()
		return Decision{}, models.Transient("vote", err)
	}

	switch verdict {
	case models.VerdictRespond:
		return e.respond(ev, "model vote"), nil
	case models.VerdictStop:
		e.store.Clear(ev.RoomID)
		return Decision{Verdict: models.VerdictStop, State: NotInterested, Reason: "model vote"}, nil
	default:
		return e.ignore(ev, "model vote"), nil
	}
}

func (e *Engine) conversation(ctx context.Context, room string) ([]models.Memory, error) {
	if e.history == nil {
		return nil, nil
	}
	recent, err := e.history.Recent(ctx, room, e.cfg.ConversationLength)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("persistence").Inc()
		return nil, models.Transient("persistence", fmt.Errorf("reading conversation: %w", err))
	}
	out := make([]models.Memory, len(recent))
	for i, m := range recent {
		out[len(recent)-1-i] = m
	}
	return out, nil
}

func (e *Engine) lastSelfText(ctx context.Context, room string) (string, error) {
	if e.history == nil {
		return "", nil
	}
	recent, err := e.history.Recent(ctx, room, e.cfg.ChatHistoryCount)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("persistence").Inc()
		return "", models.Transient("persistence", err)
	}
	for _, m := range recent {
		if e.isSelf(m.AuthorID) {
			return m.Text, nil
		}
	}
	return "", nil
}

// respond marks this agent as the room's handler in team mode.
func (e *Engine) respond(ev models.Event, reason string) Decision {
	if e.arbiter != nil && e.arbiter.Enabled() {
		if _, ok := e.store.Get(ev.RoomID); ok {
			e.store.SetHandler(ev.RoomID, e.cfg.SelfID)
		} else {
			e.store.Claim(ev.RoomID, e.cfg.SelfID, ev.SentAt)
		}
	}
	return Decision{Verdict: models.VerdictRespond, State: e.StateOf(ev.RoomID), Reason: reason}
}

func (e *Engine) ignore(ev models.Event, reason string) Decision {
	return Decision{Verdict: models.VerdictIgnore, State: e.StateOf(ev.RoomID), Reason: reason}
}

func (e *Engine) isSelf(id string) bool {
	if e.arbiter != nil {
		return e.arbiter.IsSelf(id)
	}
	return team.SameID(id, e.cfg.SelfID)
}

// CadenceChance is the probability of answering when the agent wrote
// selfCount of the recent messages: 1 up to cap, then halving with each
// extra message.
func CadenceChance(selfCount, cap int) float64 {
	if selfCount <= cap {
		return 1
	}
	return math.Pow(0.5, float64(selfCount-cap))
}

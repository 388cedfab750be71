// Package agent is the per-message entry point: it filters inbound events,
// keeps the room's interest state, asks the decision engine for a verdict
// and delivers the reply.
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aicq-agent/internal/chunker"
	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/decision"
	"github.com/eldtechnologies/aicq-agent/internal/interest"
	"github.com/eldtechnologies/aicq-agent/internal/llm"
	"github.com/eldtechnologies/aicq-agent/internal/mention"
	"github.com/eldtechnologies/aicq-agent/internal/metrics"
	"github.com/eldtechnologies/aicq-agent/internal/models"
	"github.com/eldtechnologies/aicq-agent/internal/team"
)

// MemoryLog is the shared message log.
type MemoryLog interface {
	Append(ctx context.Context, m *models.Memory) error
	Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error)
}

// Generator writes reply text.
type Generator interface {
	Generate(ctx context.Context, req llm.ReplyRequest) (string, error)
}

// Sender delivers one outbound post and returns its transport id.
type Sender interface {
	Send(ctx context.Context, roomID, text, replyTo string) (string, error)
}

// Config is the agent's identity and message filters.
type Config struct {
	SelfID     string
	SelfName   string
	SelfHandle string

	MentionsOnly         bool
	IgnoreBotMessages    bool
	IgnoreDirectMessages bool

	MaxMessageLength   int
	ConversationLength int
	// RecentMessageCount bounds the log lookup for the agent's last reply.
	RecentMessageCount int
}

// Deps are the agent's collaborators.
type Deps struct {
	Store     *interest.Store
	Arbiter   *team.Arbiter
	Engine    *decision.Engine
	Log       MemoryLog
	Generator Generator
	Sender    Sender
	Clock     clock.Clock
	Logger    zerolog.Logger
}

// Agent handles inbound events for one identity.
type Agent struct {
	cfg     Config
	store   *interest.Store
	arbiter *team.Arbiter
	engine  *decision.Engine
	log     MemoryLog
	gen     Generator
	sender  Sender
	clock   clock.Clock
	logger  zerolog.Logger
}

// New wires an Agent.
func New(cfg Config, deps Deps) *Agent {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = chunker.DefaultMaxLen
	}
	if cfg.ConversationLength <= 0 {
		cfg.ConversationLength = 20
	}
	if cfg.RecentMessageCount <= 0 {
		cfg.RecentMessageCount = 5
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Agent{
		cfg:     cfg,
		store:   deps.Store,
		arbiter: deps.Arbiter,
		engine:  deps.Engine,
		log:     deps.Log,
		gen:     deps.Generator,
		sender:  deps.Sender,
		clock:   deps.Clock,
		logger:  deps.Logger.With().Str("component", "agent").Str("agent_id", cfg.SelfID).Logger(),
	}
}

func (a *Agent) self() mention.Self {
	return mention.Self{ID: a.cfg.SelfID, Handle: a.cfg.SelfHandle}
}

func (a *Agent) teamMode() bool {
	return a.arbiter != nil && a.arbiter.Enabled() && !a.cfg.MentionsOnly
}

// HandleIncomingMessage processes one inbound event. It never panics
// and reports problems only through logs and metrics.
func (a *Agent) HandleIncomingMessage(ctx context.Context, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("room_id", ev.RoomID).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("message handler panicked")
		}
		metrics.InterestRooms.Set(float64(a.store.Len()))
	}()

	logger := a.logger.With().Str("room_id", ev.RoomID).Str("author_id", ev.AuthorID).Logger()

	if strings.TrimSpace(ev.Body()) == "" {
		if !ev.HasImage {
			a.skip(logger, "malformed", models.ErrMalformedMessage)
			return
		}
		ev.Text = models.ImagePlaceholder
	}
	switch {
	case team.SameID(ev.AuthorID, a.cfg.SelfID):
		a.skip(logger, "self", nil)
		return
	case a.cfg.IgnoreBotMessages && ev.IsBot:
		a.skip(logger, "bot author", nil)
		return
	case a.cfg.IgnoreDirectMessages && ev.IsPrivate():
		a.skip(logger, "private room", nil)
		return
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = a.clock.Now()
	}

	if err := a.persist(ctx, &models.Memory{
		ID:         ev.ID,
		RoomID:     ev.RoomID,
		AuthorID:   ev.AuthorID,
		AuthorName: ev.AuthorName,
		Text:       ev.Body(),
		CreatedAt:  ev.SentAt,
	}); err != nil {
		logger.Warn().Err(err).Msg("persisting inbound message failed, ignoring")
		return
	}

	addressed := mention.IsAddressedToAgent(ev, a.self(), a.cfg.MentionsOnly)

	if a.teamMode() {
		proceed, reason, err := a.trackInterest(ctx, ev, addressed)
		if err != nil {
			logger.Warn().Err(err).Msg("interest bookkeeping failed, ignoring")
			return
		}
		if !proceed {
			a.skip(logger, reason, nil)
			return
		}
	}

	d := a.engine.Decide(ctx, ev, addressed)
	a.store.SetContext(ev.RoomID, models.ContextSnapshot{Text: ev.Body(), CapturedAt: a.clock.Now()})

	logger.Info().
		Str("verdict", d.Verdict.String()).
		Str("state", d.State.String()).
		Str("reason", d.Reason).
		Bool("addressed", addressed).
		Msg("message handled")

	if d.Verdict == models.VerdictRespond {
		a.reply(ctx, ev, logger)
	}
}

func (a *Agent) skip(logger zerolog.Logger, reason string, err error) {
	metrics.EventsSkipped.WithLabelValues(reason).Inc()
	logger.Debug().Err(err).Str("reason", reason).Msg("skipping message")
}

// trackInterest updates the room's interest state before the decision
// and reports whether the message should reach the decision engine.
func (a *Agent) trackInterest(ctx context.Context, ev models.Event, addressed bool) (bool, string, error) {
	room, text, at := ev.RoomID, ev.Body(), ev.SentAt
	leader := a.arbiter.IsLeader()
	hasInterest := a.store.CheckInterest(room, a.arbiter)
	touch := true

	if !leader && a.arbiter.HasKeywordRelevance(text) {
		a.store.Claim(room, a.cfg.SelfID, at)
	}

	if hasInterest && !addressed {
		lastSelf, err := a.lastSelfMemory(ctx, room)
		if err != nil {
			return false, "", err
		}
		relevant, err := a.arbiter.IsRelevant(ctx, text, lastSelf)
		if err != nil {
			return false, "", err
		}
		if !relevant {
			a.store.Clear(room)
			hasInterest = false
			if !leader {
				return false, "lost interest", nil
			}
		}
	}

	coordination := a.arbiter.IsCoordinationRequest(text)
	if coordination {
		if leader || addressed {
			a.store.Claim(room, a.cfg.SelfID, at)
		} else {
			// A member's claim on a team-wide request lapses unless it
			// ends up replying.
			a.store.Claim(room, a.cfg.SelfID, time.Time{})
			touch = false
		}
	}

	if mate, ok := a.arbiter.MentionedTeammate(text); ok && !addressed {
		if st, has := a.store.Get(room); has && (hasInterest || a.arbiter.IsSelf(st.CurrentHandlerID)) {
			a.store.Clear(room)
		}
		a.logger.Debug().Str("room_id", room).Str("teammate_id", mate).Msg("teammate addressed, yielding")
		return false, "teammate mentioned", nil
	}

	if addressed {
		a.store.Claim(room, a.cfg.SelfID, at)
	}

	st, has := a.store.Get(room)
	if !has && !leader {
		return false, "not interested", nil
	}
	if has {
		a.store.AppendMessage(room, interest.Entry{
			ParticipantID:   ev.AuthorID,
			ParticipantName: ev.AuthorName,
			Text:            text,
			SentAt:          at,
		})
		if touch || !st.LastMessageSentAt.IsZero() {
			a.store.Touch(room, at)
		}
	}
	return true, "", nil
}

func (a *Agent) lastSelfMemory(ctx context.Context, room string) (*models.Memory, error) {
	recent, err := a.log.Recent(ctx, room, a.cfg.RecentMessageCount)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("persistence").Inc()
		return nil, models.Transient("persistence", err)
	}
	for _, m := range recent {
		if team.SameID(m.AuthorID, a.cfg.SelfID) {
			return &m, nil
		}
	}
	return nil, nil
}

func (a *Agent) persist(ctx context.Context, m *models.Memory) error {
	start := time.Now()
	err := a.log.Append(ctx, m)
	metrics.CollaboratorLatency.WithLabelValues("persistence").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("persistence").Inc()
		return models.Transient("persistence", err)
	}
	return nil
}

// reply generates, chunks and sends the answer to ev. Each sent chunk is
// written to the log and replayed into the interest state as the agent's
// own message.
func (a *Agent) reply(ctx context.Context, ev models.Event, logger zerolog.Logger) {
	conversation, err := a.conversation(ctx, ev.RoomID)
	if err != nil {
		logger.Warn().Err(err).Msg("reading conversation failed")
		return
	}

	start := time.Now()
	text, err := a.gen.Generate(ctx, llm.ReplyRequest{RoomID: ev.RoomID, Message: ev, Conversation: conversation})
	metrics.CollaboratorLatency.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("generate").Inc()
		logger.Warn().Err(err).Msg("reply generation failed")
		return
	}

	chunks := chunker.Split(text, a.cfg.MaxMessageLength)
	if chunker.Oversized(chunks, a.cfg.MaxMessageLength) {
		logger.Warn().Int("max_len", a.cfg.MaxMessageLength).Msg("reply has a line longer than the transport limit")
	}

	last := -1
	for i, c := range chunks {
		if strings.TrimSpace(c) != "" {
			last = i
		}
	}

	replyTo := ev.ID
	for i, c := range chunks {
		if strings.TrimSpace(c) == "" {
			continue
		}

		start := time.Now()
		id, err := a.sender.Send(ctx, ev.RoomID, c, replyTo)
		metrics.CollaboratorLatency.WithLabelValues("transport").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CollaboratorErrors.WithLabelValues("transport").Inc()
			logger.Warn().Err(err).Int("chunk", i).Msg("sending reply failed")
			return
		}
		metrics.ChunksSent.Inc()

		now := a.clock.Now()
		m := &models.Memory{
			ID:         id,
			RoomID:     ev.RoomID,
			AuthorID:   a.cfg.SelfID,
			AuthorName: a.cfg.SelfName,
			Text:       c,
			InReplyTo:  ev.ID,
			CreatedAt:  now,
		}
		if i != last {
			m.Action = models.ActionContinue
		}
		if err := a.persist(ctx, m); err != nil {
			logger.Warn().Err(err).Msg("persisting reply failed")
		}

		a.store.AppendMessage(ev.RoomID, interest.Entry{
			ParticipantID:   a.cfg.SelfID,
			ParticipantName: a.cfg.SelfName,
			Text:            c,
			SentAt:          now,
		})
		a.store.Touch(ev.RoomID, now)
		replyTo = ""
	}
}

func (a *Agent) conversation(ctx context.Context, room string) ([]models.Memory, error) {
	recent, err := a.log.Recent(ctx, room, a.cfg.ConversationLength)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("persistence").Inc()
		return nil, models.Transient("persistence", err)
	}
	out := make([]models.Memory, len(recent))
	for i, m := range recent {
		out[len(recent)-1-i] = m
	}
	return out, nil
}

// Sweep drops rooms whose interest has decayed. It returns the number
// removed.
func (a *Agent) Sweep() int {
	n := a.store.Sweep()
	metrics.InterestRooms.Set(float64(a.store.Len()))
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (a *Agent) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := a.Sweep(); n > 0 {
				a.logger.Debug().Int("rooms", n).Msg("swept decayed interest")
			}
		}
	}
}

// RoomStatus summarises one room for operators.
type RoomStatus struct {
	RoomID         string     `json:"room_id"`
	State          string     `json:"state"`
	HandlerID      string     `json:"handler_id,omitempty"`
	RecentMessages int        `json:"recent_messages"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// Status reports where room stands for this agent.
func (a *Agent) Status(room string) RoomStatus {
	status := RoomStatus{RoomID: room, State: a.engine.StateOf(room).String()}
	if st, ok := a.store.Get(room); ok {
		status.HandlerID = st.CurrentHandlerID
		status.RecentMessages = len(st.RecentMessages)
		if !st.LastMessageSentAt.IsZero() {
			at := st.LastMessageSentAt
			status.LastMessageAt = &at
		}
	}
	return status
}

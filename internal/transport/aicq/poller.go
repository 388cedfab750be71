package aicq

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aicq-agent/internal/metrics"
	"github.com/eldtechnologies/aicq-agent/internal/models"
	"github.com/eldtechnologies/aicq-agent/internal/team"
)

// DMRoomPrefix marks room ids that stand for a private conversation with
// one peer.
const DMRoomPrefix = "dm:"

// DMRoom returns the room id of the private conversation with peer.
func DMRoom(peer string) string { return DMRoomPrefix + peer }

// PeerFromRoom returns the peer of a private room id.
func PeerFromRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, DMRoomPrefix) {
		return "", false
	}
	return strings.TrimPrefix(room, DMRoomPrefix), true
}

// PollerConfig selects what the poller watches.
type PollerConfig struct {
	Rooms        []string
	Interval     time.Duration
	PollPrivate  bool
	HistoryLimit int
	CacheSize    int
}

// Poller turns new AICQ room messages and private messages into events.
// The first poll of each source only records where history ends, so the
// agent never answers backlog.
type Poller struct {
	client *Client
	cfg    PollerConfig
	submit func(models.Event)
	logger zerolog.Logger

	cursors  map[string]int64
	dmCursor int64
	dmPrimed bool
	authors  *boundedCache[string, string]
	names    *boundedCache[string, string]
}

// NewPoller returns a poller that hands events to submit.
func NewPoller(client *Client, cfg PollerConfig, submit func(models.Event), logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	return &Poller{
		client:  client,
		cfg:     cfg,
		submit:  submit,
		logger:  logger.With().Str("component", "poller").Logger(),
		cursors: make(map[string]int64),
		authors: newBoundedCache[string, string](cfg.CacheSize),
		names:   newBoundedCache[string, string](cfg.CacheSize),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Strs("rooms", p.cfg.Rooms).
		Bool("private", p.cfg.PollPrivate).
		Dur("interval", p.cfg.Interval).
		Msg("polling AICQ")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one pass over every room and the private inbox.
func (p *Poller) Poll(ctx context.Context) {
	for _, room := range p.cfg.Rooms {
		if err := p.pollRoom(ctx, room); err != nil && ctx.Err() == nil {
			metrics.CollaboratorErrors.WithLabelValues("transport").Inc()
			p.logger.Warn().Err(err).Str("room_id", room).Msg("room poll failed")
		}
	}
	if p.cfg.PollPrivate {
		if err := p.pollDMs(ctx); err != nil && ctx.Err() == nil {
			metrics.CollaboratorErrors.WithLabelValues("transport").Inc()
			p.logger.Warn().Err(err).Msg("inbox poll failed")
		}
	}
}

func (p *Poller) pollRoom(ctx context.Context, room string) error {
	resp, err := p.client.GetMessages(ctx, room, p.cfg.HistoryLimit, 0)
	if err != nil {
		return err
	}

	msgs := slices.Clone(resp.Messages)
	slices.SortStableFunc(msgs, func(a, b Message) int { return cmp.Compare(a.Timestamp, b.Timestamp) })

	cursor, primed := p.cursors[room]
	if !primed {
		p.cursors[room] = 0
	}
	for _, m := range msgs {
		p.authors.put(m.ID, m.From)
		if m.Timestamp > p.cursors[room] {
			p.cursors[room] = m.Timestamp
		}
		if !primed || m.Timestamp <= cursor || p.isSelf(m.From) {
			continue
		}
		p.emit(ctx, p.roomEvent(ctx, room, m))
	}
	return nil
}

func (p *Poller) roomEvent(ctx context.Context, room string, m Message) models.Event {
	ev := models.Event{
		ID:         m.ID,
		AuthorID:   m.From,
		AuthorName: p.name(ctx, m.From),
		RoomID:     room,
		Text:       m.Body,
		SentAt:     time.UnixMilli(m.Timestamp).UTC(),
		ChatKind:   models.ChatGroup,
	}
	if m.ParentID != "" {
		ref := &models.ReplyRef{MessageID: m.ParentID}
		if author, ok := p.authors.get(m.ParentID); ok {
			ref.AuthorID = author
		}
		ev.ReplyTo = ref
	}
	return ev
}

func (p *Poller) pollDMs(ctx context.Context) error {
	dms, err := p.client.GetDMs(ctx)
	if err != nil {
		return err
	}

	slices.SortStableFunc(dms, func(a, b DirectMessage) int { return cmp.Compare(a.Timestamp, b.Timestamp) })

	cursor, primed := p.dmCursor, p.dmPrimed
	p.dmPrimed = true
	for _, dm := range dms {
		if dm.Timestamp > p.dmCursor {
			p.dmCursor = dm.Timestamp
		}
		if !primed || dm.Timestamp <= cursor || p.isSelf(dm.From) {
			continue
		}
		text, err := p.client.Decrypt(dm)
		if err != nil {
			p.logger.Warn().Err(err).Str("author_id", dm.From).Str("message_id", dm.ID).Msg("dropping undecryptable private message")
			continue
		}
		p.emit(ctx, models.Event{
			ID:         dm.ID,
			AuthorID:   dm.From,
			AuthorName: p.name(ctx, dm.From),
			RoomID:     DMRoom(dm.From),
			Text:       text,
			SentAt:     time.UnixMilli(dm.Timestamp).UTC(),
			ChatKind:   models.ChatPrivate,
		})
	}
	return nil
}

func (p *Poller) emit(ctx context.Context, ev models.Event) {
	if ctx.Err() != nil {
		return
	}
	metrics.EventsReceived.WithLabelValues(string(ev.ChatKind), "poll").Inc()
	p.submit(ev)
}

// name resolves a display name, falling back to the id.
func (p *Poller) name(ctx context.Context, id string) string {
	if n, ok := p.names.get(id); ok {
		return n
	}
	n, err := p.client.DisplayName(ctx, id)
	if err != nil {
		p.logger.Debug().Err(err).Str("author_id", id).Msg("name lookup failed")
		return id
	}
	p.names.put(id, n)
	return n
}

func (p *Poller) isSelf(id string) bool {
	return team.SameID(id, p.client.AgentID())
}

// Package interest keeps the per-room engagement state of one agent
// identity. State is process-local and owned by the agent; peers never
// write to it.
package interest

import (
	"sync"
	"time"

	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Entry is one message remembered in a room's recent history.
type Entry struct {
	ParticipantID   string
	ParticipantName string
	Text            string
	SentAt          time.Time
}

// State is the engagement state of one room.
type State struct {
	CurrentHandlerID            string
	LastMessageSentAt           time.Time
	RecentMessages              []Entry
	PreviousContext             *models.ContextSnapshot
	SimilarityThresholdOverride *float64
}

func (s State) clone() State {
	out := s
	out.RecentMessages = append([]Entry(nil), s.RecentMessages...)
	if s.PreviousContext != nil {
		snap := *s.PreviousContext
		out.PreviousContext = &snap
	}
	if s.SimilarityThresholdOverride != nil {
		v := *s.SimilarityThresholdOverride
		out.SimilarityThresholdOverride = &v
	}
	return out
}

// LastMessage returns the newest entry, if any.
func (s State) LastMessage() (Entry, bool) {
	if len(s.RecentMessages) == 0 {
		return Entry{}, false
	}
	return s.RecentMessages[len(s.RecentMessages)-1], true
}

// Tail returns at most n of the newest entries, oldest first.
func (s State) Tail(n int) []Entry {
	if n <= 0 || len(s.RecentMessages) <= n {
		return s.RecentMessages
	}
	return s.RecentMessages[len(s.RecentMessages)-n:]
}

// Team answers the team questions CheckInterest needs.
type Team interface {
	IsLeader() bool
	IsSelf(id string) bool
	IsTeamMember(id string) bool
	HasKeywordRelevance(text string) bool
}

// Config holds the decay windows and history cap.
type Config struct {
	HardDecay         time.Duration `yaml:"hard_decay"`
	PartialDecay      time.Duration `yaml:"partial_decay"`
	MaxMessages       int           `yaml:"max_messages"`
	LeaderRecentCount int           `yaml:"leader_recent_count"`
}

// DefaultConfig returns the stock windows.
func DefaultConfig() Config {
	return Config{
		HardDecay:         5 * time.Minute,
		PartialDecay:      3 * time.Minute,
		MaxMessages:       50,
		LeaderRecentCount: 3,
	}
}

// Store maps room ids to State.
type Store struct {
	cfg   Config
	clock clock.Clock

	mu    sync.Mutex
	rooms map[string]*State
}

// NewStore creates an empty store. Zero config fields take defaults.
func NewStore(cfg Config, clk clock.Clock) *Store {
	def := DefaultConfig()
	if cfg.HardDecay <= 0 {
		cfg.HardDecay = def.HardDecay
	}
	if cfg.PartialDecay <= 0 {
		cfg.PartialDecay = def.PartialDecay
	}
	if cfg.PartialDecay > cfg.HardDecay {
		cfg.PartialDecay = cfg.HardDecay
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.LeaderRecentCount <= 0 {
		cfg.LeaderRecentCount = def.LeaderRecentCount
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{cfg: cfg, clock: clk, rooms: make(map[string]*State)}
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Get returns a copy of the room's state.
func (s *Store) Get(room string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[room]
	if !ok {
		return State{}, false
	}
	return st.clone(), true
}

// Upsert replaces the room's state. History beyond the cap is trimmed.
func (s *Store) Upsert(room string, st State) {
	st = st.clone()
	st.RecentMessages = s.trim(st.RecentMessages)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room] = &st
}

// Claim makes handler the room's current handler. An existing state keeps
// its history, context and threshold override and only moves forward to
// at; otherwise a fresh state is started at at.
func (s *Store) Claim(room, handler string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[room]; ok {
		st.CurrentHandlerID = handler
		if at.After(st.LastMessageSentAt) {
			st.LastMessageSentAt = at
		}
		return
	}
	s.rooms[room] = &State{CurrentHandlerID: handler, LastMessageSentAt: at}
}

// Clear drops the room's state.
func (s *Store) Clear(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, room)
}

// AppendMessage adds an entry to the room's history, evicting the oldest
// entries past the cap. It returns false when the room has no state.
func (s *Store) AppendMessage(room string, e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[room]
	if !ok {
		return false
	}
	st.RecentMessages = s.trim(append(st.RecentMessages, e))
	return true
}

// Touch moves LastMessageSentAt forward to t. Earlier times are ignored.
func (s *Store) Touch(room string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[room]; ok && t.After(st.LastMessageSentAt) {
		st.LastMessageSentAt = t
	}
}

// SetContext records the snapshot continuity scoring compares against.
func (s *Store) SetContext(room string, snap models.ContextSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[room]; ok {
		st.PreviousContext = &snap
	}
}

// SetHandler records the current handler without touching history.
func (s *Store) SetHandler(room, handler string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[room]; ok {
		st.CurrentHandlerID = handler
	}
}

// CheckInterest reports whether this agent is still engaged in room.
//
// Past the hard window the state is dropped. Between the partial and
// hard windows only keyword relevance of the last message keeps interest.
// Inside the partial window a leader gives up when teammates spoke
// recently about something it has no keywords for.
func (s *Store) CheckInterest(room string, team Team) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[room]
	if !ok {
		return false
	}

	last, _ := st.LastMessage()
	elapsed := s.clock.Now().Sub(st.LastMessageSentAt)

	if elapsed > s.cfg.HardDecay {
		delete(s.rooms, room)
		return false
	}
	if elapsed > s.cfg.PartialDecay {
		return team != nil && team.HasKeywordRelevance(last.Text)
	}

	if team != nil && team.IsLeader() && len(st.RecentMessages) > 0 && !team.HasKeywordRelevance(last.Text) {
		for _, m := range st.Tail(s.cfg.LeaderRecentCount) {
			if !team.IsSelf(m.ParticipantID) && team.IsTeamMember(m.ParticipantID) {
				delete(s.rooms, room)
				return false
			}
		}
	}

	return true
}

// Sweep drops every room whose state is past the hard window and returns
// how many were removed.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for room, st := range s.rooms {
		if now.Sub(st.LastMessageSentAt) > s.cfg.HardDecay {
			delete(s.rooms, room)
			removed++
		}
	}
	return removed
}

// Len returns the number of rooms with state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *Store) trim(msgs []Entry) []Entry {
	if len(msgs) > s.cfg.MaxMessages {
		return append([]Entry(nil), msgs[len(msgs)-s.cfg.MaxMessages:]...)
	}
	return msgs
}

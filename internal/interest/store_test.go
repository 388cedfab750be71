package interest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/aicq-agent/internal/clock"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTeam struct {
	self     string
	leader   bool
	members  map[string]bool
	keywords []string
}

func (f fakeTeam) IsLeader() bool              { return f.leader }
func (f fakeTeam) IsSelf(id string) bool       { return id == f.self }
func (f fakeTeam) IsTeamMember(id string) bool { return f.members[id] }
func (f fakeTeam) HasKeywordRelevance(text string) bool {
	for _, k := range f.keywords {
		if strings.Contains(strings.ToLower(text), k) {
			return true
		}
	}
	return false
}

func newTestStore() (*Store, *clock.FakeClock) {
	clk := clock.Fake(t0)
	return NewStore(DefaultConfig(), clk), clk
}

func TestAppendMessageTrimsOldestFirst(t *testing.T) {
	clk := clock.Fake(t0)
	s := NewStore(Config{MaxMessages: 3}, clk)
	s.Claim("room", "me", t0)

	for i := 0; i < 5; i++ {
		require.True(t, s.AppendMessage("room", Entry{ParticipantID: "u", Text: fmt.Sprint(i)}))
	}

	st, ok := s.Get("room")
	require.True(t, ok)
	require.Len(t, st.RecentMessages, 3)
	assert.Equal(t, "2", st.RecentMessages[0].Text)
	assert.Equal(t, "4", st.RecentMessages[2].Text)
}

func TestAppendMessageWithoutState(t *testing.T) {
	s, _ := newTestStore()
	assert.False(t, s.AppendMessage("nowhere", Entry{Text: "hi"}))
	assert.Equal(t, 0, s.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := newTestStore()
	s.Claim("room", "me", t0)
	s.AppendMessage("room", Entry{Text: "a"})

	st, _ := s.Get("room")
	st.RecentMessages[0].Text = "mutated"

	again, _ := s.Get("room")
	assert.Equal(t, "a", again.RecentMessages[0].Text)
}

func TestTouchIsMonotonic(t *testing.T) {
	s, _ := newTestStore()
	s.Claim("room", "me", t0)

	s.Touch("room", t0.Add(time.Minute))
	s.Touch("room", t0)

	st, _ := s.Get("room")
	assert.Equal(t, t0.Add(time.Minute), st.LastMessageSentAt)
}

func TestCheckInterestHardDecayClears(t *testing.T) {
	s, clk := newTestStore()
	team := fakeTeam{self: "me", keywords: []string{"deploy"}}
	s.Claim("room", "me", t0)
	s.AppendMessage("room", Entry{ParticipantID: "u", Text: "deploy it"})

	clk.Advance(5*time.Minute + time.Second)

	assert.False(t, s.CheckInterest("room", team))
	_, ok := s.Get("room")
	assert.False(t, ok)
}

func TestCheckInterestPartialDecayUsesKeywords(t *testing.T) {
	s, clk := newTestStore()
	team := fakeTeam{self: "me", keywords: []string{"deploy"}}
	s.Claim("room", "me", t0)
	s.AppendMessage("room", Entry{ParticipantID: "u", Text: "about the deploy"})
	s.Claim("other", "me", t0)
	s.AppendMessage("other", Entry{ParticipantID: "u", Text: "lunch?"})

	clk.Advance(4 * time.Minute)

	assert.True(t, s.CheckInterest("room", team))
	assert.False(t, s.CheckInterest("other", team))
	_, ok := s.Get("other")
	assert.True(t, ok, "partial decay does not clear state")
}

func TestCheckInterestLeaderYieldsToTeammates(t *testing.T) {
	s, clk := newTestStore()
	leader := fakeTeam{self: "lead", leader: true, members: map[string]bool{"lead": true, "mate": true}}
	s.Claim("room", "lead", t0)
	s.AppendMessage("room", Entry{ParticipantID: "u", Text: "question"})
	s.AppendMessage("room", Entry{ParticipantID: "mate", Text: "I've got this"})

	clk.Advance(10 * time.Second)

	assert.False(t, s.CheckInterest("room", leader))
	assert.Equal(t, 0, s.Len())
}

func TestCheckInterestLeaderKeepsOwnThread(t *testing.T) {
	s, _ := newTestStore()
	leader := fakeTeam{self: "lead", leader: true, members: map[string]bool{"lead": true, "mate": true}}
	s.Claim("room", "lead", t0)
	s.AppendMessage("room", Entry{ParticipantID: "lead", Text: "hello"})
	s.AppendMessage("room", Entry{ParticipantID: "u", Text: "hi"})

	assert.True(t, s.CheckInterest("room", leader))
}

func TestCheckInterestMissingRoom(t *testing.T) {
	s, _ := newTestStore()
	assert.False(t, s.CheckInterest("room", fakeTeam{}))
}

func TestHardDecayAcrossRooms(t *testing.T) {
	s, clk := newTestStore()
	team := fakeTeam{self: "me", keywords: []string{"x"}}
	for i := 0; i < 20; i++ {
		room := fmt.Sprintf("room-%d", i)
		s.Claim(room, "me", clk.Now())
		s.AppendMessage(room, Entry{ParticipantID: "u", Text: "x marks"})
		clk.Advance(time.Second)
	}

	clk.Advance(6 * time.Minute)

	for i := 0; i < 20; i++ {
		room := fmt.Sprintf("room-%d", i)
		assert.False(t, s.CheckInterest(room, team), room)
	}
	assert.Equal(t, 0, s.Len())
}

func TestSweep(t *testing.T) {
	s, clk := newTestStore()
	s.Claim("old", "me", t0)
	clk.Advance(4 * time.Minute)
	s.Claim("fresh", "me", clk.Now())
	clk.Advance(2 * time.Minute)

	assert.Equal(t, 1, s.Sweep())
	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestSetContextAndHandler(t *testing.T) {
	s, _ := newTestStore()
	s.Claim("room", "me", t0)
	s.SetContext("room", models.ContextSnapshot{Text: "prev", CapturedAt: t0})
	s.SetHandler("room", "mate")

	st, _ := s.Get("room")
	require.NotNil(t, st.PreviousContext)
	assert.Equal(t, "prev", st.PreviousContext.Text)
	assert.Equal(t, "mate", st.CurrentHandlerID)
}

func TestClaimKeepsExistingState(t *testing.T) {
	s, _ := newTestStore()
	s.Claim("room", "mate", t0)
	require.True(t, s.AppendMessage("room", Entry{ParticipantID: "lead", Text: "on it", SentAt: t0}))
	s.SetContext("room", models.ContextSnapshot{Text: "on it", CapturedAt: t0})
	override := 0.4
	st, _ := s.Get("room")
	st.SimilarityThresholdOverride = &override
	s.Upsert("room", st)

	s.Claim("room", "me", t0.Add(time.Second))
	st, ok := s.Get("room")
	require.True(t, ok)
	assert.Equal(t, "me", st.CurrentHandlerID)
	assert.Equal(t, t0.Add(time.Second), st.LastMessageSentAt)
	require.Len(t, st.RecentMessages, 1)
	assert.Equal(t, "lead", st.RecentMessages[0].ParticipantID)
	require.NotNil(t, st.PreviousContext)
	require.NotNil(t, st.SimilarityThresholdOverride)
	assert.Equal(t, 0.4, *st.SimilarityThresholdOverride)

	s.Claim("room", "me", time.Time{})
	st, _ = s.Get("room")
	assert.Equal(t, t0.Add(time.Second), st.LastMessageSentAt, "a claim never moves the timestamp back")
}

func TestNewStoreClampsPartialWindow(t *testing.T) {
	s := NewStore(Config{HardDecay: time.Minute, PartialDecay: time.Hour}, clock.Fake(t0))
	assert.Equal(t, time.Minute, s.Config().PartialDecay)
}

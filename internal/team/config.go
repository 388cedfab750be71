package team

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// DefaultCoordinationKeywords are phrases addressed to the whole team.
var DefaultCoordinationKeywords = []string{
	"team",
	"everyone",
	"all agents",
	"team update",
	"gm team",
	"hello team",
	"hey team",
	"hi team",
	"morning team",
	"evening team",
	"night team",
	"update team",
}

// Timing holds the jitter and recency settings of the hand-off protocol.
type Timing struct {
	TeamMemberDelay           time.Duration `yaml:"team_member_delay"`
	TeamMemberDelayMin        time.Duration `yaml:"team_member_delay_min"`
	TeamMemberDelayMax        time.Duration `yaml:"team_member_delay_max"`
	LeaderDelayMin            time.Duration `yaml:"leader_delay_min"`
	LeaderDelayMax            time.Duration `yaml:"leader_delay_max"`
	LeaderRecencyWindow       time.Duration `yaml:"leader_recency_window"`
	AfterLeaderResponseChance float64       `yaml:"after_leader_response_chance"`
}

// DefaultTiming returns the stock delays.
func DefaultTiming() Timing {
	return Timing{
		TeamMemberDelay:           1500 * time.Millisecond,
		TeamMemberDelayMin:        time.Second,
		TeamMemberDelayMax:        3 * time.Second,
		LeaderDelayMin:            2 * time.Second,
		LeaderDelayMax:            4 * time.Second,
		LeaderRecencyWindow:       3 * time.Second,
		AfterLeaderResponseChance: 0.5,
	}
}

// Config describes this agent's place in its team.
type Config struct {
	Enabled              bool
	SelfID               string
	SelfHandle           string
	LeaderID             string
	MemberIDs            []string
	Keywords             []string // this member's interest keywords
	CoordinationKeywords []string
	Timing               Timing

	// FollowUpThreshold is the similarity the leader needs between a new
	// message and its own last reply to stay relevant.
	FollowUpThreshold float64
	// InterestDecay bounds the age of the leader's last reply.
	InterestDecay time.Duration
	// RecentMessageCount is how far back hand-off checks look.
	RecentMessageCount int
}

func (c Config) withDefaults() Config {
	def := DefaultTiming()
	t := &c.Timing
	if t.TeamMemberDelay <= 0 {
		t.TeamMemberDelay = def.TeamMemberDelay
	}
	if t.TeamMemberDelayMin <= 0 {
		t.TeamMemberDelayMin = def.TeamMemberDelayMin
	}
	if t.TeamMemberDelayMax < t.TeamMemberDelayMin {
		t.TeamMemberDelayMax = max(def.TeamMemberDelayMax, t.TeamMemberDelayMin)
	}
	if t.LeaderDelayMin <= 0 {
		t.LeaderDelayMin = def.LeaderDelayMin
	}
	if t.LeaderDelayMax < t.LeaderDelayMin {
		t.LeaderDelayMax = max(def.LeaderDelayMax, t.LeaderDelayMin)
	}
	if t.LeaderRecencyWindow <= 0 {
		t.LeaderRecencyWindow = def.LeaderRecencyWindow
	}
	if t.AfterLeaderResponseChance <= 0 || t.AfterLeaderResponseChance > 1 {
		t.AfterLeaderResponseChance = def.AfterLeaderResponseChance
	}
	if c.CoordinationKeywords == nil {
		c.CoordinationKeywords = DefaultCoordinationKeywords
	}
	if c.FollowUpThreshold <= 0 {
		c.FollowUpThreshold = 0.4
	}
	if c.InterestDecay <= 0 {
		c.InterestDecay = 5 * time.Minute
	}
	if c.RecentMessageCount <= 0 {
		c.RecentMessageCount = 5
	}
	return c
}

// NormalizeID canonicalises an identity for comparison. Numeric ids have
// every non-digit character stripped, so "user-12345", "id:12345" and
// 12345 are the same identity. UUIDs compare in their canonical form
// instead, since stripping would collide distinct UUIDs. Ids without any
// digit compare case-insensitively.
func NormalizeID(id string) string {
	if u, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
		return u.String()
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, id)
	if digits == "" {
		return strings.ToLower(strings.TrimSpace(id))
	}
	return digits
}

// SameID compares two identities after normalisation.
func SameID(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeID(a) == NormalizeID(b)
}

// IsLeader reports whether selfID is the configured team leader.
func IsLeader(selfID string, cfg Config) bool {
	return cfg.Enabled && SameID(selfID, cfg.LeaderID)
}

// IsTeamMember reports whether candidateID belongs to the team.
func IsTeamMember(candidateID string, cfg Config) bool {
	if !cfg.Enabled {
		return false
	}
	for _, id := range cfg.MemberIDs {
		if SameID(candidateID, id) {
			return true
		}
	}
	return false
}

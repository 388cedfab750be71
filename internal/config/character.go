package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eldtechnologies/aicq-agent/internal/interest"
	"github.com/eldtechnologies/aicq-agent/internal/models"
	"github.com/eldtechnologies/aicq-agent/internal/team"
)

// Character is the identity and behaviour file of one agent.
type Character struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Handle string `yaml:"handle"`
	Bio    string `yaml:"bio"`
	Style  string `yaml:"style"`

	Rooms                []string `yaml:"rooms"`
	MentionsOnly         bool     `yaml:"mentions_only"`
	IgnoreBotMessages    bool     `yaml:"ignore_bot_messages"`
	IgnoreDirectMessages bool     `yaml:"ignore_direct_messages"`

	SimilarityThreshold *float64      `yaml:"similarity_threshold"`
	ContinuityWindow    time.Duration `yaml:"continuity_window"`

	Team     TeamSection     `yaml:"team"`
	Timing   team.Timing     `yaml:"timing"`
	Interest interest.Config `yaml:"interest"`
	Decision DecisionSection `yaml:"decision"`
}

// TeamSection configures team mode.
type TeamSection struct {
	Enabled              bool                `yaml:"enabled"`
	LeaderID             string              `yaml:"leader_id"`
	MemberIDs            []string            `yaml:"member_ids"`
	Keywords             map[string][]string `yaml:"keywords"`
	CoordinationKeywords []string            `yaml:"coordination_keywords"`
	FollowUpThreshold    float64             `yaml:"follow_up_threshold"`
	RecentMessageCount   int                 `yaml:"recent_message_count"`
}

// DecisionSection tunes the response decision.
type DecisionSection struct {
	CadenceCap         int `yaml:"cadence_cap"`
	ChatHistoryCount   int `yaml:"chat_history_count"`
	ConversationLength int `yaml:"conversation_length"`
}

var ErrInvalidCharacter = errors.New("invalid character file")

// LoadCharacter reads and validates the character file at path. Team
// configuration errors are logged and turn team mode off; any other
// problem is returned.
func LoadCharacter(path string, logger zerolog.Logger) (*Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCharacter(data, logger)
}

// ParseCharacter decodes and validates a character document.
func ParseCharacter(data []byte, logger zerolog.Logger) (*Character, error) {
	var c Character
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCharacter, err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	if err := c.validateTeam(); err != nil {
		logger.Warn().Err(err).Str("agent_id", c.ID).Msg("team configuration invalid, running solo")
		c.Team.Enabled = false
	}
	return &c, nil
}

func (c *Character) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCharacter)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCharacter)
	}
	if c.Handle == "" {
		c.Handle = strings.ToLower(strings.ReplaceAll(c.Name, " ", "_"))
	}
	c.Handle = strings.TrimPrefix(c.Handle, "@")
	if t := c.SimilarityThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%w: similarity_threshold %.2f outside [0,1]", ErrInvalidCharacter, *t)
	}
	return nil
}

func (c *Character) validateTeam() error {
	t := &c.Team
	if !t.Enabled {
		return nil
	}
	if t.LeaderID == "" {
		return &models.ConfigurationError{Field: "team.leader_id", Reason: "required in team mode"}
	}
	if len(t.MemberIDs) == 0 {
		return &models.ConfigurationError{Field: "team.member_ids", Reason: "required in team mode"}
	}
	if !team.IsTeamMember(c.ID, team.Config{Enabled: true, MemberIDs: t.MemberIDs}) {
		return &models.ConfigurationError{Field: "team.member_ids", Reason: "must include this agent's id"}
	}
	if !team.IsTeamMember(t.LeaderID, team.Config{Enabled: true, MemberIDs: t.MemberIDs}) {
		t.MemberIDs = append(t.MemberIDs, t.LeaderID)
	}
	return nil
}

// KeywordsFor returns the interest keywords configured for member id.
func (c *Character) KeywordsFor(id string) []string {
	for member, words := range c.Team.Keywords {
		if team.SameID(member, id) {
			return words
		}
	}
	return nil
}

// TeamConfig builds the arbiter configuration for this agent.
func (c *Character) TeamConfig() team.Config {
	return team.Config{
		Enabled:              c.Team.Enabled,
		SelfID:               c.ID,
		SelfHandle:           c.Handle,
		LeaderID:             c.Team.LeaderID,
		MemberIDs:            c.Team.MemberIDs,
		Keywords:             c.KeywordsFor(c.ID),
		CoordinationKeywords: c.Team.CoordinationKeywords,
		Timing:               c.Timing,
		FollowUpThreshold:    c.Team.FollowUpThreshold,
		InterestDecay:        c.Interest.HardDecay,
		RecentMessageCount:   c.Team.RecentMessageCount,
	}
}

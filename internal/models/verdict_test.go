package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		answer string
		want   Verdict
		ok     bool
	}{
		{"Result: [RESPOND]", VerdictRespond, true},
		{"[STOP]", VerdictStop, true},
		{"[ignore]", VerdictIgnore, true},
		{"I think RESPOND is right", VerdictRespond, true},
		{"stop.", VerdictStop, true},
		{"no idea", VerdictIgnore, false},
		{"", VerdictIgnore, false},
	}
	for _, c := range cases {
		got, ok := ParseVerdict(c.answer)
		assert.Equal(t, c.want, got, c.answer)
		assert.Equal(t, c.ok, ok, c.answer)
	}
}

func TestEventBody(t *testing.T) {
	assert.Equal(t, "hi", Event{Text: "hi", Caption: "cap"}.Body())
	assert.Equal(t, "cap", Event{Caption: "cap"}.Body())
	assert.True(t, Event{HasImage: true}.ImageOnly())
	assert.False(t, Event{HasImage: true, Caption: "look"}.ImageOnly())
}

func TestTransient(t *testing.T) {
	base := errors.New("boom")
	err := Transient("vote", base)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base)
	assert.Nil(t, Transient("vote", nil))
	assert.False(t, IsTransient(base))
}

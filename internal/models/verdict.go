package models

import "strings"

// Verdict is the outcome of a response decision.
type Verdict int

const (
	VerdictIgnore Verdict = iota
	VerdictRespond
	VerdictStop
)

func (v Verdict) String() string {
	switch v {
	case VerdictRespond:
		return "RESPOND"
	case VerdictStop:
		return "STOP"
	default:
		return "IGNORE"
	}
}

// ParseVerdict extracts a verdict from a model answer such as
// "Result: [RESPOND]". The bracketed form wins over bare words;
// anything unrecognised is IGNORE.
func ParseVerdict(answer string) (Verdict, bool) {
	upper := strings.ToUpper(answer)
	for _, v := range []Verdict{VerdictRespond, VerdictStop, VerdictIgnore} {
		if strings.Contains(upper, "["+v.String()+"]") {
			return v, true
		}
	}
	for _, field := range strings.FieldsFunc(upper, func(r rune) bool {
		return r < 'A' || r > 'Z'
	}) {
		switch field {
		case "RESPOND":
			return VerdictRespond, true
		case "STOP":
			return VerdictStop, true
		case "IGNORE":
			return VerdictIgnore, true
		}
	}
	return VerdictIgnore, false
}

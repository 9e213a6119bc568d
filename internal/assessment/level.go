package assessment

import (
	"fmt"
	"strings"
)

// Level is a learner's assessed mastery of a node.
type Level int

const (
	LevelUnknown Level = iota
	LevelBelowExpectation
	LevelAtExpectation
	LevelAboveExpectation
)

// AllLevels returns every level from lowest to highest, Unknown first.
func AllLevels() []Level {
	return []Level{LevelUnknown, LevelBelowExpectation, LevelAtExpectation, LevelAboveExpectation}
}

func (l Level) String() string {
	switch l {
	case LevelBelowExpectation:
		return "BelowExpectation"
	case LevelAtExpectation:
		return "AtExpectation"
	case LevelAboveExpectation:
		return "AboveExpectation"
	default:
		return "Unknown"
	}
}

// Known reports whether the level carries an actual assessment.
func (l Level) Known() bool {
	return l > LevelUnknown && l <= LevelAboveExpectation
}

// ParseLevel accepts "AtExpectation", "at_expectation", "at-expectation" and
// the short forms "below", "at", "above", "unknown" (case-insensitive).
func ParseLevel(s string) (Level, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	switch norm {
	case "unknown", "":
		return LevelUnknown, nil
	case "belowexpectation", "below":
		return LevelBelowExpectation, nil
	case "atexpectation", "at":
		return LevelAtExpectation, nil
	case "aboveexpectation", "above":
		return LevelAboveExpectation, nil
	}
	return LevelUnknown, fmt.Errorf("unknown assessment level: %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

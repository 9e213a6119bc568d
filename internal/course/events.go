package course

import (
	"strings"

	"github.com/abhisek/coursekit/internal/assessment"
)

// SurveyScore is a scored survey response: per concept, the indices of the
// questions answered correctly and incorrectly.
type SurveyScore struct {
	Concepts map[string]ConceptScore `yaml:"concepts" json:"concepts"`
}

// ConceptScore holds answered question indices for one concept.
type ConceptScore struct {
	Correct   []int `yaml:"correct" json:"correct"`
	Incorrect []int `yaml:"incorrect" json:"incorrect"`
}

// Lookup finds the score for a concept name, case-insensitively.
func (s SurveyScore) Lookup(concept string) (ConceptScore, bool) {
	if cs, ok := s.Concepts[concept]; ok {
		return cs, true
	}
	for name, cs := range s.Concepts {
		if strings.EqualFold(name, concept) {
			return cs, true
		}
	}
	return ConceptScore{}, false
}

// ConversationAssessment is one assessment reported by a conversation.
type ConversationAssessment struct {
	Concept    string           `yaml:"concept" json:"concept"`
	Level      assessment.Level `yaml:"level" json:"level"`
	Confidence float64          `yaml:"confidence" json:"confidence"`
}

// GradePassback is an LTI grade passback: one level for a set of concepts.
type GradePassback struct {
	Concepts []string         `yaml:"concepts" json:"concepts"`
	Level    assessment.Level `yaml:"level" json:"level"`
}

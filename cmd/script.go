package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/coursekit/internal/course"
)

// learnerScript is a scripted learner for the simulate command: the
// responses to give when the named objects are reached.
type learnerScript struct {
	Seed  uint64       `yaml:"seed"`
	Steps []scriptStep `yaml:"steps"`

	pending map[string][]scriptStep
}

type scriptStep struct {
	Object       string                          `yaml:"object"`
	Survey       *course.SurveyScore             `yaml:"survey,omitempty"`
	Recall       *course.SurveyScore             `yaml:"recall,omitempty"`
	Conversation []course.ConversationAssessment `yaml:"conversation,omitempty"`
	Grade        *course.GradePassback           `yaml:"grade,omitempty"`
}

func loadScript(path string) (*learnerScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read learner script: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (*learnerScript, error) {
	var s learnerScript
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse learner script: %w", err)
	}

	s.pending = make(map[string][]scriptStep)
	for i, step := range s.Steps {
		if step.Object == "" {
			return nil, fmt.Errorf("learner script step %d: object is required", i+1)
		}
		key := strings.ToLower(step.Object)
		s.pending[key] = append(s.pending[key], step)
	}
	return &s, nil
}

// next returns the next unused step for an object. Steps for the same
// object are used in order, once each.
func (s *learnerScript) next(object string) (scriptStep, bool) {
	if s == nil {
		return scriptStep{}, false
	}
	key := strings.ToLower(object)
	steps := s.pending[key]
	if len(steps) == 0 {
		return scriptStep{}, false
	}
	s.pending[key] = steps[1:]
	return steps[0], true
}

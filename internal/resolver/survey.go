package resolver

import (
	"context"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/logger"
)

// SurveyConfidence is the confidence given to levels derived from scored
// surveys.
const SurveyConfidence = 1.0

// EvaluateThresholds maps a correct-answer count to a level, checking the
// highest bar first. A zero above or at threshold means that level is unused.
// Anything that clears no bar is BelowExpectation.
func EvaluateThresholds(correct int, t course.ConceptThreshold) assessment.Level {
	if t.Above != 0 && correct >= t.Above {
		return assessment.LevelAboveExpectation
	}
	if t.At != 0 && correct >= t.At {
		return assessment.LevelAtExpectation
	}
	return assessment.LevelBelowExpectation
}

// Survey resolves scored survey responses.
type Survey struct {
	Target
}

// Resolve applies rules to score and returns the regenerated snapshot. A
// question answered correctly counts once however often its index is listed.
// Every rule's concept must have scoring data; otherwise a *ResourceError is
// returned and nothing is changed.
func (s *Survey) Resolve(ctx context.Context, score course.SurveyScore, rules []course.ConceptThreshold) (*assessment.PerformanceAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make([]int, len(rules))
	for i, rule := range rules {
		cs, ok := score.Lookup(rule.Concept)
		if !ok {
			return nil, &ResourceError{Concept: rule.Concept, Reason: "survey score has no scoring data for this concept"}
		}
		counts[i] = distinct(cs.Correct)
	}

	log := logger.OrNop(s.Log)
	err := s.Assessor.Batch(func(tx *assessment.Tx) error {
		for i, rule := range rules {
			id, ok := s.Concepts.Lookup(rule.Concept)
			if !ok {
				log.Warn("survey rule names an unknown concept", "concept", rule.Concept)
				continue
			}
			level := EvaluateThresholds(counts[i], rule)
			if _, err := s.apply(tx, id, rule.Concept, level, SurveyConfidence, SourceSurvey); err != nil {
				return err
			}
			log.Debug("survey assessed concept", "concept", rule.Concept, "correct", counts[i], "level", level)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Assessor.GeneratePerformanceAssessment(), nil
}

// distinct counts unique question indices.
func distinct(indices []int) int {
	seen := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		seen[i] = struct{}{}
	}
	return len(seen)
}

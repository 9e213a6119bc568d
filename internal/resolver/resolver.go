// Package resolver turns raw learner outcomes (survey scores, conversation
// assessments, LTI grade passbacks) into concept level updates.
package resolver

import (
	"errors"
	"fmt"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/logger"
)

// Update sources recorded on assessment changes.
const (
	SourceSurvey       = "survey"
	SourceConversation = "conversation"
	SourceLTI          = "lti"
)

// Assessor is the registry resolvers write to. *assessment.Proxy satisfies it.
type Assessor interface {
	Batch(fn func(tx *assessment.Tx) error) error
	GeneratePerformanceAssessment() *assessment.PerformanceAssessment
}

// ConceptIndex finds concept nodes by authored name. *hierarchy.Result
// satisfies it.
type ConceptIndex interface {
	Lookup(name string) (assessment.NodeID, bool)
	ConversationConcept(tx *assessment.Tx, name string) (assessment.NodeID, error)
}

// Target bundles what every resolver needs.
type Target struct {
	Assessor Assessor
	Concepts ConceptIndex
	Log      *logger.Logger
}

// ResourceError reports outcome data that lacks what a rule requires.
type ResourceError struct {
	Concept string
	Reason  string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error for concept %q: %s", e.Concept, e.Reason)
}

// apply sets a concept level inside tx. Read-only nodes are skipped with a
// warning and report false.
func (t Target) apply(tx *assessment.Tx, id assessment.NodeID, name string, level assessment.Level, confidence float64, source string) (bool, error) {
	err := tx.UpdateConcept(assessment.ConceptUpdate{
		ID:         id,
		Level:      level,
		Confidence: confidence,
		Source:     source,
	})
	if errors.Is(err, assessment.ErrReadOnlyNode) {
		logger.OrNop(t.Log).Warn("skipping update of aggregated concept", "concept", name, "source", source)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s update of %q: %w", source, name, err)
	}
	return true, nil
}

package resolver

import (
	"context"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/logger"
)

// DefaultMinAffectConfidence is the cutoff used when none is configured.
const DefaultMinAffectConfidence = 0.5

// Conversation resolves assessments reported by conversations.
type Conversation struct {
	Target
	// MinAffectConfidence is the lowest confidence that may change a level.
	MinAffectConfidence float64
}

// Resolve applies every assessment whose confidence is at least the cutoff.
// Concepts that are not part of the course are created under the
// conversation task. When nothing is applied the result is nil and no
// snapshot is generated.
func (c *Conversation) Resolve(ctx context.Context, items []course.ConversationAssessment) (*assessment.PerformanceAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.OrNop(c.Log)

	var accepted []course.ConversationAssessment
	for _, item := range items {
		// NaN never passes.
		if !(item.Confidence >= c.MinAffectConfidence) {
			log.Debug("ignoring low-confidence conversation assessment",
				"concept", item.Concept, "confidence", item.Confidence, "min", c.MinAffectConfidence)
			continue
		}
		accepted = append(accepted, item)
	}
	if len(accepted) == 0 {
		return nil, nil
	}

	applied := 0
	err := c.Assessor.Batch(func(tx *assessment.Tx) error {
		for _, item := range accepted {
			id, ok := c.Concepts.Lookup(item.Concept)
			if !ok {
				var err error
				if id, err = c.Concepts.ConversationConcept(tx, item.Concept); err != nil {
					return err
				}
			}
			ok, err := c.apply(tx, id, item.Concept, item.Level, item.Confidence, SourceConversation)
			if err != nil {
				return err
			}
			if ok {
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied == 0 {
		return nil, nil
	}
	return c.Assessor.GeneratePerformanceAssessment(), nil
}

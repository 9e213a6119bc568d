package resolver

import (
	"context"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/logger"
)

// LTIConfidence is the confidence given to levels passed back by an LTI tool.
const LTIConfidence = 1.0

// LTI resolves grade passbacks from external LTI tools.
type LTI struct {
	Target
}

// Resolve sets every known course concept in g to g.Level. Unknown names are
// skipped and never create nodes. It returns nil when nothing was updated.
func (l *LTI) Resolve(ctx context.Context, g course.GradePassback) (*assessment.PerformanceAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.OrNop(l.Log)

	applied := 0
	err := l.Assessor.Batch(func(tx *assessment.Tx) error {
		for _, name := range g.Concepts {
			id, ok := l.Concepts.Lookup(name)
			if !ok {
				log.Debug("lti passback names an unknown concept", "concept", name)
				continue
			}
			ok, err := l.apply(tx, id, name, g.Level, LTIConfidence, SourceLTI)
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
	return l.Assessor.GeneratePerformanceAssessment(), nil
}

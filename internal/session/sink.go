package session

import (
	"context"
	"time"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/progress"
	"github.com/abhisek/coursekit/internal/store"
)

// Session lifecycle actions passed to Sink.RecordSession.
const (
	ActionStart = store.ActionStart
	ActionEnd   = store.ActionEnd
)

// Sink receives the outbound payloads of a session.
type Sink interface {
	SaveSnapshot(ctx context.Context, sessionID string, pa *assessment.PerformanceAssessment) error
	RecordChange(ctx context.Context, sessionID string, ch assessment.Change) error
	RecordSession(ctx context.Context, sessionID, action string, c *course.Course) error
	ProgressReporter(sessionID string) progress.Reporter
}

type nopSink struct{}

func (nopSink) SaveSnapshot(context.Context, string, *assessment.PerformanceAssessment) error {
	return nil
}
func (nopSink) RecordChange(context.Context, string, assessment.Change) error { return nil }
func (nopSink) RecordSession(context.Context, string, string, *course.Course) error {
	return nil
}
func (nopSink) ProgressReporter(string) progress.Reporter {
	return progress.ReporterFunc(func(context.Context, progress.Report) error { return nil })
}

// StoreSink persists session payloads to a Store. Snapshots beyond the most
// recent keep are pruned after each save; keep <= 0 disables pruning.
type StoreSink struct {
	store *store.Store
	keep  int
}

// NewStoreSink returns a Sink backed by s.
func NewStoreSink(s *store.Store, keep int) *StoreSink {
	return &StoreSink{store: s, keep: keep}
}

func (k *StoreSink) SaveSnapshot(ctx context.Context, sessionID string, pa *assessment.PerformanceAssessment) error {
	repo := k.store.SnapshotRepo()
	err := repo.Save(ctx, &store.Snapshot{
		SessionID:  sessionID,
		Generation: pa.Generation,
		Timestamp:  pa.GeneratedAt,
		Data:       pa,
	})
	if err != nil {
		return err
	}
	if k.keep > 0 {
		return repo.Prune(ctx, sessionID, k.keep)
	}
	return nil
}

func (k *StoreSink) RecordChange(ctx context.Context, sessionID string, ch assessment.Change) error {
	return k.store.EventRepo().AppendChange(ctx, store.ChangeEventData{
		SessionID:  sessionID,
		NodeID:     int64(ch.NodeID),
		NodeName:   ch.Name,
		NodeKind:   ch.Kind.String(),
		From:       ch.From.String(),
		To:         ch.To.String(),
		Confidence: ch.Confidence,
		Source:     ch.Source,
		Timestamp:  ch.At,
	})
}

func (k *StoreSink) RecordSession(ctx context.Context, sessionID, action string, c *course.Course) error {
	return k.store.EventRepo().AppendSession(ctx, store.SessionEventData{
		SessionID:     sessionID,
		Action:        action,
		CourseName:    c.Name,
		CourseVersion: c.Version,
		Timestamp:     time.Now(),
	})
}

func (k *StoreSink) ProgressReporter(sessionID string) progress.Reporter {
	return k.store.ProgressReporter(sessionID)
}

package store

import (
	"context"

	"github.com/abhisek/coursekit/internal/progress"
)

// ProgressReporter returns a progress.Reporter that appends every report of
// the given session to the progress table.
func (s *Store) ProgressReporter(sessionID string) progress.Reporter {
	events := s.EventRepo()
	return progress.ReporterFunc(func(ctx context.Context, r progress.Report) error {
		return events.AppendProgress(ctx, ProgressEventData{
			SessionID: sessionID,
			Current:   r.Current,
			Max:       r.Max,
			Percent:   r.Percent,
			State:     r.State,
			Final:     r.Final,
			Timestamp: r.At,
		})
	})
}

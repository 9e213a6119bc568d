package store

import (
	"context"
	"time"

	"github.com/abhisek/coursekit/internal/assessment"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	SessionID string    // only this session ("" = all)
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	Before    int64     // sequence < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
}

// Snapshot is one stored performance assessment.
type Snapshot struct {
	ID         int
	Sequence   int64
	SessionID  string
	Generation int64
	Timestamp  time.Time
	Data       *assessment.PerformanceAssessment
}

// SnapshotRepo manages performance assessment snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot and assigns its sequence.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot of a session ("" = any
	// session), or nil if none exist.
	Latest(ctx context.Context, sessionID string) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots of a session
	// ("" = across all sessions).
	Prune(ctx context.Context, sessionID string, keep int) error
}

// ChangeEventData captures one assessment level change.
type ChangeEventData struct {
	SessionID  string
	NodeID     int64
	NodeName   string
	NodeKind   string
	From       string
	To         string
	Confidence float64
	Source     string
	Timestamp  time.Time
}

// ProgressEventData captures one progress report.
type ProgressEventData struct {
	SessionID string
	Current   int
	Max       int
	Percent   int
	State     string
	Final     bool
	Timestamp time.Time
}

// Session lifecycle actions.
const (
	ActionStart = "start"
	ActionEnd   = "end"
)

// SessionEventData captures the start or end of a course session.
type SessionEventData struct {
	SessionID     string
	Action        string
	CourseName    string
	CourseVersion string
	Timestamp     time.Time
}

// ChangeEvent is a stored ChangeEventData.
type ChangeEvent struct {
	Sequence int64
	ChangeEventData
}

// ProgressEvent is a stored ProgressEventData.
type ProgressEvent struct {
	Sequence int64
	ProgressEventData
}

// SessionEvent is a stored SessionEventData.
type SessionEvent struct {
	Sequence int64
	SessionEventData
}

// EventRepo provides append and query access to session events. Every
// append takes the next global sequence number.
type EventRepo interface {
	AppendChange(ctx context.Context, data ChangeEventData) error
	AppendProgress(ctx context.Context, data ProgressEventData) error
	AppendSession(ctx context.Context, data SessionEventData) error

	QueryChanges(ctx context.Context, opts QueryOpts) ([]ChangeEvent, error)
	QueryProgress(ctx context.Context, opts QueryOpts) ([]ProgressEvent, error)
	QuerySessions(ctx context.Context, opts QueryOpts) ([]SessionEvent, error)
}

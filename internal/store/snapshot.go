package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/coursekit/internal/assessment"
)

// snapshotRepo implements SnapshotRepo with ent SQL builders.
type snapshotRepo struct {
	s *Store
}

type snapshotRow struct {
	ID         int    `sql:"id"`
	Sequence   int64  `sql:"sequence"`
	SessionID  string `sql:"session_id"`
	Generation int64  `sql:"generation"`
	CreatedAt  int64  `sql:"created_at"`
	Data       string `sql:"data"`
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}

	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	snap.Sequence = seqNum

	insert := builder().Insert(SnapshotsTable).
		Columns("sequence", "session_id", "generation", "created_at", "data").
		Values(seqNum, snap.SessionID, snap.Generation, toNanos(snap.Timestamp), string(data))
	if err := r.s.write(ctx, insert); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, sessionID string) (*Snapshot, error) {
	sel := builder().Select("id", "sequence", "session_id", "generation", "created_at", "data").
		From(entsql.Table(SnapshotsTable)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1)
	if sessionID != "" {
		sel = sel.Where(entsql.EQ("session_id", sessionID))
	}

	var rows []snapshotRow
	if err := r.s.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToSnapshot(rows[0])
}

func (r *snapshotRepo) Prune(ctx context.Context, sessionID string, keep int) error {
	var scope []*entsql.Predicate
	if sessionID != "" {
		scope = append(scope, entsql.EQ("session_id", sessionID))
	}

	// Find the sequence threshold: the Nth most recent snapshot.
	sel := builder().Select("sequence").
		From(entsql.Table(SnapshotsTable)).
		OrderBy(entsql.Desc("sequence")).
		Offset(keep).
		Limit(1)
	if len(scope) > 0 {
		sel = sel.Where(entsql.And(scope...))
	}

	var rows []struct {
		Sequence int64 `sql:"sequence"`
	}
	if err := r.s.query(ctx, sel, &rows); err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}
	if len(rows) == 0 {
		return nil // fewer than keep snapshots exist
	}

	del := builder().Delete(SnapshotsTable).
		Where(entsql.And(append(scope, entsql.LTE("sequence", rows[0].Sequence))...))
	if err := r.s.write(ctx, del); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func rowToSnapshot(row snapshotRow) (*Snapshot, error) {
	var data assessment.PerformanceAssessment
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot data: %w", err)
	}
	return &Snapshot{
		ID:         row.ID,
		Sequence:   row.Sequence,
		SessionID:  row.SessionID,
		Generation: row.Generation,
		Timestamp:  fromNanos(row.CreatedAt),
		Data:       &data,
	}, nil
}

package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo with ent SQL builders.
type eventRepo struct {
	s *Store
}

func (r *eventRepo) AppendChange(ctx context.Context, data ChangeEventData) error {
	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	insert := builder().Insert(ChangesTable).
		Columns("sequence", "session_id", "node_id", "node_name", "node_kind",
			"from_level", "to_level", "confidence", "source", "created_at").
		Values(seqNum, data.SessionID, data.NodeID, data.NodeName, data.NodeKind,
			data.From, data.To, data.Confidence, data.Source, toNanos(data.Timestamp))
	if err := r.s.write(ctx, insert); err != nil {
		return fmt.Errorf("save change event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendProgress(ctx context.Context, data ProgressEventData) error {
	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	insert := builder().Insert(ProgressTable).
		Columns("sequence", "session_id", "current", "maximum", "percent", "state", "final", "created_at").
		Values(seqNum, data.SessionID, data.Current, data.Max, data.Percent, data.State, data.Final, toNanos(data.Timestamp))
	if err := r.s.write(ctx, insert); err != nil {
		return fmt.Errorf("save progress event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendSession(ctx context.Context, data SessionEventData) error {
	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	insert := builder().Insert(SessionsTable).
		Columns("sequence", "session_id", "action", "course_name", "course_version", "created_at").
		Values(seqNum, data.SessionID, data.Action, data.CourseName, data.CourseVersion, toNanos(data.Timestamp))
	if err := r.s.write(ctx, insert); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

type changeRow struct {
	Sequence   int64   `sql:"sequence"`
	SessionID  string  `sql:"session_id"`
	NodeID     int64   `sql:"node_id"`
	NodeName   string  `sql:"node_name"`
	NodeKind   string  `sql:"node_kind"`
	FromLevel  string  `sql:"from_level"`
	ToLevel    string  `sql:"to_level"`
	Confidence float64 `sql:"confidence"`
	Source     string  `sql:"source"`
	CreatedAt  int64   `sql:"created_at"`
}

func (r *eventRepo) QueryChanges(ctx context.Context, opts QueryOpts) ([]ChangeEvent, error) {
	sel := filtered(builder().Select("sequence", "session_id", "node_id", "node_name", "node_kind",
		"from_level", "to_level", "confidence", "source", "created_at").
		From(entsql.Table(ChangesTable)), opts)

	var rows []changeRow
	if err := r.s.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query change events: %w", err)
	}
	out := make([]ChangeEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, ChangeEvent{
			Sequence: row.Sequence,
			ChangeEventData: ChangeEventData{
				SessionID:  row.SessionID,
				NodeID:     row.NodeID,
				NodeName:   row.NodeName,
				NodeKind:   row.NodeKind,
				From:       row.FromLevel,
				To:         row.ToLevel,
				Confidence: row.Confidence,
				Source:     row.Source,
				Timestamp:  fromNanos(row.CreatedAt),
			},
		})
	}
	return out, nil
}

type progressRow struct {
	Sequence  int64  `sql:"sequence"`
	SessionID string `sql:"session_id"`
	Current   int    `sql:"current"`
	Maximum   int    `sql:"maximum"`
	Percent   int    `sql:"percent"`
	State     string `sql:"state"`
	Final     bool   `sql:"final"`
	CreatedAt int64  `sql:"created_at"`
}

func (r *eventRepo) QueryProgress(ctx context.Context, opts QueryOpts) ([]ProgressEvent, error) {
	sel := filtered(builder().Select("sequence", "session_id", "current", "maximum", "percent", "state", "final", "created_at").
		From(entsql.Table(ProgressTable)), opts)

	var rows []progressRow
	if err := r.s.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query progress events: %w", err)
	}
	out := make([]ProgressEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, ProgressEvent{
			Sequence: row.Sequence,
			ProgressEventData: ProgressEventData{
				SessionID: row.SessionID,
				Current:   row.Current,
				Max:       row.Maximum,
				Percent:   row.Percent,
				State:     row.State,
				Final:     row.Final,
				Timestamp: fromNanos(row.CreatedAt),
			},
		})
	}
	return out, nil
}

type sessionRow struct {
	Sequence      int64  `sql:"sequence"`
	SessionID     string `sql:"session_id"`
	Action        string `sql:"action"`
	CourseName    string `sql:"course_name"`
	CourseVersion string `sql:"course_version"`
	CreatedAt     int64  `sql:"created_at"`
}

func (r *eventRepo) QuerySessions(ctx context.Context, opts QueryOpts) ([]SessionEvent, error) {
	sel := filtered(builder().Select("sequence", "session_id", "action", "course_name", "course_version", "created_at").
		From(entsql.Table(SessionsTable)), opts)

	var rows []sessionRow
	if err := r.s.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	out := make([]SessionEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, SessionEvent{
			Sequence: row.Sequence,
			SessionEventData: SessionEventData{
				SessionID:     row.SessionID,
				Action:        row.Action,
				CourseName:    row.CourseName,
				CourseVersion: row.CourseVersion,
				Timestamp:     fromNanos(row.CreatedAt),
			},
		})
	}
	return out, nil
}

// filtered applies opts to sel and orders by sequence.
func filtered(sel *entsql.Selector, opts QueryOpts) *entsql.Selector {
	var preds []*entsql.Predicate
	if opts.SessionID != "" {
		preds = append(preds, entsql.EQ("session_id", opts.SessionID))
	}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", opts.From.UnixNano()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("created_at", opts.To.UnixNano()))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	sel = sel.OrderBy("sequence")
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	return sel
}

package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	SnapshotsTable = "assessment_snapshots"
	ChangesTable   = "assessment_changes"
	ProgressTable  = "progress_reports"
	SessionsTable  = "session_events"
)

// Timestamps are stored as Unix nanoseconds.

var (
	snapshotColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "session_id", Type: field.TypeString},
		{Name: "generation", Type: field.TypeInt64},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "data", Type: field.TypeString},
	}
	snapshotTable = &schema.Table{
		Name:       SnapshotsTable,
		Columns:    snapshotColumns,
		PrimaryKey: []*schema.Column{snapshotColumns[0]},
		Indexes: []*schema.Index{
			{Name: "snapshot_session_sequence", Columns: []*schema.Column{snapshotColumns[2], snapshotColumns[1]}},
		},
	}

	changeColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "session_id", Type: field.TypeString},
		{Name: "node_id", Type: field.TypeInt64},
		{Name: "node_name", Type: field.TypeString},
		{Name: "node_kind", Type: field.TypeString},
		{Name: "from_level", Type: field.TypeString},
		{Name: "to_level", Type: field.TypeString},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "source", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeInt64},
	}
	changeTable = &schema.Table{
		Name:       ChangesTable,
		Columns:    changeColumns,
		PrimaryKey: []*schema.Column{changeColumns[0]},
		Indexes: []*schema.Index{
			{Name: "change_session_sequence", Columns: []*schema.Column{changeColumns[2], changeColumns[1]}},
		},
	}

	progressColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "session_id", Type: field.TypeString},
		{Name: "current", Type: field.TypeInt},
		{Name: "maximum", Type: field.TypeInt},
		{Name: "percent", Type: field.TypeInt},
		{Name: "state", Type: field.TypeString},
		{Name: "final", Type: field.TypeBool},
		{Name: "created_at", Type: field.TypeInt64},
	}
	progressTable = &schema.Table{
		Name:       ProgressTable,
		Columns:    progressColumns,
		PrimaryKey: []*schema.Column{progressColumns[0]},
		Indexes: []*schema.Index{
			{Name: "progress_session_sequence", Columns: []*schema.Column{progressColumns[2], progressColumns[1]}},
		},
	}

	sessionColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "session_id", Type: field.TypeString},
		{Name: "action", Type: field.TypeString},
		{Name: "course_name", Type: field.TypeString},
		{Name: "course_version", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeInt64},
	}
	sessionTable = &schema.Table{
		Name:       SessionsTable,
		Columns:    sessionColumns,
		PrimaryKey: []*schema.Column{sessionColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_event_session", Columns: []*schema.Column{sessionColumns[2]}},
		},
	}

	tables = []*schema.Table{snapshotTable, changeTable, progressTable, sessionTable}
)

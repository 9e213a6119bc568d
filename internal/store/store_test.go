package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAssessment(gen int64) *assessment.PerformanceAssessment {
	return &assessment.PerformanceAssessment{
		Generation: gen,
		Tasks: []assessment.NodeSnapshot{{
			ID:    1,
			Name:  "Course Concepts",
			Kind:  assessment.KindTask,
			Level: assessment.LevelAtExpectation,
			Children: []assessment.NodeSnapshot{{
				ID:         2,
				Name:       "Azimuth",
				Kind:       assessment.KindConcept,
				Level:      assessment.LevelAtExpectation,
				Confidence: 0.8,
			}},
		}},
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range []string{SnapshotsTable, ChangesTable, ProgressTable, SessionsTable, "global_sequence"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestSnapshotSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	// No snapshot yet.
	snap, err := repo.Latest(ctx, "")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot when none exist")
	}

	now := time.Now().UTC().Truncate(time.Second)
	in := &Snapshot{SessionID: "s1", Generation: 3, Timestamp: now, Data: testAssessment(3)}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if in.Sequence == 0 {
		t.Error("save did not assign a sequence")
	}

	snap, err = repo.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.Generation != 3 {
		t.Errorf("generation = %d, want 3", snap.Generation)
	}
	if !snap.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", snap.Timestamp, now)
	}
	node, ok := snap.Data.Find("azimuth")
	if !ok {
		t.Fatal("stored snapshot lost the Azimuth node")
	}
	if node.Level != assessment.LevelAtExpectation || node.Confidence != 0.8 {
		t.Errorf("azimuth = %v/%v, want AtExpectation/0.8", node.Level, node.Confidence)
	}

	other, err := repo.Latest(ctx, "s2")
	if err != nil {
		t.Fatalf("latest other session: %v", err)
	}
	if other != nil {
		t.Error("expected no snapshot for an unknown session")
	}
}

func TestSnapshotLatestReturnsNewest(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := repo.Save(ctx, &Snapshot{SessionID: "s1", Generation: int64(i), Data: testAssessment(int64(i))}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	snap, err := repo.Latest(ctx, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.Generation != 3 {
		t.Errorf("generation = %d, want 3", snap.Generation)
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestSnapshotPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		if err := repo.Save(ctx, &Snapshot{SessionID: "s1", Generation: int64(i), Data: testAssessment(int64(i))}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	if err := repo.Prune(ctx, "", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n := countRows(t, s, SnapshotsTable); n != 5 {
		t.Errorf("remaining snapshots = %d, want 5", n)
	}

	snap, err := repo.Latest(ctx, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.Generation != 7 {
		t.Errorf("latest generation = %d, want 7", snap.Generation)
	}
}

func TestSnapshotPruneWithFewerThanKeep(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := repo.Save(ctx, &Snapshot{SessionID: "s1", Generation: int64(i), Data: testAssessment(int64(i))}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	if err := repo.Prune(ctx, "", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n := countRows(t, s, SnapshotsTable); n != 2 {
		t.Errorf("remaining snapshots = %d, want 2", n)
	}
}

func TestSnapshotPruneIsPerSession(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	if err := repo.Save(ctx, &Snapshot{SessionID: "a", Generation: 1, Data: testAssessment(1)}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := repo.Save(ctx, &Snapshot{SessionID: "b", Generation: int64(i), Data: testAssessment(int64(i))}); err != nil {
			t.Fatalf("save b %d: %v", i, err)
		}
		if err := repo.Prune(ctx, "b", 2); err != nil {
			t.Fatalf("prune b %d: %v", i, err)
		}
	}

	snap, err := repo.Latest(ctx, "a")
	if err != nil {
		t.Fatalf("latest a: %v", err)
	}
	if snap == nil || snap.Generation != 1 {
		t.Fatalf("latest a = %+v, want generation 1", snap)
	}
	if n := countRows(t, s, SnapshotsTable); n != 3 {
		t.Errorf("remaining snapshots = %d, want 3 (1 for a, 2 for b)", n)
	}
	snap, err = repo.Latest(ctx, "b")
	if err != nil {
		t.Fatalf("latest b: %v", err)
	}
	if snap.Generation != 3 {
		t.Errorf("latest b generation = %d, want 3", snap.Generation)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()
	ctx := context.Background()

	sc, err := newSequenceCounter(db)
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestEventsShareSequence(t *testing.T) {
	s := openTestStore(t)
	events := s.EventRepo()
	ctx := context.Background()

	if err := events.AppendSession(ctx, SessionEventData{SessionID: "s1", Action: ActionStart, CourseName: "Land Nav", CourseVersion: "v1.2.0"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := events.AppendChange(ctx, ChangeEventData{
		SessionID: "s1", NodeID: 5, NodeName: "Azimuth", NodeKind: "concept",
		From: "Unknown", To: "AboveExpectation", Confidence: 1, Source: "survey",
	}); err != nil {
		t.Fatalf("append change: %v", err)
	}
	if err := events.AppendChange(ctx, ChangeEventData{SessionID: "s2", NodeID: 5, NodeName: "Azimuth"}); err != nil {
		t.Fatalf("append change: %v", err)
	}
	if err := events.AppendProgress(ctx, ProgressEventData{SessionID: "s1", Current: 2, Max: 6, Percent: 33, State: "in_progress"}); err != nil {
		t.Fatalf("append progress: %v", err)
	}

	sessions, err := events.QuerySessions(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	changes, err := events.QueryChanges(ctx, QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("query changes: %v", err)
	}
	reports, err := events.QueryProgress(ctx, QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("query progress: %v", err)
	}

	if len(sessions) != 1 || len(changes) != 1 || len(reports) != 1 {
		t.Fatalf("got %d sessions, %d changes, %d reports; want 1 each", len(sessions), len(changes), len(reports))
	}
	if sessions[0].Sequence != 1 || changes[0].Sequence != 2 || reports[0].Sequence != 4 {
		t.Errorf("sequences = %d, %d, %d; want 1, 2, 4", sessions[0].Sequence, changes[0].Sequence, reports[0].Sequence)
	}
	if changes[0].To != "AboveExpectation" || changes[0].Source != "survey" {
		t.Errorf("change = %+v", changes[0].ChangeEventData)
	}
	if reports[0].Max != 6 || reports[0].Final {
		t.Errorf("report = %+v", reports[0].ProgressEventData)
	}
}

func TestQueryOptsFilters(t *testing.T) {
	s := openTestStore(t)
	events := s.EventRepo()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := events.AppendChange(ctx, ChangeEventData{SessionID: "s1", NodeID: int64(i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	tests := []struct {
		name string
		opts QueryOpts
		want []int64
	}{
		{"all", QueryOpts{}, []int64{1, 2, 3, 4, 5}},
		{"after", QueryOpts{After: 3}, []int64{4, 5}},
		{"before", QueryOpts{Before: 3}, []int64{1, 2}},
		{"limit", QueryOpts{Limit: 2}, []int64{1, 2}},
		{"window", QueryOpts{After: 1, Before: 5, Limit: 2}, []int64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := events.QueryChanges(ctx, tt.opts)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			var seqs []int64
			for _, e := range got {
				seqs = append(seqs, e.Sequence)
			}
			if fmt.Sprint(seqs) != fmt.Sprint(tt.want) {
				t.Errorf("sequences = %v, want %v", seqs, tt.want)
			}
		})
	}
}

func TestProgressReporter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rep := s.ProgressReporter("s1")
	if err := rep.ReportProgress(ctx, progress.Report{Current: 6, Max: 6, Percent: 100, State: "ended", Final: true}); err != nil {
		t.Fatalf("report: %v", err)
	}

	reports, err := s.EventRepo().QueryProgress(ctx, QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("query progress: %v", err)
	}
	if len(reports) != 1 || !reports[0].Final || reports[0].Percent != 100 {
		t.Errorf("reports = %+v", reports)
	}
}

func TestDefaultDBPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	want := dir + "/nested/course.db"
	t.Setenv("COURSEKIT_DB", want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default db path: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDefaultDBPathXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COURSEKIT_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default db path: %v", err)
	}
	if want := dir + "/coursekit/coursekit.db"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

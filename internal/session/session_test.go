package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/config"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/gating"
	"github.com/abhisek/coursekit/internal/progress"
	"github.com/abhisek/coursekit/internal/store"
)

type reportLog struct {
	mu      sync.Mutex
	reports []progress.Report
}

func (r *reportLog) ReportProgress(_ context.Context, rep progress.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

func (r *reportLog) currents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, rep := range r.reports {
		out = append(out, rep.Current)
	}
	return out
}

func loadSample(t *testing.T) *course.Course {
	t.Helper()
	c, err := course.Load("../course/testdata/land-navigation.yaml")
	require.NoError(t, err)
	return c
}

func newSession(t *testing.T, c *course.Course, opts Options) *Session {
	t.Helper()
	s, err := New(context.Background(), c, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// walk calls Next until the course ends and returns the object names seen.
func walk(t *testing.T, s *Session) []string {
	t.Helper()
	var names []string
	for i := 0; i < 50; i++ {
		obj, err := s.Next(context.Background())
		if errors.Is(err, progress.ErrNoMoreObjects) {
			return names
		}
		require.NoError(t, err)
		names = append(names, obj.Name)
	}
	t.Fatal("course did not end")
	return nil
}

func score(correct map[string]int) course.SurveyScore {
	s := course.SurveyScore{Concepts: map[string]course.ConceptScore{}}
	for name, n := range correct {
		var cs course.ConceptScore
		for i := 0; i < n; i++ {
			cs.Correct = append(cs.Correct, i)
		}
		s.Concepts[name] = cs
	}
	return s
}

func TestSessionStandardPath(t *testing.T) {
	reports := &reportLog{}
	s := newSession(t, loadSample(t), Options{Reporters: []progress.Reporter{reports}})

	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Gating.OK())
	assert.Equal(t, 6, s.Progress().Max())

	names := walk(t, s)
	assert.Equal(t, []string{
		"Welcome",
		"Pre-test",
		"Map Reading Courseflow",
		"Compass primer",
		"Compass Lesson",
		"Field Exercise",
		"After Action Review",
	}, names)

	assert.Equal(t, progress.StateEnded, s.Progress().State())
	assert.Equal(t, 100, s.Progress().Percent())
	assert.Equal(t, []int{0, 1, 2, 3, 3, 3, 4, 5, 6}, reports.currents())
	assert.True(t, reports.reports[len(reports.reports)-1].Final)

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, progress.ErrNoMoreObjects)
	assert.Len(t, reports.reports, 9, "no reports after the final one")
}

func TestSessionLearnerCentricBranch(t *testing.T) {
	s := newSession(t, loadSample(t), Options{})
	ctx := context.Background()

	for _, want := range []string{"Welcome", "Pre-test"} {
		obj, err := s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, obj.Name)
	}
	obj, _ := s.Progress().Current()
	pa, err := s.ResolveSurvey(ctx, score(map[string]int{"Grid Coordinates": 3, "Azimuth": 0}), obj.Survey.Thresholds)
	require.NoError(t, err)
	require.NotNil(t, pa)

	assert.Equal(t, assessment.LevelAboveExpectation, s.Level("grid coordinates"))
	assert.Equal(t, assessment.LevelBelowExpectation, s.Level("Azimuth"))
	assert.Equal(t, assessment.LevelUnknown, s.Level("Bearing"))
	assert.Same(t, pa, s.Latest())

	names := walk(t, s)
	assert.Equal(t, []string{
		"Map Reading Courseflow",
		"Compass Courseflow",
		"Field Exercise",
		"After Action Review",
	}, names)
}

func TestSessionRecallRemediation(t *testing.T) {
	s := newSession(t, loadSample(t), Options{})
	ctx := context.Background()

	var cf *course.Courseflow
	for cf == nil {
		obj, err := s.Next(ctx)
		require.NoError(t, err)
		cf = obj.Courseflow
	}

	_, inserted, err := s.ResolveRecall(ctx, cf, score(map[string]int{"Grid Coordinates": 0, "Contour Lines": 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 6, s.Progress().Max(), "remediation never raises the maximum")

	obj, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grid coordinates refresher", obj.Name)
	assert.Equal(t, course.KindRemediation, obj.Kind)
	require.NotNil(t, obj.Content)
	assert.True(t, obj.Content.Tagged("Grid Coordinates"))

	cur, _ := s.Progress().Counts()
	assert.Equal(t, 2, cur, "leaving the courseflow is absorbed by the inserted object")
}

func TestSessionRemediateNothingBelow(t *testing.T) {
	s := newSession(t, loadSample(t), Options{})

	n, err := s.Remediate(&course.Courseflow{
		Concepts:    []string{"Contour Lines"},
		Remediation: course.Remediation{Enabled: true, Content: []course.ContentItem{{Name: "x", Concepts: []string{"Contour Lines"}}}},
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Remediate(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionRejectsFatalCourse(t *testing.T) {
	c := &course.Course{
		Name:     "Broken",
		Concepts: course.ConceptSpec{List: []string{"A"}},
		Objects: []course.Object{{
			Name: "Split",
			Kind: course.KindBranch,
			Branch: &course.Branch{
				ID:     "split",
				Policy: course.PolicyCustomPercent,
				Paths:  []course.Path{{Name: "only", Percent: 50}},
			},
		}},
	}
	_, err := New(context.Background(), c, Options{})
	require.Error(t, err)
	var cfgErr *course.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Detail, "malformed path distribution")
}

func TestSessionPathEndsCourse(t *testing.T) {
	c := &course.Course{
		Name:     "Short",
		Concepts: course.ConceptSpec{List: []string{"A"}},
		Objects: []course.Object{
			{
				Name: "Gate",
				Kind: course.KindBranch,
				Branch: &course.Branch{
					ID:     "gate",
					Policy: course.PolicyBalanced,
					Paths: []course.Path{{
						Name:       "exit",
						EndsCourse: true,
						Objects:    []course.Object{{Name: "Goodbye", Kind: course.KindGuidance}},
					}},
				},
			},
			{Name: "Never", Kind: course.KindGuidance},
		},
	}
	s := newSession(t, c, Options{})

	require.Len(t, s.Gating.Issues, 1)
	assert.Equal(t, gating.SeverityWarning, s.Gating.Issues[0].Severity)

	assert.Equal(t, []string{"Goodbye"}, walk(t, s))
	assert.Equal(t, progress.StateEnded, s.Progress().State())
	assert.Equal(t, 100, s.Progress().Percent())
}

func TestSessionNestedBranchInsideEndingPath(t *testing.T) {
	guide := func(name string) course.Object { return course.Object{Name: name, Kind: course.KindGuidance} }
	inner := course.Object{
		Name: "Inner",
		Kind: course.KindBranch,
		Branch: &course.Branch{
			ID:     "inner",
			Policy: course.PolicyBalanced,
			Paths:  []course.Path{{Name: "only", Objects: []course.Object{guide("A"), guide("B")}}},
		},
	}
	c := &course.Course{
		Name:     "Nested",
		Concepts: course.ConceptSpec{List: []string{"A"}},
		Objects: []course.Object{
			{
				Name: "Outer",
				Kind: course.KindBranch,
				Branch: &course.Branch{
					ID:     "outer",
					Policy: course.PolicyBalanced,
					Paths: []course.Path{{
						Name:       "exit",
						EndsCourse: true,
						Objects:    []course.Object{inner, guide("C")},
					}},
				},
			},
			guide("Never"),
		},
	}
	s := newSession(t, c, Options{})
	assert.Equal(t, []string{"A", "B", "C"}, walk(t, s))
}

func TestSessionQueuedUpdates(t *testing.T) {
	s := newSession(t, loadSample(t), Options{})
	ctx := context.Background()
	first := s.Latest()
	require.NotNil(t, first)

	require.NoError(t, s.SubmitConversation(ctx, []course.ConversationAssessment{
		{Concept: "Azimuth", Level: assessment.LevelAtExpectation, Confidence: 0.9},
		{Concept: "Declination", Level: assessment.LevelBelowExpectation, Confidence: 0.1},
	}))
	require.NoError(t, s.SubmitGrade(ctx, course.GradePassback{
		Concepts: []string{"Contour Lines"},
		Level:    assessment.LevelAboveExpectation,
	}))

	require.NoError(t, s.Close(ctx))

	assert.Equal(t, assessment.LevelAtExpectation, s.Level("Azimuth"))
	assert.Equal(t, assessment.LevelUnknown, s.Level("Declination"))
	assert.Equal(t, assessment.LevelAboveExpectation, s.Level("Contour Lines"))
	assert.Greater(t, s.Latest().Generation, first.Generation)
	assert.Equal(t, progress.StateEnded, s.Progress().State())

	err := s.SubmitGrade(ctx, course.GradePassback{Concepts: []string{"Azimuth"}, Level: assessment.LevelAboveExpectation})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close(ctx))
}

func TestSessionConversationCreatesConcepts(t *testing.T) {
	s := newSession(t, loadSample(t), Options{})

	pa, err := s.ResolveConversation(context.Background(), []course.ConversationAssessment{
		{Concept: "Terrain Association", Level: assessment.LevelAtExpectation, Confidence: 0.8},
	})
	require.NoError(t, err)
	require.NotNil(t, pa)

	node, ok := pa.Find("Terrain Association")
	require.True(t, ok)
	assert.Equal(t, assessment.LevelAtExpectation, node.Level)
	assert.Len(t, s.Proxy().TaskIDs(), 2)

	pa, err = s.ResolveConversation(context.Background(), []course.ConversationAssessment{
		{Concept: "Azimuth", Level: assessment.LevelAtExpectation, Confidence: 0.2},
	})
	require.NoError(t, err)
	assert.Nil(t, pa)
}

func TestSessionHonorsZeroAffectCutoff(t *testing.T) {
	ctx := context.Background()
	low := []course.ConversationAssessment{{Concept: "Azimuth", Level: assessment.LevelAtExpectation, Confidence: 0.1}}

	s := newSession(t, loadSample(t), Options{Config: config.SessionConfig{
		MinAffectConfidence: 0,
		QueueSize:           8,
		DrainTimeout:        time.Second,
	}})
	pa, err := s.ResolveConversation(ctx, low)
	require.NoError(t, err)
	require.NotNil(t, pa)
	assert.Equal(t, assessment.LevelAtExpectation, s.Level("Azimuth"))

	defaults := newSession(t, loadSample(t), Options{})
	pa, err = defaults.ResolveConversation(ctx, low)
	require.NoError(t, err)
	assert.Nil(t, pa, "the default cutoff is %v", config.DefaultConfig().Session.MinAffectConfidence)
	assert.Equal(t, assessment.LevelUnknown, defaults.Level("Azimuth"))
}

func TestQueueFull(t *testing.T) {
	q := newQueue(1, time.Second, nil)
	block := make(chan struct{})
	started := make(chan struct{})
	ctx := context.Background()

	require.NoError(t, q.submit(ctx, "test", func(context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, q.submit(ctx, "test", func(context.Context) error { return nil }))
	assert.ErrorIs(t, q.submit(ctx, "test", func(context.Context) error { return nil }), ErrQueueFull)

	close(block)
	assert.True(t, q.close(ctx))
	assert.False(t, q.close(ctx))
}

func TestStoreSink(t *testing.T) {
	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	s, err := New(ctx, loadSample(t), Options{Sink: NewStoreSink(st, 2)})
	require.NoError(t, err)

	_, err = s.ResolveSurvey(ctx, score(map[string]int{"Grid Coordinates": 3, "Azimuth": 0}), []course.ConceptThreshold{
		{Concept: "Grid Coordinates", Above: 3, At: 2},
		{Concept: "Azimuth", Above: 2},
	})
	require.NoError(t, err)
	_, err = s.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	events := st.EventRepo()
	sessions, err := events.QuerySessions(ctx, store.QueryOpts{SessionID: s.ID})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, store.ActionStart, sessions[0].Action)
	assert.Equal(t, store.ActionEnd, sessions[1].Action)
	assert.Equal(t, "Land Navigation Fundamentals", sessions[0].CourseName)

	changes, err := events.QueryChanges(ctx, store.QueryOpts{SessionID: s.ID})
	require.NoError(t, err)
	var azimuth *store.ChangeEvent
	for i := range changes {
		if changes[i].NodeName == "Azimuth" {
			azimuth = &changes[i]
		}
	}
	require.NotNil(t, azimuth)
	assert.Equal(t, "Unknown", azimuth.From)
	assert.Equal(t, "BelowExpectation", azimuth.To)
	assert.Equal(t, "survey", azimuth.Source)

	reports, err := events.QueryProgress(ctx, store.QueryOpts{SessionID: s.ID})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.False(t, reports[0].Final)
	assert.True(t, reports[1].Final)
	assert.Equal(t, 6, reports[1].Current)

	snap, err := st.SnapshotRepo().Latest(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, s.Latest().Generation, snap.Generation)
	node, ok := snap.Data.Find("Azimuth")
	require.True(t, ok)
	assert.Equal(t, assessment.LevelBelowExpectation, node.Level)
}

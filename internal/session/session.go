// Package session owns everything that lives for one learner's run through
// a course: the assessment registry, the concept hierarchy, sequencing
// progress and the resolvers that feed learner outcomes into the registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/config"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/gating"
	"github.com/abhisek/coursekit/internal/hierarchy"
	"github.com/abhisek/coursekit/internal/logger"
	"github.com/abhisek/coursekit/internal/progress"
	"github.com/abhisek/coursekit/internal/resolver"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session is closed")

// Options configures a Session.
type Options struct {
	// Config is used as given, so a zero MinAffectConfidence accepts every
	// conversation assessment. The zero SessionConfig selects
	// config.DefaultConfig().Session.
	Config config.SessionConfig
	Log    *logger.Logger
	// Sink receives snapshots, changes and progress. Nil discards them.
	Sink Sink
	// Rand drives random and custom-percent branch selection.
	Rand *rand.Rand
	// Reporters receive progress reports in addition to the log and sink.
	Reporters []progress.Reporter
}

// Session is one learner's run through a course.
type Session struct {
	ID     string
	Course *course.Course
	// Gating holds the analysis run when the session was created.
	Gating *gating.Report

	// mu is the single exclusive lock shared by the registry and progress.
	mu sync.Mutex

	proxy    *assessment.Proxy
	concepts *hierarchy.Result
	progress *progress.Progress
	selector *course.Selector

	survey       *resolver.Survey
	conversation *resolver.Conversation
	lti          *resolver.LTI

	sink   Sink
	log    *logger.Logger
	latest atomic.Pointer[assessment.PerformanceAssessment]

	// stopAfter is the sequence index after which the course ends because
	// a selected branch path ends it; -1 when unset. Next, Insert and
	// Remediate belong to the goroutine driving the learner.
	stopAfter int

	queue *queue
}

// New builds a session for c. Courses with fatal structural issues are
// rejected with a *course.ConfigError.
func New(ctx context.Context, c *course.Course, opts Options) (*Session, error) {
	log := logger.OrNop(opts.Log)
	report := gating.Analyze(c)
	if report.Fatal() {
		var details []string
		for _, issue := range report.Issues {
			if issue.Severity == gating.SeverityFatal {
				details = append(details, issue.String())
			}
		}
		return nil, &course.ConfigError{
			Reason: fmt.Sprintf("course %q has structural errors", c.Name),
			Detail: strings.Join(details, "; "),
		}
	}
	for _, issue := range report.Issues {
		log.Warn("course validation issue", "issue", issue.String())
	}

	cfg := opts.Config
	if cfg == (config.SessionConfig{}) {
		cfg = config.DefaultConfig().Session
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultConfig().Session.QueueSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = config.DefaultConfig().Session.DrainTimeout
	}

	s := &Session{
		ID:        uuid.NewString(),
		Course:    c,
		Gating:    report,
		sink:      opts.Sink,
		selector:  course.NewSelector(opts.Rand),
		stopAfter: -1,
	}
	if s.sink == nil {
		s.sink = nopSink{}
	}
	s.log = log.With("session", s.ID, "course", c.Name)

	s.proxy = assessment.NewProxy(&s.mu)
	concepts, err := hierarchy.Build(s.proxy, c.Concepts)
	if err != nil {
		return nil, err
	}
	s.concepts = concepts

	prog, err := progress.New(c.Objects, &s.mu)
	if err != nil {
		return nil, err
	}
	s.progress = prog
	prog.AddReporter(progress.LogReporter{Log: s.log})
	prog.AddReporter(s.sink.ProgressReporter(s.ID))
	for _, r := range opts.Reporters {
		prog.AddReporter(r)
	}

	target := resolver.Target{Assessor: s.proxy, Concepts: concepts, Log: s.log}
	s.survey = &resolver.Survey{Target: target}
	s.conversation = &resolver.Conversation{Target: target, MinAffectConfidence: cfg.MinAffectConfidence}
	s.lti = &resolver.LTI{Target: target}

	s.proxy.Subscribe(func(ch assessment.Change) {
		if err := s.sink.RecordChange(context.Background(), s.ID, ch); err != nil {
			s.log.Error("record assessment change failed", "node", ch.Name, "error", err)
		}
	})

	if err := s.sink.RecordSession(ctx, s.ID, ActionStart, c); err != nil {
		return nil, fmt.Errorf("record session start: %w", err)
	}
	s.publish(ctx, s.proxy.GeneratePerformanceAssessment())

	s.queue = newQueue(cfg.QueueSize, cfg.DrainTimeout, s.log)
	s.log.Info("session started", "concepts", len(concepts.ConceptNameToNodeID()), "objects", len(c.Objects), "max_progress", prog.Max())
	return s, nil
}

// Proxy returns the session's assessment registry.
func (s *Session) Proxy() *assessment.Proxy { return s.proxy }

// Concepts returns the concept index built for the course.
func (s *Session) Concepts() *hierarchy.Result { return s.concepts }

// Progress returns the sequencing state.
func (s *Session) Progress() *progress.Progress { return s.progress }

// Latest returns the most recently published snapshot.
func (s *Session) Latest() *assessment.PerformanceAssessment { return s.latest.Load() }

// Level returns the current level of a course concept, or Unknown when the
// name is not a course concept.
func (s *Session) Level(concept string) assessment.Level {
	id, ok := s.concepts.Lookup(concept)
	if !ok {
		return assessment.LevelUnknown
	}
	n, err := s.proxy.Get(id)
	if err != nil {
		return assessment.LevelUnknown
	}
	return n.Assessment().Level
}

// Next advances to the next object the learner should see. Disabled objects
// are skipped. Branches are expanded in place: a path is selected and its
// objects are inserted after the branch. At the end of the course the run is
// ended, the final progress report is sent and ErrNoMoreObjects is returned.
func (s *Session) Next(ctx context.Context) (course.Object, error) {
	for {
		if s.stopAfter >= 0 && s.progress.Index() >= s.stopAfter {
			return course.Object{}, s.finish(ctx)
		}
		obj, err := s.progress.Advance()
		if errors.Is(err, progress.ErrNoMoreObjects) {
			return course.Object{}, s.finish(ctx)
		}
		if err != nil {
			return course.Object{}, err
		}
		if !obj.Enabled() {
			continue
		}
		if err := s.progress.ReportProgress(ctx, false); err != nil {
			s.log.Warn("progress report failed", "error", err)
		}
		if obj.Kind != course.KindBranch || obj.Branch == nil {
			return obj, nil
		}
		if err := s.expand(obj.Branch); err != nil {
			return course.Object{}, err
		}
	}
}

func (s *Session) expand(b *course.Branch) error {
	path, err := s.selector.Select(b, s.Level)
	if err != nil {
		return err
	}
	s.log.Info("branch path selected", "branch", b.ID, "path", path.Name, "policy", b.Policy)
	if err := s.insert(path.Objects); err != nil {
		return err
	}
	if path.EndsCourse {
		stop := s.progress.Index() + len(path.Objects)
		if s.stopAfter < 0 || stop < s.stopAfter {
			s.stopAfter = stop
		}
	}
	return nil
}

// insert splices objects in after the current one, keeping a pending course
// end aligned with the object it was set for.
func (s *Session) insert(objects []course.Object) error {
	if err := s.progress.Insert(objects, true); err != nil {
		return err
	}
	if s.stopAfter >= 0 {
		s.stopAfter += len(objects)
	}
	return nil
}

func (s *Session) finish(ctx context.Context) error {
	s.progress.ForceEnd()
	if err := s.progress.ReportProgress(ctx, true); err != nil {
		s.log.Warn("final progress report failed", "error", err)
	}
	return progress.ErrNoMoreObjects
}

// Insert adds objects right after the current one without changing the
// learner-visible maximum.
func (s *Session) Insert(objects []course.Object) error {
	return s.insert(objects)
}

// Remediate inserts the courseflow's remediation content for every concept
// the learner is below expectation on, directly after the current object.
// It returns the number of inserted objects.
func (s *Session) Remediate(cf *course.Courseflow) (int, error) {
	if cf == nil || !cf.Remediation.Enabled {
		return 0, nil
	}
	var below []string
	for _, concept := range cf.Concepts {
		if s.Level(concept) == assessment.LevelBelowExpectation {
			below = append(below, concept)
		}
	}
	if len(below) == 0 {
		return 0, nil
	}

	var objects []course.Object
	for _, item := range cf.Remediation.Content {
		for _, concept := range below {
			if item.Tagged(concept) {
				item := item
				objects = append(objects, course.Object{
					Name:    item.Name,
					Kind:    course.KindRemediation,
					Content: &item,
				})
				break
			}
		}
	}
	if len(objects) == 0 {
		return 0, nil
	}
	if err := s.insert(objects); err != nil {
		return 0, err
	}
	s.log.Info("remediation inserted", "concepts", below, "objects", len(objects))
	return len(objects), nil
}

// ResolveSurvey applies survey thresholds to a scored response.
func (s *Session) ResolveSurvey(ctx context.Context, score course.SurveyScore, rules []course.ConceptThreshold) (*assessment.PerformanceAssessment, error) {
	pa, err := s.survey.Resolve(ctx, score, rules)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pa)
	return pa, nil
}

// ResolveRecall scores a courseflow's recall phase and inserts remediation
// for every concept that came out below expectation.
func (s *Session) ResolveRecall(ctx context.Context, cf *course.Courseflow, score course.SurveyScore) (*assessment.PerformanceAssessment, int, error) {
	if cf == nil || cf.Recall == nil {
		return nil, 0, fmt.Errorf("courseflow has no recall phase")
	}
	pa, err := s.ResolveSurvey(ctx, score, cf.Recall.Thresholds)
	if err != nil {
		return nil, 0, err
	}
	n, err := s.Remediate(cf)
	return pa, n, err
}

// ResolveConversation applies conversation assessments. It returns nil when
// nothing cleared the confidence cutoff.
func (s *Session) ResolveConversation(ctx context.Context, items []course.ConversationAssessment) (*assessment.PerformanceAssessment, error) {
	pa, err := s.conversation.Resolve(ctx, items)
	if err != nil || pa == nil {
		return nil, err
	}
	s.publish(ctx, pa)
	return pa, nil
}

// ResolveGrade applies an LTI grade passback. It returns nil when no course
// concept matched.
func (s *Session) ResolveGrade(ctx context.Context, g course.GradePassback) (*assessment.PerformanceAssessment, error) {
	pa, err := s.lti.Resolve(ctx, g)
	if err != nil || pa == nil {
		return nil, err
	}
	s.publish(ctx, pa)
	return pa, nil
}

// SubmitConversation queues conversation assessments for the update loop.
func (s *Session) SubmitConversation(ctx context.Context, items []course.ConversationAssessment) error {
	return s.queue.submit(ctx, "conversation", func(ctx context.Context) error {
		_, err := s.ResolveConversation(ctx, items)
		return err
	})
}

// SubmitGrade queues an LTI grade passback for the update loop.
func (s *Session) SubmitGrade(ctx context.Context, g course.GradePassback) error {
	return s.queue.submit(ctx, "lti", func(ctx context.Context) error {
		_, err := s.ResolveGrade(ctx, g)
		return err
	})
}

func (s *Session) publish(ctx context.Context, pa *assessment.PerformanceAssessment) {
	if pa == nil {
		return
	}
	for {
		prev := s.latest.Load()
		if prev != nil && prev.Generation >= pa.Generation {
			break
		}
		if s.latest.CompareAndSwap(prev, pa) {
			break
		}
	}
	if err := s.sink.SaveSnapshot(ctx, s.ID, pa); err != nil {
		s.log.Error("save snapshot failed", "generation", pa.Generation, "error", err)
	}
}

// Close drains queued updates, ends the run, sends the final progress report
// and records the end of the session. Calling Close again is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if !s.queue.close(ctx) {
		return nil
	}
	if s.progress.State() != progress.StateEnded {
		s.progress.ForceEnd()
	}
	var errs []error
	if err := s.progress.ReportProgress(ctx, true); err != nil {
		errs = append(errs, err)
	}
	s.publish(ctx, s.proxy.GeneratePerformanceAssessment())
	if err := s.sink.RecordSession(ctx, s.ID, ActionEnd, s.Course); err != nil {
		errs = append(errs, fmt.Errorf("record session end: %w", err))
	}
	cur, maximum := s.progress.Counts()
	s.log.Info("session closed", "progress", cur, "max", maximum)
	return errors.Join(errs...)
}

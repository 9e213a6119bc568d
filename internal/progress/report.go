package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/coursekit/internal/logger"
)

// Report is the progress payload sent to reporters.
type Report struct {
	Current int
	Max     int
	Percent int
	State   string
	Final   bool
	At      time.Time
}

// Reporter receives progress reports.
type Reporter interface {
	ReportProgress(ctx context.Context, r Report) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report) error

func (f ReporterFunc) ReportProgress(ctx context.Context, r Report) error { return f(ctx, r) }

// AddReporter registers r. Reporters added after the final report are ignored.
func (p *Progress) AddReporter(r Reporter) {
	p.reportMu.Lock()
	defer p.reportMu.Unlock()
	if p.latched {
		return
	}
	p.reporters = append(p.reporters, r)
}

// ReportProgress sends the current counters to every reporter. Reports are
// serialized. The final report closes the latch: reporters are dropped and
// every later call, final or not, is a no-op.
func (p *Progress) ReportProgress(ctx context.Context, final bool) error {
	p.reportMu.Lock()
	defer p.reportMu.Unlock()

	if p.latched {
		return nil
	}

	p.mu.Lock()
	r := Report{
		Current: p.current,
		Max:     p.max,
		Percent: p.percentLocked(),
		State:   p.fsm.current(),
		Final:   final,
		At:      time.Now(),
	}
	p.mu.Unlock()

	var errs []error
	for _, rep := range p.reporters {
		if err := rep.ReportProgress(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if final {
		p.reporters = nil
		p.latched = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("report progress: %w", errors.Join(errs...))
	}
	return nil
}

// LogReporter writes every report to a logger.
type LogReporter struct {
	Log *logger.Logger
}

func (l LogReporter) ReportProgress(_ context.Context, r Report) error {
	logger.OrNop(l.Log).Info("course progress",
		"current", r.Current,
		"max", r.Max,
		"percent", r.Percent,
		"state", r.State,
		"final", r.Final,
	)
	return nil
}

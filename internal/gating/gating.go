// Package gating checks that a course teaches every concept before it is
// practiced, across branch paths, and that each courseflow phase has content.
//
// The analysis is read-only and accumulates every issue it finds so authors
// can fix them in one pass.
package gating

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abhisek/coursekit/internal/course"
)

// Severity grades an issue.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	// SeverityFatal marks structural problems that make the course unusable.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "warning"
	}
}

// Issue is one finding.
type Issue struct {
	Severity Severity
	// Object is the path to the course object, e.g. "Route Choice > Standard > Compass Lesson".
	Object  string
	Phase   course.Phase
	Concept string
	Reason  string
	Detail  string
}

func (i Issue) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", i.Severity, i.Object)
	if i.Phase != "" {
		fmt.Fprintf(&b, " (%s)", i.Phase)
	}
	b.WriteString(": " + i.Reason)
	if i.Concept != "" {
		fmt.Fprintf(&b, " %q", i.Concept)
	}
	if i.Detail != "" {
		b.WriteString(" - " + i.Detail)
	}
	return b.String()
}

// Report is the result of Analyze.
type Report struct {
	Course string
	Issues []Issue
	// Taught lists, lower-cased and sorted, the concepts taught on every
	// route through the course.
	Taught []string
}

// Fatal reports whether any issue is fatal.
func (r *Report) Fatal() bool {
	return r.Count(SeverityFatal) > 0
}

// OK reports whether the course has no errors or fatal issues.
func (r *Report) OK() bool {
	return r.Count(SeverityError) == 0 && !r.Fatal()
}

// Count returns the number of issues with the given severity.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// conceptsObject is the Issue.Object used for problems in the concept list.
const conceptsObject = "concepts"

type analyzer struct {
	known    map[string]bool
	branches map[string]string
	issues   []Issue
}

// Analyze walks c's objects in order, following every branch path.
func Analyze(c *course.Course) *Report {
	a := &analyzer{
		known:    make(map[string]bool),
		branches: make(map[string]string),
	}
	a.concepts(c.Concepts)

	taught, _ := a.sequence(c.Objects, conceptSet{}, "")

	r := &Report{Course: c.Name, Issues: a.issues}
	for k := range taught {
		r.Taught = append(r.Taught, k)
	}
	sort.Strings(r.Taught)
	return r
}

// concepts records the course concept names and reports the problems that
// keep a concept tree from being built.
func (a *analyzer) concepts(spec course.ConceptSpec) {
	if spec.Type() == course.SpecInvalid {
		a.add(SeverityFatal, conceptsObject, "", "", "concepts must be either a list or a hierarchy", "")
		return
	}
	names := spec.Names()
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			a.add(SeverityError, conceptsObject, "", "", "empty concept name", "")
			continue
		}
		a.known[key(name)] = true
	}
	for _, dup := range duplicates(names) {
		if strings.TrimSpace(dup) != "" {
			a.add(SeverityError, conceptsObject, "", dup, "duplicate concept name", "concept names are compared ignoring case")
		}
	}
}

func (a *analyzer) add(sev Severity, object string, phase course.Phase, concept, reason, detail string) {
	a.issues = append(a.issues, Issue{
		Severity: sev,
		Object:   object,
		Phase:    phase,
		Concept:  concept,
		Reason:   reason,
		Detail:   detail,
	})
}

// sequence analyzes objects in order starting from taught. It returns the
// concepts taught by the end and whether every route ends the course first.
func (a *analyzer) sequence(objects []course.Object, taught conceptSet, scope string) (conceptSet, bool) {
	taught = taught.clone()
	for i, o := range objects {
		if !o.Enabled() {
			continue
		}
		where := join(scope, o.Name)
		switch o.Kind {
		case course.KindAdaptiveCourseflow:
			if o.Courseflow != nil {
				a.courseflow(where, o.Courseflow, taught)
			}
		case course.KindLessonMaterial, course.KindGuidance:
			if o.Content != nil {
				for _, concept := range o.Content.Concepts {
					a.checkKnown(where, "", concept)
					taught.add(concept)
				}
			}
		case course.KindTrainingApp:
			if o.TrainingApp != nil {
				a.practice(where, "", o.TrainingApp.PracticeConcepts, taught)
			}
		case course.KindSurvey:
			if o.Survey != nil {
				for _, t := range o.Survey.Thresholds {
					a.checkKnown(where, "", t.Concept)
				}
			}
		case course.KindBranch:
			if o.Branch == nil {
				continue
			}
			next, ended := a.branch(where, o.Branch, taught)
			if ended {
				for _, rest := range objects[i+1:] {
					a.add(SeverityWarning, join(scope, rest.Name), "", "",
						"object is unreachable", fmt.Sprintf("every path of branch %q ends the course", o.Branch.ID))
				}
				return next, true
			}
			taught = next
		}
	}
	return taught, false
}

func (a *analyzer) branch(where string, b *course.Branch, taught conceptSet) (conceptSet, bool) {
	if prev, ok := a.branches[b.ID]; ok {
		a.add(SeverityError, where, "", "", "duplicate branch id",
			fmt.Sprintf("%q is also used by %s", b.ID, prev))
	} else {
		a.branches[b.ID] = where
	}

	if problems := b.DistributionProblems(); len(problems) > 0 {
		a.add(SeverityFatal, where, "", "", "malformed path distribution", strings.Join(problems, "; "))
		return taught, false
	}

	var (
		result    conceptSet
		continued int
	)
	for _, p := range b.Paths {
		for _, c := range p.Criteria {
			a.checkKnown(join(where, p.Name), "", c.Concept)
		}
		after, ended := a.sequence(p.Objects, taught, join(where, p.Name))
		if ended || p.EndsCourse {
			continue
		}
		continued++
		if result == nil {
			result = after
		} else {
			result = result.intersect(after)
		}
	}
	if continued == 0 {
		return taught, true
	}
	return result, false
}

func (a *analyzer) courseflow(where string, cf *course.Courseflow, taught conceptSet) {
	for _, dup := range duplicates(cf.Concepts) {
		a.add(SeverityError, where, "", dup, "concept listed more than once", "")
	}
	for _, concept := range cf.Concepts {
		a.checkKnown(where, "", concept)
	}

	for _, ph := range []struct {
		phase course.Phase
		cp    *course.ContentPhase
	}{{course.PhaseRule, cf.Rule}, {course.PhaseExample, cf.Example}} {
		if ph.cp == nil {
			continue
		}
		for _, concept := range cf.Concepts {
			if !covered(ph.cp.Content, concept) {
				a.add(SeverityError, where, ph.phase, concept, "no content for concept",
					"tag at least one content item with the concept")
				continue
			}
			taught.add(concept)
		}
	}

	if cf.Recall != nil {
		for _, concept := range cf.Concepts {
			found := false
			for _, q := range cf.Recall.Questions {
				if containsFold(q.Concepts, concept) {
					found = true
					break
				}
			}
			if !found {
				a.add(SeverityError, where, course.PhaseRecall, concept, "no recall question for concept", "")
			}
		}
		for _, t := range cf.Recall.Thresholds {
			a.checkKnown(where, course.PhaseRecall, t.Concept)
		}
	}

	if cf.Practice != nil {
		for _, dup := range duplicates(cf.Practice.Concepts) {
			a.add(SeverityError, where, course.PhasePractice, dup, "concept listed more than once", "")
		}
		a.practice(where, course.PhasePractice, cf.Practice.Concepts, taught)
		if cf.Practice.TrainingApp != nil {
			a.practice(where, course.PhasePractice, cf.Practice.TrainingApp.PracticeConcepts, taught)
		}
	}

	if cf.Remediation.Enabled {
		for _, concept := range cf.Concepts {
			if !covered(cf.Remediation.Content, concept) {
				a.add(SeverityError, where, "", concept, "no remediation content for concept",
					"remediation is enabled but no remediation item is tagged with the concept")
			}
		}
	}
}

func (a *analyzer) practice(where string, phase course.Phase, concepts []string, taught conceptSet) {
	for _, concept := range concepts {
		a.checkKnown(where, phase, concept)
		if !taught.has(concept) {
			a.add(SeverityError, where, phase, concept, "concept practiced before it is taught",
				"a rule or example phase on every path leading here must teach it")
		}
	}
}

func (a *analyzer) checkKnown(where string, phase course.Phase, concept string) {
	if !a.known[key(concept)] {
		a.add(SeverityError, where, phase, concept, "unknown concept", "not declared in the course concepts")
	}
}

func covered(items []course.ContentItem, concept string) bool {
	for _, item := range items {
		if item.Tagged(concept) {
			return true
		}
	}
	return false
}

func duplicates(names []string) []string {
	seen := make(map[string]bool, len(names))
	var dups []string
	for _, n := range names {
		k := key(n)
		if seen[k] {
			dups = append(dups, n)
		}
		seen[k] = true
	}
	return dups
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + " > " + name
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// conceptSet holds lower-cased concept names.
type conceptSet map[string]bool

func (s conceptSet) add(name string)      { s[key(name)] = true }
func (s conceptSet) has(name string) bool { return s[key(name)] }

func (s conceptSet) clone() conceptSet {
	out := make(conceptSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func (s conceptSet) intersect(other conceptSet) conceptSet {
	out := make(conceptSet)
	for k := range s {
		if other[k] {
			out[k] = true
		}
	}
	return out
}

package course

import (
	"strings"

	"github.com/abhisek/coursekit/internal/assessment"
)

// Course is a parsed, validated course definition.
type Course struct {
	Name     string      `yaml:"name" json:"name"`
	Version  string      `yaml:"version" json:"version"`
	Concepts ConceptSpec `yaml:"concepts" json:"concepts"`
	Objects  []Object    `yaml:"objects" json:"objects"`
}

// ConceptSpec is either a flat list of concept names or a hierarchy.
// Exactly one of the two must be set.
type ConceptSpec struct {
	List      []string     `yaml:"list,omitempty" json:"list,omitempty"`
	Hierarchy *ConceptNode `yaml:"hierarchy,omitempty" json:"hierarchy,omitempty"`
}

// SpecType tells how a ConceptSpec is structured.
type SpecType int

const (
	SpecInvalid SpecType = iota
	SpecList
	SpecHierarchy
)

// Type reports the structure of the spec. Setting both or neither is invalid.
func (s ConceptSpec) Type() SpecType {
	switch {
	case s.Hierarchy != nil && len(s.List) == 0:
		return SpecHierarchy
	case s.Hierarchy == nil && len(s.List) > 0:
		return SpecList
	default:
		return SpecInvalid
	}
}

// Names returns every concept name in the spec, including intermediate
// hierarchy nodes, in declaration order.
func (s ConceptSpec) Names() []string {
	switch s.Type() {
	case SpecList:
		return append([]string(nil), s.List...)
	case SpecHierarchy:
		var names []string
		var visit func(n *ConceptNode)
		visit = func(n *ConceptNode) {
			names = append(names, n.Name)
			for i := range n.Children {
				visit(&n.Children[i])
			}
		}
		visit(s.Hierarchy)
		return names
	}
	return nil
}

// ConceptNode is one node of an authored concept hierarchy.
type ConceptNode struct {
	Name                  string        `yaml:"name" json:"name"`
	AuthoritativeResource string        `yaml:"authoritativeResource,omitempty" json:"authoritativeResource,omitempty"`
	Children              []ConceptNode `yaml:"children,omitempty" json:"children,omitempty"`
}

// ObjectKind names the type of a course object.
type ObjectKind string

const (
	KindGuidance           ObjectKind = "guidance"
	KindLessonMaterial     ObjectKind = "lesson-material"
	KindSurvey             ObjectKind = "survey"
	KindTrainingApp        ObjectKind = "training-application"
	KindAdaptiveCourseflow ObjectKind = "adaptive-courseflow"
	KindBranch             ObjectKind = "branch"
	KindReview             ObjectKind = "review"
	// KindRemediation objects are only created at runtime.
	KindRemediation ObjectKind = "remediation"
)

// Object is one authored unit of a course.
type Object struct {
	Name     string     `yaml:"name" json:"name"`
	Kind     ObjectKind `yaml:"type" json:"type"`
	Disabled bool       `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	Survey      *Survey      `yaml:"survey,omitempty" json:"survey,omitempty"`
	TrainingApp *TrainingApp `yaml:"trainingApplication,omitempty" json:"trainingApplication,omitempty"`
	Courseflow  *Courseflow  `yaml:"adaptiveCourseflow,omitempty" json:"adaptiveCourseflow,omitempty"`
	Branch      *Branch      `yaml:"branch,omitempty" json:"branch,omitempty"`
	Content     *ContentItem `yaml:"content,omitempty" json:"content,omitempty"`
}

// Enabled reports whether the object participates in the course.
func (o Object) Enabled() bool { return !o.Disabled }

// Survey is a scored survey with per-concept threshold rules.
type Survey struct {
	Thresholds []ConceptThreshold `yaml:"conceptThresholds" json:"conceptThresholds"`
}

// ConceptThreshold is an authored scoring rule: the minimum number of
// correctly answered questions for each level. A value of 0 means the
// level is unused.
type ConceptThreshold struct {
	Concept string `yaml:"concept" json:"concept"`
	Above   int    `yaml:"aboveExpectation" json:"aboveExpectation"`
	At      int    `yaml:"atExpectation" json:"atExpectation"`
	Below   int    `yaml:"belowExpectation" json:"belowExpectation"`
}

// TrainingApp is an external practice application.
type TrainingApp struct {
	Application      string   `yaml:"application" json:"application"`
	PracticeConcepts []string `yaml:"practiceConcepts,omitempty" json:"practiceConcepts,omitempty"`
}

// Phase is one quadrant of an adaptive courseflow.
type Phase string

const (
	PhaseRule     Phase = "rule"
	PhaseExample  Phase = "example"
	PhaseRecall   Phase = "recall"
	PhasePractice Phase = "practice"
)

// Courseflow is a Rule/Example/Recall/Practice teaching unit for a set of
// concepts. Absent phases are skipped.
type Courseflow struct {
	Concepts    []string       `yaml:"concepts" json:"concepts"`
	Rule        *ContentPhase  `yaml:"rule,omitempty" json:"rule,omitempty"`
	Example     *ContentPhase  `yaml:"example,omitempty" json:"example,omitempty"`
	Recall      *RecallPhase   `yaml:"recall,omitempty" json:"recall,omitempty"`
	Practice    *PracticePhase `yaml:"practice,omitempty" json:"practice,omitempty"`
	Remediation Remediation    `yaml:"remediation,omitempty" json:"remediation,omitempty"`
}

// ContentPhase holds the authored content for a Rule or Example phase.
type ContentPhase struct {
	Content []ContentItem `yaml:"content" json:"content"`
}

// ContentItem is an authored piece of content tagged with the concepts it covers.
type ContentItem struct {
	Name     string   `yaml:"name" json:"name"`
	Ref      string   `yaml:"ref,omitempty" json:"ref,omitempty"`
	Concepts []string `yaml:"concepts" json:"concepts"`
}

// RecallPhase is the knowledge check of a courseflow.
type RecallPhase struct {
	Questions  []Question         `yaml:"questions" json:"questions"`
	Thresholds []ConceptThreshold `yaml:"conceptThresholds,omitempty" json:"conceptThresholds,omitempty"`
}

// Question is one recall question and the concepts it assesses.
type Question struct {
	Text     string   `yaml:"text" json:"text"`
	Concepts []string `yaml:"concepts" json:"concepts"`
}

// PracticePhase applies a subset of the courseflow's concepts in a training application.
type PracticePhase struct {
	Concepts    []string     `yaml:"concepts" json:"concepts"`
	TrainingApp *TrainingApp `yaml:"trainingApplication,omitempty" json:"trainingApplication,omitempty"`
}

// Remediation configures follow-up content for concepts assessed below expectation.
type Remediation struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Content []ContentItem `yaml:"content,omitempty" json:"content,omitempty"`
}

// Tagged reports whether the item is tagged with concept (case-insensitive).
func (c ContentItem) Tagged(concept string) bool {
	for _, tag := range c.Concepts {
		if strings.EqualFold(tag, concept) {
			return true
		}
	}
	return false
}

// Policy is a branch path distribution policy.
type Policy string

const (
	PolicyBalanced       Policy = "balanced"
	PolicyRandom         Policy = "random"
	PolicyCustomPercent  Policy = "custom-percent"
	PolicyLearnerCentric Policy = "learner-centric"
)

// Branch splits learners across alternative paths.
type Branch struct {
	ID     string `yaml:"id" json:"id"`
	Policy Policy `yaml:"policy" json:"policy"`
	Paths  []Path `yaml:"paths" json:"paths"`
}

// Path is one alternative sequence of objects within a branch.
type Path struct {
	Name       string          `yaml:"name" json:"name"`
	Default    bool            `yaml:"default,omitempty" json:"default,omitempty"`
	Percent    float64         `yaml:"percent,omitempty" json:"percent,omitempty"`
	EndsCourse bool            `yaml:"endsCourse,omitempty" json:"endsCourse,omitempty"`
	Criteria   []PathCriterion `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	Objects    []Object        `yaml:"objects" json:"objects"`
}

// PathCriterion is a learner-centric condition: the learner's current
// level for Concept must equal Level.
type PathCriterion struct {
	Concept string           `yaml:"concept" json:"concept"`
	Level   assessment.Level `yaml:"level" json:"level"`
}

package assessment

import (
	"slices"
	"time"
)

// NodeID identifies a node within one session's registry. Ids come from the
// proxy's monotonic counter and are the only cross-reference key.
type NodeID int64

// Kind tags the node variant.
type Kind int

const (
	KindConcept Kind = iota
	KindIntermediateConcept
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindIntermediateConcept:
		return "intermediate-concept"
	case KindTask:
		return "task"
	default:
		return "concept"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "task":
		*k = KindTask
	case "intermediate-concept":
		*k = KindIntermediateConcept
	default:
		*k = KindConcept
	}
	return nil
}

// NoConfidence marks a state that has never been assessed.
const NoConfidence = -1.0

// State is the mutable assessment attached to every node.
type State struct {
	Level      Level
	Confidence float64
	// Priority is an advisory ordering hint. It is stored and reported, nothing more.
	Priority  int
	UpdatedAt time.Time
}

// InitialState is the state of a freshly built node.
func InitialState(at time.Time) State {
	return State{Level: LevelUnknown, Confidence: NoConfidence, UpdatedAt: at}
}

// Node is one entry of the assessment tree. The variants are *Concept,
// *IntermediateConcept and *Task.
type Node interface {
	NodeID() NodeID
	NodeName() string
	Kind() Kind
	Assessment() State
	Children() []NodeID

	clone() Node
	setState(State)
}

// Concept is a leaf whose level is set directly by resolvers.
type Concept struct {
	ID    NodeID
	Name  string
	State State
	// AuthoritativeResource optionally references the content that defines the concept.
	AuthoritativeResource string
}

func (c *Concept) NodeID() NodeID     { return c.ID }
func (c *Concept) NodeName() string   { return c.Name }
func (c *Concept) Kind() Kind         { return KindConcept }
func (c *Concept) Assessment() State  { return c.State }
func (c *Concept) Children() []NodeID { return nil }
func (c *Concept) setState(s State)   { c.State = s }
func (c *Concept) clone() Node        { cp := *c; return &cp }

// IntermediateConcept groups child concepts. Its level is always the
// aggregate of its children and cannot be set directly.
type IntermediateConcept struct {
	ID       NodeID
	Name     string
	State    State
	ChildIDs []NodeID
}

func (c *IntermediateConcept) NodeID() NodeID     { return c.ID }
func (c *IntermediateConcept) NodeName() string   { return c.Name }
func (c *IntermediateConcept) Kind() Kind         { return KindIntermediateConcept }
func (c *IntermediateConcept) Assessment() State  { return c.State }
func (c *IntermediateConcept) Children() []NodeID { return slices.Clone(c.ChildIDs) }
func (c *IntermediateConcept) setState(s State)   { c.State = s }
func (c *IntermediateConcept) clone() Node {
	cp := *c
	cp.ChildIDs = slices.Clone(c.ChildIDs)
	return &cp
}

// Task is the root of one assessment context.
type Task struct {
	ID       NodeID
	Name     string
	State    State
	ChildIDs []NodeID
}

func (t *Task) NodeID() NodeID     { return t.ID }
func (t *Task) NodeName() string   { return t.Name }
func (t *Task) Kind() Kind         { return KindTask }
func (t *Task) Assessment() State  { return t.State }
func (t *Task) Children() []NodeID { return slices.Clone(t.ChildIDs) }
func (t *Task) setState(s State)   { t.State = s }
func (t *Task) clone() Node {
	cp := *t
	cp.ChildIDs = slices.Clone(t.ChildIDs)
	return &cp
}

// Package hierarchy builds the assessment node tree for a course's concepts
// and keeps the name-to-node index resolvers use to find them.
package hierarchy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/course"
)

const (
	// CourseTaskName names the root task of the authored concept tree.
	CourseTaskName = "Course Concepts"
	// DefaultRootName names the node synthesized above a flat concept list.
	DefaultRootName = "All Course Concepts"
	// ConversationTaskName names the task holding concepts that only
	// conversations have mentioned.
	ConversationTaskName = "Conversation Concepts"
)

// Result is the outcome of Build. It is safe for concurrent use.
type Result struct {
	TaskID assessment.NodeID

	mu                  sync.RWMutex
	conceptNameToNodeID map[string]assessment.NodeID
	conversationTaskID  assessment.NodeID
	conversationNames   map[string]assessment.NodeID
}

// Lookup finds an authored course concept by name, ignoring case.
func (r *Result) Lookup(name string) (assessment.NodeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conceptNameToNodeID[key(name)]
	return id, ok
}

// ConceptNameToNodeID returns a copy of the course concept index. Keys are
// lower-cased names.
func (r *Result) ConceptNameToNodeID() map[string]assessment.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]assessment.NodeID, len(r.conceptNameToNodeID))
	for k, v := range r.conceptNameToNodeID {
		out[k] = v
	}
	return out
}

// ConversationTaskID returns the conversation task id, or 0 when no
// conversation concept has been created yet.
func (r *Result) ConversationTaskID() assessment.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conversationTaskID
}

// Build registers a task and the concept tree described by spec with proxy.
// The task takes the first id; concept ids are assigned after all of a node's
// children, so parents always have larger ids than their descendants.
func Build(proxy *assessment.Proxy, spec course.ConceptSpec) (*Result, error) {
	now := time.Now()
	root := spec.Hierarchy
	switch spec.Type() {
	case course.SpecHierarchy:
	case course.SpecList:
		root = &course.ConceptNode{Name: DefaultRootName}
		for _, name := range spec.List {
			root.Children = append(root.Children, course.ConceptNode{Name: name})
		}
	default:
		return nil, &course.ConfigError{
			Reason: "concepts must be either a list or a hierarchy",
			Detail: fmt.Sprintf("list entries=%d, hierarchy set=%t", len(spec.List), spec.Hierarchy != nil),
		}
	}

	res := &Result{
		conceptNameToNodeID: make(map[string]assessment.NodeID),
		conversationNames:   make(map[string]assessment.NodeID),
	}
	// The synthesized root's name is not reserved: a listed concept may use it.
	named := []course.ConceptNode{*root}
	if spec.Type() == course.SpecList {
		named = root.Children
	}
	seen := make(map[string]bool)
	for i := range named {
		if err := checkNames(&named[i], seen); err != nil {
			return nil, err
		}
	}

	err := proxy.Batch(func(tx *assessment.Tx) error {
		taskID := tx.NextNodeID()
		rootID, err := res.build(tx, root, now)
		if err != nil {
			return err
		}
		task := &assessment.Task{
			ID:       taskID,
			Name:     CourseTaskName,
			State:    assessment.InitialState(now),
			ChildIDs: []assessment.NodeID{rootID},
		}
		if err := tx.Register(task); err != nil {
			return err
		}
		res.TaskID = taskID
		return tx.AddTask(taskID)
	})
	if err != nil {
		return nil, fmt.Errorf("build concept hierarchy: %w", err)
	}
	return res, nil
}

func (r *Result) build(tx *assessment.Tx, n *course.ConceptNode, now time.Time) (assessment.NodeID, error) {
	if len(n.Children) == 0 {
		id := tx.NextNodeID()
		c := &assessment.Concept{
			ID:                    id,
			Name:                  n.Name,
			State:                 assessment.InitialState(now),
			AuthoritativeResource: n.AuthoritativeResource,
		}
		if err := tx.Register(c); err != nil {
			return 0, err
		}
		r.conceptNameToNodeID[key(n.Name)] = id
		return id, nil
	}

	childIDs := make([]assessment.NodeID, 0, len(n.Children))
	for i := range n.Children {
		id, err := r.build(tx, &n.Children[i], now)
		if err != nil {
			return 0, err
		}
		childIDs = append(childIDs, id)
	}
	id := tx.NextNodeID()
	ic := &assessment.IntermediateConcept{
		ID:       id,
		Name:     n.Name,
		State:    assessment.InitialState(now),
		ChildIDs: childIDs,
	}
	if err := tx.Register(ic); err != nil {
		return 0, err
	}
	// Children are indexed first, so a listed concept keeps its name over
	// the synthesized root.
	if _, taken := r.conceptNameToNodeID[key(n.Name)]; !taken {
		r.conceptNameToNodeID[key(n.Name)] = id
	}
	return id, nil
}

func checkNames(n *course.ConceptNode, seen map[string]bool) error {
	if strings.TrimSpace(n.Name) == "" {
		return &course.ConfigError{Reason: "concept names must not be empty"}
	}
	k := key(n.Name)
	if seen[k] {
		return &course.ConfigError{
			Reason: "duplicate concept name",
			Detail: fmt.Sprintf("%q appears more than once (names are compared ignoring case)", n.Name),
		}
	}
	seen[k] = true
	for i := range n.Children {
		if err := checkNames(&n.Children[i], seen); err != nil {
			return err
		}
	}
	return nil
}

// ConversationConcept returns the node for a concept introduced by a
// conversation. The conversation task and the concept are created on first
// use; later calls with the same name (ignoring case) reuse them. It must be
// called inside a proxy batch.
func (r *Result) ConversationConcept(tx *assessment.Tx, name string) (assessment.NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(name)
	if id, ok := r.conversationNames[k]; ok {
		return id, nil
	}

	now := time.Now()
	if r.conversationTaskID == 0 {
		task := &assessment.Task{
			ID:    tx.NextNodeID(),
			Name:  ConversationTaskName,
			State: assessment.InitialState(now),
		}
		if err := tx.Register(task); err != nil {
			return 0, err
		}
		if err := tx.AddTask(task.ID); err != nil {
			return 0, err
		}
		r.conversationTaskID = task.ID
	}

	c := &assessment.Concept{
		ID:    tx.NextNodeID(),
		Name:  name,
		State: assessment.InitialState(now),
	}
	if err := tx.Register(c); err != nil {
		return 0, err
	}

	n, err := tx.Get(r.conversationTaskID)
	if err != nil {
		return 0, err
	}
	task := n.(*assessment.Task)
	task.ChildIDs = append(task.ChildIDs, c.ID)
	if err := tx.Register(task); err != nil {
		return 0, err
	}

	r.conversationNames[k] = c.ID
	return c.ID, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

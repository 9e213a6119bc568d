package assessment

import (
	"fmt"
	"sync"
	"time"
)

// Change describes one level change applied to the registry.
type Change struct {
	NodeID     NodeID
	Name       string
	Kind       Kind
	From       Level
	To         Level
	Confidence float64
	Source     string
	At         time.Time
}

// SourceAggregate marks changes of derived (intermediate/task) levels.
const SourceAggregate = "aggregate"

// ConceptUpdate is a request to set a leaf concept's level.
type ConceptUpdate struct {
	ID         NodeID
	Level      Level
	Confidence float64
	Source     string
}

// Proxy is the session-scoped registry mapping node ids to live nodes.
// Every read and write happens under one lock; the lock may be shared with
// other per-session state.
type Proxy struct {
	mu sync.Locker

	lastID     NodeID
	nodes      map[NodeID]Node
	parents    map[NodeID][]NodeID
	tasks      []NodeID
	generation int64
	listeners  []func(Change)

	now func() time.Time
}

// NewProxy creates an empty registry. A nil locker gets a private mutex.
func NewProxy(mu sync.Locker) *Proxy {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Proxy{
		mu:      mu,
		nodes:   make(map[NodeID]Node),
		parents: make(map[NodeID][]NodeID),
		now:     time.Now,
	}
}

// Subscribe registers fn to receive every change. Listeners run after the
// lock is released, in the order the changes were applied.
func (p *Proxy) Subscribe(fn func(Change)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Batch runs fn with exclusive access to the registry. Changes made through
// tx are delivered to listeners once fn returns, even when it fails part way:
// updates already applied stay applied.
func (p *Proxy) Batch(fn func(tx *Tx) error) error {
	tx := &Tx{p: p}
	var (
		err       error
		listeners []func(Change)
	)
	func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		err = fn(tx)
		listeners = append(listeners, p.listeners...)
	}()

	for _, c := range tx.changes {
		for _, l := range listeners {
			l(c)
		}
	}
	return err
}

// NextNodeID reserves a fresh id from the session counter.
func (p *Proxy) NextNodeID() NodeID {
	var id NodeID
	_ = p.Batch(func(tx *Tx) error {
		id = tx.NextNodeID()
		return nil
	})
	return id
}

// Register inserts or overwrites n at its id.
func (p *Proxy) Register(n Node) error {
	return p.Batch(func(tx *Tx) error { return tx.Register(n) })
}

// FireUpdate is Register for a node that already exists: the stored node is
// replaced and ancestors are re-aggregated.
func (p *Proxy) FireUpdate(n Node) error {
	return p.Register(n)
}

// AddTask appends a registered task to the context's root list.
func (p *Proxy) AddTask(id NodeID) error {
	return p.Batch(func(tx *Tx) error { return tx.AddTask(id) })
}

// Get returns a copy of the node stored at id.
func (p *Proxy) Get(id NodeID) (Node, error) {
	var n Node
	err := p.Batch(func(tx *Tx) error {
		var err error
		n, err = tx.Get(id)
		return err
	})
	return n, err
}

// UpdateConcept sets a leaf concept's level and re-aggregates its ancestors.
func (p *Proxy) UpdateConcept(u ConceptUpdate) error {
	return p.Batch(func(tx *Tx) error { return tx.UpdateConcept(u) })
}

// TaskIDs returns the root task ids in creation order.
func (p *Proxy) TaskIDs() []NodeID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]NodeID(nil), p.tasks...)
}

// Len returns the number of registered nodes.
func (p *Proxy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// Generations returns how many snapshots have been generated.
func (p *Proxy) Generations() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// GeneratePerformanceAssessment builds an immutable snapshot of every task
// tree under the registry lock.
func (p *Proxy) GeneratePerformanceAssessment() *PerformanceAssessment {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	pa := &PerformanceAssessment{
		Generation:  p.generation,
		GeneratedAt: p.now(),
		Tasks:       make([]NodeSnapshot, 0, len(p.tasks)),
	}
	for _, id := range p.tasks {
		if snap, ok := p.snapshotLocked(id, map[NodeID]bool{}); ok {
			pa.Tasks = append(pa.Tasks, snap)
		}
	}
	return pa
}

func (p *Proxy) snapshotLocked(id NodeID, seen map[NodeID]bool) (NodeSnapshot, bool) {
	n, ok := p.nodes[id]
	if !ok || seen[id] {
		return NodeSnapshot{}, false
	}
	seen[id] = true

	st := n.Assessment()
	snap := NodeSnapshot{
		ID:         id,
		Name:       n.NodeName(),
		Kind:       n.Kind(),
		Level:      st.Level,
		Confidence: st.Confidence,
		Priority:   st.Priority,
		UpdatedAt:  st.UpdatedAt,
	}
	if c, ok := n.(*Concept); ok {
		snap.AuthoritativeResource = c.AuthoritativeResource
	}
	for _, childID := range n.Children() {
		if child, ok := p.snapshotLocked(childID, seen); ok {
			snap.Children = append(snap.Children, child)
		}
	}
	return snap, true
}

// Tx is exclusive access to a Proxy for the duration of a Batch.
type Tx struct {
	p       *Proxy
	changes []Change
}

// NextNodeID reserves a fresh id.
func (tx *Tx) NextNodeID() NodeID {
	tx.p.lastID++
	return tx.p.lastID
}

// Get returns a copy of the node at id.
func (tx *Tx) Get(id NodeID) (Node, error) {
	n, ok := tx.p.nodes[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return n.clone(), nil
}

// Register stores n, derives its level when it has children, and
// re-aggregates its ancestors. Every child id must already be registered.
func (tx *Tx) Register(n Node) error {
	if n == nil {
		return fmt.Errorf("register: nil node")
	}
	id := n.NodeID()
	if id <= 0 {
		return fmt.Errorf("register %q: node id must be > 0, got %d", n.NodeName(), id)
	}
	for _, childID := range n.Children() {
		if _, ok := tx.p.nodes[childID]; !ok {
			return fmt.Errorf("register %q: child: %w", n.NodeName(), &NotFoundError{ID: childID})
		}
	}

	stored := n.clone()
	prev, existed := tx.p.nodes[id]
	if existed {
		for _, childID := range prev.Children() {
			tx.p.parents[childID] = removeID(tx.p.parents[childID], id)
		}
	}
	for _, childID := range stored.Children() {
		tx.p.parents[childID] = appendUnique(tx.p.parents[childID], id)
	}
	if id > tx.p.lastID {
		tx.p.lastID = id
	}

	if stored.Kind() != KindConcept {
		stored.setState(Aggregate(stored.Assessment(), tx.childStates(stored)))
	}
	tx.p.nodes[id] = stored

	if existed && prev.Assessment().Level != stored.Assessment().Level {
		tx.record(stored, prev.Assessment().Level, "register")
	}
	tx.propagate(id)
	return nil
}

// AddTask appends a registered task id to the root list. Adding the same
// task twice is a no-op.
func (tx *Tx) AddTask(id NodeID) error {
	n, ok := tx.p.nodes[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if n.Kind() != KindTask {
		return fmt.Errorf("add task %d: node is a %s", id, n.Kind())
	}
	tx.p.tasks = appendUnique(tx.p.tasks, id)
	return nil
}

// UpdateConcept sets the level of a leaf concept.
func (tx *Tx) UpdateConcept(u ConceptUpdate) error {
	n, ok := tx.p.nodes[u.ID]
	if !ok {
		return &NotFoundError{ID: u.ID}
	}
	if n.Kind() != KindConcept {
		return fmt.Errorf("update %q: %w", n.NodeName(), ErrReadOnlyNode)
	}

	prev := n.Assessment()
	next := prev
	next.Level = u.Level
	next.Confidence = u.Confidence
	next.UpdatedAt = tx.p.now()
	n.setState(next)

	if prev.Level != next.Level {
		tx.record(n, prev.Level, u.Source)
	}
	tx.propagate(u.ID)
	return nil
}

// propagate re-aggregates every ancestor of id, nearest first.
func (tx *Tx) propagate(id NodeID) {
	queue := append([]NodeID(nil), tx.p.parents[id]...)
	seen := make(map[NodeID]bool)
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if seen[pid] {
			continue
		}
		seen[pid] = true

		parent, ok := tx.p.nodes[pid]
		if !ok {
			continue
		}
		prev := parent.Assessment()
		parent.setState(Aggregate(prev, tx.childStates(parent)))
		if prev.Level != parent.Assessment().Level {
			tx.record(parent, prev.Level, SourceAggregate)
		}
		queue = append(queue, tx.p.parents[pid]...)
	}
}

func (tx *Tx) childStates(n Node) []State {
	ids := n.Children()
	states := make([]State, 0, len(ids))
	for _, id := range ids {
		if c, ok := tx.p.nodes[id]; ok {
			states = append(states, c.Assessment())
		}
	}
	return states
}

func (tx *Tx) record(n Node, from Level, source string) {
	st := n.Assessment()
	tx.changes = append(tx.changes, Change{
		NodeID:     n.NodeID(),
		Name:       n.NodeName(),
		Kind:       n.Kind(),
		From:       from,
		To:         st.Level,
		Confidence: st.Confidence,
		Source:     source,
		At:         st.UpdatedAt,
	})
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

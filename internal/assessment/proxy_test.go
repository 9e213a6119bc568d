package assessment

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree registers task(1) -> inter(4) -> {a(2), b(3)}.
func buildTree(t *testing.T) (*Proxy, map[string]NodeID) {
	t.Helper()
	p := NewProxy(nil)
	now := time.Now()

	taskID := p.NextNodeID()
	aID := p.NextNodeID()
	bID := p.NextNodeID()
	require.NoError(t, p.Register(&Concept{ID: aID, Name: "A", State: InitialState(now)}))
	require.NoError(t, p.Register(&Concept{ID: bID, Name: "B", State: InitialState(now)}))
	interID := p.NextNodeID()
	require.NoError(t, p.Register(&IntermediateConcept{ID: interID, Name: "AB", State: InitialState(now), ChildIDs: []NodeID{aID, bID}}))
	require.NoError(t, p.Register(&Task{ID: taskID, Name: "Course Concepts", State: InitialState(now), ChildIDs: []NodeID{interID}}))
	require.NoError(t, p.AddTask(taskID))

	return p, map[string]NodeID{"task": taskID, "a": aID, "b": bID, "ab": interID}
}

func TestProxy_GetUnknownID(t *testing.T) {
	p := NewProxy(nil)
	_, err := p.Get(42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, NodeID(42), nf.ID)
}

func TestProxy_RegisterRejectsUnknownChild(t *testing.T) {
	p := NewProxy(nil)
	err := p.Register(&Task{ID: 1, Name: "t", ChildIDs: []NodeID{7}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProxy_UpdateConceptAggregatesUpward(t *testing.T) {
	p, ids := buildTree(t)

	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["a"], Level: LevelAboveExpectation, Confidence: 0.9, Source: "test"}))

	inter, err := p.Get(ids["ab"])
	require.NoError(t, err)
	assert.Equal(t, LevelAboveExpectation, inter.Assessment().Level)

	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["b"], Level: LevelBelowExpectation, Confidence: 0.7, Source: "test"}))

	inter, _ = p.Get(ids["ab"])
	task, _ := p.Get(ids["task"])
	assert.Equal(t, LevelBelowExpectation, inter.Assessment().Level)
	assert.Equal(t, LevelBelowExpectation, task.Assessment().Level)
	assert.InDelta(t, 0.7, task.Assessment().Confidence, 1e-9)
}

func TestProxy_IntermediateIsReadOnly(t *testing.T) {
	p, ids := buildTree(t)
	err := p.UpdateConcept(ConceptUpdate{ID: ids["ab"], Level: LevelAtExpectation, Confidence: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReadOnlyNode))
}

func TestProxy_FireUpdateRecomputesDerivedLevel(t *testing.T) {
	p, ids := buildTree(t)
	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["a"], Level: LevelAtExpectation, Confidence: 1}))

	n, err := p.Get(ids["ab"])
	require.NoError(t, err)
	inter := n.(*IntermediateConcept)
	inter.State.Level = LevelAboveExpectation
	require.NoError(t, p.FireUpdate(inter))

	n, _ = p.Get(ids["ab"])
	assert.Equal(t, LevelAtExpectation, n.Assessment().Level, "derived level must come from children")
}

func TestProxy_GetReturnsCopy(t *testing.T) {
	p, ids := buildTree(t)
	n, _ := p.Get(ids["a"])
	n.(*Concept).State.Level = LevelAboveExpectation

	again, _ := p.Get(ids["a"])
	assert.Equal(t, LevelUnknown, again.Assessment().Level)
}

func TestProxy_ListenersReceiveChanges(t *testing.T) {
	p, ids := buildTree(t)

	var got []Change
	p.Subscribe(func(c Change) { got = append(got, c) })

	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["a"], Level: LevelBelowExpectation, Confidence: 0.8, Source: "survey"}))

	require.Len(t, got, 3)
	assert.Equal(t, ids["a"], got[0].NodeID)
	assert.Equal(t, "survey", got[0].Source)
	assert.Equal(t, LevelUnknown, got[0].From)
	assert.Equal(t, LevelBelowExpectation, got[0].To)
	assert.Equal(t, ids["ab"], got[1].NodeID)
	assert.Equal(t, SourceAggregate, got[1].Source)
	assert.Equal(t, ids["task"], got[2].NodeID)
}

func TestProxy_SameLevelNoChange(t *testing.T) {
	p, ids := buildTree(t)
	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["a"], Level: LevelAtExpectation, Confidence: 1}))

	var got []Change
	p.Subscribe(func(c Change) { got = append(got, c) })
	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["a"], Level: LevelAtExpectation, Confidence: 0.9}))
	assert.Empty(t, got)
}

func TestProxy_GeneratePerformanceAssessment(t *testing.T) {
	p, ids := buildTree(t)
	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["b"], Level: LevelAtExpectation, Confidence: 1}))

	pa := p.GeneratePerformanceAssessment()
	require.Len(t, pa.Tasks, 1)
	assert.Equal(t, int64(1), pa.Generation)
	assert.Equal(t, 4, pa.Count())

	b, ok := pa.Find("b")
	require.True(t, ok)
	assert.Equal(t, LevelAtExpectation, b.Level)

	// Snapshot does not follow later updates.
	require.NoError(t, p.UpdateConcept(ConceptUpdate{ID: ids["b"], Level: LevelBelowExpectation, Confidence: 1}))
	b, _ = pa.Find("B")
	assert.Equal(t, LevelAtExpectation, b.Level)
	assert.Equal(t, int64(2), p.GeneratePerformanceAssessment().Generation)
}

func TestProxy_NextNodeIDMonotonic(t *testing.T) {
	p := NewProxy(nil)
	var wg sync.WaitGroup
	ids := make(chan NodeID, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- p.NextNodeID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[NodeID]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

func TestProxy_ConcurrentUpdates(t *testing.T) {
	p, ids := buildTree(t)
	levels := []Level{LevelBelowExpectation, LevelAtExpectation, LevelAboveExpectation}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = p.UpdateConcept(ConceptUpdate{ID: ids["a"], Level: levels[i%3], Confidence: 1})
		}(i)
		go func() {
			defer wg.Done()
			_ = p.GeneratePerformanceAssessment()
		}()
	}
	wg.Wait()

	a, _ := p.Get(ids["a"])
	inter, _ := p.Get(ids["ab"])
	assert.Equal(t, a.Assessment().Level, inter.Assessment().Level)
}

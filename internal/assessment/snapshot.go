package assessment

import (
	"strings"
	"time"
)

// PerformanceAssessment is the outward, immutable projection of the
// registry. It is safe to hand to other goroutines.
type PerformanceAssessment struct {
	Generation  int64          `json:"generation"`
	GeneratedAt time.Time      `json:"generated_at"`
	Tasks       []NodeSnapshot `json:"tasks"`
}

// NodeSnapshot is one node of a PerformanceAssessment.
type NodeSnapshot struct {
	ID                    NodeID         `json:"id"`
	Name                  string         `json:"name"`
	Kind                  Kind           `json:"kind"`
	Level                 Level          `json:"level"`
	Confidence            float64        `json:"confidence"`
	Priority              int            `json:"priority"`
	UpdatedAt             time.Time      `json:"updated_at"`
	AuthoritativeResource string         `json:"authoritative_resource,omitempty"`
	Children              []NodeSnapshot `json:"children,omitempty"`
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn stops the walk.
func (pa *PerformanceAssessment) Walk(fn func(NodeSnapshot) bool) {
	if pa == nil {
		return
	}
	for _, t := range pa.Tasks {
		if !walk(t, fn) {
			return
		}
	}
}

func walk(n NodeSnapshot, fn func(NodeSnapshot) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node whose name matches case-insensitively.
func (pa *PerformanceAssessment) Find(name string) (NodeSnapshot, bool) {
	var found NodeSnapshot
	ok := false
	pa.Walk(func(n NodeSnapshot) bool {
		if strings.EqualFold(n.Name, name) {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// Count returns the number of nodes in the snapshot.
func (pa *PerformanceAssessment) Count() int {
	total := 0
	pa.Walk(func(NodeSnapshot) bool {
		total++
		return true
	})
	return total
}

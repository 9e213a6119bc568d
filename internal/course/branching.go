package course

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/abhisek/coursekit/internal/assessment"
)

// percentTolerance is how far custom percentages may drift from 100.
const percentTolerance = 0.5

// DistributionProblems returns every structural problem with the branch's
// path distribution. A branch with problems cannot be executed.
func (b *Branch) DistributionProblems() []string {
	var problems []string
	if len(b.Paths) == 0 {
		return []string{fmt.Sprintf("branch %q has no paths", b.ID)}
	}

	names := make(map[string]bool, len(b.Paths))
	defaults := 0
	total := 0.0
	for _, p := range b.Paths {
		key := strings.ToLower(p.Name)
		if names[key] {
			problems = append(problems, fmt.Sprintf("branch %q has duplicate path name %q", b.ID, p.Name))
		}
		names[key] = true
		if p.Default {
			defaults++
		}
		total += p.Percent
	}

	switch b.Policy {
	case PolicyBalanced, PolicyRandom:
	case PolicyCustomPercent:
		if math.Abs(total-100) > percentTolerance {
			problems = append(problems, fmt.Sprintf("branch %q custom percentages total %.2f, want 100", b.ID, total))
		}
	case PolicyLearnerCentric:
		if defaults == 0 {
			problems = append(problems, fmt.Sprintf("branch %q is learner-centric but has no default path", b.ID))
		}
	default:
		problems = append(problems, fmt.Sprintf("branch %q has unknown distribution policy %q", b.ID, b.Policy))
	}
	if defaults > 1 {
		problems = append(problems, fmt.Sprintf("branch %q has %d default paths, want at most 1", b.ID, defaults))
	}
	return problems
}

// LevelFunc returns a learner's current level for a concept name.
type LevelFunc func(concept string) assessment.Level

// Selector picks a path for each branch a learner reaches. Balanced
// selection rotates per branch id.
type Selector struct {
	mu     sync.Mutex
	rng    *rand.Rand
	counts map[string]int
}

// NewSelector creates a Selector. A nil rng gets a randomly seeded source.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng, counts: make(map[string]int)}
}

// Select returns the path a learner should follow through b.
func (s *Selector) Select(b *Branch, levels LevelFunc) (*Path, error) {
	if problems := b.DistributionProblems(); len(problems) > 0 {
		return nil, &ConfigError{
			Reason: fmt.Sprintf("branch %q has a malformed path distribution", b.ID),
			Detail: strings.Join(problems, "; "),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch b.Policy {
	case PolicyBalanced:
		i := s.counts[b.ID] % len(b.Paths)
		s.counts[b.ID]++
		return &b.Paths[i], nil

	case PolicyRandom:
		return &b.Paths[s.rng.IntN(len(b.Paths))], nil

	case PolicyCustomPercent:
		roll := s.rng.Float64() * 100
		cum := 0.0
		for i := range b.Paths {
			cum += b.Paths[i].Percent
			if roll < cum {
				return &b.Paths[i], nil
			}
		}
		return &b.Paths[len(b.Paths)-1], nil

	case PolicyLearnerCentric:
		var def *Path
		for i := range b.Paths {
			p := &b.Paths[i]
			if p.Default {
				def = p
				continue
			}
			if criteriaMet(p.Criteria, levels) {
				return p, nil
			}
		}
		return def, nil
	}
	return nil, fmt.Errorf("branch %q: unsupported policy %q", b.ID, b.Policy)
}

func criteriaMet(criteria []PathCriterion, levels LevelFunc) bool {
	if len(criteria) == 0 || levels == nil {
		return false
	}
	for _, c := range criteria {
		if levels(c.Concept) != c.Level {
			return false
		}
	}
	return true
}

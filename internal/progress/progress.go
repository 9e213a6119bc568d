// Package progress tracks a learner's position in a course's object sequence.
//
// The sequence can grow while the learner moves through it (remediation,
// branch expansion). Objects inserted after load never count toward the
// maximum, and advancing through an inserted batch does not move the
// learner-visible progress.
package progress

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/abhisek/coursekit/internal/course"
)

var (
	// ErrNoMoreObjects is returned by Advance when the sequence is exhausted.
	ErrNoMoreObjects = errors.New("no more course objects")
	// ErrEnded is returned when the sequence is changed after the course ended.
	ErrEnded = errors.New("course has ended")
)

// Progress is the sequencing state of one course run. All methods are safe
// for concurrent use; they share the locker passed to New.
type Progress struct {
	mu sync.Locker

	objects []course.Object
	index   int
	current int
	max     int
	// pending holds the names of inserted objects whose advances are free.
	pending []string

	fsm *lifecycle

	reportMu  sync.Mutex
	reporters []Reporter
	latched   bool
}

// New starts a run over objects. The maximum progress is the number of
// enabled objects in this original list. A nil locker gets a private mutex.
func New(objects []course.Object, mu sync.Locker) (*Progress, error) {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	fsm, err := newLifecycle(len(objects))
	if err != nil {
		return nil, err
	}
	enabled := 0
	for _, o := range objects {
		if o.Enabled() {
			enabled++
		}
	}
	return &Progress{
		mu:      mu,
		objects: slices.Clone(objects),
		index:   -1,
		max:     enabled,
		fsm:     fsm,
	}, nil
}

// Advance moves to the next object and returns it. At the end of the
// sequence it returns ErrNoMoreObjects and leaves the position unchanged.
func (p *Progress) Advance() (course.Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fsm.current() == StateEnded || p.index+1 >= len(p.objects) {
		return course.Object{}, ErrNoMoreObjects
	}
	p.recordAdvance()
	p.index++
	if p.fsm.current() == StateNotStarted {
		p.fsm.send(eventStart)
	}
	return p.objects[p.index], nil
}

// recordAdvance accounts for leaving the current object. Inserted objects
// are drained first, one free advance each.
func (p *Progress) recordAdvance() {
	if p.index < 0 {
		return
	}
	if len(p.pending) > 0 {
		p.pending = p.pending[1:]
		return
	}
	if p.objects[p.index].Enabled() && p.current < p.max {
		p.current++
	}
}

// Insert adds objects to the sequence. With afterCurrent they are spliced in
// right after the current object and their advances become free; otherwise
// they are appended to the end of the sequence.
func (p *Progress) Insert(objects []course.Object, afterCurrent bool) error {
	if len(objects) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fsm.current() == StateEnded {
		return fmt.Errorf("insert %d objects: %w", len(objects), ErrEnded)
	}
	if !afterCurrent {
		p.objects = append(p.objects, objects...)
		return nil
	}
	p.objects = slices.Insert(p.objects, p.index+1, objects...)
	for _, o := range objects {
		p.pending = append(p.pending, o.Name)
	}
	return nil
}

// ForceEnd moves past the last object and sets progress to the maximum.
func (p *Progress) ForceEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.index = len(p.objects)
	p.pending = nil
	p.current = p.max
	p.fsm.send(eventEnd)
}

// Current returns the object at the current position.
func (p *Progress) Current() (course.Object, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index < 0 || p.index >= len(p.objects) {
		return course.Object{}, false
	}
	return p.objects[p.index], true
}

// Counts returns the current and maximum progress.
func (p *Progress) Counts() (current, maximum int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.max
}

// Max returns the number of enabled objects the course was loaded with.
func (p *Progress) Max() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}

// Percent returns progress as a whole percentage.
func (p *Progress) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percentLocked()
}

func (p *Progress) percentLocked() int {
	if p.max == 0 {
		if p.fsm.current() == StateEnded {
			return 100
		}
		return 0
	}
	return p.current * 100 / p.max
}

// State returns the lifecycle state name.
func (p *Progress) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fsm.current()
}

// Index returns the position in the sequence: -1 before the first advance,
// Len() once ended.
func (p *Progress) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Len returns the current length of the sequence, insertions included.
func (p *Progress) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// Pending returns how many free advances remain from inserted objects.
func (p *Progress) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Remaining returns the objects after the current position.
func (p *Progress) Remaining() []course.Object {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index+1 >= len(p.objects) {
		return nil
	}
	return slices.Clone(p.objects[p.index+1:])
}

package progress

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Lifecycle states of a course run.
const (
	StateNotStarted = "not_started"
	StateInProgress = "in_progress"
	StateEnded      = "ended"
)

const (
	eventStart = "start"
	eventEnd   = "end"
)

type lifecycleContext struct {
	Objects int
}

// lifecycle is the NOT_STARTED -> IN_PROGRESS -> ENDED machine. A course can
// be ended before it starts.
type lifecycle struct {
	interpreter *statekit.Interpreter[lifecycleContext]
}

func newLifecycle(objects int) (*lifecycle, error) {
	builder := statekit.NewMachine[lifecycleContext]("course-progress").
		WithInitial(statekit.StateID(StateNotStarted)).
		WithContext(lifecycleContext{Objects: objects})

	builder.State(StateNotStarted).
		On(eventStart).Target(StateInProgress).
		On(eventEnd).Target(StateEnded).
		Done()

	builder.State(StateInProgress).
		On(eventEnd).Target(StateEnded).
		Done()

	builder.State(StateEnded).
		On(eventEnd).Target(StateEnded).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build progress state machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &lifecycle{interpreter: interpreter}, nil
}

func (l *lifecycle) send(event string) {
	l.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
}

func (l *lifecycle) current() string {
	return string(l.interpreter.State().Value)
}

package dispatch

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/fleetrelay/internal/pkg/util/fsm"
)

// Session states.
const (
	StateNotCreated = "NotCreated"
	StateOpen       = "Open"
	StateClosing    = "Closing"
	StateClosed     = "Closed"
)

// Session events.
const (
	EventOpen   = "open"
	EventStop   = "stop"
	EventClosed = "closed"
)

// session tracks the dispatcher lifecycle. There is no transition out of
// Closed.
type session struct {
	fsm *fsm.FSM
}

// newSession builds the lifecycle. canOpen, when set, may refuse the open
// event, leaving the session in NotCreated.
func newSession(onEnter func(from, to string), canOpen func(ctx context.Context) error) *session {
	return &session{
		fsm: fsm.NewFSM(
			StateNotCreated,
			fsm.Events{
				{Name: EventOpen, Src: []string{StateNotCreated}, Dst: StateOpen},
				{Name: EventStop, Src: []string{StateNotCreated, StateOpen}, Dst: StateClosing},
				{Name: EventClosed, Src: []string{StateClosing}, Dst: StateClosed},
			},
			fsm.Callbacks{
				"before_" + EventOpen: fsmutil.WrapEvent(func(ctx context.Context, _ *fsm.Event) error {
					if canOpen == nil {
						return nil
					}
					return canOpen(ctx)
				}),
				"enter_state": func(_ context.Context, e *fsm.Event) {
					if onEnter != nil {
						onEnter(e.Src, e.Dst)
					}
				},
			},
		),
	}
}

func (s *session) fire(ctx context.Context, event string) error {
	return fsmutil.Fire(ctx, s.fsm, event)
}

func (s *session) current() string {
	return s.fsm.Current()
}

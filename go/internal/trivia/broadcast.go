package trivia

import (
	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

// Broadcaster pushes an event to every subscriber of ev.Code. Implementations must not block:
// the engine calls Broadcast while holding the session lock.
type Broadcaster interface {
	Broadcast(ev *events.Event)
}

// MultiBroadcaster fans an event out to several transports in order.
type MultiBroadcaster []Broadcaster

// Broadcast forwards ev to every non-nil broadcaster.
func (m MultiBroadcaster) Broadcast(ev *events.Event) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(ev)
		}
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(*events.Event) {}

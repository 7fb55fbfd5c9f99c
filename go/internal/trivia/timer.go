package trivia

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ResolutionSlack is added after deadline + grace before a round is resolved.
const ResolutionSlack = 10 * time.Millisecond

// RoundTimer arms one-shot resolution triggers. Timers are never cancelled: each carries the
// round index it was armed for and the resolution path drops it when that round is no longer open.
type RoundTimer struct {
	clock clockwork.Clock
	fire  func(code string, roundIndex int)
}

// NewRoundTimer returns a timer that calls fire on the given clock.
func NewRoundTimer(clock clockwork.Clock, fire func(code string, roundIndex int)) *RoundTimer {
	return &RoundTimer{clock: clock, fire: fire}
}

// Arm schedules exactly one fire(code, roundIndex) at the instant at. A past instant fires immediately.
func (t *RoundTimer) Arm(code string, roundIndex int, at time.Time) {
	d := at.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}
	t.clock.AfterFunc(d, func() {
		t.fire(code, roundIndex)
	})

	log.Debug().
		Str("code", code).
		Int("round", roundIndex).
		Time("fire_at", at).
		Dur("duration", d).
		Msg("armed round timer")
}

// fireAt is the resolution instant for a round under cfg.
func fireAt(r *Round, cfg Config) time.Time {
	return r.DeadlineAt.Add(cfg.Grace()).Add(ResolutionSlack)
}

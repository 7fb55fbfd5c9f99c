package trivia

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically drops expired sessions from the engine's registry.
type Sweeper struct {
	scheduler gocron.Scheduler
}

// NewSweeper schedules engine.Sweep every interval on clock. Call Start to begin.
func NewSweeper(engine *Engine, clock clockwork.Clock, interval time.Duration) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			engine.Sweep()
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule sweep job: %w", err)
	}

	return &Sweeper{scheduler: sched}, nil
}

// Start begins running the sweep job.
func (s *Sweeper) Start() {
	s.scheduler.Start()
	log.Info().Msg("session sweeper started")
}

// Shutdown stops the scheduler and waits for a running sweep.
func (s *Sweeper) Shutdown() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop session sweeper: %w", err)
	}
	log.Info().Msg("session sweeper stopped")
	return nil
}

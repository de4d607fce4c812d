package attendance

import (
	"context"
	"fmt"
	"time"
)

// Sweeper periodically logs out idle sessions until its context is cancelled.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	idle     time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper that runs every interval and logs out sessions
// idle for longer than idle.
func NewSweeper(tracker *Tracker, interval, idle time.Duration) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		interval: interval,
		idle:     idle,
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run blocks, sweeping once per interval, and returns when ctx is done.
// A failing sweep is logged and the loop continues.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", s.interval).Dur("idle", s.idle).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(); err != nil {
				logger.Err(err).Msg("session sweep finished with errors")
			}
		}
	}
}

// SweepOnce runs a single sweep at the current time.
func (s *Sweeper) SweepOnce() (loggedOut []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()
	return s.tracker.SweepTimeouts(s.now(), s.idle)
}

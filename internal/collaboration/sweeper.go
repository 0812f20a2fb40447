package collaboration

import (
	"context"
	"sync"
	"time"

	"github.com/casetrail/casetrail/internal/conf"
)

// Sweeper periodically marks stale presence rows offline. It is a
// background, cancellable task torn down on session end; it never blocks
// callers. Under memory pressure the interval doubles to reduce load.
type Sweeper struct {
	tracker        *Tracker
	baseInterval   time.Duration
	staleThreshold time.Duration
	underPressure  func() bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper from presence settings. underPressure is the
// advisory memory-pressure signal; nil means never under pressure.
func NewSweeper(tracker *Tracker, settings *conf.PresenceSettings, underPressure func() bool) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	if underPressure == nil {
		underPressure = func() bool { return false }
	}
	return &Sweeper{
		tracker:        tracker,
		baseInterval:   settings.SweepInterval,
		staleThreshold: settings.StaleThreshold,
		underPressure:  underPressure,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Interval returns the current sweep interval: the base interval, doubled
// while the memory-pressure signal is high.
func (s *Sweeper) Interval() time.Duration {
	if s.underPressure() {
		return s.baseInterval * 2
	}
	return s.baseInterval
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.Interval())
		defer timer.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-timer.C:
				if _, err := s.tracker.SweepStalePresence(time.Now().UTC(), s.staleThreshold); err != nil {
					// Best effort; the next pass retries.
					getLogger().Warn("presence sweep failed", "error", err)
				}
				timer.Reset(s.Interval())
			}
		}
	}()
	getLogger().Info("presence sweeper started",
		"interval", s.baseInterval,
		"stale_threshold", s.staleThreshold)
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Package session implements the resilient session bootstrapper: a small
// per-session state machine that races real collaboration-channel startup
// against a fixed deadline. Slow startup degrades the session instead of
// blocking the analyst; the data layer is fully usable in both Ready and
// Degraded, only live presence/chat push needs Ready.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/casetrail/casetrail/internal/logging"
	"github.com/casetrail/casetrail/internal/observability"
)

// State is a bootstrap state.
type State string

const (
	StateIdle           State = "Idle"
	StateInitializing   State = "Initializing"
	StateReady          State = "Ready"
	StateDegraded       State = "Degraded"
	StateReinitializing State = "Reinitializing"
)

// AllStates lists every state, for metrics labeling.
var AllStates = []string{
	string(StateIdle),
	string(StateInitializing),
	string(StateReady),
	string(StateDegraded),
	string(StateReinitializing),
}

// Channel is the collaboration channel the bootstrapper starts. The relay
// client satisfies it; tests substitute fakes with controlled latency.
type Channel interface {
	Connect(ctx context.Context) error
}

// OptionalSubsystem is a startup hook the bootstrapper may skip entirely
// under memory pressure. Skipped subsystems are never started and later
// torn down; they simply don't run for this session.
type OptionalSubsystem struct {
	Name  string
	Start func(ctx context.Context) error
}

// Status is the bootstrap state snapshot exposed to the UI. It carries no
// data-layer semantics.
type Status struct {
	State State     `json:"state"`
	Since time.Time `json:"since"`
}

var (
	sessionLogger *slog.Logger
	loggerOnce    sync.Once
	levelVar      = new(slog.LevelVar)
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		var err error
		sessionLogger, _, err = logging.NewFileLogger("logs/session.log", "session", levelVar)
		if err != nil {
			sessionLogger = logging.ForService("session")
			if sessionLogger == nil {
				sessionLogger = slog.Default().With("service", "session")
			}
		}
	})
	return sessionLogger
}

// Bootstrapper drives one session's startup.
type Bootstrapper struct {
	channel       Channel
	deadline      time.Duration
	underPressure func() bool
	optional      []OptionalSubsystem
	metrics       *observability.Metrics

	mu    sync.Mutex
	state State
	since time.Time

	wg sync.WaitGroup // background promotion goroutines
}

// NewBootstrapper creates a Bootstrapper in Idle. underPressure is the
// advisory memory signal; nil means never under pressure. metrics may be
// nil.
func NewBootstrapper(channel Channel, deadline time.Duration, underPressure func() bool, metrics *observability.Metrics) *Bootstrapper {
	if underPressure == nil {
		underPressure = func() bool { return false }
	}
	return &Bootstrapper{
		channel:       channel,
		deadline:      deadline,
		underPressure: underPressure,
		metrics:       metrics,
		state:         StateIdle,
		since:         time.Now(),
	}
}

// AddOptional registers an optional subsystem. Call before Start.
func (b *Bootstrapper) AddOptional(sub OptionalSubsystem) {
	b.optional = append(b.optional, sub)
}

// Status returns the current state and when it was entered.
func (b *Bootstrapper) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{State: b.state, Since: b.since}
}

func (b *Bootstrapper) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.since = time.Now()
	b.mu.Unlock()
	b.metrics.SetBootstrapState(string(s), AllStates)
}

// Start runs the startup race from Idle. It returns the session's startup
// outcome: Ready when the channel connected within the deadline, Degraded
// otherwise. When degraded because the channel was merely slow, the
// connect keeps running in the background and silently promotes the
// session to Ready on success.
func (b *Bootstrapper) Start(ctx context.Context) State {
	b.setState(StateInitializing)
	b.startOptionalSubsystems(ctx)
	return b.race(ctx)
}

// Retry re-runs the startup race after a degraded startup, on explicit
// user request.
func (b *Bootstrapper) Retry(ctx context.Context) State {
	b.setState(StateReinitializing)
	return b.race(ctx)
}

// race starts the real channel initialization and a deadline timer and
// lets them compete. Ties favor success over timeout.
func (b *Bootstrapper) race(ctx context.Context) State {
	done := make(chan error, 1)
	go func() {
		done <- b.channel.Connect(ctx)
	}()

	timer := time.NewTimer(b.deadline)
	defer timer.Stop()

	select {
	case err := <-done:
		return b.settle(err)
	case <-timer.C:
		// The timer fired; give a simultaneous success the win.
		select {
		case err := <-done:
			return b.settle(err)
		default:
		}
		b.setState(StateDegraded)
		getLogger().Warn("collaboration channel startup exceeded deadline, continuing degraded",
			"deadline", b.deadline)
		b.promoteWhenDone(done)
		return StateDegraded
	}
}

// settle resolves the race when the real initialization finished first.
// Outright failure degrades immediately, independent of the timer; it is
// never surfaced as a blocking error.
func (b *Bootstrapper) settle(err error) State {
	if err != nil {
		b.setState(StateDegraded)
		getLogger().Warn("collaboration channel startup failed, continuing degraded", "error", err)
		return StateDegraded
	}
	b.setState(StateReady)
	getLogger().Info("collaboration channel ready")
	return StateReady
}

// promoteWhenDone watches the still-running initialization and, if it
// eventually succeeds while the session is still Degraded, promotes to
// Ready without alerting the user.
func (b *Bootstrapper) promoteWhenDone(done <-chan error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := <-done
		if err != nil {
			getLogger().Warn("background channel startup failed", "error", err)
			return
		}
		b.mu.Lock()
		promote := b.state == StateDegraded
		if promote {
			b.state = StateReady
			b.since = time.Now()
		}
		b.mu.Unlock()
		if promote {
			b.metrics.SetBootstrapState(string(StateReady), AllStates)
			getLogger().Info("collaboration channel ready, session promoted from degraded")
		}
	}()
}

// startOptionalSubsystems starts each registered optional subsystem unless
// the memory-pressure signal is high, in which case they are skipped
// entirely rather than started and later torn down.
func (b *Bootstrapper) startOptionalSubsystems(ctx context.Context) {
	for _, sub := range b.optional {
		if b.underPressure() {
			getLogger().Info("skipping optional subsystem under memory pressure", "subsystem", sub.Name)
			continue
		}
		if err := sub.Start(ctx); err != nil {
			getLogger().Warn("optional subsystem failed to start", "subsystem", sub.Name, "error", err)
		}
	}
}

// Close waits for background promotion goroutines. Call on session end
// after cancelling the context passed to Start.
func (b *Bootstrapper) Close() {
	b.wg.Wait()
}

package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Ticker is the slice of the engine the countdown drives.
type Ticker interface {
	Tick()
}

// CountdownWorker owns the wall-clock side of the session countdown: a
// single host-level ticker invoking engine.Tick at a fixed cadence. The
// engine itself stays deterministic and is tested by calling Tick
// directly; this worker is the only place real time enters the system.
//
// Exactly one instance runs per engine. Cancelling the context stops the
// ticker, and the engine treats ticks without an in-progress session as
// no-ops, so late fires after a session ends are harmless.
type CountdownWorker struct {
	engine   Ticker
	interval time.Duration
	log      zerolog.Logger
}

// NewCountdownWorker creates a countdown worker. interval is normally one
// second; tests and demos may shorten it.
func NewCountdownWorker(engine Ticker, interval time.Duration, log zerolog.Logger) *CountdownWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &CountdownWorker{
		engine:   engine,
		interval: interval,
		log:      log.With().Str("component", "countdown_worker").Logger(),
	}
}

// Start runs the tick loop until ctx is cancelled.
func (w *CountdownWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("CountdownWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("CountdownWorker stopped")
			return
		case <-ticker.C:
			w.engine.Tick()
		}
	}
}

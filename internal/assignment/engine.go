package assignment

import (
	"context"
	"log/slog"
	"time"

	"liftctl/internal/worldview"
)

// Engine runs only while the local node is master (§4.4). On a fixed
// period it snapshots the WorldView, consults the external oracle, and
// submits the resulting task matrix to the Store.
type Engine struct {
	store      *worldview.Store
	oraclePath string
	period     time.Duration
	timeout    time.Duration
	log        *slog.Logger
}

func NewEngine(store *worldview.Store, oraclePath string, period, timeout time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		oraclePath: oraclePath,
		period:     period,
		timeout:    timeout,
		log:        log.With("component", "assignment-engine"),
	}
}

// Run ticks forever until ctx is canceled. It never retries within a
// tick — a failed or skipped period is simply resolved again next period
// (§4.4 "The engine never retries hall calls itself").
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.store.IsMaster() {
				e.tick(ctx)
			}
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	wv := e.store.View()
	in := BuildInput(wv)
	if len(in.States) == 0 {
		// §4.4 "zero eligible cabins": emit no update, hall requests wait.
		return
	}

	octx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	assignment, err := Invoke(octx, e.oraclePath, in)
	if err != nil {
		e.log.Warn("assignment oracle failed, retaining last known assignment", "error", err)
		return
	}
	if len(assignment) == 0 {
		e.log.Warn("assignment oracle returned no assignments, retaining last known assignment")
		return
	}

	e.store.SubmitAssignment(assignment)
}

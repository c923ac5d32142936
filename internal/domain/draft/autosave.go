package draft

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAutosaveDelay is the quiet interval after the last edit before a
// debounced save runs.
const DefaultAutosaveDelay = time.Second

// Autosaver debounces saves of one draft group. Every Touch restarts the
// quiet interval; only the last touch of a burst produces a save. Flush saves
// right away. Saves never overlap.
type Autosaver struct {
	delay  time.Duration
	save   func(context.Context) error
	logger zerolog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool

	saveMu sync.Mutex
}

func NewAutosaver(delay time.Duration, save func(context.Context) error, logger zerolog.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{delay: delay, save: save, logger: logger}
}

// Touch schedules a save after the quiet interval, replacing any pending one.
func (a *Autosaver) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.stopLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.closed {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()
	_ = a.run(context.Background(), gen)
}

// Flush drops the pending save, if any, and saves synchronously.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.stopLocked()
	gen := a.gen
	a.mu.Unlock()
	return a.run(ctx, gen)
}

// Cancel drops the pending save without saving.
func (a *Autosaver) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Exclusive drops the pending save, waits for a running one and calls fn
// before any other save can start. Saves scheduled before the call never run
// after fn.
func (a *Autosaver) Exclusive(fn func() error) error {
	a.mu.Lock()
	a.stopLocked()
	a.mu.Unlock()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return fn()
}

// Pending reports whether a debounced save is scheduled.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Stop cancels the pending save, waits for a running one and makes every
// later call a no-op.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	a.stopLocked()
	a.closed = true
	a.mu.Unlock()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()
}

// stopLocked bumps the generation so a timer that already fired but has not
// taken the lock yet turns into a no-op.
func (a *Autosaver) stopLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// run saves unless the generation moved on while it waited for the previous
// save, in which case a Cancel, Exclusive or newer Touch superseded it.
func (a *Autosaver) run(ctx context.Context, gen uint64) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	a.mu.Lock()
	stale := gen != a.gen || a.closed
	a.mu.Unlock()
	if stale {
		return nil
	}
	err := a.save(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("draft autosave failed")
	}
	return err
}

package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Runner drives a simulation, one tick per frame, and dispatches tick reports
// to registered handlers.
type Runner struct {
	Simulation *Simulation

	// The duration of a frame. A zero duration runs ticks back to back.
	FrameDuration time.Duration

	// The number of ticks after which Run returns. Zero runs until the
	// context is canceled.
	MaxTicks uint32

	handlerMutex  sync.RWMutex
	nextHandlerID uint64
	handlers      map[uint64]func(Report)

	latestMutex sync.RWMutex
	latest      *Report
}

// HandleReport registers a handler called with the report of every completed
// tick. Handlers run on the runner goroutine and must not block.
func (r *Runner) HandleReport(h func(Report)) (cancel func()) {
	r.handlerMutex.Lock()
	defer r.handlerMutex.Unlock()

	if r.handlers == nil {
		r.handlers = make(map[uint64]func(Report))
	}

	r.nextHandlerID++
	id := r.nextHandlerID
	r.handlers[id] = h

	return func() {
		r.handlerMutex.Lock()
		defer r.handlerMutex.Unlock()

		delete(r.handlers, id)
	}
}

// Run ticks the simulation until the context is canceled, MaxTicks is reached
// or a tick fails. A failed tick is returned as an error.
func (r *Runner) Run(ctx context.Context) error {
	var frames <-chan time.Time
	if r.FrameDuration > 0 {
		ticker := time.NewTicker(r.FrameDuration)
		defer ticker.Stop()
		frames = ticker.C
	}

	for ticks := uint32(0); r.MaxTicks == 0 || ticks < r.MaxTicks; ticks++ {
		if frames != nil {
			select {
			case <-ctx.Done():
				return nil

			case <-frames:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		report, err := r.Simulation.Tick(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if err != nil {
			instrumentTickError(err)
			return errors.New("simulation tick failed").
				WithType(errors.Type(err)).
				WithTag("time", r.Simulation.CurrentTime()).
				Wrap(err)
		}

		instrumentTick(report)
		r.setLatest(report)
		r.dispatch(report)
	}

	logs.WithTag("ticks", r.MaxTicks).
		WithTag("time", r.Simulation.CurrentTime()).
		Info("simulation finished")
	return nil
}

func (r *Runner) dispatch(report Report) {
	r.handlerMutex.RLock()
	defer r.handlerMutex.RUnlock()

	for _, h := range r.handlers {
		h(report)
	}
}

func (r *Runner) setLatest(report Report) {
	r.latestMutex.Lock()
	defer r.latestMutex.Unlock()

	r.latest = &report
}

// Latest returns the report of the last completed tick.
func (r *Runner) Latest() (Report, bool) {
	r.latestMutex.RLock()
	defer r.latestMutex.RUnlock()

	if r.latest == nil {
		return Report{}, false
	}
	return *r.latest, true
}

// Ready reports whether at least one tick completed.
func (r *Runner) Ready() bool {
	_, ok := r.Latest()
	return ok
}

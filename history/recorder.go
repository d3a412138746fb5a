package history

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	defaultRecorderBuffer = 1024
	defaultBatchSize      = 64
)

// Recorder saves the reports of a run in batches, off the simulation
// goroutine.
type Recorder struct {
	store         *Store
	runID         string
	flushInterval time.Duration

	reports   chan simulation.Report
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRecorder starts a recorder that writes the reports of the given run at
// least every flush interval.
func NewRecorder(store *Store, runID string, flushInterval time.Duration) *Recorder {
	r := &Recorder{
		store:         store,
		runID:         runID,
		flushInterval: flushInterval,
		reports:       make(chan simulation.Report, defaultRecorderBuffer),
		stop:          make(chan struct{}),
	}

	r.wg.Add(1)
	go r.writer()
	return r
}

// HandleReport enqueues a report. It never blocks: when the buffer is full,
// the report is dropped.
func (r *Recorder) HandleReport(report simulation.Report) {
	select {
	case r.reports <- report:
	default:
		instrumentDroppedReport()
		logs.WithTag("run_id", r.runID).
			WithTag("time", report.Time).
			Debug("history buffer is full, report dropped")
	}
}

// Close flushes the buffered reports and stops the recorder.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
	})
}

func (r *Recorder) writer() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]simulation.Report, 0, defaultBatchSize)

	for {
		select {
		case report := <-r.reports:
			batch = append(batch, report)
			if len(batch) >= defaultBatchSize {
				batch = r.flush(batch)
			}

		case <-ticker.C:
			batch = r.flush(batch)

		case <-r.stop:
			for len(r.reports) > 0 {
				batch = append(batch, <-r.reports)
			}
			r.flush(batch)
			return
		}
	}
}

func (r *Recorder) flush(batch []simulation.Report) []simulation.Report {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.store.SaveReports(ctx, r.runID, batch); err != nil {
		instrumentError(err)
		logs.Warn(errors.New("flushing reports failed").
			WithType(errors.Type(err)).
			WithTag("run_id", r.runID).
			WithTag("count", len(batch)).
			Wrap(err))
	} else {
		instrumentSavedReports(len(batch))
	}
	return batch[:0]
}

package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ReportLogger aggregates tick reports and logs a summary at a regular
// interval.
type ReportLogger struct {
	runID              string
	summaryInterval    time.Duration
	closeSummaryWorker func()

	mutex      sync.Mutex
	ticks      int
	firstTime  uint32
	last       Report
	infections int
	deaths     int
	removed    int
}

func NewReportLogger(runID string, summaryInterval time.Duration) *ReportLogger {
	ctx, cancel := context.WithCancel(context.Background())

	l := &ReportLogger{
		runID:              runID,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
	}

	go l.startSummaryWorker(ctx)
	return l
}

// HandleReport records a report. It is meant to be registered with
// Runner.HandleReport.
func (l *ReportLogger) HandleReport(r Report) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.ticks == 0 {
		l.firstTime = r.Time
	}
	l.ticks++
	l.last = r
	l.infections += r.NewInfections
	l.deaths += r.NewDeaths
	l.removed = r.Removed

	if r.NewDeaths != 0 {
		logs.WithTag("run_id", l.runID).
			WithTag("time", r.Time).
			WithTag("deaths", r.NewDeaths).
			Debug("persons died")
	}
}

// Close stops the summary worker and logs what was not summarized yet.
func (l *ReportLogger) Close() {
	l.closeSummaryWorker()
	l.logSummary()
}

func (l *ReportLogger) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(l.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			l.logSummary()
		}
	}
}

func (l *ReportLogger) logSummary() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.ticks == 0 {
		return
	}

	logs.WithTag("run_id", l.runID).
		WithTag("time_interval", l.summaryInterval).
		WithTag("ticks", l.ticks).
		WithTag("from_time", l.firstTime).
		WithTag("to_time", l.last.Time).
		WithTag("new_infections", l.infections).
		WithTag("new_deaths", l.deaths).
		WithTag("removed", l.removed).
		WithTag("healthy", l.last.Counts.Healthy).
		WithTag("infectious", l.last.Counts.Infectious).
		WithTag("sick", l.last.Counts.Sick).
		WithTag("dead", l.last.Counts.Dead).
		WithTag("neighbors", l.last.Neighbors).
		Info("simulation summary")

	l.ticks = 0
	l.infections = 0
	l.deaths = 0
}

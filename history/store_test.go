package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aukilabs/contagion/models"
	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRun(t *testing.T, s *Store, id string) Run {
	run := Run{
		ID:           id,
		Seed:         42,
		Config:       simulation.DefaultConfig(),
		FeatureFlags: []string{"DISABLE_DEATH", "DISABLE_HISTORY"},
		StartedAt:    time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC),
	}
	require.NoError(t, s.SaveRun(context.Background(), run))
	return run
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	newTestRun(t, s, "run-1")
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(context.Background(), "run-1")
	require.NoError(t, err)
}

func TestStoreRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := newTestRun(t, s, "run-1")

	t.Run("saved run is returned", func(t *testing.T) {
		got, err := s.Run(ctx, run.ID)
		require.NoError(t, err)
		require.Equal(t, run.ID, got.ID)
		require.Equal(t, run.Seed, got.Seed)
		require.Equal(t, run.Config, got.Config)
		require.Equal(t, run.FeatureFlags, got.FeatureFlags)
		require.True(t, run.StartedAt.Equal(got.StartedAt))
	})

	t.Run("run without flags", func(t *testing.T) {
		require.NoError(t, s.SaveRun(ctx, Run{ID: "run-2", StartedAt: time.Now()}))

		got, err := s.Run(ctx, "run-2")
		require.NoError(t, err)
		require.Empty(t, got.FeatureFlags)
	})

	t.Run("duplicate run is rejected", func(t *testing.T) {
		err := s.SaveRun(ctx, run)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeStorage))
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := s.Run(ctx, "unknown")
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeRunNotFound))
	})
}

func TestStoreReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := newTestRun(t, s, "run-1")
	newTestRun(t, s, "run-2")

	reports := []simulation.Report{
		{
			Time:          1,
			Counts:        models.Counts{Healthy: 10, Infectious: 5},
			Population:    15,
			NewInfections: 2,
			Queries:       15,
			Candidates:    40,
			Neighbors:     20,
			Duration:      time.Millisecond,
		},
		{
			Time:       0,
			Counts:     models.Counts{Healthy: 12, Infectious: 3},
			Population: 15,
		},
		{
			Time:       2,
			Counts:     models.Counts{Healthy: 9, Sick: 5, Dead: 1},
			Population: 14,
			Removed:    1,
			NewDeaths:  1,
		},
	}

	require.NoError(t, s.SaveReports(ctx, run.ID, reports[:2]))
	require.NoError(t, s.SaveReport(ctx, run.ID, reports[2]))
	require.NoError(t, s.SaveReport(ctx, "run-2", reports[0]))

	rows, err := s.Reports(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, reports[1], rows[0].Report)
	require.Equal(t, reports[0], rows[1].Report)
	require.Equal(t, reports[2], rows[2].Report)
	for _, row := range rows {
		require.Equal(t, run.ID, row.RunID)
	}

	t.Run("saving a tick twice fails", func(t *testing.T) {
		err := s.SaveReport(ctx, run.ID, reports[0])
		require.True(t, errors.IsType(err, ErrTypeStorage))
	})

	t.Run("failed batch is rolled back", func(t *testing.T) {
		err := s.SaveReports(ctx, "run-2", []simulation.Report{{Time: 7}, {Time: 1}})
		require.Error(t, err)

		rows, err := s.Reports(ctx, "run-2")
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("reports of an unknown run are rejected", func(t *testing.T) {
		err := s.SaveReport(ctx, "unknown", reports[0])
		require.True(t, errors.IsType(err, ErrTypeStorage))
	})

	t.Run("unknown run has no reports", func(t *testing.T) {
		rows, err := s.Reports(ctx, "unknown")
		require.NoError(t, err)
		require.Empty(t, rows)
	})

	t.Run("empty batch", func(t *testing.T) {
		require.NoError(t, s.SaveReports(ctx, run.ID, nil))
	})
}

func TestRecorder(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s, "run-1")

	r := NewRecorder(s, run.ID, time.Hour)
	for i := 0; i < defaultBatchSize+10; i++ {
		r.HandleReport(simulation.Report{Time: uint32(i), Population: i})
	}
	r.Close()
	r.Close()

	rows, err := s.Reports(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, rows, defaultBatchSize+10)
	for i, row := range rows {
		require.Equal(t, uint32(i), row.Report.Time)
		require.Equal(t, i, row.Report.Population)
	}
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s, "run-1")

	r := NewRecorder(s, run.ID, time.Millisecond)
	defer r.Close()

	r.HandleReport(simulation.Report{Time: 0})

	require.Eventually(t, func() bool {
		rows, err := s.Reports(context.Background(), run.ID)
		return err == nil && len(rows) == 1
	}, time.Second, time.Millisecond*5)
}

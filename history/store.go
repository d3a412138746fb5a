package history

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aukilabs/contagion/models"
	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	_ "modernc.org/sqlite"
)

const (
	ErrTypeStorage     = "history_storage"
	ErrTypeRunNotFound = "history_run_not_found"
)

// Run describes a simulation run.
type Run struct {
	ID           string            `json:"id"`
	Seed         int64             `json:"seed"`
	Config       simulation.Config `json:"config"`
	FeatureFlags []string          `json:"feature_flags"`
	StartedAt    time.Time         `json:"started_at"`
}

// ReportRow is a tick report stored for a run.
type ReportRow struct {
	RunID  string            `json:"run_id"`
	Report simulation.Report `json:"report"`
}

// Store persists runs and their tick reports in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New("opening database failed").
			WithType(ErrTypeStorage).
			WithTag("path", path).
			Wrap(err)
	}

	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New("configuring database failed").
				WithType(ErrTypeStorage).
				WithTag("path", path).
				WithTag("pragma", pragma).
				Wrap(err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		config TEXT NOT NULL,
		feature_flags TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT NOT NULL REFERENCES runs(id),
		time INTEGER NOT NULL,
		healthy INTEGER NOT NULL DEFAULT 0,
		infectious INTEGER NOT NULL DEFAULT 0,
		sick INTEGER NOT NULL DEFAULT 0,
		dead INTEGER NOT NULL DEFAULT 0,
		population INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		new_infections INTEGER NOT NULL DEFAULT 0,
		new_deaths INTEGER NOT NULL DEFAULT 0,
		queries INTEGER NOT NULL DEFAULT 0,
		candidates INTEGER NOT NULL DEFAULT 0,
		neighbors INTEGER NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, time)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.New("migrating database failed").
			WithType(ErrTypeStorage).
			Wrap(err)
	}
	return nil
}

// SaveRun stores a new run.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	config, err := json.Marshal(r.Config)
	if err != nil {
		return errors.New("encoding run config failed").
			WithTag("run_id", r.ID).
			Wrap(err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO runs (id, seed, config, feature_flags, started_at) VALUES (?, ?, ?, ?, ?)",
		r.ID,
		r.Seed,
		string(config),
		strings.Join(r.FeatureFlags, ","),
		r.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.New("saving run failed").
			WithType(ErrTypeStorage).
			WithTag("run_id", r.ID).
			Wrap(err)
	}
	return nil
}

// Run returns the run with the given id.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	var (
		r         Run
		config    string
		flags     string
		startedAt string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, seed, config, feature_flags, started_at FROM runs WHERE id = ?",
		id,
	).Scan(&r.ID, &r.Seed, &config, &flags, &startedAt)
	if err == sql.ErrNoRows {
		return Run{}, errors.New("run not found").
			WithType(ErrTypeRunNotFound).
			WithTag("run_id", id)
	}
	if err != nil {
		return Run{}, errors.New("reading run failed").
			WithType(ErrTypeStorage).
			WithTag("run_id", id).
			Wrap(err)
	}

	if err := json.Unmarshal([]byte(config), &r.Config); err != nil {
		return Run{}, errors.New("decoding run config failed").
			WithTag("run_id", id).
			Wrap(err)
	}
	if flags != "" {
		r.FeatureFlags = strings.Split(flags, ",")
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, errors.New("decoding run start time failed").
			WithTag("run_id", id).
			Wrap(err)
	}
	return r, nil
}

// SaveReport stores the report of a tick of the given run.
func (s *Store) SaveReport(ctx context.Context, runID string, r simulation.Report) error {
	return s.SaveReports(ctx, runID, []simulation.Report{r})
}

// SaveReports stores tick reports of the given run in a single transaction.
func (s *Store) SaveReports(ctx context.Context, runID string, reports []simulation.Report) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New("beginning transaction failed").
			WithType(ErrTypeStorage).
			Wrap(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO reports (
		run_id, time, healthy, infectious, sick, dead, population, removed,
		new_infections, new_deaths, queries, candidates, neighbors, duration
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.New("preparing report insert failed").
			WithType(ErrTypeStorage).
			Wrap(err)
	}
	defer stmt.Close()

	for _, r := range reports {
		_, err := stmt.ExecContext(ctx,
			runID,
			r.Time,
			r.Counts.Healthy,
			r.Counts.Infectious,
			r.Counts.Sick,
			r.Counts.Dead,
			r.Population,
			r.Removed,
			r.NewInfections,
			r.NewDeaths,
			r.Queries,
			r.Candidates,
			r.Neighbors,
			int64(r.Duration),
		)
		if err != nil {
			return errors.New("saving report failed").
				WithType(ErrTypeStorage).
				WithTag("run_id", runID).
				WithTag("time", r.Time).
				Wrap(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New("committing reports failed").
			WithType(ErrTypeStorage).
			WithTag("run_id", runID).
			WithTag("count", len(reports)).
			Wrap(err)
	}
	return nil
}

// Reports returns the stored reports of the given run ordered by time.
func (s *Store) Reports(ctx context.Context, runID string) ([]ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT
		time, healthy, infectious, sick, dead, population, removed,
		new_infections, new_deaths, queries, candidates, neighbors, duration
	FROM reports
	WHERE run_id = ?
	ORDER BY time`,
		runID,
	)
	if err != nil {
		return nil, errors.New("reading reports failed").
			WithType(ErrTypeStorage).
			WithTag("run_id", runID).
			Wrap(err)
	}
	defer rows.Close()

	var res []ReportRow
	for rows.Next() {
		var (
			r        simulation.Report
			counts   models.Counts
			duration int64
		)

		err := rows.Scan(
			&r.Time,
			&counts.Healthy,
			&counts.Infectious,
			&counts.Sick,
			&counts.Dead,
			&r.Population,
			&r.Removed,
			&r.NewInfections,
			&r.NewDeaths,
			&r.Queries,
			&r.Candidates,
			&r.Neighbors,
			&duration,
		)
		if err != nil {
			return nil, errors.New("scanning report failed").
				WithType(ErrTypeStorage).
				WithTag("run_id", runID).
				Wrap(err)
		}

		r.Counts = counts
		r.Duration = time.Duration(duration)
		res = append(res, ReportRow{
			RunID:  runID,
			Report: r,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New("reading reports failed").
			WithType(ErrTypeStorage).
			WithTag("run_id", runID).
			Wrap(err)
	}
	return res, nil
}

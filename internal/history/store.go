// Package history persists workflow runs in a local SQLite database.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/agent-deploy/internal/domain"
)

// Store provides SQLite-backed run history
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, errors.Wrap(err, "creating history dir")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases consistent across calls
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRun starts a run record for cfg with a fresh id
func NewRun(cfg domain.RunConfig, startedAt time.Time) *domain.Run {
	return &domain.Run{
		ID:        uuid.NewString(),
		Target:    cfg.Target,
		Profile:   cfg.Profile,
		JobID:     cfg.JobID,
		StartedAt: startedAt,
	}
}

// SaveRun inserts or replaces a run together with its phase results
func (s *Store) SaveRun(run *domain.Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, target, profile, job_id, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at
	`,
		run.ID,
		string(run.Target),
		run.Profile,
		run.JobID,
		string(run.Status),
		run.StartedAt.UTC(),
		finished,
	)
	if err != nil {
		return errors.Wrap(err, "saving run")
	}

	if _, err := tx.Exec(`DELETE FROM phases WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	for i, p := range run.Phases {
		_, err := tx.Exec(`
			INSERT INTO phases (run_id, position, phase, status, command, exit_code, message, output, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			i,
			string(p.Phase),
			string(p.Status),
			p.Command,
			p.ExitCode,
			p.Message,
			p.Output,
			p.Duration.Milliseconds(),
		)
		if err != nil {
			return errors.Wrapf(err, "saving %s phase", p.Phase)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run and its phases by id
func (s *Store) GetRun(id string) (*domain.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, target, profile, job_id, status, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Phases, err = s.phases(run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListOptions specifies filters for listing runs
type ListOptions struct {
	Status domain.RunStatus
	Limit  int
}

// ListRuns returns runs newest first, phases included
func (s *Store) ListRuns(opts ListOptions) ([]*domain.Run, error) {
	query := `SELECT id, target, profile, job_id, status, started_at, finished_at FROM runs WHERE 1=1`
	var args []interface{}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		if run.Phases, err = s.phases(run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) phases(runID string) ([]domain.PhaseResult, error) {
	rows, err := s.db.Query(`
		SELECT phase, status, command, exit_code, message, output, duration_ms
		FROM phases WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phases []domain.PhaseResult
	for rows.Next() {
		var p domain.PhaseResult
		var phase, status string
		var command, message, output sql.NullString
		var exitCode, durationMS sql.NullInt64

		if err := rows.Scan(&phase, &status, &command, &exitCode, &message, &output, &durationMS); err != nil {
			return nil, err
		}
		p.Phase = domain.PhaseName(phase)
		p.Status = domain.PhaseStatus(status)
		p.Command = command.String
		p.ExitCode = int(exitCode.Int64)
		p.Message = message.String
		p.Output = output.String
		p.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var target, status string
	var profile, jobID sql.NullString
	var finished sql.NullTime

	err := row.Scan(&run.ID, &target, &profile, &jobID, &status, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	run.Target = domain.Target(target)
	run.Status = domain.RunStatus(status)
	run.Profile = profile.String
	run.JobID = jobID.String
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

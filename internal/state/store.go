// Package state keeps a local history of apply runs in SQLite: which spec was
// applied, what every logical id resolved to, and the resulting outputs.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	environment TEXT NOT NULL,
	region      TEXT NOT NULL,
	digest      TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS resources (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	logical_id  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	physical_id TEXT NOT NULL,
	attributes  TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (run_id, logical_id)
);
CREATE TABLE IF NOT EXISTS outputs (
	run_id TEXT NOT NULL REFERENCES runs(id),
	name   TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (run_id, name)
);
`

// Run is one apply attempt.
type Run struct {
	ID          string
	Project     string
	Environment string
	Region      string
	Digest      string
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Resource is what one logical id resolved to during a run.
type Resource struct {
	LogicalID  string
	Kind       string
	PhysicalID string
	Attributes map[string]string
}

// Store is a SQLite-backed run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and if needed creates) the store at path. ":memory:" keeps the
// history in process.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	// An in-memory database lives per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records the start of a run and returns it.
func (s *Store) Begin(ctx context.Context, project, environment, region, digest string) (*Run, error) {
	run := &Run{
		ID:          uuid.New().String(),
		Project:     project,
		Environment: environment,
		Region:      region,
		Digest:      digest,
		Status:      StatusRunning,
		StartedAt:   s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, environment, region, digest, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.Environment, run.Region, run.Digest, run.Status, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// Finish stores the resources and outputs of a run and marks it succeeded, or
// failed when runErr is non-nil. Resources are kept either way so a failed run
// shows how far it got.
func (s *Store) Finish(ctx context.Context, runID string, resources []Resource, outputs map[string]string, runErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range resources {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return fmt.Errorf("encoding attributes of %s: %w", r.LogicalID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO resources (run_id, logical_id, kind, physical_id, attributes) VALUES (?, ?, ?, ?, ?)`,
			runID, r.LogicalID, r.Kind, r.PhysicalID, string(attrs),
		); err != nil {
			return fmt.Errorf("recording resource %s: %w", r.LogicalID, err)
		}
	}
	for name, value := range outputs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO outputs (run_id, name, value) VALUES (?, ?, ?)`,
			runID, name, value,
		); err != nil {
			return fmt.Errorf("recording output %s: %w", name, err)
		}
	}

	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, s.now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return tx.Commit()
}

const runColumns = `id, project, environment, region, digest, status, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var started, finished string
	if err := row.Scan(&r.ID, &r.Project, &r.Environment, &r.Region, &r.Digest, &r.Status, &r.Error, &started, &finished); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished != "" {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	}
	return &r, nil
}

// Get returns the run with id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	return r, nil
}

// Latest returns the most recent successful run of project/environment.
func (s *Store) Latest(ctx context.Context, project, environment string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE project = ? AND environment = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		project, environment, StatusSucceeded,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no successful run of %s-%s", ErrNotFound, project, environment)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	return r, nil
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outputs returns the outputs recorded for a run.
func (s *Store) Outputs(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM outputs WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading outputs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("reading outputs: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Resources returns the resources recorded for a run, sorted by logical id.
func (s *Store) Resources(ctx context.Context, runID string) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT logical_id, kind, physical_id, attributes FROM resources WHERE run_id = ? ORDER BY logical_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading resources: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var r Resource
		var attrs string
		if err := rows.Scan(&r.LogicalID, &r.Kind, &r.PhysicalID, &attrs); err != nil {
			return nil, fmt.Errorf("reading resources: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes of %s: %w", r.LogicalID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

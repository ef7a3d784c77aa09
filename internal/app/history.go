package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Run History Ledger
// =============================================================================

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Run is one recorded orchestrator invocation.
type Run struct {
	RunID       string    `db:"run_id"`
	Environment string    `db:"environment"`
	Operation   string    `db:"operation"`
	Outcome     string    `db:"outcome"`
	ErrorKind   string    `db:"error_kind"`
	StartedAt   time.Time `db:"started_at"`
	DurationMS  int64     `db:"duration_ms"`
}

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	environment TEXT NOT NULL,
	operation   TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_environment ON runs(environment, started_at);
`

// History is the append-only ledger of orchestrator runs, one row per
// invocation. It is an audit trail only - lifecycle state lives in the
// environment records, never here.
type History struct {
	db *sqlx.DB
}

// OpenHistory opens (creating if needed) the ledger database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record appends one run. A missing run id is assigned.
func (h *History) Record(run Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}

	_, err := h.db.NamedExec(`
		INSERT INTO runs (run_id, environment, operation, outcome, error_kind, started_at, duration_ms)
		VALUES (:run_id, :environment, :operation, :outcome, :error_kind, :started_at, :duration_ms)`,
		run)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the recorded runs for an environment, most recent first.
func (h *History) Runs(environment string) ([]Run, error) {
	var runs []Run
	err := h.db.Select(&runs, `
		SELECT run_id, environment, operation, outcome, error_kind, started_at, duration_ms
		FROM runs WHERE environment = ? ORDER BY started_at DESC`,
		environment)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

// Package history keeps a SQLite log of finished reconstruction jobs.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"photogrammetry-studio/internal/domain"
	"photogrammetry-studio/internal/jobs"
)

// Store wraps SQLite-backed persistence for job summaries.
type Store struct {
	db *sql.DB
}

// Record is one persisted job.
type Record struct {
	ID            string               `json:"id"`
	Outcome       domain.JobPhase      `json:"outcome"`
	InputDir      string               `json:"inputDir"`
	OutputPath    string               `json:"outputPath"`
	Artifact      string               `json:"artifact,omitempty"`
	Error         string               `json:"error,omitempty"`
	Configuration domain.Configuration `json:"configuration"`
	StartedAt     time.Time            `json:"startedAt"`
	FinishedAt    time.Time            `json:"finishedAt"`
}

// Duration is the wall time the job spent with the engine.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Open opens (or creates) the database at path and ensures schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reconstruction_jobs (
            id TEXT PRIMARY KEY,
            outcome TEXT NOT NULL,
            input_dir TEXT NOT NULL,
            output_path TEXT NOT NULL,
            artifact TEXT,
            error_message TEXT,
            config_json TEXT NOT NULL,
            started_at INTEGER NOT NULL,
            finished_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_reconstruction_jobs_started ON reconstruction_jobs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordJob stores the summary of a finished job.
func (s *Store) RecordJob(summary jobs.Summary) error {
	if s == nil {
		return nil
	}
	if summary.JobID == "" {
		return errors.New("job summary without id")
	}

	configJSON, err := json.Marshal(summary.Configuration)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO reconstruction_jobs (id, outcome, input_dir, output_path, artifact, error_message, config_json, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		summary.JobID,
		string(summary.Outcome),
		summary.Configuration.Input,
		summary.Configuration.OutputPath(),
		summary.Artifact,
		summary.Error,
		string(configJSON),
		summary.StartedAt.UnixMilli(),
		summary.FinishedAt.UnixMilli(),
	)
	return err
}

// Recent returns the latest jobs, newest first, up to limit.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`SELECT id, outcome, input_dir, output_path, artifact, error_message, config_json, started_at, finished_at
        FROM reconstruction_jobs ORDER BY started_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			rec                 Record
			outcome, configJSON string
			artifact, errorMsg  sql.NullString
			started, finished   int64
		)
		if err := rows.Scan(&rec.ID, &outcome, &rec.InputDir, &rec.OutputPath, &artifact, &errorMsg, &configJSON, &started, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(configJSON), &rec.Configuration); err != nil {
			return nil, fmt.Errorf("unmarshal configuration of %s: %w", rec.ID, err)
		}
		rec.Outcome = domain.JobPhase(outcome)
		rec.Artifact = artifact.String
		rec.Error = errorMsg.String
		rec.StartedAt = time.UnixMilli(started).UTC()
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

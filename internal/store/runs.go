// Package store keeps a SQLite index of duel runs and their rounds so
// history can be queried without walking run directories.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"promptduel/internal/logging"
	"promptduel/internal/tournament"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists runs and round records.
type RunStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	now    func() time.Time
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID          string
	RunDir      string
	Mode        string
	DatasetFile string
	StartedAt   time.Time
	FinishedAt  *time.Time
	RoundsRun   int
	Promotions  int
	StopReason  string
}

// RoundRow is the indexed projection of one round record.
type RoundRow struct {
	RunID          string
	Round          int
	Decision       string
	Recommendation string
	Reason         string
	TrainAPass     int
	TrainBPass     int
	TrainTotal     int
	TrainAPassRate float64
	TrainBPassRate float64
	HoldoutChecked bool
	MutationSource string
	CreatedAt      time.Time
	// Record is the full decision log line.
	Record string
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*RunStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logging.StoreError("Failed to create store directory for %s: %v", path, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}

	s := &RunStore{db: db, dbPath: path, now: time.Now}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize run store schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.Store("Run store initialized at %s", path)
	return s, nil
}

func (s *RunStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		run_dir TEXT NOT NULL,
		mode TEXT NOT NULL,
		dataset_file TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		rounds_run INTEGER NOT NULL DEFAULT 0,
		promotions INTEGER NOT NULL DEFAULT 0,
		stop_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS rounds (
		run_id TEXT NOT NULL REFERENCES runs(id),
		round INTEGER NOT NULL,
		decision TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		reason TEXT NOT NULL,
		train_a_pass INTEGER NOT NULL,
		train_b_pass INTEGER NOT NULL,
		train_total INTEGER NOT NULL,
		train_a_pass_rate REAL NOT NULL,
		train_b_pass_rate REAL NOT NULL,
		holdout_checked INTEGER NOT NULL DEFAULT 0,
		mutation_source TEXT,
		created_at TEXT NOT NULL,
		record TEXT NOT NULL,
		PRIMARY KEY (run_id, round)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_rounds_decision ON rounds(decision);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun inserts a run row and returns its id, generating one when
// info.ID is empty.
func (s *RunStore) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, run_dir, mode, dataset_file, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.RunDir, info.Mode, info.DatasetFile, formatTime(info.StartedAt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	logging.StoreDebug("Began run %s (%s)", info.ID, info.RunDir)
	return info.ID, nil
}

// AppendRound indexes one round record. Rounds are never updated.
func (s *RunStore) AppendRound(ctx context.Context, rec *tournament.RoundRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("round %d has no run id", rec.Round)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := rec.Train.ASummary, rec.Train.BSummary
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rounds
		(run_id, round, decision, recommendation, reason, train_a_pass, train_b_pass,
		 train_total, train_a_pass_rate, train_b_pass_rate, holdout_checked,
		 mutation_source, created_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Round, string(rec.Decision.Decision), rec.Decision.Recommendation,
		rec.Decision.Reason, a.PassCount, b.PassCount, a.TotalCases, a.PassRate, b.PassRate,
		boolInt(rec.Holdout.Checked), string(rec.Decision.MutationSource),
		formatTime(s.now()), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert round %d: %w", rec.Round, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *RunStore) FinishRun(ctx context.Context, summary *tournament.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, rounds_run = ?, promotions = ?, stop_reason = ?
		WHERE id = ?`,
		formatTime(s.now()), summary.RoundsRun, summary.Promotions, summary.StopReason, summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, summary.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_dir, mode, dataset_file, started_at, finished_at, rounds_run, promotions, stop_reason
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info                RunInfo
			dataset, stop, done sql.NullString
			started             string
		)
		if err := rows.Scan(&info.ID, &info.RunDir, &info.Mode, &dataset, &started, &done,
			&info.RoundsRun, &info.Promotions, &stop); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.DatasetFile = dataset.String
		info.StopReason = stop.String
		info.StartedAt = parseTime(started)
		if done.Valid {
			t := parseTime(done.String)
			info.FinishedAt = &t
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Rounds returns the rounds of one run in order.
func (s *RunStore) Rounds(ctx context.Context, runID string) ([]RoundRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, round, decision, recommendation, reason, train_a_pass, train_b_pass,
		       train_total, train_a_pass_rate, train_b_pass_rate, holdout_checked,
		       mutation_source, created_at, record
		FROM rounds WHERE run_id = ? ORDER BY round`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var out []RoundRow
	for rows.Next() {
		var (
			r       RoundRow
			holdout int
			source  sql.NullString
			created string
		)
		if err := rows.Scan(&r.RunID, &r.Round, &r.Decision, &r.Recommendation, &r.Reason,
			&r.TrainAPass, &r.TrainBPass, &r.TrainTotal, &r.TrainAPassRate, &r.TrainBPassRate,
			&holdout, &source, &created, &r.Record); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		r.HoldoutChecked = holdout != 0
		r.MutationSource = source.String
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

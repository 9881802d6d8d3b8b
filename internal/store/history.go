package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oakmontlabs/stereobench/internal/config"
	"github.com/oakmontlabs/stereobench/internal/metrics"
)

const (
	DefaultSQLitePath = "data/stereobench.db"
	defaultListLimit  = 50
)

// Store persists evaluation runs and their per-category metrics in SQLite.
type Store struct {
	db *sql.DB
}

// Run is one persisted evaluation: which model was evaluated against which
// gold/predictions files, and the resulting metric rows.
type Run struct {
	ID              string      `json:"id"`
	Model           string      `json:"model"`
	GoldPath        string      `json:"gold_path"`
	PredictionsPath string      `json:"predictions_path"`
	CreatedAt       time.Time   `json:"created_at"`
	Metrics         []MetricRow `json:"metrics,omitempty"`
}

// MetricRow is one (track, category) metric triple of a run.
type MetricRow struct {
	Track    string  `json:"track"`
	Category string  `json:"category"`
	Items    int     `json:"items"`
	LMS      float64 `json:"lms"`
	SS       float64 `json:"ss"`
	ICAT     float64 `json:"icat"`
	Skipped  int     `json:"skipped"`
}

// NewRun flattens a report into a Run ready for Save.
func NewRun(goldPath, predictionsPath string, rep *metrics.Report) *Run {
	run := &Run{
		ID:              uuid.NewString(),
		GoldPath:        goldPath,
		PredictionsPath: predictionsPath,
		CreatedAt:       time.Now().UTC(),
	}
	if rep == nil {
		return run
	}
	run.Model = rep.Model
	for _, tr := range rep.Tracks() {
		for _, c := range append(tr.Categories, tr.Overall) {
			run.Metrics = append(run.Metrics, MetricRow{
				Track:    tr.Track,
				Category: c.Category,
				Items:    c.Items,
				LMS:      c.LMS,
				SS:       c.SS,
				ICAT:     c.ICAT,
				Skipped:  c.Skipped(),
			})
		}
	}
	return run
}

// Open resolves storage config into a Store.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("store: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewStore(path)
	case "memory":
		return NewStore(":memory:")
	default:
		return nil, fmt.Errorf("store: unsupported type %q", storageType)
	}
}

// NewStore opens or creates a SQLite store at the given path.
func NewStore(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("store: empty db path")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping db: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("store: nil db")
	}

	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			gold_path TEXT NOT NULL,
			predictions_path TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			track TEXT NOT NULL,
			category TEXT NOT NULL,
			items INTEGER NOT NULL,
			lms REAL NOT NULL,
			ss REAL NOT NULL,
			icat REAL NOT NULL,
			skipped INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_metrics_run_id ON run_metrics(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes a run and its metric rows in one transaction.
func (s *Store) Save(ctx context.Context, run *Run) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("store: run missing id")
	}
	if len(run.Metrics) == 0 {
		return errors.New("store: run has no metrics")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, model, gold_path, predictions_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.GoldPath, run.PredictionsPath, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert run %s: %w", run.ID, err)
	}

	for _, m := range run.Metrics {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, track, category, items, lms, ss, icat, skipped)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, m.Track, m.Category, m.Items, m.LMS, m.SS, m.ICAT, m.Skipped,
		)
		if err != nil {
			return fmt.Errorf("store: insert metric %s/%s: %w", m.Track, m.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, without metric rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, gold_path, predictions_path, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// GetRun returns one run with its metric rows.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, gold_path, predictions_path, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: run %q not found: %w", id, sql.ErrNoRows)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT track, category, items, lms, ss, icat, skipped
		 FROM run_metrics WHERE run_id = ? ORDER BY track, category`, id)
	if err != nil {
		return nil, fmt.Errorf("store: run metrics %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m MetricRow
		if err := rows.Scan(&m.Track, &m.Category, &m.Items, &m.LMS, &m.SS, &m.ICAT, &m.Skipped); err != nil {
			return nil, fmt.Errorf("store: scan metric: %w", err)
		}
		run.Metrics = append(run.Metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: run metrics %s: %w", id, err)
	}
	return run, nil
}

// ModelBest summarizes a model's best overall ICAT on one track.
type ModelBest struct {
	Model string  `json:"model"`
	Track string  `json:"track"`
	LMS   float64 `json:"lms"`
	SS    float64 `json:"ss"`
	ICAT  float64 `json:"icat"`
	Runs  int     `json:"runs"`
}

// BestByModel returns each model's best overall ICAT for a track, highest
// first.
func (s *Store) BestByModel(ctx context.Context, track string) ([]ModelBest, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	track = strings.TrimSpace(track)
	if track == "" {
		track = "intrasentence"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.model, m.track, m.lms, m.ss, m.icat,
		        (SELECT COUNT(*) FROM runs r2 WHERE r2.model = r.model)
		 FROM run_metrics m
		 JOIN runs r ON r.id = m.run_id
		 WHERE m.track = ? AND m.category = 'overall'
		 GROUP BY r.model
		 HAVING m.icat = MAX(m.icat)
		 ORDER BY m.icat DESC, r.model`, track)
	if err != nil {
		return nil, fmt.Errorf("store: best by model: %w", err)
	}
	defer rows.Close()

	var out []ModelBest
	for rows.Next() {
		var b ModelBest
		if err := rows.Scan(&b.Model, &b.Track, &b.LMS, &b.SS, &b.ICAT, &b.Runs); err != nil {
			return nil, fmt.Errorf("store: scan best: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: best by model: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (*Run, error) {
	var run Run
	var createdAt int64
	if err := r.Scan(&run.ID, &run.Model, &run.GoldPath, &run.PredictionsPath, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &run, nil
}

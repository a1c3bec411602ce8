// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jakobytes/elias-1848/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		shard TEXT NOT NULL,
		settings TEXT,
		pairs INTEGER NOT NULL DEFAULT 0,
		unscorable INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pairs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		poem_id_1 TEXT NOT NULL,
		poem_id_2 TEXT NOT NULL,
		sim_raw REAL NOT NULL,
		sim_l REAL NOT NULL,
		sim_r REAL NOT NULL,
		sim REAL NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pairs_run_poem1 ON pairs(run_id, poem_id_1);
	CREATE INDEX IF NOT EXISTS idx_pairs_run_poem2 ON pairs(run_id, poem_id_2);

	CREATE TABLE IF NOT EXISTS alignments (
		pair_id INTEGER NOT NULL,
		pos1 TEXT NOT NULL,
		pos2 TEXT NOT NULL,
		sim REAL NOT NULL,
		FOREIGN KEY (pair_id) REFERENCES pairs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_alignments_pair ON alignments(pair_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	// Databases created before failed runs were recorded lack runs.error.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'error'`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.Exec(`ALTER TABLE runs ADD COLUMN error TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add runs.error: %w", err)
		}
	}
	return nil
}

// CreateRun inserts a run. StartedAt is set to now when zero.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.Run) error {
	settingsJSON, err := json.Marshal(run.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, shard, settings, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.Shard, string(settingsJSON), run.StartedAt,
	)
	return err
}

// FinishRun records the totals of a completed run.
func (s *SQLiteStorage) FinishRun(ctx context.Context, id string, pairs, unscorable int64) error {
	return s.updateRun(ctx,
		`UPDATE runs SET pairs = ?, unscorable = ?, error = '', finished_at = ? WHERE id = ?`,
		id, pairs, unscorable, time.Now(), id,
	)
}

// FailRun records the totals stored so far and the reason a run stopped.
// A failed run has no finish time.
func (s *SQLiteStorage) FailRun(ctx context.Context, id string, pairs, unscorable int64, reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	return s.updateRun(ctx,
		`UPDATE runs SET pairs = ?, unscorable = ?, error = ?, finished_at = NULL WHERE id = ?`,
		id, pairs, unscorable, reason, id,
	)
}

func (s *SQLiteStorage) updateRun(ctx context.Context, query, id string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, input, shard, settings, pairs, unscorable, error, started_at, finished_at`

func scanRun(scan func(dest ...any) error) (*models.Run, error) {
	var run models.Run
	var settingsJSON sql.NullString
	var finished sql.NullTime
	if err := scan(&run.ID, &run.Input, &run.Shard, &settingsJSON, &run.Pairs, &run.Unscorable, &run.Error, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &run.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	return &run, nil
}

// GetRun returns a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// ListRuns returns runs with offset and limit, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// BatchCreatePairs inserts pairs and their alignments in a transaction.
func (s *SQLiteStorage) BatchCreatePairs(ctx context.Context, runID string, pairs []*models.PairRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	pairStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pairs (run_id, poem_id_1, poem_id_2, sim_raw, sim_l, sim_r, sim)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pairStmt.Close()
	alignStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alignments (pair_id, pos1, pos2, sim) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer alignStmt.Close()

	for _, p := range pairs {
		res, err := pairStmt.ExecContext(ctx, runID, p.PoemID1, p.PoemID2, p.Raw, p.Left, p.Right, p.Sym)
		if err != nil {
			return err
		}
		pairID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, a := range p.Alignments {
			if _, err := alignStmt.ExecContext(ctx, pairID, a.Pos1, a.Pos2, a.Weight); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetSimilar returns every stored pair of run runID involving poemID, seen
// from poemID, ordered by descending symmetric score.
func (s *SQLiteStorage) GetSimilar(ctx context.Context, runID, poemID string) ([]*models.PairRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, poem_id_1, poem_id_2, sim_raw, sim_l, sim_r, sim
		 FROM pairs WHERE run_id = ? AND (poem_id_1 = ? OR poem_id_2 = ?)
		 ORDER BY sim DESC, id`,
		runID, poemID, poemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	var out []*models.PairRecord
	for rows.Next() {
		var id int64
		var p models.PairRecord
		if err := rows.Scan(&id, &p.PoemID1, &p.PoemID2, &p.Raw, &p.Left, &p.Right, &p.Sym); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for k, id := range ids {
		aligns, err := s.getAlignments(ctx, id)
		if err != nil {
			return nil, err
		}
		out[k].Alignments = aligns
		if out[k].PoemID1 != poemID {
			out[k] = out[k].Reverse()
		}
	}
	return out, nil
}

func (s *SQLiteStorage) getAlignments(ctx context.Context, pairID int64) ([]models.AlignmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pos1, pos2, sim FROM alignments WHERE pair_id = ? ORDER BY rowid`, pairID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlignmentRecord
	for rows.Next() {
		var a models.AlignmentRecord
		if err := rows.Scan(&a.Pos1, &a.Pos2, &a.Weight); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountPairs returns the number of stored pairs of a run.
func (s *SQLiteStorage) CountPairs(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pairs WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

// CountAlignments returns the number of stored alignments of a run.
func (s *SQLiteStorage) CountAlignments(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alignments a JOIN pairs p ON a.pair_id = p.id WHERE p.run_id = ?`,
		runID).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

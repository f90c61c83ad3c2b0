// Package store provides SQLite-based persistent storage for brushwork.
// Uses WAL mode for crash-safe writes; each mutation is one transaction.
//
// Two logical stores live in the same database: the ordered API key
// list, and the task records plus the ordered pending queue. The
// in-memory state is authoritative at runtime; the store is the single
// source of truth only on restart.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/brushwork-ai/brushwork/internal/domain"
)

// Store wraps a SQLite connection with WAL mode and migrations.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and a 5-second busy timeout.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		// Credential pool: ordered list of API key strings.
		`CREATE TABLE IF NOT EXISTS api_keys (
			position INTEGER NOT NULL,
			key      TEXT PRIMARY KEY
		)`,

		// Task records. Timestamps are ISO-8601 text; prompts and
		// results are JSON documents.
		`CREATE TABLE IF NOT EXISTS tasks (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			prompts          TEXT NOT NULL,
			input_image_path TEXT NOT NULL DEFAULT '',
			total_count      INTEGER NOT NULL,
			completed_count  INTEGER NOT NULL DEFAULT 0,
			failed_count     INTEGER NOT NULL DEFAULT 0,
			status           TEXT NOT NULL,
			results          TEXT NOT NULL DEFAULT '[]',
			auto_start       BOOLEAN NOT NULL DEFAULT 1,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,

		// Pending queue: ordered task ids awaiting the worker.
		`CREATE TABLE IF NOT EXISTS queue (
			position INTEGER NOT NULL,
			task_id  TEXT PRIMARY KEY
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Key pool store ─────────────────────────────────────────────────────────

// LoadKeys returns the key list in pool-insertion order.
func (s *Store) LoadKeys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM api_keys ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SaveKeys replaces the stored key list in one transaction.
func (s *Store) SaveKeys(keys []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM api_keys`); err != nil {
		return fmt.Errorf("clear keys: %w", err)
	}
	for i, k := range keys {
		if _, err := tx.Exec(`INSERT INTO api_keys (position, key) VALUES (?, ?)`, i, k); err != nil {
			return fmt.Errorf("insert key: %w", err)
		}
	}
	return tx.Commit()
}

// ─── Task store ─────────────────────────────────────────────────────────────

// LoadTasks returns every task record plus the ordered pending queue.
func (s *Store) LoadTasks() (map[string]*domain.Task, []string, error) {
	rows, err := s.db.Query(`SELECT id, name, prompts, input_image_path,
		total_count, completed_count, failed_count, status, results,
		auto_start, created_at, updated_at FROM tasks`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[string]*domain.Task)
	for rows.Next() {
		var (
			t                    domain.Task
			prompts, results     string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&t.ID, &t.Name, &prompts, &t.InputImagePath,
			&t.TotalCount, &t.CompletedCount, &t.FailedCount, &t.Status,
			&results, &t.AutoStart, &createdAt, &updatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(prompts), &t.Prompts); err != nil {
			return nil, nil, fmt.Errorf("decode prompts for %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(results), &t.Results); err != nil {
			return nil, nil, fmt.Errorf("decode results for %s: %w", t.ID, err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, nil, fmt.Errorf("parse created_at for %s: %w", t.ID, err)
		}
		if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, nil, fmt.Errorf("parse updated_at for %s: %w", t.ID, err)
		}
		tasks[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	queue, err := s.loadQueue()
	if err != nil {
		return nil, nil, err
	}
	return tasks, queue, nil
}

func (s *Store) loadQueue() ([]string, error) {
	rows, err := s.db.Query(`SELECT task_id FROM queue ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	defer rows.Close()

	var queue []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		queue = append(queue, id)
	}
	return queue, rows.Err()
}

// SaveTask upserts a single task record.
func (s *Store) SaveTask(t *domain.Task) error {
	prompts, err := json.Marshal(t.Prompts)
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	results, err := json.Marshal(t.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO tasks (id, name, prompts, input_image_path,
		total_count, completed_count, failed_count, status, results,
		auto_start, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			prompts = excluded.prompts,
			input_image_path = excluded.input_image_path,
			total_count = excluded.total_count,
			completed_count = excluded.completed_count,
			failed_count = excluded.failed_count,
			status = excluded.status,
			results = excluded.results,
			auto_start = excluded.auto_start,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, string(prompts), t.InputImagePath,
		t.TotalCount, t.CompletedCount, t.FailedCount, string(t.Status),
		string(results), t.AutoStart,
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTask removes a task record (queue membership is saved separately).
func (s *Store) DeleteTask(id string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// SaveQueue replaces the stored queue order in one transaction.
func (s *Store) SaveQueue(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM queue`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	for i, id := range ids {
		if _, err := tx.Exec(`INSERT INTO queue (position, task_id) VALUES (?, ?)`, i, id); err != nil {
			return fmt.Errorf("insert queue entry: %w", err)
		}
	}
	return tx.Commit()
}

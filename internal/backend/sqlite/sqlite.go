// Package sqlite persists tasks in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nibzard/taskhub/internal/task"
)

// Backend stores one row per task.
type Backend struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and migrates its
// schema. A leading ~ is expanded to the home directory.
func Open(dbPath string) (*Backend, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=off&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	return b, nil
}

func (b *Backend) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT,
			notes TEXT,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			due_date TEXT,
			parent_task_id TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			project_id TEXT NOT NULL DEFAULT '',
			deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_deleted ON tasks(deleted);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Load returns every row, oldest first.
func (b *Backend) Load(ctx context.Context) ([]task.Task, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, title, description, tags, notes, status, priority, progress, due_date,
			parent_task_id, sort_order, project_id, deleted, created_at, updated_at
		FROM tasks
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return out, nil
}

// Save upserts tasks in a single transaction.
func (b *Backend) Save(ctx context.Context, tasks []task.Task) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO tasks (id, title, description, tags, notes, status, priority, progress,
			due_date, parent_task_id, sort_order, project_id, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		args, err := taskArgs(t)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert task %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func taskArgs(t task.Task) ([]any, error) {
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags of %s: %w", t.ID, err)
	}
	notesJSON, err := json.Marshal(t.Notes)
	if err != nil {
		return nil, fmt.Errorf("encode notes of %s: %w", t.ID, err)
	}
	var due sql.NullString
	if t.DueDate != nil {
		due = sql.NullString{String: t.DueDate.Format(time.DateOnly), Valid: true}
	}
	deleted := 0
	if t.Deleted {
		deleted = 1
	}
	return []any{
		t.ID, t.Title, t.Description, string(tagsJSON), string(notesJSON),
		string(t.Status), t.Priority.String(), t.Progress, due,
		t.ParentTaskID, t.SortOrder, t.ProjectID, deleted,
		t.CreatedAt.UTC().Format(time.RFC3339Nano), t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func scanTask(rows *sql.Rows) (task.Task, error) {
	var (
		t                    task.Task
		tagsJSON, notesJSON  sql.NullString
		status, priority     string
		due                  sql.NullString
		deleted              int
		createdAt, updatedAt string
	)
	err := rows.Scan(&t.ID, &t.Title, &t.Description, &tagsJSON, &notesJSON, &status, &priority,
		&t.Progress, &due, &t.ParentTaskID, &t.SortOrder, &t.ProjectID, &deleted, &createdAt, &updatedAt)
	if err != nil {
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}

	if t.Status, err = task.ParseStatus(status); err != nil {
		return task.Task{}, &task.ValidationError{Field: "status", Err: fmt.Errorf("task %s: %w", t.ID, err)}
	}
	if t.Priority, err = task.ParsePriority(priority); err != nil {
		return task.Task{}, &task.ValidationError{Field: "priority", Err: fmt.Errorf("task %s: %w", t.ID, err)}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &t.Tags); err != nil {
			return task.Task{}, fmt.Errorf("decode tags of %s: %w", t.ID, err)
		}
	}
	if notesJSON.Valid && notesJSON.String != "" {
		if err := json.Unmarshal([]byte(notesJSON.String), &t.Notes); err != nil {
			return task.Task{}, fmt.Errorf("decode notes of %s: %w", t.ID, err)
		}
	}
	if due.Valid && due.String != "" {
		d, err := task.ParseDate(due.String)
		if err != nil {
			return task.Task{}, fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	t.Deleted = deleted != 0
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return task.Task{}, fmt.Errorf("task %s created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return task.Task{}, fmt.Errorf("task %s updated_at: %w", t.ID, err)
	}
	return t, nil
}

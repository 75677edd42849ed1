// Package jsonfile persists tasks as a single versioned JSON document.
//
// Every Save rewrites the whole document through a temp file, fsync and
// rename, so readers see either the old or the new document.
package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nibzard/taskhub/internal/task"
)

// Backend stores tasks in one JSON file.
type Backend struct {
	path string

	mu     sync.Mutex
	loaded bool
	tasks  map[string]task.Task
}

// New returns a backend for path. The file is created on the first Save.
func New(path string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("data file path is required")
	}
	return &Backend{path: path}, nil
}

// Path returns the document location.
func (b *Backend) Path() string {
	return b.path
}

// Load reads and validates the document. A missing file is an empty task set.
func (b *Backend) Load(ctx context.Context) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.readLocked(); err != nil {
		return nil, err
	}
	return b.snapshotLocked(), nil
}

// Save upserts tasks and rewrites the document. On failure the file and the
// cached contents are left as they were.
func (b *Backend) Save(ctx context.Context, tasks []task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		if err := b.readLocked(); err != nil {
			return err
		}
	}

	next := make(map[string]task.Task, len(b.tasks)+len(tasks))
	for id, t := range b.tasks {
		next[id] = t
	}
	for _, t := range tasks {
		next[t.ID] = t.Clone()
	}

	data, err := task.NewDocument(sorted(next)).Marshal()
	if err != nil {
		return err
	}
	if err := writeFileAtomicDurable(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	b.tasks = next
	return nil
}

func (b *Backend) readLocked() error {
	doc, err := task.LoadDocument(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.tasks = make(map[string]task.Task)
			b.loaded = true
			return nil
		}
		return fmt.Errorf("load %s: %w", b.path, err)
	}
	b.tasks = make(map[string]task.Task, len(doc.Tasks))
	for _, t := range doc.Tasks {
		b.tasks[t.ID] = t
	}
	b.loaded = true
	return nil
}

func (b *Backend) snapshotLocked() []task.Task {
	out := sorted(b.tasks)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// sorted orders records by creation time then id so the file diff stays
// small between saves.
func sorted(tasks map[string]task.Task) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nibzard/taskhub/internal/task"
)

// Backend is the opaque backing store the task store delegates persistence
// to. Save upserts the given records as one batch; a failed Save must leave
// the backend's previous contents intact. Records are never removed.
type Backend interface {
	Load(ctx context.Context) ([]task.Task, error)
	Save(ctx context.Context, tasks []task.Task) error
}

// MemoryBackend keeps records in process memory. It is the default backend.
type MemoryBackend struct {
	mu    sync.Mutex
	tasks map[string]task.Task
	saves int
}

// NewMemoryBackend returns a backend seeded with tasks.
func NewMemoryBackend(tasks ...task.Task) *MemoryBackend {
	b := &MemoryBackend{tasks: make(map[string]task.Task, len(tasks))}
	for _, t := range tasks {
		b.tasks[t.ID] = t.Clone()
	}
	return b
}

// Load returns every stored record sorted by creation time.
func (b *MemoryBackend) Load(ctx context.Context) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]task.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Save upserts tasks.
func (b *MemoryBackend) Save(ctx context.Context, tasks []task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tasks {
		b.tasks[t.ID] = t.Clone()
	}
	b.saves++
	return nil
}

// Saves returns how many batches were written.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nibzard/taskhub/internal/store"
	"github.com/nibzard/taskhub/internal/task"
)

func openTemp(t *testing.T) (*Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "tasks.db")
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, path
}

func TestSaveAndLoad(t *testing.T) {
	b, _ := openTemp(t)
	ctx := context.Background()
	created := time.Date(2026, 10, 14, 9, 30, 0, 123, time.UTC)

	in := task.Task{
		ID:           "a",
		Title:        "write report",
		Description:  "quarterly",
		Tags:         []string{"work"},
		Notes:        []task.Note{{Content: "draft sent", CreatedAt: created}},
		Status:       task.StatusInProgress,
		Priority:     task.PriorityToday,
		Progress:     40,
		DueDate:      task.Due(created.AddDate(0, 0, 3)),
		ParentTaskID: "root",
		SortOrder:    200,
		ProjectID:    "p1",
		Deleted:      true,
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Hour),
	}
	if err := b.Save(ctx, []task.Task{in}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	out := got[0]
	if out.Title != in.Title || out.Description != in.Description || out.ProjectID != in.ProjectID || out.ParentTaskID != in.ParentTaskID {
		t.Errorf("text fields: got %+v", out)
	}
	if out.Status != in.Status || out.Priority != in.Priority || out.Progress != 40 || out.SortOrder != 200 || !out.Deleted {
		t.Errorf("state fields: got %+v", out)
	}
	if len(out.Tags) != 1 || len(out.Notes) != 1 || out.Notes[0].Content != "draft sent" {
		t.Errorf("tags/notes: got %v / %v", out.Tags, out.Notes)
	}
	if out.DueDate == nil || !out.DueDate.Equal(*in.DueDate) {
		t.Errorf("due date: got %v, want %v", out.DueDate, in.DueDate)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || !out.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("timestamps: got %v / %v", out.CreatedAt, out.UpdatedAt)
	}
}

func TestSaveUpserts(t *testing.T) {
	b, _ := openTemp(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	tk := task.Task{ID: "a", Title: "v1", Status: task.StatusPending, CreatedAt: now, UpdatedAt: now}

	if err := b.Save(ctx, []task.Task{tk}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tk.Title = "v2"
	if err := b.Save(ctx, []task.Task{tk}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Title != "v2" {
		t.Errorf("got %+v, want one row titled v2", got)
	}
	if got[0].DueDate != nil || got[0].Tags != nil {
		t.Errorf("empty optional fields: got due %v tags %v", got[0].DueDate, got[0].Tags)
	}
}

func TestCancelledContext(t *testing.T) {
	b, _ := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Save(ctx, []task.Task{{ID: "a", Title: "x", Status: task.StatusPending}}); err == nil {
		t.Error("Save with cancelled context succeeded")
	}
}

func TestStoreOverSQLite(t *testing.T) {
	b, path := openTemp(t)
	ctx := context.Background()
	s, err := store.Open(ctx, store.WithBackend(b))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	first, err := s.AddTask(task.Task{Title: "first"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	second, err := s.AddTask(task.Task{Title: "second"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.MoveTaskUp(second.ID); err != nil {
		t.Fatalf("MoveTaskUp: %v", err)
	}
	b.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	reopened, err := store.Open(ctx, store.WithBackend(again))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	roots := reopened.GetSubtasks("")
	if len(roots) != 2 || roots[0].ID != second.ID || roots[1].ID != first.ID {
		t.Errorf("order after reopen: got %+v", roots)
	}
}

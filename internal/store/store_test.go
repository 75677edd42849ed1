package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/notify"
	"github.com/nibzard/taskhub/internal/task"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
}

type recorder struct {
	events []notify.Event
}

func (r *recorder) handle(ev notify.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	out := make([]notify.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) reset() {
	r.events = nil
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *recorder) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	base := []Option{WithClock(clock.Now), WithIDGenerator(sequentialIDs())}
	s, err := Open(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := &recorder{}
	s.Subscribe(rec.handle)
	return s, rec
}

func mustAdd(t *testing.T, s *Store, tk task.Task) task.Task {
	t.Helper()
	added, err := s.AddTask(tk)
	if err != nil {
		t.Fatalf("AddTask(%q): %v", tk.Title, err)
	}
	return added
}

func ids(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// failingBackend fails every Save while fail is set.
type failingBackend struct {
	*MemoryBackend
	fail bool
}

func (b *failingBackend) Save(ctx context.Context, tasks []task.Task) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Save(ctx, tasks)
}

func TestAddTaskAssignsIDAndSortOrder(t *testing.T) {
	s, rec := newTestStore(t)

	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B"})
	c := mustAdd(t, s, task.Task{Title: "C", ParentTaskID: a.ID})

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids not assigned: %q %q", a.ID, b.ID)
	}
	if a.SortOrder != 100 || b.SortOrder != 200 {
		t.Errorf("root keys: got %d, %d, want 100, 200", a.SortOrder, b.SortOrder)
	}
	if c.SortOrder != 100 {
		t.Errorf("child key: got %d, want 100", c.SortOrder)
	}
	if a.Status != task.StatusPending {
		t.Errorf("default status: got %q, want pending", a.Status)
	}
	if a.CreatedAt.IsZero() || !a.UpdatedAt.Equal(a.CreatedAt) {
		t.Errorf("timestamps: created %v updated %v", a.CreatedAt, a.UpdatedAt)
	}
	if len(rec.events) != 3 || rec.events[0].Kind != notify.TaskAdded || rec.events[0].TaskID != a.ID {
		t.Errorf("events: got %v", rec.kinds())
	}
	if got := s.GetTaskCount(nil); got != 3 {
		t.Errorf("GetTaskCount: got %d, want 3", got)
	}
}

func TestAddTaskNormalizesFields(t *testing.T) {
	s, _ := newTestStore(t)
	due := time.Date(2026, 10, 20, 17, 45, 0, 0, time.UTC)
	got := mustAdd(t, s, task.Task{
		Title:   "  report  ",
		Tags:    []string{"work", "Work", " home "},
		DueDate: &due,
		Status:  task.StatusCompleted,
	})
	if got.Title != "report" {
		t.Errorf("title: got %q", got.Title)
	}
	if !equalStrings(got.Tags, []string{"home", "work"}) {
		t.Errorf("tags: got %v, want [home work]", got.Tags)
	}
	if got.DueDate.Hour() != 0 || got.DueDate.Day() != 20 {
		t.Errorf("due date not date-only: %v", got.DueDate)
	}
	if got.Progress != 100 {
		t.Errorf("completed task progress: got %d, want 100", got.Progress)
	}
}

func TestAddTaskValidation(t *testing.T) {
	s, rec := newTestStore(t)
	parent := mustAdd(t, s, task.Task{Title: "parent"})
	if err := s.DeleteTask(parent.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	rec.reset()

	tests := []struct {
		name  string
		input task.Task
		field string
	}{
		{name: "empty title", input: task.Task{Title: "   "}, field: "title"},
		{name: "bad status", input: task.Task{Title: "x", Status: "later"}, field: "status"},
		{name: "bad progress", input: task.Task{Title: "x", Progress: 120}, field: "progress"},
		{name: "unknown parent", input: task.Task{Title: "x", ParentTaskID: "nope"}, field: "parent_task_id"},
		{name: "deleted parent", input: task.Task{Title: "x", ParentTaskID: parent.ID}, field: "parent_task_id"},
		{name: "duplicate id", input: task.Task{ID: parent.ID, Title: "x"}, field: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddTask(tt.input)
			if !errors.Is(err, task.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *task.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("field: got %v, want %q", err, tt.field)
			}
		})
	}
	if len(rec.events) != 0 {
		t.Errorf("rejected adds raised events: %v", rec.kinds())
	}
	if got := s.GetTaskCount(nil); got != 0 {
		t.Errorf("GetTaskCount: got %d, want 0", got)
	}
}

func TestUpdateTaskPreservesStoreOwnedFields(t *testing.T) {
	s, rec := newTestStore(t)
	orig := mustAdd(t, s, task.Task{Title: "draft plan"})
	mustAdd(t, s, task.Task{Title: "other"})
	if _, err := s.AddNote(orig.ID, "first note"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	rec.reset()

	edit := orig
	edit.Title = "final plan"
	edit.Notes = nil
	edit.SortOrder = 9999
	edit.CreatedAt = time.Time{}
	edit.Deleted = true

	got, err := s.UpdateTask(edit)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Title != "final plan" {
		t.Errorf("title: got %q", got.Title)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("CreatedAt changed: got %v, want %v", got.CreatedAt, orig.CreatedAt)
	}
	if !got.UpdatedAt.After(orig.UpdatedAt) {
		t.Errorf("UpdatedAt not refreshed: %v", got.UpdatedAt)
	}
	if len(got.Notes) != 1 || got.SortOrder != orig.SortOrder || got.Deleted {
		t.Errorf("store-owned fields not preserved: notes %d sort %d deleted %v", len(got.Notes), got.SortOrder, got.Deleted)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != notify.TaskUpdated {
		t.Errorf("events: got %v, want [task_updated]", rec.kinds())
	}

	if _, err := s.UpdateTask(task.Task{ID: "missing", Title: "x"}); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("unknown id: got %v, want not found", err)
	}
}

func TestUpdateTaskCompletedSetsProgressOnTransition(t *testing.T) {
	s, _ := newTestStore(t)
	tk := mustAdd(t, s, task.Task{Title: "x", Progress: 10})

	tk.Status = task.StatusCompleted
	tk, err := s.UpdateTask(tk)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if tk.Progress != 100 {
		t.Errorf("progress: got %d, want 100", tk.Progress)
	}

	tk.Status = task.StatusPending
	tk, err = s.UpdateTask(tk)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if tk.Progress != 100 {
		t.Errorf("reopening must not reset progress: got %d", tk.Progress)
	}
}

func TestUpdateTaskRejectsCycles(t *testing.T) {
	s, rec := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})
	c := mustAdd(t, s, task.Task{Title: "C", ParentTaskID: b.ID})
	rec.reset()

	tests := []struct {
		name   string
		id     string
		parent string
	}{
		{name: "grandchild as parent", id: a.ID, parent: c.ID},
		{name: "child as parent", id: b.ID, parent: c.ID},
		{name: "self as parent", id: a.ID, parent: a.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, _ := s.GetTask(tt.id)
			cur.ParentTaskID = tt.parent
			_, err := s.UpdateTask(cur)
			if !errors.Is(err, task.ErrCyclicHierarchy) {
				t.Fatalf("got %v, want cyclic hierarchy error", err)
			}
			after, _ := s.GetTask(tt.id)
			if after.ParentTaskID == tt.parent {
				t.Error("rejected update was applied")
			}
		})
	}
	if len(rec.events) != 0 {
		t.Errorf("rejected updates raised events: %v", rec.kinds())
	}
}

func TestUpdateTaskReparentAppendsToNewGroup(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	mustAdd(t, s, task.Task{Title: "A1", ParentTaskID: a.ID})
	mustAdd(t, s, task.Task{Title: "A2", ParentTaskID: a.ID})
	b := mustAdd(t, s, task.Task{Title: "B"})

	b.ParentTaskID = a.ID
	moved, err := s.UpdateTask(b)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if moved.SortOrder != 300 {
		t.Errorf("sort order: got %d, want 300", moved.SortOrder)
	}
	kids := s.GetSubtasks(a.ID)
	if len(kids) != 3 || kids[2].ID != b.ID {
		t.Errorf("subtasks: got %v", ids(kids))
	}
	if roots := s.GetSubtasks(""); len(roots) != 1 {
		t.Errorf("roots: got %v, want only A", ids(roots))
	}
}

func TestDeleteCascadesToSubtree(t *testing.T) {
	s, rec := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})
	c := mustAdd(t, s, task.Task{Title: "C", ParentTaskID: b.ID})
	d := mustAdd(t, s, task.Task{Title: "D", ParentTaskID: a.ID})
	other := mustAdd(t, s, task.Task{Title: "other"})
	rec.reset()

	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	for _, id := range []string{a.ID, b.ID, c.ID, d.ID} {
		got, ok := s.Lookup(id)
		if !ok || !got.Deleted {
			t.Errorf("%s: expected deleted record, got %+v", id, got)
		}
		if _, ok := s.GetTask(id); ok {
			t.Errorf("%s: deleted task still visible", id)
		}
	}
	if got := ids(s.GetAllTasks()); !equalStrings(got, []string{other.ID}) {
		t.Errorf("visible tasks: got %v, want [%s]", got, other.ID)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != notify.TaskDeleted || rec.events[0].TaskID != a.ID {
		t.Fatalf("events: got %v, want one task_deleted for root", rec.kinds())
	}

	rec.reset()
	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("second DeleteTask: %v", err)
	}
	if err := s.DeleteTask(c.ID); err != nil {
		t.Fatalf("DeleteTask on deleted descendant: %v", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("repeated delete raised events: %v", rec.kinds())
	}
	if err := s.DeleteTask("missing"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("unknown id: got %v, want not found", err)
	}
}

func TestEndToEndScenario(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A", Priority: task.PriorityMedium})
	if duedate := a.DueDate; duedate != nil {
		t.Fatalf("unexpected due date %v", duedate)
	}
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})

	err := s.MoveTaskDown(b.ID)
	var be *task.BoundaryError
	if !errors.As(err, &be) || be.Direction != task.DirectionDown {
		t.Fatalf("MoveTaskDown only child: got %v, want boundary error", err)
	}

	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	gotB, ok := s.Lookup(b.ID)
	if !ok || !gotB.Deleted {
		t.Errorf("B: got %+v, want deleted", gotB)
	}
	if got := s.GetTasks(filter.All); len(got) != 0 {
		t.Errorf("GetTasks(All): got %v, want none", ids(got))
	}
}

func TestMoveTaskSwapsWithNeighbour(t *testing.T) {
	s, rec := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B"})
	c := mustAdd(t, s, task.Task{Title: "C"})
	rec.reset()

	if err := s.MoveTaskUp(c.ID); err != nil {
		t.Fatalf("MoveTaskUp: %v", err)
	}
	if got := ids(s.GetSubtasks("")); !equalStrings(got, []string{a.ID, c.ID, b.ID}) {
		t.Errorf("order after up: got %v", got)
	}
	if len(rec.events) != 2 {
		t.Errorf("events: got %v, want two task_updated", rec.kinds())
	}

	if err := s.MoveTaskDown(c.ID); err != nil {
		t.Fatalf("MoveTaskDown: %v", err)
	}
	if got := ids(s.GetSubtasks("")); !equalStrings(got, []string{a.ID, b.ID, c.ID}) {
		t.Errorf("up then down not restored: got %v", got)
	}

	rec.reset()
	if err := s.MoveTaskUp(a.ID); !errors.Is(err, task.ErrBoundary) {
		t.Errorf("first up: got %v, want boundary", err)
	}
	if err := s.MoveTaskDown(c.ID); !errors.Is(err, task.ErrBoundary) {
		t.Errorf("last down: got %v, want boundary", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("boundary moves raised events: %v", rec.kinds())
	}
	if err := s.MoveTaskUp("missing"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("unknown id: got %v, want not found", err)
	}
}

func TestAddRenumbersExhaustedGroup(t *testing.T) {
	seed := NewMemoryBackend(
		task.Task{ID: "x", Title: "x", Status: task.StatusPending, SortOrder: 100, CreatedAt: time.Unix(1, 0)},
		task.Task{ID: "y", Title: "y", Status: task.StatusPending, SortOrder: 101, CreatedAt: time.Unix(2, 0)},
	)
	s, rec := newTestStore(t, WithBackend(seed))

	z := mustAdd(t, s, task.Task{Title: "z"})
	if z.SortOrder != 300 {
		t.Errorf("appended key: got %d, want 300", z.SortOrder)
	}
	y, _ := s.GetTask("y")
	if y.SortOrder != 200 {
		t.Errorf("renumbered key: got %d, want 200", y.SortOrder)
	}
	if got := ids(s.GetSubtasks("")); !equalStrings(got, []string{"x", "y", z.ID}) {
		t.Errorf("order: got %v", got)
	}
	if rec.events[0].Kind != notify.TaskAdded {
		t.Errorf("first event: got %v, want task_added", rec.events[0].Kind)
	}
}

func TestCyclePriorityWraps(t *testing.T) {
	s, rec := newTestStore(t)
	tk := mustAdd(t, s, task.Task{Title: "x", Priority: task.PriorityHigh})
	rec.reset()

	want := []task.Priority{task.PriorityToday, task.PriorityLow, task.PriorityMedium, task.PriorityHigh}
	for i, w := range want {
		got, err := s.CyclePriority(tk.ID)
		if err != nil {
			t.Fatalf("CyclePriority: %v", err)
		}
		if got.Priority != w {
			t.Errorf("step %d: got %v, want %v", i, got.Priority, w)
		}
	}
	if len(rec.events) != 4 {
		t.Errorf("events: got %d, want 4", len(rec.events))
	}
}

func TestStatusTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	tk := mustAdd(t, s, task.Task{Title: "x", Progress: 40})

	got, err := s.SetStatus(tk.ID, task.StatusInProgress)
	if err != nil || got.Progress != 40 {
		t.Fatalf("SetStatus in_progress: %+v, %v", got, err)
	}
	got, err = s.ToggleCompleted(tk.ID)
	if err != nil || got.Status != task.StatusCompleted || got.Progress != 100 {
		t.Fatalf("ToggleCompleted: %+v, %v", got, err)
	}
	got, err = s.ToggleCompleted(tk.ID)
	if err != nil || got.Status != task.StatusPending || got.Progress != 100 {
		t.Fatalf("ToggleCompleted back: %+v, %v", got, err)
	}
	if _, err := s.SetStatus(tk.ID, "someday"); !errors.Is(err, task.ErrValidation) {
		t.Errorf("bad status: got %v, want validation", err)
	}
	if _, err := s.SetProgress(tk.ID, 101); !errors.Is(err, task.ErrValidation) {
		t.Errorf("bad progress: got %v, want validation", err)
	}
	got, err = s.SetProgress(tk.ID, 55)
	if err != nil || got.Progress != 55 {
		t.Errorf("SetProgress: %+v, %v", got, err)
	}
}

func TestAddNote(t *testing.T) {
	s, _ := newTestStore(t)
	tk := mustAdd(t, s, task.Task{Title: "x"})

	for _, content := range []string{"first", "second"} {
		if _, err := s.AddNote(tk.ID, content); err != nil {
			t.Fatalf("AddNote: %v", err)
		}
	}
	got, _ := s.GetTask(tk.ID)
	notes := got.NotesByRecency()
	if len(notes) != 2 || notes[0].Content != "second" {
		t.Errorf("notes newest first: got %+v", notes)
	}
	if _, err := s.AddNote(tk.ID, "  "); !errors.Is(err, task.ErrValidation) {
		t.Errorf("empty note: got %v, want validation", err)
	}
	if _, err := s.AddNote("missing", "x"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("unknown id: got %v, want not found", err)
	}
}

func TestBackendFailureLeavesStoreUnchanged(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	s, rec := newTestStore(t, WithBackend(backend))
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})
	rec.reset()

	backend.fail = true
	if _, err := s.AddTask(task.Task{Title: "C"}); err == nil {
		t.Fatal("AddTask succeeded with failing backend")
	}
	if err := s.DeleteTask(a.ID); err == nil {
		t.Fatal("DeleteTask succeeded with failing backend")
	}
	if _, err := s.CyclePriority(b.ID); err == nil {
		t.Fatal("CyclePriority succeeded with failing backend")
	}

	if len(rec.events) != 0 {
		t.Errorf("failed mutations raised events: %v", rec.kinds())
	}
	if got := s.GetTaskCount(nil); got != 2 {
		t.Errorf("GetTaskCount: got %d, want 2", got)
	}
	if got, _ := s.GetTask(b.ID); got.Deleted || got.Priority != task.PriorityLow {
		t.Errorf("B changed: %+v", got)
	}

	backend.fail = false
	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask after recovery: %v", err)
	}
}

func TestDraftLifecycle(t *testing.T) {
	s, rec := newTestStore(t)
	mustAdd(t, s, task.Task{Title: "existing"})
	rec.reset()

	draft, err := s.AddDraft(task.Task{})
	if err != nil {
		t.Fatalf("AddDraft: %v", err)
	}
	if _, ok := s.GetTask(draft.ID); ok {
		t.Error("draft visible through GetTask")
	}
	if got := s.GetTaskCount(nil); got != 1 {
		t.Errorf("GetTaskCount with draft: got %d, want 1", got)
	}

	draft.Description = "still no title"
	if _, err := s.UpdateTask(draft); err != nil {
		t.Fatalf("UpdateTask on untitled draft: %v", err)
	}
	if got, ok := s.GetDraft(draft.ID); !ok || got.Description != "still no title" {
		t.Errorf("draft not updated in place: %+v", got)
	}
	if len(rec.events) != 0 {
		t.Errorf("draft edits raised events: %v", rec.kinds())
	}

	draft.Title = "named"
	final, err := s.UpdateTask(draft)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.SortOrder != 200 {
		t.Errorf("finalized key: got %d, want 200", final.SortOrder)
	}
	if _, ok := s.GetTask(draft.ID); !ok {
		t.Error("finalized draft not visible")
	}
	if _, ok := s.GetDraft(draft.ID); ok {
		t.Error("finalized draft still listed as draft")
	}
	if len(rec.events) != 1 || rec.events[0].Kind != notify.TaskUpdated {
		t.Errorf("events: got %v, want [task_updated]", rec.kinds())
	}

	other, _ := s.AddDraft(task.Task{})
	if err := s.DiscardDraft(other.ID); err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}
	if err := s.DiscardDraft(other.ID); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("second discard: got %v, want not found", err)
	}
}

func TestRestoreUndoesCascade(t *testing.T) {
	s, rec := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})
	c := mustAdd(t, s, task.Task{Title: "C", ParentTaskID: a.ID})

	if err := s.DeleteTask(c.ID); err != nil {
		t.Fatalf("DeleteTask C: %v", err)
	}
	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask A: %v", err)
	}
	rec.reset()

	got, err := s.Restore(a.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.Deleted {
		t.Error("restored root still deleted")
	}
	if _, ok := s.GetTask(b.ID); !ok {
		t.Error("B not restored with A")
	}
	if _, ok := s.GetTask(c.ID); ok {
		t.Error("C was deleted separately and must stay deleted")
	}
	if len(rec.events) != 1 || rec.events[0].TaskID != a.ID {
		t.Errorf("events: got %v, want one task_updated for root", rec.kinds())
	}

	if _, err := s.Restore(a.ID); !errors.Is(err, task.ErrValidation) {
		t.Errorf("restore visible task: got %v, want validation", err)
	}
}

func TestRestoreUnderDeletedParentFails(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})
	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := s.Restore(b.ID); !errors.Is(err, task.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestRestoreResolvesKeyCollision(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B"})
	if err := s.DeleteTask(b.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	c := mustAdd(t, s, task.Task{Title: "C"})
	if c.SortOrder != b.SortOrder {
		t.Fatalf("setup: expected C to reuse key %d, got %d", b.SortOrder, c.SortOrder)
	}

	restored, err := s.Restore(b.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.SortOrder == c.SortOrder {
		t.Errorf("restored key collides with sibling: %d", restored.SortOrder)
	}
	if got := ids(s.GetSubtasks("")); !equalStrings(got, []string{a.ID, c.ID, b.ID}) {
		t.Errorf("order: got %v", got)
	}
}

func TestHierarchyQueries(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	a1 := mustAdd(t, s, task.Task{Title: "A1", ParentTaskID: a.ID})
	a1x := mustAdd(t, s, task.Task{Title: "A1x", ParentTaskID: a1.ID})
	a2 := mustAdd(t, s, task.Task{Title: "A2", ParentTaskID: a.ID})
	b := mustAdd(t, s, task.Task{Title: "B"})

	if err := s.MoveTaskUp(a2.ID); err != nil {
		t.Fatalf("MoveTaskUp: %v", err)
	}
	if got := ids(s.GetSubtasks(a.ID)); !equalStrings(got, []string{a2.ID, a1.ID}) {
		t.Errorf("GetSubtasks: got %v", got)
	}
	if got := ids(s.GetAllSubtasksRecursive(a.ID)); !equalStrings(got, []string{a2.ID, a1.ID, a1x.ID}) {
		t.Errorf("GetAllSubtasksRecursive: got %v", got)
	}

	tree := s.Tree()
	var order []string
	var depths []int
	for _, n := range tree {
		order = append(order, n.Task.ID)
		depths = append(depths, n.Depth)
	}
	if !equalStrings(order, []string{a.ID, a2.ID, a1.ID, a1x.ID, b.ID}) {
		t.Errorf("Tree order: got %v", order)
	}
	wantDepths := []int{0, 1, 1, 2, 0}
	for i := range wantDepths {
		if depths[i] != wantDepths[i] {
			t.Errorf("depth %d: got %d, want %d", i, depths[i], wantDepths[i])
		}
	}
}

func TestTreeListsOrphans(t *testing.T) {
	seed := NewMemoryBackend(
		task.Task{ID: "root", Title: "root", Status: task.StatusPending, SortOrder: 100, CreatedAt: time.Unix(1, 0)},
		task.Task{ID: "orphan", Title: "orphan", Status: task.StatusPending, ParentTaskID: "gone", SortOrder: 100, CreatedAt: time.Unix(2, 0)},
	)
	s, _ := newTestStore(t, WithBackend(seed))

	tree := s.Tree()
	if len(tree) != 2 || tree[1].Task.ID != "orphan" || tree[1].Depth != 0 {
		t.Errorf("tree: got %+v", tree)
	}
}

func TestGetTasksWithPredicate(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, task.Task{Title: "low"})
	high := mustAdd(t, s, task.Task{Title: "high", Priority: task.PriorityHigh})
	done := mustAdd(t, s, task.Task{Title: "done", Priority: task.PriorityHigh, Status: task.StatusCompleted})

	got := s.GetTasks(filter.PriorityIn(task.PriorityHigh))
	if !equalStrings(ids(got), []string{high.ID, done.ID}) {
		t.Errorf("high priority: got %v", ids(got))
	}
	if n := s.GetTaskCount(filter.And(filter.Active, filter.PriorityIn(task.PriorityHigh))); n != 1 {
		t.Errorf("active high count: got %d, want 1", n)
	}
}

func TestReturnedTasksAreCopies(t *testing.T) {
	s, _ := newTestStore(t)
	tk := mustAdd(t, s, task.Task{Title: "x", Tags: []string{"a"}})

	got, _ := s.GetTask(tk.ID)
	got.Tags[0] = "mutated"
	again, _ := s.GetTask(tk.ID)
	if again.Tags[0] != "a" {
		t.Errorf("store state mutated through returned copy: %v", again.Tags)
	}
}

func TestHandlersCanQueryDuringDelivery(t *testing.T) {
	s, _ := newTestStore(t)
	var seen []string
	s.Subscribe(func(ev notify.Event) error {
		got, ok := s.GetTask(ev.TaskID)
		if !ok {
			return fmt.Errorf("task %s not committed before notification", ev.TaskID)
		}
		seen = append(seen, got.Title)
		return nil
	}, notify.TaskAdded)

	mustAdd(t, s, task.Task{Title: "visible"})
	if len(seen) != 1 || seen[0] != "visible" {
		t.Errorf("handler saw %v", seen)
	}
}

func TestReloadReplacesArena(t *testing.T) {
	backend := NewMemoryBackend()
	s, rec := newTestStore(t, WithBackend(backend))
	mustAdd(t, s, task.Task{Title: "kept"})

	external := task.Task{ID: "ext", Title: "external", Status: task.StatusPending, CreatedAt: time.Unix(5, 0)}
	if err := backend.Save(context.Background(), []task.Task{external}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec.reset()

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := s.GetTask("ext"); !ok {
		t.Error("reloaded task missing")
	}
	if got := s.GetTaskCount(nil); got != 2 {
		t.Errorf("GetTaskCount: got %d, want 2", got)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != notify.TasksReloaded {
		t.Errorf("events: got %v, want [tasks_reloaded]", rec.kinds())
	}
}

func TestOpenLoadsBackendWithoutEvents(t *testing.T) {
	seed := NewMemoryBackend(task.Task{ID: "a", Title: "a", Status: task.StatusPending})
	s, rec := newTestStore(t, WithBackend(seed))
	if _, ok := s.GetTask("a"); !ok {
		t.Error("seeded task missing")
	}
	if len(rec.events) != 0 {
		t.Errorf("Open raised events: %v", rec.kinds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Open(ctx, WithBackend(seed)); err == nil {
		t.Error("Open with cancelled context succeeded")
	}
}

func TestGetDeletedTasksNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, task.Task{Title: "A"})
	b := mustAdd(t, s, task.Task{Title: "B", ParentTaskID: a.ID})
	c := mustAdd(t, s, task.Task{Title: "C"})
	mustAdd(t, s, task.Task{Title: "D"})

	if err := s.DeleteTask(c.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatal(err)
	}

	got := ids(s.GetDeletedTasks())
	want := []string{a.ID, b.ID, c.ID}
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHandlerMutationReachesLaterSubscribersInOrder(t *testing.T) {
	s, first := newTestStore(t)
	s.Subscribe(func(ev notify.Event) error {
		_, err := s.CyclePriority(ev.TaskID)
		return err
	}, notify.TaskAdded)
	later := &recorder{}
	s.Subscribe(later.handle)

	added := mustAdd(t, s, task.Task{Title: "A"})

	want := []notify.Kind{notify.TaskAdded, notify.TaskUpdated}
	for name, rec := range map[string]*recorder{"first": first, "later": later} {
		got := rec.kinds()
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("%s subscriber: got kinds %v, want %v", name, got, want)
		}
		if rec.events[0].Seq >= rec.events[1].Seq {
			t.Errorf("%s subscriber: seqs not increasing: %d, %d", name, rec.events[0].Seq, rec.events[1].Seq)
		}
	}
	if got := later.events[1].Task.Priority; got != task.PriorityMedium {
		t.Errorf("updated snapshot priority: got %v, want %v", got, task.PriorityMedium)
	}
	if got, _ := s.GetTask(added.ID); got.Priority != task.PriorityMedium {
		t.Errorf("stored priority: got %v, want %v", got.Priority, task.PriorityMedium)
	}
}

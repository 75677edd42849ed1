package store

import (
	"sort"

	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/task"
)

// GetTask returns a copy of the visible task with id.
func (s *Store) GetTask(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.visibleLocked(id)
	if !ok {
		return task.Task{}, false
	}
	return t.Clone(), true
}

// Lookup returns the stored record for id, including soft-deleted ones.
// Drafts are not returned; see GetDraft.
func (s *Store) Lookup(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, false
	}
	return t.Clone(), true
}

// GetDraft returns the open draft with id.
func (s *Store) GetDraft(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.drafts[id]
	if !ok {
		return task.Task{}, false
	}
	return t.Clone(), true
}

// GetTasks returns the visible tasks matching pred, oldest first. A nil
// predicate matches everything.
func (s *Store) GetTasks(pred filter.Predicate) []task.Task {
	if pred == nil {
		pred = filter.All
	}
	s.mu.RLock()
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.Deleted || !pred(*t) {
			continue
		}
		out = append(out, t.Clone())
	}
	s.mu.RUnlock()
	sortByCreation(out)
	return out
}

// GetAllTasks returns every visible task.
func (s *Store) GetAllTasks() []task.Task {
	return s.GetTasks(filter.All)
}

// GetDeletedTasks returns the soft-deleted tasks, most recently deleted
// first.
func (s *Store) GetDeletedTasks() []task.Task {
	s.mu.RLock()
	var out []task.Task
	for _, t := range s.tasks {
		if t.Deleted {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetTaskCount counts the visible tasks matching pred.
func (s *Store) GetTaskCount(pred filter.Predicate) int {
	if pred == nil {
		pred = filter.All
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if !t.Deleted && pred(*t) {
			n++
		}
	}
	return n
}

// GetSubtasks returns the visible direct children of parentID in manual
// order. An empty parentID returns the root group.
func (s *Store) GetSubtasks(parentID string) []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kids := s.childrenLocked(parentID)
	out := make([]task.Task, len(kids))
	for i, t := range kids {
		out[i] = t.Clone()
	}
	return out
}

// GetAllSubtasksRecursive returns every visible descendant of parentID,
// depth first in manual order. The parent itself is not included.
func (s *Store) GetAllSubtasksRecursive(parentID string) []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []task.Task
	s.walkLocked(parentID, 0, map[string]bool{parentID: true}, func(t *task.Task, _ int) {
		out = append(out, t.Clone())
	})
	return out
}

// Node is a task positioned in the hierarchy.
type Node struct {
	Task  task.Task
	Depth int
}

// Tree returns every visible task depth first in manual order. Visible tasks
// whose parent is missing or deleted are listed after the roots at depth 0,
// followed by their own subtrees.
func (s *Store) Tree() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Node
	seen := make(map[string]bool, len(s.tasks))
	visit := func(t *task.Task, depth int) {
		out = append(out, Node{Task: t.Clone(), Depth: depth})
	}
	s.walkLocked("", 0, seen, visit)

	var orphans []task.Task
	for _, t := range s.tasks {
		if t.Deleted || t.ParentTaskID == "" || seen[t.ID] {
			continue
		}
		if _, ok := s.visibleLocked(t.ParentTaskID); !ok {
			orphans = append(orphans, *t)
		}
	}
	sortByCreation(orphans)
	for _, o := range orphans {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		stored := s.tasks[o.ID]
		visit(stored, 0)
		s.walkLocked(o.ID, 1, seen, visit)
	}
	return out
}

func sortByCreation(tasks []task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

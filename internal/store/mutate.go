package store

import (
	"fmt"
	"strings"

	"github.com/nibzard/taskhub/internal/notify"
	"github.com/nibzard/taskhub/internal/task"
)

// normalize applies the store-owned field rules shared by add and update.
func normalize(t *task.Task) {
	t.Title = strings.TrimSpace(t.Title)
	t.Tags = task.NormalizeTags(t.Tags)
	if t.DueDate != nil {
		t.DueDate = task.Due(*t.DueDate)
	}
	if t.Status == "" {
		t.Status = task.StatusPending
	}
}

// AddTask inserts t as the last member of its sibling group and raises
// TaskAdded. The store assigns the id when t has none, and owns the
// timestamps and sort key.
func (s *Store) AddTask(t task.Task) (task.Task, error) {
	var added task.Task
	err := s.apply(func() (*change, error) {
		next := t.Clone()
		normalize(&next)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		if next.ID == "" {
			next.ID = s.newID()
		} else if s.existsLocked(next.ID) {
			return nil, &task.ValidationError{Field: "id", Err: fmt.Errorf("task %q already exists", next.ID)}
		}
		if err := s.checkParentLocked(next.ID, next.ParentTaskID); err != nil {
			return nil, err
		}
		if next.Status == task.StatusCompleted {
			next.Progress = 100
		}

		now := s.now()
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		next.UpdatedAt = now
		next.Deleted = false

		c := &change{}
		next.SortOrder = s.appendKeyLocked(c, next.ParentTaskID, next.ID)
		c.put = append(c.put, next)
		c.events = append([]notify.Event{notify.Added(next)}, c.events...)
		added = next
		return c, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return added, nil
}

func (s *Store) existsLocked(id string) bool {
	if _, ok := s.tasks[id]; ok {
		return true
	}
	_, ok := s.drafts[id]
	return ok
}

// UpdateTask replaces the stored task with the same id and raises
// TaskUpdated. CreatedAt, Notes and Deleted are kept from the stored record.
// The sort key is kept unless the parent changed, in which case the task is
// appended to its new group. Updating an open draft with a title finalizes
// it; without a title the draft is updated in place and nothing is raised.
func (s *Store) UpdateTask(t task.Task) (task.Task, error) {
	var updated task.Task
	err := s.apply(func() (*change, error) {
		if draft, ok := s.drafts[t.ID]; ok {
			return s.planFinalize(draft, t, &updated)
		}
		stored, ok := s.visibleLocked(t.ID)
		if !ok {
			return nil, &task.NotFoundError{ID: t.ID}
		}

		next := t.Clone()
		normalize(&next)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		next.CreatedAt = stored.CreatedAt
		next.Notes = stored.Clone().Notes
		next.Deleted = false
		next.UpdatedAt = s.now()
		if next.Status == task.StatusCompleted && stored.Status != task.StatusCompleted {
			next.Progress = 100
		}

		c := &change{}
		if next.ParentTaskID != stored.ParentTaskID {
			if err := s.checkParentLocked(next.ID, next.ParentTaskID); err != nil {
				return nil, err
			}
			next.SortOrder = s.appendKeyLocked(c, next.ParentTaskID, next.ID)
		} else {
			next.SortOrder = stored.SortOrder
		}
		c.put = append([]task.Task{next}, c.put...)
		c.events = append([]notify.Event{notify.Updated(next)}, c.events...)
		updated = next
		return c, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

// modify applies fn to a copy of the visible task with id and commits the
// result as a single TaskUpdated.
func (s *Store) modify(id string, fn func(*task.Task) error) (task.Task, error) {
	var updated task.Task
	err := s.apply(func() (*change, error) {
		stored, ok := s.visibleLocked(id)
		if !ok {
			return nil, &task.NotFoundError{ID: id}
		}
		next := stored.Clone()
		if err := fn(&next); err != nil {
			return nil, err
		}
		if err := next.Validate(); err != nil {
			return nil, err
		}
		next.UpdatedAt = s.now()
		c := &change{}
		c.update(next)
		updated = next
		return c, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

// AddNote appends a timestamped note.
func (s *Store) AddNote(id, content string) (task.Task, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return task.Task{}, &task.ValidationError{Field: "note", Err: fmt.Errorf("content is required")}
	}
	return s.modify(id, func(t *task.Task) error {
		t.Notes = append(t.Notes, task.Note{Content: content, CreatedAt: s.now()})
		return nil
	})
}

// CyclePriority advances the priority one step, wrapping from Today to Low.
func (s *Store) CyclePriority(id string) (task.Task, error) {
	return s.modify(id, func(t *task.Task) error {
		t.Priority = t.Priority.Next()
		return nil
	})
}

// SetStatus sets status explicitly. Completed forces progress to 100.
func (s *Store) SetStatus(id string, status task.Status) (task.Task, error) {
	return s.modify(id, func(t *task.Task) error {
		t.Status = status
		if status == task.StatusCompleted {
			t.Progress = 100
		}
		return nil
	})
}

// ToggleCompleted flips between Completed and Pending.
func (s *Store) ToggleCompleted(id string) (task.Task, error) {
	return s.modify(id, func(t *task.Task) error {
		if t.Status == task.StatusCompleted {
			t.Status = task.StatusPending
			return nil
		}
		t.Status = task.StatusCompleted
		t.Progress = 100
		return nil
	})
}

// SetProgress sets the completion percentage.
func (s *Store) SetProgress(id string, pct int) (task.Task, error) {
	return s.modify(id, func(t *task.Task) error {
		t.Progress = pct
		return nil
	})
}

// MoveTaskUp swaps the task with its previous sibling.
func (s *Store) MoveTaskUp(id string) error {
	return s.move(id, task.DirectionUp)
}

// MoveTaskDown swaps the task with its next sibling.
func (s *Store) MoveTaskDown(id string) error {
	return s.move(id, task.DirectionDown)
}

func (s *Store) move(id string, dir task.Direction) error {
	return s.apply(func() (*change, error) {
		stored, ok := s.visibleLocked(id)
		if !ok {
			return nil, &task.NotFoundError{ID: id}
		}
		group := s.siblingsLocked(stored.ParentTaskID, "")
		i := -1
		for idx, m := range group {
			if m.ID == id {
				i = idx
				break
			}
		}
		offset := -1
		if dir == task.DirectionDown {
			offset = 1
		}
		j := i + offset
		if i < 0 || j < 0 || j >= len(group) {
			return nil, &task.BoundaryError{TaskID: id, Direction: dir}
		}

		c := &change{}
		s.rekeyLocked(c, s.ordering.Swap(group, i, offset))
		return c, nil
	})
}

// DeleteTask soft-deletes the task and its whole subtree and raises one
// TaskDeleted carrying the root id. Deleting an already deleted task does
// nothing.
func (s *Store) DeleteTask(id string) error {
	return s.apply(func() (*change, error) {
		root, ok := s.tasks[id]
		if !ok {
			return nil, &task.NotFoundError{ID: id}
		}
		if root.Deleted {
			return nil, nil
		}
		now := s.now()
		c := &change{}
		var removed []string
		for _, t := range append([]*task.Task{root}, s.descendantsLocked(id)...) {
			if t.Deleted {
				continue
			}
			next := t.Clone()
			next.Deleted = true
			next.UpdatedAt = now
			c.put = append(c.put, next)
			removed = append(removed, next.ID)
		}
		c.events = []notify.Event{notify.Deleted(id)}
		c.commit = func() { s.deletedWith[id] = removed }
		return c, nil
	})
}

// Restore undoes a delete of id. When the store remembers the cascade that
// deleted id, exactly that set is restored; otherwise id and all of its
// deleted descendants are. The parent, if any, must be visible. Raises
// TaskUpdated for the restored root.
func (s *Store) Restore(id string) (task.Task, error) {
	var restored task.Task
	err := s.apply(func() (*change, error) {
		root, ok := s.tasks[id]
		if !ok {
			return nil, &task.NotFoundError{ID: id}
		}
		if !root.Deleted {
			return nil, &task.ValidationError{Field: "deleted", Err: fmt.Errorf("task %q is not deleted", id)}
		}
		if root.ParentTaskID != "" {
			if _, ok := s.visibleLocked(root.ParentTaskID); !ok {
				return nil, &task.ValidationError{
					Field: "parent_task_id",
					Err:   fmt.Errorf("parent %q does not exist or is deleted", root.ParentTaskID),
				}
			}
		}

		ids, ok := s.deletedWith[id]
		if !ok {
			ids = []string{id}
			for _, t := range s.descendantsLocked(id) {
				if t.Deleted {
					ids = append(ids, t.ID)
				}
			}
		}

		now := s.now()
		c := &change{}
		for _, tid := range ids {
			stored, ok := s.tasks[tid]
			if !ok || !stored.Deleted {
				continue
			}
			next := stored.Clone()
			next.Deleted = false
			next.UpdatedAt = now
			if tid == id && s.keyTakenLocked(next.ParentTaskID, next.ID, next.SortOrder) {
				next.SortOrder = s.appendKeyLocked(c, next.ParentTaskID, next.ID)
			}
			c.put = append(c.put, next)
			if tid == id {
				restored = next
			}
		}
		c.events = append([]notify.Event{notify.Updated(restored)}, c.events...)
		c.commit = func() { delete(s.deletedWith, id) }
		return c, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return restored, nil
}

// keyTakenLocked reports whether a visible sibling other than id already
// uses key.
func (s *Store) keyTakenLocked(parentID, id string, key int) bool {
	for _, m := range s.siblingsLocked(parentID, id) {
		if m.SortOrder == key {
			return true
		}
	}
	return false
}

// AddDraft stores t without requiring a title. Drafts are invisible to every
// query and raise no event until UpdateTask finalizes them.
func (s *Store) AddDraft(t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := t.Clone()
	normalize(&next)
	if err := next.ValidateDraft(); err != nil {
		return task.Task{}, err
	}
	if next.ID == "" {
		next.ID = s.newID()
	} else if s.existsLocked(next.ID) {
		return task.Task{}, &task.ValidationError{Field: "id", Err: fmt.Errorf("task %q already exists", next.ID)}
	}
	if err := s.checkParentLocked(next.ID, next.ParentTaskID); err != nil {
		return task.Task{}, err
	}
	now := s.now()
	next.CreatedAt = now
	next.UpdatedAt = now
	next.Deleted = false
	s.drafts[next.ID] = &next
	return next.Clone(), nil
}

// DiscardDraft drops an unfinalized draft.
func (s *Store) DiscardDraft(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return &task.NotFoundError{ID: id}
	}
	delete(s.drafts, id)
	return nil
}

// planFinalize is the UpdateTask path for drafts. It runs under the write
// lock and may modify the draft map directly because drafts are never
// persisted.
func (s *Store) planFinalize(draft *task.Task, t task.Task, out *task.Task) (*change, error) {
	next := t.Clone()
	normalize(&next)
	if err := next.ValidateDraft(); err != nil {
		return nil, err
	}
	if next.ParentTaskID != draft.ParentTaskID {
		if err := s.checkParentLocked(next.ID, next.ParentTaskID); err != nil {
			return nil, err
		}
	}
	next.CreatedAt = draft.CreatedAt
	next.Notes = draft.Clone().Notes
	next.Deleted = false
	next.UpdatedAt = s.now()
	if next.Status == task.StatusCompleted {
		next.Progress = 100
	}

	if next.Title == "" {
		s.drafts[next.ID] = &next
		*out = next.Clone()
		return &change{}, nil
	}
	if _, ok := s.visibleLocked(next.ParentTaskID); next.ParentTaskID != "" && !ok {
		return nil, &task.ValidationError{
			Field: "parent_task_id",
			Err:   fmt.Errorf("parent %q does not exist or is deleted", next.ParentTaskID),
		}
	}

	c := &change{}
	next.SortOrder = s.appendKeyLocked(c, next.ParentTaskID, next.ID)
	c.put = append([]task.Task{next}, c.put...)
	c.events = append([]notify.Event{notify.Updated(next)}, c.events...)
	c.commit = func() { delete(s.drafts, next.ID) }
	*out = next
	return c, nil
}

package store

import (
	"fmt"

	"github.com/nibzard/taskhub/internal/ordering"
	"github.com/nibzard/taskhub/internal/task"
)

// siblingsLocked returns the visible members of parentID's group, sorted,
// leaving out exclude.
func (s *Store) siblingsLocked(parentID, exclude string) []ordering.Member {
	var group []ordering.Member
	for _, t := range s.tasks {
		if t.Deleted || t.ParentTaskID != parentID || t.ID == exclude {
			continue
		}
		group = append(group, ordering.Member{ID: t.ID, SortOrder: t.SortOrder, CreatedAt: t.CreatedAt})
	}
	ordering.Sort(group)
	return group
}

// childrenLocked returns the visible direct children of parentID in manual
// order.
func (s *Store) childrenLocked(parentID string) []*task.Task {
	group := s.siblingsLocked(parentID, "")
	out := make([]*task.Task, len(group))
	for i, m := range group {
		out[i] = s.tasks[m.ID]
	}
	return out
}

// checkParentLocked verifies that id may be placed under parentID.
func (s *Store) checkParentLocked(id, parentID string) error {
	if parentID == "" {
		return nil
	}
	if id != "" && parentID == id {
		return &task.CyclicHierarchyError{TaskID: id, ParentID: parentID}
	}
	if _, ok := s.visibleLocked(parentID); !ok {
		return &task.ValidationError{
			Field: "parent_task_id",
			Err:   fmt.Errorf("parent %q does not exist or is deleted", parentID),
		}
	}
	if id == "" {
		return nil
	}
	// Walk up from the new parent. The chain length is bounded by the task
	// count so inconsistent stored data cannot loop forever.
	cur := parentID
	for steps := 0; cur != "" && steps <= len(s.tasks); steps++ {
		if cur == id {
			return &task.CyclicHierarchyError{TaskID: id, ParentID: parentID}
		}
		p, ok := s.tasks[cur]
		if !ok {
			break
		}
		cur = p.ParentTaskID
	}
	return nil
}

// appendKeyLocked picks the sort key for id appended to parentID's group.
// Siblings renumbered to make room are stamped and added to c.
func (s *Store) appendKeyLocked(c *change, parentID, id string) int {
	key, renumbered := s.ordering.Next(s.siblingsLocked(parentID, id))
	s.rekeyLocked(c, renumbered)
	return key
}

func (s *Store) rekeyLocked(c *change, keys map[string]int) {
	if len(keys) == 0 {
		return
	}
	now := s.now()
	for _, m := range s.siblingsSorted(keys) {
		t := s.tasks[m].Clone()
		t.SortOrder = keys[m]
		t.UpdatedAt = now
		c.update(t)
	}
}

// siblingsSorted returns the ids of keys ordered by their new key so events
// are raised deterministically.
func (s *Store) siblingsSorted(keys map[string]int) []string {
	group := make([]ordering.Member, 0, len(keys))
	for id, key := range keys {
		group = append(group, ordering.Member{ID: id, SortOrder: key, CreatedAt: s.tasks[id].CreatedAt})
	}
	return ordering.Positions(group)
}

// descendantsLocked returns every task below id, including deleted ones,
// parents before children.
func (s *Store) descendantsLocked(id string) []*task.Task {
	byParent := make(map[string][]*task.Task)
	for _, t := range s.tasks {
		if t.ParentTaskID != "" {
			byParent[t.ParentTaskID] = append(byParent[t.ParentTaskID], t)
		}
	}
	var out []*task.Task
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids := byParent[cur]
		group := make([]ordering.Member, len(kids))
		for i, k := range kids {
			group[i] = ordering.Member{ID: k.ID, SortOrder: k.SortOrder, CreatedAt: k.CreatedAt}
		}
		for _, kid := range ordering.Positions(group) {
			if seen[kid] {
				continue
			}
			seen[kid] = true
			out = append(out, s.tasks[kid])
			queue = append(queue, kid)
		}
	}
	return out
}

// walkLocked visits visible tasks below parentID depth first in manual
// order. Deleted tasks and their subtrees are skipped.
func (s *Store) walkLocked(parentID string, depth int, seen map[string]bool, fn func(*task.Task, int)) {
	for _, t := range s.childrenLocked(parentID) {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		fn(t, depth)
		s.walkLocked(t.ID, depth+1, seen, fn)
	}
}

// Package ordering assigns and repairs the manual sort keys of a sibling group.
//
// Keys are spaced by a fixed gap so that appending and swapping never touch
// the rest of the group. When two neighbours end up with no free integer
// between them the whole group is renumbered sequentially, preserving order.
package ordering

import (
	"sort"
	"time"
)

// DefaultGap is the spacing between consecutive keys after a renumber and
// between the last sibling and a newly appended one.
const DefaultGap = 100

// Member is the view of a sibling the manager needs.
type Member struct {
	ID        string
	SortOrder int
	CreatedAt time.Time
}

// Manager computes sort keys for sibling groups.
type Manager struct {
	gap int
}

// New returns a manager using gap, falling back to DefaultGap when gap is
// too small to leave room for insertions.
func New(gap int) *Manager {
	if gap < 2 {
		gap = DefaultGap
	}
	return &Manager{gap: gap}
}

// Gap returns the spacing in use.
func (m *Manager) Gap() int {
	return m.gap
}

// Sort orders a group by key, breaking ties by creation time and then id so
// the order is total even for inconsistent data.
func Sort(group []Member) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Exhausted reports whether any two neighbours in the sorted group have no
// free integer between them.
func Exhausted(group []Member) bool {
	for i := 1; i < len(group); i++ {
		if group[i].SortOrder-group[i-1].SortOrder < 2 {
			return true
		}
	}
	return false
}

// Repair sorts the group and, when gaps are exhausted, renumbers it to
// gap, 2*gap, ... in current order. It returns the new keys of every member
// whose key changed; the slice itself is updated in place.
func (m *Manager) Repair(group []Member) map[string]int {
	Sort(group)
	if !Exhausted(group) {
		return nil
	}
	return m.Renumber(group)
}

// Renumber unconditionally renumbers an already sorted group.
func (m *Manager) Renumber(group []Member) map[string]int {
	changed := make(map[string]int)
	for i := range group {
		key := (i + 1) * m.gap
		if group[i].SortOrder != key {
			group[i].SortOrder = key
			changed[group[i].ID] = key
		}
	}
	return changed
}

// Next returns the key for a member appended after group. The group is
// repaired first when needed; the returned map holds those renumberings.
func (m *Manager) Next(group []Member) (int, map[string]int) {
	changed := m.Repair(group)
	if len(group) == 0 {
		return m.gap, changed
	}
	return group[len(group)-1].SortOrder + m.gap, changed
}

// Swap exchanges the keys of the members at i and i+offset in the sorted
// group, repairing first when neighbours share a key. It returns every key
// that changed, including the two swapped members.
func (m *Manager) Swap(group []Member, i, offset int) map[string]int {
	j := i + offset
	if i < 0 || j < 0 || i >= len(group) || j >= len(group) {
		return nil
	}

	changed := m.Repair(group)
	if changed == nil {
		changed = make(map[string]int)
	}
	group[i].SortOrder, group[j].SortOrder = group[j].SortOrder, group[i].SortOrder
	changed[group[i].ID] = group[i].SortOrder
	changed[group[j].ID] = group[j].SortOrder
	group[i], group[j] = group[j], group[i]
	return changed
}

// Positions returns the ids of group in sorted order.
func Positions(group []Member) []string {
	Sort(group)
	ids := make([]string, len(group))
	for i, member := range group {
		ids[i] = member.ID
	}
	return ids
}

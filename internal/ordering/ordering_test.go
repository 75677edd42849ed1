package ordering

import (
	"testing"
	"time"
)

func members(keys ...int) []Member {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	group := make([]Member, len(keys))
	for i, k := range keys {
		group[i] = Member{ID: string(rune('a' + i)), SortOrder: k, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
	}
	return group
}

func TestNew(t *testing.T) {
	if got := New(0).Gap(); got != DefaultGap {
		t.Errorf("New(0).Gap(): got %d, want %d", got, DefaultGap)
	}
	if got := New(1).Gap(); got != DefaultGap {
		t.Errorf("New(1).Gap(): got %d, want %d", got, DefaultGap)
	}
	if got := New(1000).Gap(); got != 1000 {
		t.Errorf("New(1000).Gap(): got %d, want 1000", got)
	}
}

func TestNext(t *testing.T) {
	m := New(DefaultGap)

	t.Run("empty group starts at gap", func(t *testing.T) {
		key, changed := m.Next(nil)
		if key != DefaultGap {
			t.Errorf("key: got %d, want %d", key, DefaultGap)
		}
		if len(changed) != 0 {
			t.Errorf("expected no renumbering, got %v", changed)
		}
	})

	t.Run("appends after max", func(t *testing.T) {
		key, changed := m.Next(members(300, 100, 200))
		if key != 400 {
			t.Errorf("key: got %d, want 400", key)
		}
		if len(changed) != 0 {
			t.Errorf("expected no renumbering, got %v", changed)
		}
	})

	t.Run("renumbers exhausted group first", func(t *testing.T) {
		group := members(100, 101, 500)
		key, changed := m.Next(group)
		if key != 400 {
			t.Errorf("key: got %d, want 400", key)
		}
		want := map[string]int{"a": 100, "b": 200, "c": 300}
		for id, k := range want {
			if id == "a" {
				if _, ok := changed[id]; ok {
					t.Errorf("member a kept its key and should not be reported")
				}
				continue
			}
			if changed[id] != k {
				t.Errorf("changed[%s]: got %d, want %d", id, changed[id], k)
			}
		}
	})
}

func TestRepairPreservesOrder(t *testing.T) {
	m := New(10)
	group := members(5, 5, 5, 6)
	before := Positions(append([]Member(nil), group...))
	m.Repair(group)
	after := Positions(group)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("order changed: before %v, after %v", before, after)
		}
	}
	for i, member := range group {
		if member.SortOrder != (i+1)*10 {
			t.Errorf("member %s: got key %d, want %d", member.ID, member.SortOrder, (i+1)*10)
		}
	}
}

func TestRepairNoopWhenRoomy(t *testing.T) {
	m := New(DefaultGap)
	group := members(100, 150, 400)
	if changed := m.Repair(group); changed != nil {
		t.Errorf("expected nil, got %v", changed)
	}
}

func TestSwap(t *testing.T) {
	m := New(DefaultGap)
	group := members(100, 200, 300)
	changed := m.Swap(group, 2, -1)
	if changed["c"] != 200 || changed["b"] != 300 {
		t.Errorf("Swap changes: got %v", changed)
	}
	if got := Positions(group); got[1] != "c" || got[2] != "b" {
		t.Errorf("Positions after swap: got %v", got)
	}
	if m.Swap(group, 0, -1) != nil {
		t.Error("expected nil for out-of-range swap")
	}
}

func TestSwapRoundTripIsStable(t *testing.T) {
	m := New(DefaultGap)
	for n := 2; n <= 6; n++ {
		keys := make([]int, n)
		for i := range keys {
			keys[i] = (i + 1) * DefaultGap
		}
		group := members(keys...)
		before := Positions(group)
		for i := n - 1; i > 0; i-- {
			m.Swap(group, i, -1)
		}
		for i := 0; i < n-1; i++ {
			m.Swap(group, i, 1)
		}
		after := Positions(group)
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("n=%d: order changed: before %v, after %v", n, before, after)
			}
		}
	}
}

package task

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Status represents a task status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses returns every status in display order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the status counts as open work.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusInProgress
}

// ParseStatus parses a status name. It accepts the canonical names plus a
// few aliases ("todo", "doing", "done", "in-progress").
func ParseStatus(input string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "pending", "todo":
		return StatusPending, nil
	case "in_progress", "in-progress", "inprogress", "doing":
		return StatusInProgress, nil
	case "completed", "done", "complete":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("invalid status %q, must be one of: pending, in_progress, completed, cancelled", input)
}

// Priority represents a task priority. Values are totally ordered
// Low < Medium < High < Today.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityToday
)

var priorityNames = [...]string{"low", "medium", "high", "today"}

// Priorities returns every priority from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityToday}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityToday
}

// Next returns the following priority, wrapping Today back to Low.
func (p Priority) Next() Priority {
	if p >= PriorityToday || p < PriorityLow {
		return PriorityLow
	}
	return p + 1
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(data []byte) error {
	parsed, err := ParsePriority(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority parses a priority name.
func ParsePriority(input string) (Priority, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	for i, name := range priorityNames {
		if s == name {
			return Priority(i), nil
		}
	}
	switch s {
	case "med":
		return PriorityMedium, nil
	case "hi":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("invalid priority %q, must be one of: low, medium, high, today", input)
}

// Note is a timestamped annotation on a task.
type Note struct {
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Task is the unit of trackable work.
type Task struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Tags         []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Notes        []Note     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Status       Status     `json:"status" yaml:"status"`
	Priority     Priority   `json:"priority" yaml:"priority"`
	Progress     int        `json:"progress" yaml:"progress"`
	DueDate      *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	ParentTaskID string     `json:"parent_task_id,omitempty" yaml:"parent_task_id,omitempty"`
	SortOrder    int        `json:"sort_order" yaml:"sort_order"`
	ProjectID    string     `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Deleted      bool       `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
}

// IsZero returns true if the task is empty (has no ID).
func (t *Task) IsZero() bool {
	return t.ID == ""
}

// IsRoot reports whether the task belongs to the root sibling group.
func (t *Task) IsRoot() bool {
	return t.ParentTaskID == ""
}

// HasTag reports whether the task carries tag, ignoring case.
func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// NotesByRecency returns the notes newest first.
func (t *Task) NotesByRecency() []Note {
	notes := slices.Clone(t.Notes)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes
}

// Clone returns a deep copy that shares no mutable state with t.
func (t Task) Clone() Task {
	c := t
	c.Tags = slices.Clone(t.Tags)
	c.Notes = slices.Clone(t.Notes)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return c
}

// NormalizeTags trims, drops empties and deduplicates case-insensitively,
// keeping the first spelling seen. The result is sorted.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// DateOnly strips the time of day, returning midnight UTC of the calendar
// date t falls on in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Due returns a pointer to the date-only value of t.
func Due(t time.Time) *time.Time {
	d := DateOnly(t)
	return &d
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(input string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", input)
	}
	return d, nil
}

// Validate checks the task's own fields. Hierarchy checks need the rest of
// the collection and live in the store.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Err: fmt.Errorf("missing required field")}
	}
	return t.ValidateDraft()
}

// ValidateDraft is Validate without the title requirement.
func (t *Task) ValidateDraft() error {
	if !t.Status.Valid() {
		return &ValidationError{
			Field: "status",
			Err:   fmt.Errorf("invalid status %q, must be one of: pending, in_progress, completed, cancelled", t.Status),
		}
	}
	if !t.Priority.Valid() {
		return &ValidationError{
			Field: "priority",
			Err:   fmt.Errorf("invalid priority %d", int(t.Priority)),
		}
	}
	if t.Progress < 0 || t.Progress > 100 {
		return &ValidationError{
			Field: "progress",
			Err:   fmt.Errorf("must be between 0 and 100, got %d", t.Progress),
		}
	}
	if t.ID != "" && t.ParentTaskID == t.ID {
		return &CyclicHierarchyError{TaskID: t.ID, ParentID: t.ParentTaskID}
	}
	return nil
}

// Package filter provides named, composable read-side predicates over tasks.
package filter

import (
	"strings"
	"time"

	"github.com/nibzard/taskhub/internal/duedate"
	"github.com/nibzard/taskhub/internal/task"
)

// Predicate selects tasks. Predicates must not mutate the task.
type Predicate func(task.Task) bool

// All matches every task.
func All(task.Task) bool { return true }

// Active matches pending and in-progress tasks.
func Active(t task.Task) bool { return t.Status.Active() }

// Completed matches completed tasks.
func Completed(t task.Task) bool { return t.Status == task.StatusCompleted }

// Cancelled matches cancelled tasks.
func Cancelled(t task.Task) bool { return t.Status == task.StatusCancelled }

// And matches when every predicate matches. And() matches everything.
func And(preds ...Predicate) Predicate {
	return func(t task.Task) bool {
		for _, p := range preds {
			if p != nil && !p(t) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches. Or() matches nothing.
func Or(preds ...Predicate) Predicate {
	return func(t task.Task) bool {
		for _, p := range preds {
			if p != nil && p(t) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(t task.Task) bool { return !p(t) }
}

// StatusIn matches any of statuses.
func StatusIn(statuses ...task.Status) Predicate {
	return func(t task.Task) bool {
		for _, s := range statuses {
			if t.Status == s {
				return true
			}
		}
		return false
	}
}

// PriorityIn matches any of priorities.
func PriorityIn(priorities ...task.Priority) Predicate {
	return func(t task.Task) bool {
		for _, p := range priorities {
			if t.Priority == p {
				return true
			}
		}
		return false
	}
}

// ProjectIn matches any of project ids. The empty string selects tasks
// without a project.
func ProjectIn(projects ...string) Predicate {
	return func(t task.Task) bool {
		for _, p := range projects {
			if t.ProjectID == p {
				return true
			}
		}
		return false
	}
}

// BucketIn matches tasks whose due-date bucket, relative to today(), is
// any of buckets. today is consulted on every evaluation.
func BucketIn(today func() time.Time, buckets ...duedate.Bucket) Predicate {
	return func(t task.Task) bool {
		b := duedate.Classify(t, today())
		for _, want := range buckets {
			if b == want {
				return true
			}
		}
		return false
	}
}

// TagIn matches tasks carrying any of tags.
func TagIn(tags ...string) Predicate {
	return func(t task.Task) bool {
		for _, tag := range tags {
			if t.HasTag(tag) {
				return true
			}
		}
		return false
	}
}

// TextMatch matches tasks whose title, description or tags contain text,
// ignoring case.
func TextMatch(text string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(text))
	return func(t task.Task) bool {
		if needle == "" {
			return true
		}
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			return true
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
		return false
	}
}

// Composite is a consumer-built filter. Dimensions are ANDed together and
// the values selected within a dimension are ORed. An empty dimension does
// not constrain the result.
type Composite struct {
	Statuses   []task.Status
	Priorities []task.Priority
	Projects   []string
	Buckets    []duedate.Bucket
	Tags       []string
	Text       string
}

// IsEmpty reports whether no dimension is constrained.
func (c Composite) IsEmpty() bool {
	return len(c.Statuses) == 0 && len(c.Priorities) == 0 && len(c.Projects) == 0 &&
		len(c.Buckets) == 0 && len(c.Tags) == 0 && strings.TrimSpace(c.Text) == ""
}

// Predicate builds the predicate. today is only consulted when the bucket
// dimension is constrained; a nil today uses the local clock.
func (c Composite) Predicate(today func() time.Time) Predicate {
	var preds []Predicate
	if len(c.Statuses) > 0 {
		preds = append(preds, StatusIn(c.Statuses...))
	}
	if len(c.Priorities) > 0 {
		preds = append(preds, PriorityIn(c.Priorities...))
	}
	if len(c.Projects) > 0 {
		preds = append(preds, ProjectIn(c.Projects...))
	}
	if len(c.Buckets) > 0 {
		if today == nil {
			today = time.Now
		}
		preds = append(preds, BucketIn(today, c.Buckets...))
	}
	if len(c.Tags) > 0 {
		preds = append(preds, TagIn(c.Tags...))
	}
	if strings.TrimSpace(c.Text) != "" {
		preds = append(preds, TextMatch(c.Text))
	}
	return And(preds...)
}

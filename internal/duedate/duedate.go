// Package duedate buckets tasks into timeframes relative to a given day.
//
// Classification compares calendar dates only. It is recomputed on every
// call and never stored on the task, since "today" moves as time passes.
package duedate

import (
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/taskhub/internal/task"
)

// Bucket is a due-date timeframe.
type Bucket int

const (
	NoDueDate Bucket = iota
	Overdue
	Today
	Tomorrow
	ThisWeek
	Later
)

var bucketNames = [...]string{"no-due-date", "overdue", "today", "tomorrow", "this-week", "later"}

// Buckets returns every bucket in agenda display order.
func Buckets() []Bucket {
	return []Bucket{Overdue, Today, Tomorrow, ThisWeek, Later, NoDueDate}
}

func (b Bucket) String() string {
	if b < NoDueDate || b > Later {
		return fmt.Sprintf("bucket(%d)", int(b))
	}
	return bucketNames[b]
}

// Label returns a human-readable title for the bucket.
func (b Bucket) Label() string {
	switch b {
	case NoDueDate:
		return "No due date"
	case Overdue:
		return "Overdue"
	case Today:
		return "Today"
	case Tomorrow:
		return "Tomorrow"
	case ThisWeek:
		return "This week"
	case Later:
		return "Later"
	}
	return b.String()
}

// ParseBucket parses a bucket name such as "this-week" or "overdue".
func ParseBucket(input string) (Bucket, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	for i, name := range bucketNames {
		if s == name {
			return Bucket(i), nil
		}
	}
	if s == "none" || s == "unscheduled" {
		return NoDueDate, nil
	}
	return 0, fmt.Errorf("invalid due-date bucket %q", input)
}

// weekdayIndex numbers days Monday=1 through Sunday=7.
func weekdayIndex(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// EndOfWeek returns the last day of the calendar week containing today
// (the upcoming Sunday, or today itself on a Sunday).
func EndOfWeek(today time.Time) time.Time {
	day := task.DateOnly(today)
	return day.AddDate(0, 0, 7-weekdayIndex(day))
}

// Classify buckets t relative to today.
func Classify(t task.Task, today time.Time) Bucket {
	if t.DueDate == nil {
		return NoDueDate
	}
	due := task.DateOnly(*t.DueDate)
	day := task.DateOnly(today)
	tomorrow := day.AddDate(0, 0, 1)

	switch {
	case due.Before(day):
		return Overdue
	case due.Equal(day):
		return Today
	case due.Equal(tomorrow):
		return Tomorrow
	case !due.After(EndOfWeek(day)):
		return ThisWeek
	default:
		return Later
	}
}

// Group buckets tasks relative to today, keeping input order within a bucket.
func Group(tasks []task.Task, today time.Time) map[Bucket][]task.Task {
	groups := make(map[Bucket][]task.Task)
	for _, t := range tasks {
		b := Classify(t, today)
		groups[b] = append(groups[b], t)
	}
	return groups
}

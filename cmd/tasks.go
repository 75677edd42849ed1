package cmd

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nibzard/taskhub/internal/duedate"
	"github.com/nibzard/taskhub/internal/task"
)

// noneValue clears an optional field in update.
const noneValue = "none"

// addCommand creates a task.
func addCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub add", flag.ContinueOnError)
	parent := fs.String("parent", "", "Parent task id")
	desc := fs.String("desc", "", "Description")
	tags := fs.String("tags", "", "Comma-separated tags")
	priority := fs.String("priority", "medium", "Priority (low|medium|high|today)")
	status := fs.String("status", "pending", "Status (pending|in_progress|completed|cancelled)")
	due := fs.String("due", "", "Due date (YYYY-MM-DD, today, tomorrow or +N days)")
	project := fs.String("project", "", "Project id")
	progress := fs.Int("progress", 0, "Progress percentage (0-100)")

	if err := parse(fs, args); err != nil {
		return err
	}
	title := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if title == "" {
		return usagef("add: missing title")
	}

	t := task.Task{
		Title:       title,
		Description: *desc,
		Tags:        splitAndTrim(*tags, ","),
		ProjectID:   *project,
		Progress:    *progress,
	}
	var err error
	if t.Priority, err = task.ParsePriority(*priority); err != nil {
		return usagef("add: %v", err)
	}
	if t.Status, err = task.ParseStatus(*status); err != nil {
		return usagef("add: %v", err)
	}
	if *due != "" {
		d, err := parseDue(*due, a.catalog.Today())
		if err != nil {
			return usagef("add: %v", err)
		}
		t.DueDate = &d
	}
	if *parent != "" {
		p, err := a.resolve(*parent)
		if err != nil {
			return err
		}
		t.ParentTaskID = p.ID
	}

	added, err := a.store.AddTask(t)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s %s\n", shortID(added.ID), added.Title)
	return nil
}

// updateCommand changes the fields named by flags and leaves the rest.
func updateCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub update", flag.ContinueOnError)
	title := fs.String("title", "", "New title")
	desc := fs.String("desc", "", "New description")
	tags := fs.String("tags", "", "Replace tags (comma-separated, \"none\" clears)")
	priority := fs.String("priority", "", "Priority (low|medium|high|today)")
	status := fs.String("status", "", "Status (pending|in_progress|completed|cancelled)")
	due := fs.String("due", "", "Due date (YYYY-MM-DD, today, tomorrow, +N or \"none\")")
	parent := fs.String("parent", "", "Parent task id (\"none\" moves to the root)")
	project := fs.String("project", "", "Project id (\"none\" clears)")
	progress := fs.Int("progress", 0, "Progress percentage (0-100)")

	ref, rest, err := parseWithRef(fs, args)
	if err != nil {
		return err
	}
	if err := noExtraArgs(rest); err != nil {
		return err
	}
	t, err := a.resolve(ref)
	if err != nil {
		return err
	}

	changed := false
	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		if visitErr != nil {
			return
		}
		changed = true
		switch f.Name {
		case "title":
			t.Title = *title
		case "desc":
			t.Description = *desc
		case "tags":
			if *tags == noneValue {
				t.Tags = nil
			} else {
				t.Tags = splitAndTrim(*tags, ",")
			}
		case "priority":
			t.Priority, visitErr = task.ParsePriority(*priority)
		case "status":
			t.Status, visitErr = task.ParseStatus(*status)
		case "due":
			if *due == noneValue {
				t.DueDate = nil
				return
			}
			var d time.Time
			if d, visitErr = parseDue(*due, a.catalog.Today()); visitErr == nil {
				t.DueDate = &d
			}
		case "parent":
			if *parent == noneValue {
				t.ParentTaskID = ""
				return
			}
			var p task.Task
			if p, visitErr = a.resolve(*parent); visitErr == nil {
				t.ParentTaskID = p.ID
			}
		case "project":
			if *project == noneValue {
				t.ProjectID = ""
			} else {
				t.ProjectID = *project
			}
		case "progress":
			t.Progress = *progress
		}
	})
	if visitErr != nil {
		return visitErr
	}
	if !changed {
		return usagef("update: nothing to change")
	}

	updated, err := a.store.UpdateTask(t)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s %s\n", shortID(updated.ID), updated.Title)
	return nil
}

// showCommand prints one task in full.
func showCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub show", flag.ContinueOnError)
	ref, rest, err := parseWithRef(fs, args)
	if err != nil {
		return err
	}
	if err := noExtraArgs(rest); err != nil {
		return err
	}
	t, err := a.resolve(ref)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", checkbox(t), t.Title)
	fmt.Printf("  ID:       %s\n", t.ID)
	fmt.Printf("  Status:   %s\n", t.Status)
	fmt.Printf("  Priority: %s\n", t.Priority)
	fmt.Printf("  Progress: %d%%\n", t.Progress)
	if t.DueDate != nil {
		bucket := duedate.Classify(t, a.catalog.Today())
		fmt.Printf("  Due:      %s (%s)\n", t.DueDate.Format(time.DateOnly), bucket.Label())
	}
	if t.ParentTaskID != "" {
		if p, ok := a.store.GetTask(t.ParentTaskID); ok {
			fmt.Printf("  Parent:   %s %s\n", shortID(p.ID), p.Title)
		} else {
			fmt.Printf("  Parent:   %s (deleted)\n", shortID(t.ParentTaskID))
		}
	}
	if t.ProjectID != "" {
		fmt.Printf("  Project:  %s\n", t.ProjectID)
	}
	if len(t.Tags) > 0 {
		fmt.Printf("  Tags:     %s\n", strings.Join(t.Tags, ", "))
	}
	fmt.Printf("  Created:  %s\n", t.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("  Updated:  %s\n", t.UpdatedAt.Local().Format(time.DateTime))
	if t.Description != "" {
		fmt.Println()
		for _, line := range strings.Split(t.Description, "\n") {
			fmt.Printf("  %s\n", line)
		}
	}
	if notes := t.NotesByRecency(); len(notes) > 0 {
		fmt.Println()
		fmt.Printf("Notes (%d):\n", len(notes))
		for _, n := range notes {
			fmt.Printf("  %s  %s\n", n.CreatedAt.Local().Format(time.DateTime), n.Content)
		}
	}
	if subtasks := a.store.GetSubtasks(t.ID); len(subtasks) > 0 {
		fmt.Println()
		fmt.Printf("Subtasks (%d):\n", len(subtasks))
		for _, s := range subtasks {
			printTask(s, 1, a.catalog.Today())
		}
	}
	return nil
}

// doneCommand toggles completion.
func doneCommand(ctx context.Context, a *app, args []string) error {
	t, err := singleRef(a, "taskhub done", args)
	if err != nil {
		return err
	}
	updated, err := a.store.ToggleCompleted(t.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s is now %s\n", shortID(updated.ID), updated.Title, updated.Status)
	return nil
}

// statusCommand sets an explicit status.
func statusCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub status", flag.ContinueOnError)
	ref, rest, err := parseWithRef(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return usagef("status: expected <id> <status>")
	}
	status, err := task.ParseStatus(rest[0])
	if err != nil {
		return usagef("status: %v", err)
	}
	t, err := a.resolve(ref)
	if err != nil {
		return err
	}
	updated, err := a.store.SetStatus(t.ID, status)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s is now %s\n", shortID(updated.ID), updated.Title, updated.Status)
	return nil
}

// cycleCommand advances the priority one step.
func cycleCommand(ctx context.Context, a *app, args []string) error {
	t, err := singleRef(a, "taskhub cycle", args)
	if err != nil {
		return err
	}
	updated, err := a.store.CyclePriority(t.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s priority %s -> %s\n", shortID(updated.ID), updated.Title, t.Priority, updated.Priority)
	return nil
}

// noteCommand appends a note.
func noteCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub note", flag.ContinueOnError)
	ref, rest, err := parseWithRef(fs, args)
	if err != nil {
		return err
	}
	t, err := a.resolve(ref)
	if err != nil {
		return err
	}
	updated, err := a.store.AddNote(t.ID, strings.Join(rest, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Noted %s %s (%d notes)\n", shortID(updated.ID), updated.Title, len(updated.Notes))
	return nil
}

// upCommand moves a task before its previous sibling.
func upCommand(ctx context.Context, a *app, args []string) error {
	return moveCommand(a, "taskhub up", args, task.DirectionUp)
}

// downCommand moves a task after its next sibling.
func downCommand(ctx context.Context, a *app, args []string) error {
	return moveCommand(a, "taskhub down", args, task.DirectionDown)
}

func moveCommand(a *app, name string, args []string, dir task.Direction) error {
	t, err := singleRef(a, name, args)
	if err != nil {
		return err
	}
	move := a.store.MoveTaskUp
	if dir == task.DirectionDown {
		move = a.store.MoveTaskDown
	}
	if err := move(t.ID); err != nil {
		return err
	}
	for i, s := range a.store.GetSubtasks(t.ParentTaskID) {
		if s.ID == t.ID {
			fmt.Printf("Moved %s %s %s to position %d\n", shortID(t.ID), t.Title, dir, i+1)
			break
		}
	}
	return nil
}

// deleteCommand soft-deletes a task with its subtree.
func deleteCommand(ctx context.Context, a *app, args []string) error {
	t, err := singleRef(a, "taskhub delete", args)
	if err != nil {
		return err
	}
	descendants := len(a.store.GetAllSubtasksRecursive(t.ID))
	if err := a.store.DeleteTask(t.ID); err != nil {
		return err
	}
	if descendants > 0 {
		fmt.Printf("Deleted %s %s and %d subtasks\n", shortID(t.ID), t.Title, descendants)
	} else {
		fmt.Printf("Deleted %s %s\n", shortID(t.ID), t.Title)
	}
	return nil
}

// restoreCommand undoes a delete, or lists deleted tasks without an id.
func restoreCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub restore", flag.ContinueOnError)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		deleted := a.store.GetDeletedTasks()
		if len(deleted) == 0 {
			fmt.Println("No deleted tasks.")
			return nil
		}
		fmt.Printf("Deleted (%d):\n", len(deleted))
		for _, t := range deleted {
			fmt.Printf("  %s %s (deleted %s)\n", shortID(t.ID), t.Title, t.UpdatedAt.Local().Format(time.DateTime))
		}
		return nil
	}
	if err := noExtraArgs(fs.Args()[1:]); err != nil {
		return err
	}
	t, err := a.resolveDeleted(fs.Arg(0))
	if err != nil {
		return err
	}
	restored, err := a.store.Restore(t.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %s %s\n", shortID(restored.ID), restored.Title)
	return nil
}

// singleRef parses a command that takes exactly one task id.
func singleRef(a *app, name string, args []string) (task.Task, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	ref, rest, err := parseWithRef(fs, args)
	if err != nil {
		return task.Task{}, err
	}
	if err := noExtraArgs(rest); err != nil {
		return task.Task{}, err
	}
	return a.resolve(ref)
}

// parseDue accepts YYYY-MM-DD, "today", "tomorrow" and "+N" days from today.
func parseDue(input string, today time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	day := task.DateOnly(today)
	switch s {
	case "today":
		return day, nil
	case "tomorrow":
		return day.AddDate(0, 0, 1), nil
	}
	if strings.HasPrefix(s, "+") {
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid relative date %q, expected +N", input)
		}
		return day.AddDate(0, 0, n), nil
	}
	return task.ParseDate(s)
}

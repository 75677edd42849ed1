// Package export renders the task collection as Markdown, CSV, JSON or YAML.
//
// Exporters only read; they take whatever the Source returns at call time.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nibzard/taskhub/internal/ordering"
	"github.com/nibzard/taskhub/internal/task"
)

// Source is the read side of the store the exporters need.
type Source interface {
	GetAllTasks() []task.Task
}

// Format names an export encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts a format name or a file extension such as ".md".
func ParseFormat(input string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(input), ".")) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q, must be one of: markdown, csv, json, yaml", input)
}

// FormatForPath infers the format from path's extension.
func FormatForPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("cannot infer export format from %q", path)
	}
	return ParseFormat(ext)
}

// Exporter writes snapshots of a Source to files.
type Exporter struct {
	src Source
}

// New returns an exporter reading from src.
func New(src Source) *Exporter {
	return &Exporter{src: src}
}

// ExportToMarkdown writes a nested checklist to path.
func (e *Exporter) ExportToMarkdown(path string) error {
	return e.export(path, FormatMarkdown)
}

// ExportToCSV writes one row per task to path.
func (e *Exporter) ExportToCSV(path string) error {
	return e.export(path, FormatCSV)
}

// ExportToJSON writes a versioned task document to path.
func (e *Exporter) ExportToJSON(path string) error {
	return e.export(path, FormatJSON)
}

// Export writes path in the given format.
func (e *Exporter) Export(path string, format Format) error {
	return e.export(path, format)
}

func (e *Exporter) export(path string, format Format) error {
	var buf bytes.Buffer
	if err := Write(&buf, format, e.src.GetAllTasks()); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Write encodes tasks to w.
func Write(w io.Writer, format Format, tasks []task.Task) error {
	switch format {
	case FormatMarkdown:
		return Markdown(w, tasks)
	case FormatCSV:
		return CSV(w, tasks)
	case FormatJSON:
		return task.NewDocument(tasks).Encode(w)
	case FormatYAML:
		return YAML(w, tasks)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// Markdown renders tasks as a nested checklist in manual order. Subtasks are
// indented two spaces per level. Tasks whose parent is not in the list are
// rendered as roots.
func Markdown(w io.Writer, tasks []task.Task) error {
	byID := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	children := make(map[string][]ordering.Member)
	for _, t := range tasks {
		parent := t.ParentTaskID
		if _, ok := byID[parent]; !ok {
			parent = ""
		}
		children[parent] = append(children[parent], ordering.Member{ID: t.ID, SortOrder: t.SortOrder, CreatedAt: t.CreatedAt})
	}

	var b strings.Builder
	b.WriteString("# Tasks\n\n")
	if len(tasks) == 0 {
		b.WriteString("_No tasks._\n")
	}
	seen := make(map[string]bool, len(tasks))
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		for _, id := range ordering.Positions(children[parent]) {
			if seen[id] {
				continue
			}
			seen[id] = true
			writeMarkdownItem(&b, byID[id], depth)
			walk(id, depth+1)
		}
	}
	walk("", 0)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdownItem(b *strings.Builder, t task.Task, depth int) {
	indent := strings.Repeat("  ", depth)
	check := "[ ]"
	if t.Status == task.StatusCompleted {
		check = "[x]"
	}
	title := t.Title
	if t.Status == task.StatusCancelled {
		title = "~~" + title + "~~"
	}
	fmt.Fprintf(b, "%s- %s %s", indent, check, title)

	var meta []string
	if t.Priority != task.PriorityLow {
		meta = append(meta, "priority: "+t.Priority.String())
	}
	if t.DueDate != nil {
		meta = append(meta, "due: "+t.DueDate.Format(time.DateOnly))
	}
	if t.Status == task.StatusInProgress {
		meta = append(meta, fmt.Sprintf("%d%%", t.Progress))
	}
	if len(meta) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(meta, ", "))
	}
	for _, tag := range t.Tags {
		fmt.Fprintf(b, " #%s", tag)
	}
	b.WriteString("\n")

	if desc := strings.TrimSpace(t.Description); desc != "" {
		for _, line := range strings.Split(desc, "\n") {
			fmt.Fprintf(b, "%s  %s\n", indent, strings.TrimRight(line, " "))
		}
	}
}

// YAML writes the same versioned document as the JSON export.
func YAML(w io.Writer, tasks []task.Task) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(task.NewDocument(tasks)); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush YAML: %w", err)
	}
	return nil
}

// CSVHeader is the fixed column order of CSV exports.
var CSVHeader = []string{
	"id", "title", "description", "status", "priority", "progress", "due_date",
	"parent_task_id", "project_id", "tags", "sort_order", "created_at", "updated_at",
}

// CSV writes one row per task under CSVHeader. Tags are joined with ";".
func CSV(w io.Writer, tasks []task.Task) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format(time.DateOnly)
		}
		row := []string{
			t.ID,
			t.Title,
			t.Description,
			string(t.Status),
			t.Priority.String(),
			strconv.Itoa(t.Progress),
			due,
			t.ParentTaskID,
			t.ProjectID,
			strings.Join(t.Tags, ";"),
			strconv.Itoa(t.SortOrder),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

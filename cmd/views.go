package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nibzard/taskhub/internal/agenda"
	"github.com/nibzard/taskhub/internal/config"
	"github.com/nibzard/taskhub/internal/duedate"
	"github.com/nibzard/taskhub/internal/export"
	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/logging"
	"github.com/nibzard/taskhub/internal/task"
)

// listCommand prints the tasks matching a named filter, optionally narrowed
// by ad-hoc constraints.
func listCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub list", flag.ContinueOnError)
	name := fs.String("filter", "", "Named filter (default from config)")
	tags := fs.String("tag", "", "Only tasks with one of these tags (comma-separated)")
	projects := fs.String("project", "", "Only tasks in one of these projects (comma-separated)")
	text := fs.String("search", "", "Only tasks whose title, description or notes contain text")
	count := fs.Bool("count", false, "Print only the number of matching tasks")

	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usagef("unexpected arguments: %v", fs.Args()[1:])
	}
	if fs.NArg() == 1 {
		*name = fs.Arg(0)
	}

	pred, err := a.predicate(*name)
	if err != nil {
		return err
	}
	adhoc := filter.Composite{
		Tags:     splitAndTrim(*tags, ","),
		Projects: splitAndTrim(*projects, ","),
		Text:     *text,
	}
	if !adhoc.IsEmpty() {
		pred = filter.And(pred, adhoc.Predicate(a.catalog.Today))
	}

	if *count {
		fmt.Println(a.store.GetTaskCount(pred))
		return nil
	}
	tasks := a.store.GetTasks(pred)
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}
	today := a.catalog.Today()
	for _, t := range tasks {
		printTask(t, 0, today)
	}
	return nil
}

// treeCommand prints the hierarchy in manual order.
func treeCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub tree", flag.ContinueOnError)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := noExtraArgs(fs.Args()); err != nil {
		return err
	}
	nodes := a.store.Tree()
	if len(nodes) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}
	today := a.catalog.Today()
	for _, n := range nodes {
		printTask(n.Task, n.Depth, today)
	}
	return nil
}

// agendaCommand prints the due-date sections for a filter. With -watch it
// keeps reloading the backend and reprints when the sections change.
func agendaCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub agenda", flag.ContinueOnError)
	name := fs.String("filter", filter.NameActive, "Named filter")
	watch := fs.Bool("watch", false, "Reload every refresh interval and reprint on change")

	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usagef("unexpected arguments: %v", fs.Args()[1:])
	}
	if fs.NArg() == 1 {
		*name = fs.Arg(0)
	}
	pred, err := a.predicate(*name)
	if err != nil {
		return err
	}

	if !*watch {
		printAgenda(agenda.Build(a.store.GetTasks(pred), a.catalog.Today()))
		return nil
	}

	interval := a.cfg.RefreshInterval()
	if interval <= 0 {
		return usagef("agenda -watch needs a refresh interval (set refresh_seconds or -refresh)")
	}
	var last string
	view := agenda.New(a.store, pred,
		agenda.WithClock(a.catalog.Today),
		agenda.OnChange(func(sections []agenda.Section) {
			rendered := renderAgenda(sections)
			if rendered == last {
				return
			}
			last = rendered
			fmt.Print(rendered)
			fmt.Println()
		}),
	)
	defer view.Close()

	err = agenda.Poll(ctx, a.store, interval, func(err error) {
		a.logger.Warn("Reload failed", "err", err)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// filtersCommand lists the named filters.
func filtersCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub filters", flag.ContinueOnError)
	if err := parse(fs, args); err != nil {
		return err
	}
	for _, name := range a.catalog.Names() {
		pred := a.catalog.MustLookup(name)
		marker := " "
		if name == a.cfg.DefaultFilter {
			marker = "*"
		}
		fmt.Printf("%s %-14s %d\n", marker, name, a.store.GetTaskCount(pred))
	}
	return nil
}

// filteredSource exports only the tasks matching pred.
type filteredSource struct {
	a    *app
	pred filter.Predicate
}

func (f filteredSource) GetAllTasks() []task.Task {
	return f.a.store.GetTasks(f.pred)
}

// exportCommand writes the collection to a file.
func exportCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("taskhub export", flag.ContinueOnError)
	formatName := fs.String("format", "", "Export format (markdown|csv|json|yaml, default from extension)")
	name := fs.String("filter", filter.NameAll, "Named filter of tasks to export")

	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("export: expected one output path")
	}
	path := fs.Arg(0)
	if !filepath.IsAbs(path) && a.cfg.ProjectRoot != "" {
		path = filepath.Join(a.cfg.ProjectRoot, path)
	}

	var format export.Format
	var err error
	if *formatName != "" {
		format, err = export.ParseFormat(*formatName)
	} else {
		format, err = export.FormatForPath(path)
	}
	if err != nil {
		return usagef("export: %v", err)
	}
	pred, err := a.predicate(*name)
	if err != nil {
		return err
	}

	src := filteredSource{a: a, pred: pred}
	if err := export.New(src).Export(path, format); err != nil {
		return err
	}
	fmt.Printf("Exported %d tasks to %s\n", len(src.GetAllTasks()), path)
	return nil
}

// journalCommand prints the change journal for the configured data file.
func journalCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskhub journal", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow the journal (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the journal (like tail -f)")
	n := fs.Int("n", 20, "Number of lines to show (0 = all)")

	if err := parse(fs, args); err != nil {
		return err
	}
	if err := noExtraArgs(fs.Args()); err != nil {
		return err
	}

	dir, err := logging.JournalDir(cfg.LogDir, journalKey(cfg))
	if err != nil {
		return fmt.Errorf("finding journal: %w", err)
	}
	path := filepath.Join(dir, logging.JournalFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No journal found.")
			return nil
		}
		return fmt.Errorf("finding journal: %w", err)
	}

	if *follow {
		fmt.Printf("Following: %s\n", path)
		fmt.Println("(Ctrl+C to stop)")
		fmt.Println()
	}
	return logging.TailJournal(ctx, os.Stdout, path, *n, *follow)
}

// configCommand shows the effective configuration.
func configCommand(cws *config.ConfigWithSources, args []string) error {
	fs := flag.NewFlagSet("taskhub config", flag.ContinueOnError)
	if err := parse(fs, args); err != nil {
		return err
	}
	action := "show"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	if err := noExtraArgs(fs.Args()[min(1, fs.NArg()):]); err != nil {
		return err
	}

	switch action {
	case "show":
		values := cws.Config.Values()
		for _, field := range config.Fields() {
			fmt.Printf("%-16s = %-28s (%s)\n", field, values[field], cws.Source(field))
		}
		if names := cws.Config.FilterNames(); len(names) > 0 {
			fmt.Printf("%-16s = %s\n", "filters", strings.Join(names, ", "))
		}
		if len(cws.Files) == 0 {
			fmt.Println()
			fmt.Println("No config files found.")
		}
		return nil
	case "path":
		if len(cws.Files) == 0 {
			fmt.Println("No config files found.")
			return nil
		}
		for _, f := range cws.Files {
			fmt.Println(f)
		}
		return nil
	case "example":
		fmt.Print(config.ExampleConfig())
		return nil
	default:
		return usagef("config: unknown action %q (show|path|example)", action)
	}
}

// printTask prints a single task line indented by depth.
func printTask(t task.Task, depth int, today time.Time) {
	indent := strings.Repeat("  ", depth+1)
	fmt.Printf("%s%s %s %s", indent, checkbox(t), shortID(t.ID), t.Title)

	var meta []string
	if t.Priority != task.PriorityLow {
		meta = append(meta, t.Priority.String())
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(time.DateOnly)
		if t.Status.Active() && duedate.Classify(t, today) == duedate.Overdue {
			due += " overdue"
		}
		meta = append(meta, "due "+due)
	}
	if t.Status == task.StatusInProgress {
		meta = append(meta, fmt.Sprintf("%d%%", t.Progress))
	}
	if len(meta) > 0 {
		fmt.Printf(" (%s)", strings.Join(meta, ", "))
	}
	for _, tag := range t.Tags {
		fmt.Printf(" #%s", tag)
	}
	fmt.Println()
}

func checkbox(t task.Task) string {
	switch t.Status {
	case task.StatusCompleted:
		return "[x]"
	case task.StatusInProgress:
		return "[~]"
	case task.StatusCancelled:
		return "[-]"
	default:
		return "[ ]"
	}
}

func printAgenda(sections []agenda.Section) {
	fmt.Print(renderAgenda(sections))
}

func renderAgenda(sections []agenda.Section) string {
	if len(sections) == 0 {
		return "Nothing on the agenda.\n"
	}
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%d):\n", s.Bucket.Label(), len(s.Tasks))
		for _, t := range s.Tasks {
			fmt.Fprintf(&b, "  %s %s %s", checkbox(t), shortID(t.ID), t.Title)
			if t.DueDate != nil && s.Bucket != duedate.Today {
				fmt.Fprintf(&b, " (%s)", t.DueDate.Format("Mon Jan 2"))
			}
			if t.Priority >= task.PriorityHigh {
				fmt.Fprintf(&b, " !%s", t.Priority)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

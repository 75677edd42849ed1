// Package cmd implements the CLI command structure for taskhub.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nibzard/taskhub/internal/config"
	"github.com/nibzard/taskhub/internal/task"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitNotFound    = 3
	ExitRejected    = 4
	ExitInterrupted = 130
)

// usageError marks a malformed command line.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by Run to a process exit status.
func ExitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &usage), errors.Is(err, flag.ErrHelp):
		return ExitUsage
	case errors.Is(err, task.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, task.ErrValidation),
		errors.Is(err, task.ErrCyclicHierarchy),
		errors.Is(err, task.ErrBoundary):
		return ExitRejected
	default:
		return ExitFailure
	}
}

// Run executes the taskhub CLI.
func Run(ctx context.Context, args []string) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("taskhub", flag.ContinueOnError)
	fs.Usage = func() {
		printUsage(fs, os.Stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	// Global flags
	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := cws.Config
	if *help {
		printUsage(fs, os.Stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	// Without a subcommand, list tasks with the default filter
	subcommand := "list"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	// Commands that never touch the store
	switch subcommand {
	case "version", "--version", "-v":
		return versionCommand()
	case "help", "--help", "-h":
		printUsage(fs, os.Stdout)
		return nil
	case "config":
		return configCommand(cws, remainingArgs)
	case "journal":
		return journalCommand(ctx, cfg, remainingArgs)
	}

	run, ok := storeCommands[subcommand]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, os.Stderr)
		return usagef("unknown command: %s", subcommand)
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := run(ctx, a, remainingArgs); !errors.Is(err, flag.ErrHelp) {
		return err
	}
	return nil
}

// storeCommands are the subcommands that operate on an open store.
var storeCommands = map[string]func(ctx context.Context, a *app, args []string) error{
	"add":     addCommand,
	"update":  updateCommand,
	"show":    showCommand,
	"done":    doneCommand,
	"status":  statusCommand,
	"cycle":   cycleCommand,
	"note":    noteCommand,
	"up":      upCommand,
	"down":    downCommand,
	"delete":  deleteCommand,
	"restore": restoreCommand,
	"list":    listCommand,
	"ls":      listCommand,
	"tree":    treeCommand,
	"agenda":  agendaCommand,
	"filters": filtersCommand,
	"export":  exportCommand,
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Printf("taskhub version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "taskhub - A hierarchical task store")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskhub [global options] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  add [options] <title>        Add a task")
	fmt.Fprintln(w, "  update <id> [options]        Change task fields")
	fmt.Fprintln(w, "  show <id>                    Show a task with notes and subtasks")
	fmt.Fprintln(w, "  done <id>                    Toggle completed")
	fmt.Fprintln(w, "  status <id> <status>         Set status (pending|in_progress|completed|cancelled)")
	fmt.Fprintln(w, "  cycle <id>                   Advance priority (low > medium > high > today > low)")
	fmt.Fprintln(w, "  note <id> <text>             Append a note")
	fmt.Fprintln(w, "  up <id>, down <id>           Move a task within its siblings")
	fmt.Fprintln(w, "  delete <id>                  Delete a task and its subtasks")
	fmt.Fprintln(w, "  restore [id]                 Restore a deleted task, or list deleted tasks")
	fmt.Fprintln(w, "  list [filter] [options]      List tasks (default command)")
	fmt.Fprintln(w, "  tree                         Show the task hierarchy")
	fmt.Fprintln(w, "  agenda [filter] [-watch]     Show tasks grouped by due date")
	fmt.Fprintln(w, "  filters                      List named filters")
	fmt.Fprintln(w, "  export [-format f] <path>    Export to markdown, csv, json or yaml")
	fmt.Fprintln(w, "  journal [-n N] [-f]          Show the change journal")
	fmt.Fprintln(w, "  config [show|example|path]   Show effective configuration")
	fmt.Fprintln(w, "  version                      Show version information")
	fmt.Fprintln(w, "  help                         Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Task ids may be abbreviated to any unique prefix.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// parse parses a subcommand's flags, marking malformed input as a usage
// error.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	return nil
}

// parseWithRef parses fs from args, taking the first positional argument as
// a task reference. The reference may come before or after the flags.
func parseWithRef(fs *flag.FlagSet, args []string) (string, []string, error) {
	var ref string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		ref, args = args[0], args[1:]
	}
	if err := parse(fs, args); err != nil {
		return "", nil, err
	}
	rest := fs.Args()
	if ref == "" {
		if len(rest) == 0 {
			return "", nil, usagef("%s: missing task id", fs.Name())
		}
		ref, rest = rest[0], rest[1:]
	}
	return ref, rest, nil
}

// noExtraArgs rejects leftover positional arguments.
func noExtraArgs(rest []string) error {
	if len(rest) > 0 {
		return usagef("unexpected arguments: %v", rest)
	}
	return nil
}

// splitAndTrim splits a string by sep and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

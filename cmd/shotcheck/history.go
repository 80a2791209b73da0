package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"shotcheck/internal/config"
	"shotcheck/internal/history"
	"shotcheck/internal/report"
)

func cmdHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	dbPath := fs.String("db", "", "history database (default from config)")
	n := fs.Int("n", 20, "number of runs to list")
	compare := fs.Bool("compare", false, "compare two runs: history -compare <old-id> <new-id>")
	prune := fs.Int("prune", 0, "delete all but the newest N runs")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shotcheck history [flags] [run-id]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	path := cfg.History.Path
	if *dbPath != "" {
		path = *dbPath
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stdout, "No history database at %s\n", path)
		return exitOK
	}

	store, err := history.Open(path)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch {
	case *prune > 0:
		removed, err := store.Prune(ctx, *prune)
		if err != nil {
			return fatalf(stderr, "%v", err)
		}
		fmt.Fprintf(stdout, "removed %d runs\n", removed)

	case *compare:
		if fs.NArg() != 2 {
			fs.Usage()
			return exitFatal
		}
		added, resolved, err := store.Compare(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return fatalf(stderr, "%v", err)
		}
		fmt.Fprintf(stdout, "New (%d):\n", len(added))
		printViolations(stdout, added)
		fmt.Fprintf(stdout, "Resolved (%d):\n", len(resolved))
		printViolations(stdout, resolved)

	case fs.NArg() == 1:
		run, err := store.GetRun(ctx, fs.Arg(0))
		if err != nil {
			return fatalf(stderr, "%v", err)
		}
		fmt.Fprintf(stdout, "Run:        %s\n", run.ID)
		fmt.Fprintf(stdout, "Started:    %s\n", run.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(stdout, "Duration:   %s\n", run.Duration.Round(time.Millisecond))
		fmt.Fprintf(stdout, "Roots:      %s\n", strings.Join(run.Roots, ", "))
		fmt.Fprintf(stdout, "Files:      %d (%d skipped)\n", run.Files, run.Skipped)
		fmt.Fprintf(stdout, "Grid:       %d models x %d browsers, %d engines\n", run.Models, run.Browsers, run.Engines)
		fmt.Fprintf(stdout, "Exit code:  %d\n", run.ExitCode)
		fmt.Fprintf(stdout, "Violations (%d):\n", len(run.Violations))
		printViolations(stdout, run.Violations)

	default:
		runs, err := store.RecentRuns(ctx, *n)
		if err != nil {
			return fatalf(stderr, "%v", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(stdout, "No runs recorded")
			return exitOK
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tFILES\tENGINES\tVIOLATIONS\tEXIT")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
				run.ID, run.StartedAt.Format(time.RFC3339), run.Files, run.Engines, run.ViolationCount, run.ExitCode)
		}
		tw.Flush()
	}
	return exitOK
}

func printViolations(w io.Writer, vs []report.Violation) {
	for _, v := range vs {
		fmt.Fprintf(w, "  %s\n", v.Line())
	}
}

// Command shotcheck compares screenshot trees rendered by different engines
// and writes an HTML comparison report.
//
// Usage:
//
//	shotcheck <command> [flags] [args]
//
// Examples:
//
//	# Compare two engines' renders
//	shotcheck report out/index.html shots/engineA shots/engineB
//
//	# Regenerate the report whenever new screenshots land
//	shotcheck watch -thumbs out/index.html shots/engineA shots/engineB
//
//	# Generate the render tests
//	shotcheck matrix -manifest models/model-index.json tests/
package main

import (
	"fmt"
	"io"
	"os"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Exit codes.
const (
	exitOK         = 0
	exitViolations = 1
	exitFatal      = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitFatal
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "report":
		return cmdReport(rest, stdout, stderr)
	case "watch":
		return cmdWatch(rest, stdout, stderr)
	case "matrix":
		return cmdMatrix(rest, stdout, stderr)
	case "history":
		return cmdHistory(rest, stdout, stderr)
	case "store":
		return cmdStore(rest, stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "shotcheck %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return exitOK
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		usage(stderr)
		return exitFatal
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `shotcheck - Cross-engine screenshot comparison

Usage: shotcheck <command> [flags] [args]

Commands:
  report <output.html> <dir>...   Compare screenshot trees and write a report
  watch <output.html> <dir>...    Rewrite the report whenever the trees change
  matrix <out-dir>                Generate material and glTF render tests
  history [run-id]                List recorded runs or show one run
  store <root> <test-id> <platform> <file.png>
                                  Store a render in an engine tree
  version                         Print version information
  help                            Show this help message

Screenshot trees are laid out as <engine>/<model>/<variant>/<browser>.

Exit codes:
  0  every engine rendered every screenshot identically
  1  missing or mismatched screenshots
  2  usage error or fatal failure

Run 'shotcheck <command> -h' for command flags.`)
}

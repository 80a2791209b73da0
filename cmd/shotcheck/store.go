package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"shotcheck/internal/shots"
)

func cmdStore(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shotcheck store <engine-root> <test-id> <platform> <file.png|->\n")
	}
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if fs.NArg() != 4 {
		fs.Usage()
		return exitFatal
	}

	var in io.Reader = os.Stdin
	if src := fs.Arg(3); src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return fatalf(stderr, "%v", err)
		}
		defer f.Close()
		in = f
	}

	var up shots.Uploader = shots.NewDirStore(fs.Arg(0))
	dst, err := up.Store(fs.Arg(1), fs.Arg(2), in)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, dst)
	return exitOK
}

package main

import (
	"flag"
	"fmt"
	"io"

	"shotcheck/internal/config"
	"shotcheck/internal/matrix"
	"shotcheck/internal/permutation"
)

func cmdMatrix(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("matrix", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	manifest := fs.String("manifest", "", "glTF model-index.json (default from config)")
	grid := fs.Int("grid", 0, "spheres per side of a material frame (default from config)")
	noMaterials := fs.Bool("no-materials", false, "skip material tests")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shotcheck matrix [flags] <out-dir>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitFatal
	}
	outDir := fs.Arg(0)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	if *manifest != "" {
		cfg.Matrix.ModelManifest = *manifest
	}
	if *grid > 0 {
		cfg.Matrix.GridSize = *grid
	}

	opts := matrix.DefaultOptions()
	opts.GridSize = cfg.Matrix.GridSize
	opts.Engine = cfg.Matrix.Engine
	opts.Env = cfg.Matrix.Environment
	opts.ModelRoot = cfg.Matrix.ModelRoot

	reg := matrix.NewRegistry()

	if !*noMaterials {
		space, err := permutation.New(matrix.DefaultMaterialAxes()...)
		if err != nil {
			return fatalf(stderr, "%v", err)
		}
		if err := reg.RegisterAll(matrix.MaterialTests(space, opts)); err != nil {
			return fatalf(stderr, "%v", err)
		}
	}

	if cfg.Matrix.ModelManifest != "" {
		m, err := matrix.LoadManifest(cfg.Matrix.ModelManifest)
		if err != nil {
			return fatalf(stderr, "load manifest: %v", err)
		}
		if err := reg.RegisterAll(matrix.GltfTests(m, opts)); err != nil {
			return fatalf(stderr, "%v", err)
		}
	}

	if err := reg.WriteDir(outDir); err != nil {
		return fatalf(stderr, "%v", err)
	}
	fmt.Fprintf(stdout, "wrote %d tests to %s\n", reg.Len(), outDir)
	return exitOK
}

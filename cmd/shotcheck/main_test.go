package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("SHOTCHECK_DATA_DIR", filepath.Join(dir, "data"))
	return dir
}

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := execute("version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "shotcheck dev"))
}

func TestUsage(t *testing.T) {
	code, _, errOut := execute()
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, errOut, "Commands:")

	code, _, errOut = execute("bogus")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, errOut, "Unknown command: bogus")
}

func TestReportPass(t *testing.T) {
	dir := isolate(t)
	gray := color.NRGBA{128, 128, 128, 255}
	writePNG(t, filepath.Join(dir, "shots", "engineA", "duck", "default", "chrome.png"), gray)
	writePNG(t, filepath.Join(dir, "shots", "engineB", "duck", "default", "chrome.png"), gray)

	out := filepath.Join(dir, "out", "index.html")
	summary := filepath.Join(dir, "out", "summary.json")
	code, stdout, stderr := execute("report", "-json", summary, "-thumbs", "-log-level", "error",
		out, filepath.Join(dir, "shots", "engineA"), filepath.Join(dir, "shots", "engineB"))

	assert.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "PASS: 1 models, 1 browsers, 2 engines, 0 violations")
	assert.FileExists(t, out)

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, float64(0), res["exit_code"])

	thumbs, err := os.ReadDir(filepath.Join(dir, "out", "thumbs"))
	require.NoError(t, err)
	assert.Len(t, thumbs, 1, "identical renders share one thumbnail")
}

func TestReportViolations(t *testing.T) {
	dir := isolate(t)
	writePNG(t, filepath.Join(dir, "shots", "engineA", "duck", "default", "chrome.png"), color.NRGBA{0, 0, 0, 255})
	writePNG(t, filepath.Join(dir, "shots", "engineB", "duck", "default", "chrome.png"), color.NRGBA{200, 0, 0, 255})
	writePNG(t, filepath.Join(dir, "shots", "engineA", "box", "default", "chrome.png"), color.NRGBA{0, 0, 0, 255})

	metricsFile := filepath.Join(dir, "metrics", "shotcheck.prom")
	code, stdout, stderr := execute("report", "-metrics-file", metricsFile, "-log-level", "error",
		filepath.Join(dir, "index.html"), filepath.Join(dir, "shots"))

	assert.Equal(t, exitViolations, code)
	assert.Contains(t, stdout, "FAIL")
	assert.Contains(t, stderr, "missing model=box browser=chrome.png variant=default engine=engineB")
	assert.Contains(t, stderr, "mismatched pixel data")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `shotcheck_violations{kind="missing"} 1`)
}

func TestReportMalformedPathIsFatal(t *testing.T) {
	dir := isolate(t)
	writePNG(t, filepath.Join(dir, "shots", "engineA", "duck", "default", "chrome.png"), color.NRGBA{})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shots", "README"), []byte("x"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	code, _, _ := execute("report", "-log-level", "error", "index.html", "shots")
	assert.Equal(t, exitFatal, code)

	code, _, _ = execute("report", "-lenient", "-log-level", "error", "index.html", "shots")
	assert.Equal(t, exitOK, code)
}

func TestReportMissingRoot(t *testing.T) {
	dir := isolate(t)
	code, _, stderr := execute("report", filepath.Join(dir, "index.html"), filepath.Join(dir, "nope"))
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "Error:")
}

func TestReportNoRoots(t *testing.T) {
	isolate(t)
	code, _, stderr := execute("report", "index.html")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "at least one screenshot directory required")
}

func TestReportHistory(t *testing.T) {
	dir := isolate(t)
	writePNG(t, filepath.Join(dir, "shots", "engineA", "duck", "default", "chrome.png"), color.NRGBA{1, 2, 3, 255})

	for i := 0; i < 2; i++ {
		code, _, stderr := execute("report", "-history", "-log-level", "error",
			filepath.Join(dir, "index.html"), filepath.Join(dir, "shots"))
		require.Equal(t, exitOK, code, stderr)
	}

	code, stdout, _ := execute("history", "-n", "5")
	assert.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 3, "header plus two runs")
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))

	code, stdout, _ = execute("history", "-prune", "1")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "removed 1 runs")
}

func TestHistoryWithoutDatabase(t *testing.T) {
	isolate(t)
	code, stdout, _ := execute("history")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No history database")
}

func TestMatrix(t *testing.T) {
	dir := isolate(t)
	manifest := filepath.Join(dir, "model-index.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`[{"name": "Duck", "variants": {"glTF": "Duck.gltf"}}]`), 0o644))

	out := filepath.Join(dir, "tests")
	code, stdout, stderr := execute("matrix", "-manifest", manifest, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "wrote 3 tests")

	assert.FileExists(t, filepath.Join(out, "index.json"))
	assert.FileExists(t, filepath.Join(out, "material", "1.json"))
	assert.FileExists(t, filepath.Join(out, "gltf", "Duck", "glTF", "Duck.gltf.json"))
}

func TestMatrixBadManifest(t *testing.T) {
	dir := isolate(t)
	manifest := filepath.Join(dir, "model-index.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"name": "Duck"}`), 0o644))

	code, _, stderr := execute("matrix", "-manifest", manifest, filepath.Join(dir, "tests"))
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "load manifest")
}

func TestStore(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "render.png")
	writePNG(t, src, color.NRGBA{9, 9, 9, 255})

	root := filepath.Join(dir, "shots", "engineA")
	code, stdout, stderr := execute("store", root, "material/0", "chrome", src)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, filepath.Join(root, "material", "0", "chrome.png"), strings.TrimSpace(stdout))

	code, _, _ = execute("store", root, "../escape", "chrome", src)
	assert.Equal(t, exitFatal, code)
}

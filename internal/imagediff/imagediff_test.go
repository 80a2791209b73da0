package imagediff

import (
	"fmt"
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

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDiff_Identical(t *testing.T) {
	img := solid(8, 6, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	desc, match := Diff(img, img)
	assert.True(t, match)
	assert.Empty(t, desc)
}

func TestDiff_DifferentDimensions(t *testing.T) {
	a := solid(8, 6, color.NRGBA{A: 255})
	b := solid(6, 8, color.NRGBA{A: 255})

	desc, match := Diff(a, b)
	assert.False(t, match)
	assert.Equal(t, DimensionMismatch, desc)

	_, err := Compute(a, b)
	assert.EqualError(t, err, DimensionMismatch)
}

func TestDiff_SinglePixelBucket(t *testing.T) {
	tests := []struct {
		delta  uint8
		bucket int
	}{
		{1, 0},
		{15, 0},
		{16, 1},
		{200, 12},
		{255, 15},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("delta=%d", tc.delta), func(t *testing.T) {
			a := solid(4, 4, color.NRGBA{R: 0, G: 50, B: 50, A: 255})
			b := solid(4, 4, color.NRGBA{R: 0, G: 50, B: 50, A: 255})
			b.SetNRGBA(2, 1, color.NRGBA{R: tc.delta, G: 50, B: 50, A: 255})

			desc, match := Diff(a, b)
			require.False(t, match)

			want := strings.Repeat(" ", tc.bucket) + "▁" + strings.Repeat(" ", Buckets-1-tc.bucket)
			assert.Equal(t, "mismatched pixel data |"+want+"|", desc)
		})
	}
}

func TestHistogram_Glyphs(t *testing.T) {
	var h Histogram
	h[0] = 1
	h[1] = 9
	h[2] = 10
	h[3] = 999
	h[4] = 1000
	h[5] = 1_000_000
	h[6] = 1_000_000_000

	g := []rune(h.Glyphs())
	require.Len(t, g, Buckets)
	assert.Equal(t, '▁', g[0])
	assert.Equal(t, '▁', g[1])
	assert.Equal(t, '▂', g[2])
	assert.Equal(t, '▃', g[3])
	assert.Equal(t, '▄', g[4])
	assert.Equal(t, '▇', g[5])
	assert.Equal(t, '▇', g[6], "clamped to the top level")
	assert.Equal(t, ' ', g[7])
}

func TestCompute_CountsEveryChannel(t *testing.T) {
	a := solid(2, 2, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	b := solid(2, 2, color.NRGBA{R: 32, G: 32, B: 0, A: 255})

	h, err := Compute(a, b)
	require.NoError(t, err)
	assert.Equal(t, 8, h[2])
	assert.Equal(t, 8, h.Total())
	assert.False(t, h.Empty())
}

func TestDiff_RespectsBoundsOrigin(t *testing.T) {
	big := solid(6, 6, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	sub := big.SubImage(image.Rect(2, 2, 6, 6))
	other := solid(4, 4, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	_, match := Diff(sub, other)
	assert.True(t, match)
}

func TestDiff_MixedColorModels(t *testing.T) {
	a := solid(3, 3, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	b := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			b.SetRGBA(x, y, color.RGBA{R: 100, G: 100, B: 100, A: 255})
		}
	}

	_, match := Diff(a, b)
	assert.True(t, match)
}

func TestDiffFiles(t *testing.T) {
	dir := t.TempDir()
	pa := filepath.Join(dir, "a.png")
	pb := filepath.Join(dir, "b.png")

	a := solid(5, 5, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	b := solid(5, 5, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	b.SetNRGBA(0, 0, color.NRGBA{R: 210, G: 10, B: 10, A: 255})
	writePNG(t, pa, a)
	writePNG(t, pb, b)

	desc, match, err := DiffFiles(pa, pb)
	require.NoError(t, err)
	assert.False(t, match)
	assert.Contains(t, desc, "mismatched pixel data |")

	_, match, err = DiffFiles(pa, pa)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestLoadPNG_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPNG(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	_, err = LoadPNG(bad)
	assert.ErrorIs(t, err, ErrDecode)
}

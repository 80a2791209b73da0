package report

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"shotcheck/internal/imagediff"
)

// ThumbCache writes scaled-down copies of representative renders into a
// directory, one file per content hash. A hash that already has a thumbnail
// on disk is not re-rendered.
type ThumbCache struct {
	dir    string
	width  int
	height int
	scaler draw.Scaler
}

// NewThumbCache returns a cache writing width x height PNGs into dir.
func NewThumbCache(dir string, width, height int) *ThumbCache {
	return &ThumbCache{
		dir:    dir,
		width:  width,
		height: height,
		scaler: draw.ApproxBiLinear,
	}
}

// Thumbnail implements Thumbnailer.
func (c *ThumbCache) Thumbnail(src, hash string) (string, error) {
	out := filepath.Join(c.dir, hash+".png")
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	img, err := imagediff.LoadPNG(src)
	if err != nil {
		return "", err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
	c.scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail directory: %w", err)
	}

	// write then rename so an interrupted run never leaves a truncated file
	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", err
	}
	return out, nil
}

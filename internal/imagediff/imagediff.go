// Package imagediff compares two renders of the same test and summarises
// how far apart they are.
//
// The summary is a 16-bucket histogram of per-channel absolute differences,
// drawn as one glyph per bucket on a log10 scale. It is not a perceptual
// metric: it tells a reviewer whether a mismatch looks like anti-aliasing
// noise (a few low buckets) or a structural change (counts in high buckets).
package imagediff

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/draw"
)

// Buckets is the number of histogram buckets. Each covers 256/Buckets
// consecutive difference values.
const Buckets = 16

const bucketWidth = 256 / Buckets

// DimensionMismatch is the description returned for images of different
// sizes.
const DimensionMismatch = "images have different dimensions"

// glyphs is the intensity scale: index floor(log10(count)), clamped.
var glyphs = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇'}

// ErrDecode wraps PNG decoding failures.
var ErrDecode = errors.New("imagediff: decode")

// Histogram counts differing channel bytes per magnitude bucket.
type Histogram [Buckets]int

// Empty reports whether no bucket has a count.
func (h Histogram) Empty() bool {
	for _, n := range h {
		if n != 0 {
			return false
		}
	}
	return true
}

// Total returns the number of differing channel bytes.
func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Glyphs draws the histogram as Buckets runes, a space for empty buckets.
func (h Histogram) Glyphs() string {
	var sb strings.Builder
	for _, n := range h {
		if n == 0 {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteRune(glyphs[min(len(glyphs)-1, log10(n))])
	}
	return sb.String()
}

// Compute builds the histogram of |a-b| over every RGBA byte. The images
// must have the same dimensions.
func Compute(a, b image.Image) (Histogram, error) {
	if !sameSize(a, b) {
		return Histogram{}, errors.New(DimensionMismatch)
	}

	pa, pb := pixels(a), pixels(b)

	var h Histogram
	for i := range pa {
		if pa[i] == pb[i] {
			continue
		}
		d := int(pa[i]) - int(pb[i])
		if d < 0 {
			d = -d
		}
		h[min(Buckets-1, d/bucketWidth)]++
	}
	return h, nil
}

// Diff compares a and b. It returns ("", true) when every byte matches,
// otherwise a description and false.
func Diff(a, b image.Image) (description string, match bool) {
	if !sameSize(a, b) {
		return DimensionMismatch, false
	}

	h, _ := Compute(a, b)
	if h.Empty() {
		return "", true
	}
	return "mismatched pixel data |" + h.Glyphs() + "|", false
}

// DiffFiles decodes two PNG files and compares them.
func DiffFiles(pathA, pathB string) (string, bool, error) {
	a, err := LoadPNG(pathA)
	if err != nil {
		return "", false, err
	}
	b, err := LoadPNG(pathB)
	if err != nil {
		return "", false, err
	}
	desc, match := Diff(a, b)
	return desc, match, nil
}

// LoadPNG decodes the PNG at path.
func LoadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrDecode, path, err)
	}
	return img, nil
}

// log10 returns floor(log10(n)) for n > 0, computed on integers so exact
// powers of ten land in the right level.
func log10(n int) int {
	level := 0
	for n >= 10 {
		n /= 10
		level++
	}
	return level
}

func sameSize(a, b image.Image) bool {
	return a.Bounds().Dx() == b.Bounds().Dx() && a.Bounds().Dy() == b.Bounds().Dy()
}

// pixels returns the image as tightly packed non-premultiplied RGBA bytes,
// w*h*4 long, rows top to bottom.
func pixels(img image.Image) []byte {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()

	if n, ok := img.(*image.NRGBA); ok && n.Stride == 4*w && n.Rect.Min == (image.Point{}) {
		return n.Pix[:4*w*h]
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst.Pix
}

package shots

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shotcheck/internal/artifact"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "engineA")
	s := NewDirStore(root)

	var u Uploader = s
	p, err := u.Store("duck/default", "chrome", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "duck", "default", "chrome.png"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), data)

	key, ok, err := artifact.ExtractKey(p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifact.Key{Engine: "engineA", Model: "duck", Variant: "default", Browser: "chrome.png"}, key)
}

func TestStoreReplaces(t *testing.T) {
	s := NewDirStore(t.TempDir())
	_, err := s.Store("m/v", "firefox", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	p, err := s.Store("m/v", "firefox", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestStoreWriteFailureCleansUp(t *testing.T) {
	s := NewDirStore(t.TempDir())
	dst, err := s.Path("m/v", "chrome")
	require.NoError(t, err)

	// an empty directory in the temp file's place makes the write fail
	tmp := dst + ".tmp"
	require.NoError(t, os.MkdirAll(tmp, 0o755))

	_, err = s.Store("m/v", "chrome", bytes.NewReader(pngBytes(t)))
	require.Error(t, err)

	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr), "temp path removed after failed write")
	_, statErr = os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreRejectsNonPNG(t *testing.T) {
	s := NewDirStore(t.TempDir())
	_, err := s.Store("m/v", "chrome", strings.NewReader("GIF89a"))
	assert.True(t, errors.Is(err, ErrNotPNG))

	_, statErr := os.Stat(filepath.Join(s.Root(), "m"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPathRejectsEscapes(t *testing.T) {
	s := NewDirStore(t.TempDir())
	tests := []struct {
		id, platform string
	}{
		{"", "chrome"},
		{"../outside", "chrome"},
		{"/abs/path", "chrome"},
		{"m/v", ""},
		{"m/v", "../chrome"},
		{"m/v", `a\b`},
		{"m/v", ".."},
	}
	for _, tt := range tests {
		_, err := s.Path(tt.id, tt.platform)
		assert.True(t, errors.Is(err, ErrInvalidName), "id=%q platform=%q", tt.id, tt.platform)
	}
}

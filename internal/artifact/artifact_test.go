package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExtractKey(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Key
	}{
		{
			name: "relative",
			path: "left/engineA/modelX/default/chrome.png",
			want: Key{Engine: "engineA", Model: "modelX", Variant: "default", Browser: "chrome.png"},
		},
		{
			name: "absolute",
			path: "/tmp/shots/webgl2/Duck/glTF-Binary/firefox.png",
			want: Key{Engine: "webgl2", Model: "Duck", Variant: "glTF-Binary", Browser: "firefox.png"},
		},
		{
			name: "exactly four segments",
			path: "e/m/v/b",
			want: Key{Engine: "e", Model: "m", Variant: "v", Browser: "b"},
		},
		{
			name: "doubled separators",
			path: "root//e/m//v/b.png",
			want: Key{Engine: "e", Model: "m", Variant: "v", Browser: "b.png"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, ok, err := ExtractKey(tc.path)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tc.want, key)
		})
	}
}

func TestExtractKey_Marker(t *testing.T) {
	for _, p := range []string{
		"left/engineA/modelX/default/.DS_Store",
		"left/engineA/modelX/Thumbs.db",
		".DS_Store",
	} {
		key, ok, err := ExtractKey(p)
		assert.NoError(t, err, p)
		assert.False(t, ok, p)
		assert.Equal(t, Key{}, key)
	}
}

func TestExtractKey_Malformed(t *testing.T) {
	_, ok, err := ExtractKey("modelX/default/chrome.png")
	assert.False(t, ok)

	var mpe *MalformedPathError
	require.True(t, errors.As(err, &mpe))
	assert.Equal(t, 3, mpe.Segments)
	assert.Contains(t, err.Error(), "modelX/default/chrome.png")
}

func TestKey_Formatting(t *testing.T) {
	k := Key{Engine: "e", Model: "m", Variant: "v", Browser: "chrome.png"}

	assert.Equal(t, "chrome", k.BrowserName())
	assert.Equal(t, "e/v", k.Tag())
	assert.Equal(t, "model=m browser=chrome.png variant=v engine=e", k.String())
}

func TestProperty_ExtractKeyProjectsLastFourSegments(t *testing.T) {
	segment := rapid.StringMatching(`[A-Za-z0-9_.-]{1,12}`).Filter(func(s string) bool {
		return !IsMarker(s)
	})

	rapid.Check(t, func(rt *rapid.T) {
		prefix := rapid.SliceOfN(segment, 0, 4).Draw(rt, "prefix")
		e := segment.Draw(rt, "engine")
		m := segment.Draw(rt, "model")
		v := segment.Draw(rt, "variant")
		b := segment.Draw(rt, "browser")

		p := strings.Join(append(prefix, e, m, v, b), "/")
		key, ok, err := ExtractKey(p)
		require.NoError(rt, err)
		require.True(rt, ok)
		assert.Equal(rt, Key{Engine: e, Model: m, Variant: v, Browser: b}, key)
	})
}

func TestParseHashAlgorithm(t *testing.T) {
	tests := []struct {
		input    string
		expected HashAlgorithm
		hasError bool
	}{
		{"", HashSHA256, false},
		{"sha256", HashSHA256, false},
		{"SHA256", HashSHA256, false},
		{"blake2b", HashBLAKE2b, false},
		{"blake2b-256", HashBLAKE2b, false},
		{"md5", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			alg, err := ParseHashAlgorithm(tc.input)
			if tc.hasError {
				assert.ErrorIs(t, err, ErrUnknownHash)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, alg)
		})
	}
}

func TestHasher_HashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	c := filepath.Join(dir, "c.png")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("other bytes"), 0o644))

	for _, alg := range []HashAlgorithm{HashSHA256, HashBLAKE2b} {
		t.Run(string(alg), func(t *testing.T) {
			h := NewHasher(alg)

			ha, size, err := h.HashFile(a)
			require.NoError(t, err)
			assert.Equal(t, int64(len("same bytes")), size)
			assert.Len(t, ha, 64)

			hb, _, err := h.HashFile(b)
			require.NoError(t, err)
			hc, _, err := h.HashFile(c)
			require.NoError(t, err)

			assert.Equal(t, ha, hb)
			assert.NotEqual(t, ha, hc)
		})
	}

	// known sha256 of the empty input
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	sum, _, err := NewHasher("").HashFile(empty)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sum)
}

func TestHasher_MissingFile(t *testing.T) {
	_, _, err := NewHasher(HashSHA256).HashFile(filepath.Join(t.TempDir(), "nope.png"))

	var fse *FilesystemError
	require.True(t, errors.As(err, &fse))
	assert.Equal(t, "open", fse.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

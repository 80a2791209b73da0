package matrix

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shotcheck/internal/permutation"
)

func TestDefaultMaterialAxes(t *testing.T) {
	space, err := permutation.New(DefaultMaterialAxes()...)
	require.NoError(t, err)
	assert.Equal(t, 128, space.Total())

	first := space.Resolve(0)
	assert.Equal(t, "$ccDiffuse", first["diffuseMap"])
	assert.Equal(t, FresnelNone, first["fresnelModel"])
	assert.Equal(t, false, first["useMetalness"], "metalness axis overrides base")
	assert.Equal(t, true, first["useLighting"])

	last := space.Resolve(127)
	assert.Equal(t, FresnelSchlick, last["fresnelModel"])
	assert.Equal(t, 1.0, last["metalness"])
	assert.Equal(t, 0.25, last["clearCoat"])
	assert.Equal(t, true, last["diffuseTint"])
	assert.Equal(t, false, last["useLighting"])
}

func TestMaterialTests(t *testing.T) {
	space, err := permutation.New(DefaultMaterialAxes()...)
	require.NoError(t, err)

	tests := MaterialTests(space, DefaultOptions())
	require.Len(t, tests, 2)

	frame := tests[1]
	assert.Equal(t, "material/1", frame.Name)
	assert.Len(t, frame.Materials, 64)
	assert.Len(t, frame.Entities, 64)
	assert.Len(t, frame.Assets, 3)

	// cell (i=2, j=5) of frame 1 is permutation 64 + 2*8 + 5
	cell := 2*8 + 5
	assert.Equal(t, "mat_1_2_5", frame.Materials[cell].Name)
	assert.Equal(t, space.Resolve(85), frame.Materials[cell].Options)

	sphere := frame.Entities[cell]
	assert.Equal(t, "sphere_1_2_5", sphere.Name)
	assert.Equal(t, "render", sphere.ComponentType)
	assert.Equal(t, "$mat_1_2_5", sphere.ComponentOptions["material"])
	assert.Equal(t, []float64{-1.5, 1.5, 0}, sphere.Position)
}

func TestMaterialTestsWrap(t *testing.T) {
	space := permutation.MustNew(
		permutation.Axis{{"a": 0}, {"a": 1}, {"a": 2}},
		permutation.Axis{{"b": 0}, {"b": 1}},
	)

	tests := MaterialTests(space, Options{GridSize: 2})
	require.Len(t, tests, 2, "6 permutations on 4-cell frames")

	second := tests[1].Materials
	require.Len(t, second, 4)
	assert.Equal(t, space.Resolve(4), second[0].Options)
	assert.Equal(t, space.Resolve(0), second[2].Options, "last frame wraps")
	assert.Equal(t, []float64{-0.5, -0.5, 0}, tests[0].Entities[0].Position)
}

const sampleManifest = `[
  {"name": "Duck", "screenshot": "screenshot/screenshot.png",
   "variants": {"glTF": "Duck.gltf", "glTF-Binary": "Duck.glb"}},
  {"name": "Box", "variants": {"glTF-Draco": "Box.gltf"}}
]`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, "Duck", m[0].Name)
	assert.Equal(t, "Duck.glb", m[0].Variants["glTF-Binary"])
}

func TestParseManifestInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", `{`},
		{"not array", `{"name": "Duck"}`},
		{"missing variants", `[{"name": "Duck"}]`},
		{"empty variants", `[{"name": "Duck", "variants": {}}]`},
		{"escaping name", `[{"name": "../Duck", "variants": {"glTF": "Duck.gltf"}}]`},
		{"non-string file", `[{"name": "Duck", "variants": {"glTF": 3}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(strings.NewReader(tt.json))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	p := filepath.Join(t.TempDir(), "model-index.json")
	require.NoError(t, os.WriteFile(p, []byte(sampleManifest), 0o644))

	m, err := LoadManifest(p)
	require.NoError(t, err)
	assert.Len(t, m, 2)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGltfTests(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	tests := GltfTests(m, DefaultOptions())
	names := make([]string, len(tests))
	for i, tc := range tests {
		names[i] = tc.Name
	}
	assert.Equal(t, []string{
		"gltf/Duck/glTF/Duck.gltf",
		"gltf/Duck/glTF-Binary/Duck.glb",
		"gltf/Box/glTF-Draco/Box.gltf",
	}, names)

	duck := tests[0]
	assert.Equal(t, []Asset{{Name: "gltf", Type: "container", URL: "gltf-sample-models/2.0/Duck/glTF/Duck.gltf"}}, duck.Assets)
	assert.Equal(t, []Entity{{Asset: "$gltf"}}, duck.Entities)
	assert.Equal(t, "draco/draco.wasm.js", duck.Draco)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Test{Name: "material/1"}))
	require.NoError(t, r.Register(Test{Name: "material/0", Env: "a"}))
	require.NoError(t, r.Register(Test{Name: "material/0", Env: "b"}))

	assert.Equal(t, []string{"material/0", "material/1"}, r.Index())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("material/0")
	require.True(t, ok)
	assert.Equal(t, "b", got.Env, "later registration replaces")

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsBadNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"", "index", "../escape", "/abs", `gltf\x`} {
		err := r.Register(Test{Name: name})
		assert.True(t, errors.Is(err, ErrInvalidTestName), "name %q", name)
	}
	assert.Equal(t, 0, r.Len())
}

func TestWriteIndex(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterAll([]Test{{Name: "b"}, {Name: "a"}}))

	var buf bytes.Buffer
	require.NoError(t, r.WriteIndex(&buf))

	var names []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &names))
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestWriteDir(t *testing.T) {
	space, err := permutation.New(DefaultMaterialAxes()...)
	require.NoError(t, err)
	m, err := ParseManifest(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.RegisterAll(MaterialTests(space, DefaultOptions())))
	require.NoError(t, r.RegisterAll(GltfTests(m, DefaultOptions())))

	dir := t.TempDir()
	require.NoError(t, r.WriteDir(dir))

	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal(data, &names))
	assert.Len(t, names, 5)

	data, err = os.ReadFile(filepath.Join(dir, "gltf", "Duck", "glTF-Binary", "Duck.glb.json"))
	require.NoError(t, err)
	var duck Test
	require.NoError(t, json.Unmarshal(data, &duck))
	assert.Equal(t, "gltf/Duck/glTF-Binary/Duck.glb", duck.Name)

	data, err = os.ReadFile(filepath.Join(dir, "material", "0.json"))
	require.NoError(t, err)
	var frame Test
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Len(t, frame.Entities, 64)
}

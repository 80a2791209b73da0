package matrix

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/model-index.schema.json
var manifestSchemaData []byte

const manifestSchemaURL = "model-index.schema.json"

var manifestSchema = jsonschema.MustCompileString(manifestSchemaURL, string(manifestSchemaData))

// Model is one entry of a glTF sample model index.
type Model struct {
	Name string `json:"name"`
	// Variants maps a variant name (glTF, glTF-Binary, glTF-Draco...) to the
	// model file inside that variant's directory.
	Variants map[string]string `json:"variants"`
}

// Manifest is the parsed model-index.json.
type Manifest []Model

// ParseManifest validates and decodes a model index.
func ParseManifest(r io.Reader) (Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := manifestSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var m Manifest
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// LoadManifest reads and validates the model index at path.
func LoadManifest(p string) (Manifest, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseManifest(f)
}

// GltfTests returns one test per model variant, named
// gltf/<model>/<variant>/<file>. Models keep manifest order; variants are
// sorted.
func GltfTests(m Manifest, opts Options) []Test {
	var tests []Test
	for _, model := range m {
		variants := make([]string, 0, len(model.Variants))
		for v := range model.Variants {
			variants = append(variants, v)
		}
		sort.Strings(variants)

		for _, variant := range variants {
			name := path.Join(model.Name, variant, model.Variants[variant])
			tests = append(tests, Test{
				Name:   "gltf/" + name,
				Engine: opts.Engine,
				Draco:  opts.Draco,
				Env:    opts.Env,
				Assets: []Asset{{
					Name: "gltf",
					Type: "container",
					URL:  path.Join(opts.ModelRoot, name),
				}},
				Entities: []Entity{{Asset: "$gltf"}},
			})
		}
	}
	return tests
}

// Package matrix generates the render tests that produce the screenshot
// trees shotcheck compares: material permutation grids and one test per
// glTF sample model variant.
package matrix

// Test describes one scene for the render client.
type Test struct {
	Name      string     `json:"name"`
	Engine    string     `json:"engine"`
	Draco     string     `json:"draco,omitempty"`
	Env       string     `json:"env"`
	Assets    []Asset    `json:"assets"`
	Materials []Material `json:"materials,omitempty"`
	Entities  []Entity   `json:"entities"`
}

// Asset is loaded before the scene is built and referenced as $<Name>.
type Asset struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Material is a named standard material.
type Material struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options"`
}

// Entity is a scene node. Either a component or an asset instance.
type Entity struct {
	Name             string         `json:"name,omitempty"`
	ComponentType    string         `json:"componentType,omitempty"`
	ComponentOptions map[string]any `json:"componentOptions,omitempty"`
	Position         []float64      `json:"position,omitempty"`
	Asset            string         `json:"asset,omitempty"`
}

// Options are shared by the generators.
type Options struct {
	// GridSize is the number of spheres per side of a material frame.
	GridSize int
	Engine   string
	Env      string
	Draco    string
	// ModelRoot is the URL prefix of the glTF sample models.
	ModelRoot string
}

// DefaultOptions returns the stock engine and environment settings.
func DefaultOptions() Options {
	return Options{
		GridSize:  8,
		Engine:    "https://code.playcanvas.com/playcanvas-stable.js",
		Env:       "assets/abandoned_tank_farm_01_2k.hdr",
		Draco:     "draco/draco.wasm.js",
		ModelRoot: "gltf-sample-models/2.0",
	}
}

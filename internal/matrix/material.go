package matrix

import (
	"fmt"

	"shotcheck/internal/permutation"
)

// Fresnel and specular model constants understood by the engine.
const (
	FresnelNone    = 0
	FresnelSchlick = 2
	SpecularPhong  = 0
	SpecularBlinn  = 1
)

func color(r, g, b, a float64) map[string]any {
	return map[string]any{"r": r, "g": g, "b": b, "a": a}
}

// DefaultMaterialAxes returns the material feature axes: a textured
// metalness base, then fresnel, shading, metalness/specular, clearcoat,
// diffuse tint and lighting variations. The space has 128 permutations.
func DefaultMaterialAxes() []permutation.Axis {
	return []permutation.Axis{
		{{
			"diffuseMap":          "$ccDiffuse",
			"metalnessMap":        "$ccOther",
			"metalnessMapChannel": "r",
			"glossMap":            "$ccOther",
			"glossMapChannel":     "g",
			"normalMap":           "$ccNormal",
			"metalness":           1.0,
			"shininess":           90.0,
			"bumpiness":           0.7,
			"useMetalness":        true,
		}},
		{
			{"fresnelModel": FresnelNone},
			{"fresnelModel": FresnelSchlick},
		},
		{
			{"shadingModel": SpecularPhong},
			{"shadingModel": SpecularBlinn},
		},
		{
			{"useMetalness": false, "specular": color(0.5, 0.5, 0.5, 1)},
			{"useMetalness": true, "metalness": 0.0},
			{"useMetalness": true, "metalness": 0.5},
			{"useMetalness": true, "metalness": 1.0},
		},
		{
			{},
			{"clearCoat": 0.25, "clearCoatGlossiness": 0.8},
		},
		{
			{},
			{"diffuse": color(0.6, 0.6, 0.9, 1), "diffuseTint": true},
		},
		{
			{"useLighting": true},
			{"useLighting": false},
		},
	}
}

// materialAssets are the clearcoat flake textures referenced by the base
// axis.
func materialAssets() []Asset {
	return []Asset{
		{Name: "ccNormal", Type: "texture", URL: "assets/flakes5n.png"},
		{Name: "ccDiffuse", Type: "texture", URL: "assets/flakes5c.png"},
		{Name: "ccOther", Type: "texture", URL: "assets/flakes5o.png"},
	}
}

// MaterialTests lays the permutations of space out on GridSize x GridSize
// sphere grids, one test per frame. Frames are filled completely, so the
// last frame wraps around to the first permutations.
func MaterialTests(space *permutation.Space, opts Options) []Test {
	grid := opts.GridSize
	if grid <= 0 {
		grid = DefaultOptions().GridSize
	}
	cells := grid * grid
	frames := (space.Total() + cells - 1) / cells
	center := float64(grid-1) / 2

	tests := make([]Test, 0, frames)
	idx := 0
	for frame := 0; frame < frames; frame++ {
		t := Test{
			Name:      fmt.Sprintf("material/%d", frame),
			Engine:    opts.Engine,
			Env:       opts.Env,
			Assets:    materialAssets(),
			Materials: make([]Material, 0, cells),
			Entities:  make([]Entity, 0, cells),
		}

		for i := 0; i < grid; i++ {
			for j := 0; j < grid; j++ {
				id := fmt.Sprintf("%d_%d_%d", frame, i, j)

				t.Materials = append(t.Materials, Material{
					Name:    "mat_" + id,
					Options: space.Resolve(idx),
				})
				idx++

				t.Entities = append(t.Entities, Entity{
					Name:          "sphere_" + id,
					ComponentType: "render",
					ComponentOptions: map[string]any{
						"type":     "sphere",
						"material": "$mat_" + id,
					},
					Position: []float64{float64(i) - center, float64(j) - center, 0},
				})
			}
		}
		tests = append(tests, t)
	}
	return tests
}

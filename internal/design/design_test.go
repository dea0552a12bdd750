package design

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/optim"
)

const antireflection = `
name: ar
center_wavelength: 550
medium: air
substrate: glass
materials:
  - {name: air, model: constant, n: 1.0}
  - {name: glass, model: constant, n: 1.52}
  - {name: MgF2, model: constant, n: 1.38}
  - {name: SiO2, model: cauchy, a: 1.4598, b: 0.0075239}
  - name: SiO2TiO2
    model: sellmeier
    mixture:
      - {x: 0, b1: 1.1, c1: 0.01}
      - {x: 50, b1: 2.4, c1: 0.03}
      - {x: 100, b1: 4.0, c1: 0.06}
front:
  - {material: SiO2TiO2, thickness: 40, index: 1.9}
  - {material: MgF2, thickness: 80}
targets:
  - kind: R
    range: {from: 450, to: 650, points: 11}
    values: [0]
    tolerances: [0.01]
  - kind: phase
    wavelengths: [500, 600]
    values: [0, 0]
    tolerances: [10, 10]
    inequality: ">="
optimization:
  method: refine
  max_iterations: 50
`

func decode(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Decode(strings.NewReader(src), t.TempDir())
	require.NoError(t, err)
	return doc
}

func TestBuild(t *testing.T) {
	doc := decode(t, antireflection)
	f, targets, err := doc.Build()
	require.NoError(t, err)

	front := f.Layers(film.Front)
	require.Len(t, front, 2)
	assert.Equal(t, "SiO2TiO2", front[0].Material.Name())
	assert.Equal(t, 1.9, front[0].Index)
	assert.Equal(t, 80.0, front[1].Thickness)
	assert.Empty(t, f.Layers(film.Back))

	lo, hi := f.Wavelengths.Range()
	assert.Equal(t, 450.0, lo)
	assert.Equal(t, 650.0, hi)

	require.Len(t, targets, 2)
	assert.Equal(t, film.Reflectance, targets[0].Quantity)
	assert.Equal(t, 45.0, targets[0].Polarization)
	assert.Len(t, targets[0].Values, 11)
	assert.Len(t, targets[0].Tolerances, 11)
	assert.Equal(t, film.ReflectedPhase, targets[1].Quantity)
	assert.Equal(t, 90.0, targets[1].Polarization)
	assert.Equal(t, film.AtLeast, targets[1].Inequality)

	m, ok := doc.Material("SiO2")
	require.True(t, ok)
	n, err := m.IndexAt(1000)
	require.NoError(t, err)
	assert.InDelta(t, 1.4598+0.0075239, real(n), 1e-12)
	assert.Equal(t, []string{"air", "glass", "MgF2", "SiO2", "SiO2TiO2"}, doc.MaterialNames())
}

func TestBuildTargetAngles(t *testing.T) {
	src := strings.Replace(antireflection, "center_wavelength: 550\n",
		"center_wavelength: 550\nangle: 30\nback_angle: 10\n", 1)
	src = strings.Replace(src, "  - kind: phase\n", `  - kind: T
    range: {from: 450, to: 650, points: 11}
    angle: 0
    values: [1]
    tolerances: [0.01]
  - kind: T
    range: {from: 450, to: 650, points: 11}
    reverse: true
    values: [1]
    tolerances: [0.01]
  - kind: phase
`, 1)
	f, targets, err := decode(t, src).Build()
	require.NoError(t, err)
	require.Len(t, targets, 4)
	assert.Equal(t, 30.0, targets[0].Angle)
	assert.Equal(t, 0.0, targets[1].Angle)
	assert.Equal(t, 10.0, targets[2].Angle)
	assert.Equal(t, film.Reverse, targets[2].Direction)
	assert.Equal(t, 30.0, f.Incidence(film.Forward))
	assert.Equal(t, 10.0, f.Incidence(film.Reverse))
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("name: x\nthickness: 3\n"), "")
	assert.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]string{
		"undefined material": strings.Replace(antireflection, "material: MgF2", "material: ZnS", 1),
		"duplicate material": strings.Replace(antireflection, "name: MgF2", "name: SiO2", 1),
		"unknown model":      strings.Replace(antireflection, "model: cauchy", "model: drude", 1),
		"range and list":     strings.Replace(antireflection, "kind: R\n", "kind: R\n    wavelengths: [500]\n", 1),
		"no points":          strings.Replace(antireflection, "points: 11", "points: 0", 1),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := decode(t, src).Build()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, _, err := decode(t, strings.Replace(antireflection, "index: 1.9", "index: 3.5", 1)).Build()
	assert.Error(t, err)

	_, _, err = decode(t, strings.Replace(antireflection, "inequality: \">=\"", "inequality: \"~\"", 1)).Build()
	assert.ErrorIs(t, err, film.ErrTarget)
}

func TestLoadResolvesTables(t *testing.T) {
	dir := t.TempDir()
	csv := "wavelength,n,k\n400,2.50,0.001\n550,2.40,0\n700,2.35,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tio2.csv"), []byte(csv), 0o644))
	src := `
center_wavelength: 550
medium: air
substrate: glass
materials:
  - {name: air, n: 1}
  - {name: glass, n: 1.52}
  - {name: TiO2, model: table, csv: tio2.csv}
front:
  - {material: TiO2, thickness: 57}
`
	path := filepath.Join(dir, "design.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	f, targets, err := doc.Build()
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Nil(t, f.Wavelengths)

	n, err := f.Layers(film.Front)[0].Material.IndexAt(550)
	require.NoError(t, err)
	assert.InDelta(t, 2.40, real(n), 1e-12)
}

func TestFromFilterWritesBackLayers(t *testing.T) {
	doc := decode(t, antireflection)
	f, _, err := doc.Build()
	require.NoError(t, err)
	require.NoError(t, f.SetThickness(film.Front, 1, 99.5))
	require.NoError(t, f.AppendLayer(film.Back, film.Layer{Material: f.Layers(film.Front)[1].Material, Thickness: 12}))

	out := FromFilter(doc, f)
	assert.Equal(t, 80.0, doc.Front[1].Thickness, "the source document is not modified")
	assert.Equal(t, 99.5, out.Front[1].Thickness)
	assert.Equal(t, 1.9, out.Front[0].Index)
	assert.Zero(t, out.Front[1].Index)
	require.Len(t, out.Back, 1)
	assert.Equal(t, "MgF2", out.Back[0].Material)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, out))
	again, err := Decode(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, out.Front, again.Front)
	assert.Equal(t, out.Back, again.Back)
	assert.Equal(t, out.Targets, again.Targets)
}

func TestRun(t *testing.T) {
	doc := decode(t, strings.Replace(antireflection, "    inequality: \">=\"\n", "", 1))
	f, targets, err := doc.Build()
	require.NoError(t, err)

	var iterations int
	out, err := doc.Run(context.Background(), f, targets, Hooks{OnIteration: func(optim.Iteration) { iterations++ }})
	require.NoError(t, err)
	assert.Equal(t, "refine", out.Method)
	assert.LessOrEqual(t, out.Chi2, out.InitialChi2)
	assert.Equal(t, out.Iterations, iterations)
	assert.False(t, f.Busy())

	doc.Optimization.Method = "anneal"
	_, err = doc.Run(context.Background(), f, targets, Hooks{})
	assert.ErrorIs(t, err, ErrInvalid)

	doc.Optimization = Optimization{Method: "needle", NeedleMaterials: []string{"nothing"}}
	_, err = doc.Run(context.Background(), f, targets, Hooks{})
	assert.ErrorIs(t, err, ErrInvalid)
}

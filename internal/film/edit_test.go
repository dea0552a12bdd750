package film

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/thinfilm/internal/dispersion"
)

func thicknesses(layers []Layer) []float64 {
	out := make([]float64, len(layers))
	for i, l := range layers {
		out[i] = l.Thickness
	}
	return out
}

func TestAddRemoveLayers(t *testing.T) {
	f := bare(t)
	hi, lo := tio2(t), sio2(t)
	require.NoError(t, f.AppendLayer(Front, Layer{Material: hi, Thickness: 10}))
	require.NoError(t, f.AppendLayer(Front, Layer{Material: lo, Thickness: 20}))
	require.NoError(t, f.AddLayer(Front, 1, Layer{Material: hi, Thickness: 15}))
	assert.Equal(t, []float64{10, 15, 20}, thicknesses(f.Layers(Front)))

	require.NoError(t, f.RemoveLayer(Front, 0))
	assert.Equal(t, []float64{15, 20}, thicknesses(f.Layers(Front)))

	assert.ErrorIs(t, f.RemoveLayer(Front, 5), ErrLayer)
	assert.ErrorIs(t, f.AddLayer(Front, 0, Layer{Material: hi, Thickness: -1}), ErrThickness)
	assert.ErrorIs(t, f.SetIndex(Front, 0, 2), ErrNotMixture)
}

func TestMixtureIndexIsRangeChecked(t *testing.T) {
	f := bare(t)
	err := f.AppendLayer(Front, Layer{Material: mixture(t), Thickness: 10, Index: 5})
	var re *dispersion.RangeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 5.0, re.Value)
	assert.ErrorIs(t, err, dispersion.ErrOutOfRange)
}

func TestLayersReturnsCopies(t *testing.T) {
	f := scenario(t)
	layers := f.Layers(Front)
	layers[0].Thickness = 1
	assert.Equal(t, 200.0, f.Layers(Front)[0].Thickness)
}

func TestSwapSides(t *testing.T) {
	f := bare(t)
	f.FrontAngle, f.BackAngle = 10, 20
	require.NoError(t, f.AppendLayer(Front, Layer{Material: tio2(t), Thickness: 1}))
	require.NoError(t, f.AppendLayer(Front, Layer{Material: sio2(t), Thickness: 2}))
	require.NoError(t, f.AppendLayer(Back, Layer{Material: sio2(t), Thickness: 3}))
	require.NoError(t, f.SwapSides())
	assert.Equal(t, []float64{3}, thicknesses(f.Layers(Front)))
	assert.Equal(t, []float64{2, 1}, thicknesses(f.Layers(Back)))
	assert.Equal(t, 20.0, f.FrontAngle)
	assert.Equal(t, 10.0, f.BackAngle)
	assert.Equal(t, 20.0, f.Incidence(Forward))
	assert.Equal(t, 10.0, f.Incidence(Reverse))
}

func TestMergeAndRemoveThin(t *testing.T) {
	f := bare(t)
	hi, lo := tio2(t), sio2(t)
	for _, l := range []Layer{
		{Material: hi, Thickness: 10},
		{Material: hi, Thickness: 5},
		{Material: lo, Thickness: 0.5},
		{Material: hi, Thickness: 7},
	} {
		require.NoError(t, f.AppendLayer(Front, l))
	}
	n, err := f.MergeLayers()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{15, 0.5, 7}, thicknesses(f.Layers(Front)))

	// Removing the thin layer leaves identical neighbours, which merge.
	n, err = f.RemoveThinLayers(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float64{22}, thicknesses(f.Layers(Front)))
}

func TestConvertToSteps(t *testing.T) {
	f := bare(t)
	m := mixture(t)
	prof := &Profile{
		Thickness: []float64{4, 4, 4, 4, 4},
		Index:     []float64{1.6, 1.7, 1.8, 1.9, 2.0},
	}
	require.NoError(t, f.AppendLayer(Front, Layer{Material: m, Profile: prof}))
	assert.Equal(t, 20.0, f.Layers(Front)[0].Thickness)

	n, err := f.ConvertToSteps(Front, 0, 8)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	layers := f.Layers(Front)
	require.Len(t, layers, 2)
	assert.InDelta(t, 8, layers[0].Thickness, 1e-12)
	assert.InDelta(t, 12, layers[1].Thickness, 1e-12)
	assert.InDelta(t, 1.65, layers[0].Index, 1e-12)
	assert.InDelta(t, 1.9, layers[1].Index, 1e-12)
	assert.False(t, layers[0].Graded())
}

func TestSessionHoldsFilter(t *testing.T) {
	f := scenario(t)
	s, err := f.Begin()
	require.NoError(t, err)
	assert.True(t, f.Busy())

	_, err = f.Begin()
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, f.SetThickness(Front, 0, 10), ErrBusy)
	_, err = f.Reflectance(f.Wavelengths, Options{})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, s.SetThickness(Front, 0, 10))
	s.End()
	assert.False(t, f.Busy())
	assert.Equal(t, 10.0, f.Layers(Front)[0].Thickness)
}

func TestInsertNeedle(t *testing.T) {
	f := bare(t)
	hi, lo := tio2(t), sio2(t)
	require.NoError(t, f.AppendLayer(Front, Layer{Material: hi, Thickness: 100}))
	s, err := f.Begin()
	require.NoError(t, err)
	defer s.End()

	require.NoError(t, s.InsertNeedle(Front, 0, 30, lo, 0, 2))
	layers := s.Layers(Front)
	assert.Equal(t, []float64{30, 2, 68}, thicknesses(layers))
	assert.Same(t, lo, layers[1].Material)

	// A needle at the surface of a layer does not leave an empty host piece.
	require.NoError(t, s.InsertNeedle(Front, 0, 0, lo, 0, 1))
	assert.Equal(t, []float64{1, 29, 2, 68}, thicknesses(s.Layers(Front)))

	// At the far face the needle still takes its thickness out of the host.
	require.NoError(t, s.InsertNeedle(Front, 3, 68, lo, 0, 3))
	assert.Equal(t, []float64{1, 29, 2, 65, 3}, thicknesses(s.Layers(Front)))
	require.NoError(t, s.InsertNeedle(Front, 3, 64, lo, 0, 3))
	assert.Equal(t, []float64{1, 29, 2, 62, 3, 3}, thicknesses(s.Layers(Front)))
}

func TestInsertStep(t *testing.T) {
	f := bare(t)
	require.NoError(t, f.AppendLayer(Front, Layer{Material: mixture(t), Thickness: 100, Index: 1.9}))
	require.NoError(t, f.AppendLayer(Front, Layer{Material: tio2(t), Thickness: 10}))
	s, err := f.Begin()
	require.NoError(t, err)
	defer s.End()

	require.NoError(t, s.InsertStep(Front, 0, 40, 0.1))
	layers := s.Layers(Front)
	require.Len(t, layers, 3)
	assert.Equal(t, []float64{40, 60, 10}, thicknesses(layers))
	assert.InDelta(t, 1.85, layers[0].Index, 1e-12)
	assert.InDelta(t, 1.95, layers[1].Index, 1e-12)

	assert.ErrorIs(t, s.InsertStep(Front, 2, 5, 0.1), ErrNotMixture)
}

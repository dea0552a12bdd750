package film

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/thinfilm/internal/dispersion"
)

func constant(t *testing.T, name string, n, k float64) *dispersion.Material {
	t.Helper()
	m, err := dispersion.New(name, dispersion.Constant{N: n, K: k})
	require.NoError(t, err)
	return m
}

func cauchy(t *testing.T, name string, c dispersion.Cauchy) *dispersion.Material {
	t.Helper()
	m, err := dispersion.New(name, c)
	require.NoError(t, err)
	return m
}

func mixture(t *testing.T) *dispersion.Material {
	t.Helper()
	m, err := dispersion.NewMixture("SiO2TiO2", []dispersion.MixtureRow{
		{X: 0, Params: dispersion.Sellmeier{B1: 1.1, C1: 0.01}},
		{X: 50, Params: dispersion.Sellmeier{B1: 2.4, C1: 0.03}},
		{X: 100, Params: dispersion.Sellmeier{B1: 4.0, C1: 0.06}},
	})
	require.NoError(t, err)
	return m
}

func sio2(t *testing.T) *dispersion.Material {
	return cauchy(t, "SiO2", dispersion.Cauchy{A: 1.4598, B: 0.0075239})
}

func tio2(t *testing.T) *dispersion.Material {
	return cauchy(t, "TiO2", dispersion.Cauchy{A: 2.1959, B: 0.025614, C: 0.0059846})
}

// bare returns an uncoated glass filter in air.
func bare(t *testing.T) *Filter {
	t.Helper()
	f, err := New(constant(t, "air", 1, 0), constant(t, "glass", 1.5, 0), 550)
	require.NoError(t, err)
	return f
}

// scenario returns the three layer validation stack: from the medium a
// 200 nm mixture layer at index 1.9, 100 nm TiO2 and 50 nm SiO2 on n = 1.5.
func scenario(t *testing.T) *Filter {
	t.Helper()
	f := bare(t)
	require.NoError(t, f.AppendLayer(Front, Layer{Material: mixture(t), Thickness: 200, Index: 1.9}))
	require.NoError(t, f.AppendLayer(Front, Layer{Material: tio2(t), Thickness: 100}))
	require.NoError(t, f.AppendLayer(Front, Layer{Material: sio2(t), Thickness: 50}))
	return f
}

package film

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/thinfilm/internal/color"
	"github.com/cwbudde/thinfilm/internal/grid"
)

var visible = grid.MustLinear(400, 800, 41)

func TestBareSubstrate(t *testing.T) {
	f := bare(t)
	for _, psi := range []float64{0, 45, 90} {
		opts := Options{Polarization: psi}
		r, err := f.Reflectance(visible, opts)
		require.NoError(t, err)
		tr, err := f.Transmittance(visible, opts)
		require.NoError(t, err)
		a, err := f.Absorptance(visible, opts)
		require.NoError(t, err)
		for i := range r {
			assert.InDelta(t, 0.04, r[i], 1e-15)
			assert.InDelta(t, 0.96, tr[i], 1e-15)
			assert.InDelta(t, 0, a[i], 1e-15)
		}
	}
}

func TestPolarizationMixesEnergies(t *testing.T) {
	f := scenario(t)
	get := func(psi float64) []float64 {
		r, err := f.Reflectance(visible, Options{Angle: 50, Polarization: psi})
		require.NoError(t, err)
		return r
	}
	rp, rs, mixed := get(0), get(90), get(45)
	for i := range mixed {
		assert.InDelta(t, (rp[i]+rs[i])/2, mixed[i], 1e-15)
	}
	assert.NotEqual(t, rp[10], rs[10])
}

func TestPhaseNeedsPurePolarization(t *testing.T) {
	f := scenario(t)
	_, err := f.Phase(visible, Options{Polarization: 45}, false)
	assert.ErrorIs(t, err, ErrPolarization)
	_, err = f.ElectricField(visible, Options{Polarization: 30}, 5)
	assert.ErrorIs(t, err, ErrPolarization)

	gd, err := bare(t).GroupDelay(visible, Options{Polarization: 90}, false)
	require.NoError(t, err)
	for _, v := range gd {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestZeroThicknessLayerChangesNothing(t *testing.T) {
	f := scenario(t)
	opts := Options{Angle: 30, Polarization: 45}
	before, err := f.Reflectance(visible, opts)
	require.NoError(t, err)
	require.NoError(t, f.AddLayer(Front, 1, Layer{Material: sio2(t), Thickness: 0}))
	after, err := f.Reflectance(visible, opts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, before, after, 1e-15)
}

func TestForwardReverseTransmission(t *testing.T) {
	f := scenario(t)
	fwd, err := f.Transmittance(visible, Options{Direction: Forward})
	require.NoError(t, err)
	rev, err := f.Transmittance(visible, Options{Direction: Reverse})
	require.NoError(t, err)
	assert.InDeltaSlice(t, fwd, rev, 1e-12)
}

func TestBacksideOfUncoatedSubstrate(t *testing.T) {
	f := bare(t)
	f.Backside = true
	f.SubstrateThickness = 1e6
	for _, dir := range []Direction{Forward, Reverse} {
		r, err := f.Reflectance(visible, Options{Direction: dir})
		require.NoError(t, err)
		tr, err := f.Transmittance(visible, Options{Direction: dir})
		require.NoError(t, err)
		for i := range r {
			assert.InDelta(t, 2*0.04/1.04, r[i], 1e-14)
			assert.InDelta(t, 0.96/1.04, tr[i], 1e-14)
		}
	}
}

func TestSpectrumIsIdempotent(t *testing.T) {
	f := scenario(t)
	opts := Options{Angle: 60, Polarization: 45}
	a, err := f.Reflectance(visible, opts)
	require.NoError(t, err)
	b, err := f.Reflectance(visible, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEllipsometryAtNormalIncidence(t *testing.T) {
	psi, _, err := scenario(t).Ellipsometry(visible, Options{})
	require.NoError(t, err)
	for _, v := range psi {
		assert.InDelta(t, 45, v, 1e-9)
	}
}

func TestColorOfFlatSpectrum(t *testing.T) {
	f := bare(t)
	c, err := f.Color(Reflectance, Options{}, color.CIE1931, color.D65)
	require.NoError(t, err)
	wx, wy, _ := color.White(color.CIE1931, color.D65).XyY()
	assert.InDelta(t, 4, c.Lum, 1e-12)
	assert.InDelta(t, wx, c.X, 1e-12)
	assert.InDelta(t, wy, c.Y, 1e-12)
	assert.InDelta(t, 0, c.A, 1e-9)
	assert.InDelta(t, 0, c.B, 1e-9)

	_, err = f.Color(ReflectedPhase, Options{Polarization: 90}, color.CIE1931, color.D65)
	assert.Error(t, err)
}

func TestMonitoring(t *testing.T) {
	f := scenario(t)
	var last float64
	m, err := f.Monitoring(context.Background(), Reflectance, 550, Options{}, 5, func(p float64) {
		assert.GreaterOrEqual(t, p, last)
		last = p
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.Signal)

	assert.InDelta(t, 0.04, m.Signal[0], 1e-15)
	assert.Equal(t, 0.0, m.Thickness[0])
	n := len(m.Signal) - 1
	assert.InDelta(t, 350, m.Thickness[n], 1e-9)
	assert.Equal(t, 0, m.Layer[n])
	assert.InDelta(t, 1, last, 1e-12)

	full, err := f.Reflectance(grid.MustLinear(550, 550, 1), Options{})
	require.NoError(t, err)
	assert.InDelta(t, full[0], m.Signal[n], 1e-15)
	for i := 1; i <= n; i++ {
		assert.Greater(t, m.Thickness[i], m.Thickness[i-1])
	}
}

func TestMonitoringHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := scenario(t).Monitoring(ctx, Transmittance, 550, Options{}, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, m.Signal, 1)
}

func TestParseQuantity(t *testing.T) {
	for _, q := range []Quantity{Reflectance, Transmittance, Absorptance, ReflectedPhase, TransmittedGD, TransmittedGDD} {
		got, err := ParseQuantity(q.String())
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}
	q, err := ParseQuantity("gdd")
	require.NoError(t, err)
	assert.Equal(t, ReflectedGDD, q)
	_, err = ParseQuantity("psi")
	assert.Error(t, err)
}

func TestPositionsEndAtThickness(t *testing.T) {
	assert.Len(t, Positions(200, 2), 101)
	p := Positions(10, 3)
	assert.Equal(t, []float64{0, 3, 6, 9, 10}, p)
	assert.Equal(t, []float64{0}, Positions(0, 3))
	assert.Equal(t, []float64{0, 1}, Positions(1, 1))
}

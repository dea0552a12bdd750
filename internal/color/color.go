// Package color computes CIE tristimulus values of reflectance and
// transmittance spectra.
package color

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/cwbudde/thinfilm/internal/grid"
)

const (
	first = 380.0
	last  = 780.0
	step  = 10.0
	count = 41
)

// ErrUnknown is returned for an unknown observer or illuminant name.
var ErrUnknown = errors.New("color: unknown observer or illuminant")

// Wavelengths returns the set that spectra must be sampled on for colour
// calculations: 380–780 nm in 10 nm steps.
func Wavelengths() *grid.Wavelengths { return grid.MustLinear(first, last, count) }

// Observer is a set of colour matching functions on Wavelengths.
type Observer struct {
	Name    string
	X, Y, Z []float64
}

// Illuminant is a relative spectral power distribution on Wavelengths.
type Illuminant struct {
	Name string
	S    []float64
}

// CIE1931 is the CIE 1931 2° standard observer.
var CIE1931 = Observer{Name: "CIE1931", X: cie1931X, Y: cie1931Y, Z: cie1931Z}

var (
	// D65 is CIE standard illuminant D65.
	D65 = Illuminant{Name: "D65", S: d65}
	// A is CIE standard illuminant A, a 2856 K Planckian radiator.
	A = Illuminant{Name: "A", S: illuminantA()}
	// E is the equal energy illuminant.
	E = Illuminant{Name: "E", S: equalEnergy()}
)

func illuminantA() []float64 {
	const c2 = 1.435e7 // nm·K
	const temp = 2848.0
	s := make([]float64, count)
	for i := range s {
		l := first + float64(i)*step
		s[i] = 100 * math.Pow(560/l, 5) *
			(math.Exp(c2/(temp*560)) - 1) / (math.Exp(c2/(temp*l)) - 1)
	}
	return s
}

func equalEnergy() []float64 {
	s := make([]float64, count)
	for i := range s {
		s[i] = 100
	}
	return s
}

// ObserverByName looks up an observer ("CIE1931", "2deg").
func ObserverByName(name string) (Observer, error) {
	switch strings.ToLower(name) {
	case "", "cie1931", "2deg", "2":
		return CIE1931, nil
	}
	return Observer{}, fmt.Errorf("observer %q: %w", name, ErrUnknown)
}

// IlluminantByName looks up an illuminant ("D65", "A", "E").
func IlluminantByName(name string) (Illuminant, error) {
	switch strings.ToUpper(name) {
	case "", "D65":
		return D65, nil
	case "A":
		return A, nil
	case "E":
		return E, nil
	}
	return Illuminant{}, fmt.Errorf("illuminant %q: %w", name, ErrUnknown)
}

// XYZ are tristimulus values normalized so that the perfect diffuser has Y = 100.
type XYZ struct {
	X, Y, Z float64
}

// Tristimulus integrates a spectrum (fractions, sampled on Wavelengths)
// against the observer under the illuminant.
func Tristimulus(obs Observer, ill Illuminant, spectrum []float64) (XYZ, error) {
	if len(spectrum) != count {
		return XYZ{}, fmt.Errorf("color: spectrum has %d samples, want %d", len(spectrum), count)
	}
	k := 0.0
	var c XYZ
	for i, v := range spectrum {
		s := ill.S[i]
		k += s * obs.Y[i]
		c.X += s * obs.X[i] * v
		c.Y += s * obs.Y[i] * v
		c.Z += s * obs.Z[i] * v
	}
	k = 100 / k
	return XYZ{k * c.X, k * c.Y, k * c.Z}, nil
}

// White is the tristimulus value of the illuminant itself.
func White(obs Observer, ill Illuminant) XYZ {
	ones := make([]float64, count)
	for i := range ones {
		ones[i] = 1
	}
	c, _ := Tristimulus(obs, ill, ones)
	return c
}

// XyY returns the chromaticity x, y and the luminance Y.
func (c XYZ) XyY() (x, y, Y float64) {
	x, y, _ = colorful.XyzToXyy(c.X/100, c.Y/100, c.Z/100)
	return x, y, c.Y
}

// Lab returns CIE L*a*b* relative to white.
func (c XYZ) Lab(white XYZ) (l, a, b float64) {
	ref := [3]float64{white.X / 100, white.Y / 100, white.Z / 100}
	l, a, b = colorful.XyzToLabWhiteRef(c.X/100, c.Y/100, c.Z/100, ref)
	return 100 * l, 100 * a, 100 * b
}

// XyYDerivative returns the change of x, y and Y for a change dc of c.
func XyYDerivative(c, dc XYZ) (dx, dy, dY float64) {
	n := c.X + c.Y + c.Z
	if n == 0 {
		return 0, 0, dc.Y
	}
	dn := dc.X + dc.Y + dc.Z
	dx = (dc.X*n - c.X*dn) / (n * n)
	dy = (dc.Y*n - c.Y*dn) / (n * n)
	return dx, dy, dc.Y
}

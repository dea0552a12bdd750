package optim

import (
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwbudde/thinfilm/internal/dispersion"
	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/numeric"
)

// FourierConfig controls Fourier transform synthesis.
type FourierConfig struct {
	Material         *dispersion.Material // mixture realising the profile
	OpticalThickness float64              // total optical thickness of the profile, nm
	Samples          int                  // minimum number of sublayers
	Index            float64              // reference index, 0 for the middle of the mixture range
}

// DefaultFourierConfig returns a 4 µm optical thickness profile in m.
func DefaultFourierConfig(m *dispersion.Material) FourierConfig {
	return FourierConfig{Material: m, OpticalThickness: 4000, Samples: 200}
}

// qFunction returns Q = sqrt((1/T − T)/2) of a transmittance.
func qFunction(t float64) float64 {
	t = math.Max(1e-6, math.Min(1, t))
	return math.Sqrt(0.5 * (1/t - t))
}

// FourierProfile builds a graded index profile whose reflectance
// approximates a transmittance or reflectance target. With x the optical
// distance from the centre of the profile and σ = 1/λ,
//
//	ln(n(x)/n_ref) = (2/π) ∫ Q(σ)/σ · cos(4πσx) dσ,
//
// evaluated by one FFT over a uniform σ grid of spacing 1/(2X) for a total
// optical thickness X. Indices are clamped into the mixture range.
func FourierProfile(target film.Target, center float64, cfg FourierConfig) (*film.Profile, error) {
	if cfg.Material == nil || !cfg.Material.IsMixture() {
		return nil, fmt.Errorf("fourier synthesis: %w", film.ErrNotMixture)
	}
	if target.Quantity != film.Transmittance && target.Quantity != film.Reflectance {
		return nil, fmt.Errorf("fourier synthesis of %s: %w", target.Quantity, film.ErrTarget)
	}
	if target.Wavelengths == nil || target.Wavelengths.Len() < 2 || len(target.Values) != target.Wavelengths.Len() {
		return nil, fmt.Errorf("fourier synthesis needs at least two target points: %w", film.ErrTarget)
	}
	if !(cfg.OpticalThickness > 0) {
		return nil, fmt.Errorf("fourier synthesis optical thickness %g: %w", cfg.OpticalThickness, film.ErrThickness)
	}

	// Q on ascending wavenumbers.
	n := target.Wavelengths.Len()
	sigma := make([]float64, n)
	q := make([]float64, n)
	for i := 0; i < n; i++ {
		k := n - 1 - i
		sigma[i] = 1 / target.Wavelengths.At(k)
		t := target.Values[k]
		if target.Quantity == film.Reflectance {
			t = 1 - t
		}
		q[i] = qFunction(t)
	}
	interp, err := numeric.NewPCHIP(sigma, q)
	if err != nil {
		return nil, err
	}

	x := cfg.OpticalThickness
	ds := 1 / (2 * x)
	lo, hi := sigma[0], sigma[n-1]
	k := int(math.Ceil((hi-lo)/ds)) + 1
	size := max(k, cfg.Samples, 2)
	seq := make([]complex128, size)
	for j := 0; j < k; j++ {
		s := lo + float64(j)*ds
		if s > hi {
			break
		}
		seq[j] = complex(interp.Eval(s)/s*ds, 0)
	}
	coeff := fourier.NewCmplxFFT(size).Coefficients(nil, seq)

	nlo, nhi := cfg.Material.IndexRange(center)
	ref := cfg.Index
	if ref == 0 {
		ref = (nlo + nhi) / 2
	}
	dx := x / float64(size)
	prof := &film.Profile{Thickness: make([]float64, size), Index: make([]float64, size)}
	for m := 0; m < size; m++ {
		j := m - size/2
		pos := float64(j) * dx
		idx := ((j % size) + size) % size
		integral := real(cmplx.Exp(complex(0, -4*math.Pi*lo*pos)) * coeff[idx])
		nx := ref * math.Exp(2/math.Pi*integral)
		nx = math.Max(nlo, math.Min(nhi, nx))
		prof.Index[m] = nx
		prof.Thickness[m] = dx / nx
	}
	slog.Debug("Fourier profile built", "sublayers", size, "optical_thickness", x, "reference_index", ref)
	return prof, nil
}

// FourierSynthesis replaces the front coating of the filter held by s with
// a graded layer built by FourierProfile.
func FourierSynthesis(s *film.Session, target film.Target, cfg FourierConfig) (film.Layer, error) {
	prof, err := FourierProfile(target, s.Filter().CenterWavelength, cfg)
	if err != nil {
		return film.Layer{}, err
	}
	l := film.Layer{Material: cfg.Material, Profile: prof}
	if err := s.SetLayers(film.Front, []film.Layer{l}); err != nil {
		return film.Layer{}, err
	}
	slog.Info("Fourier synthesis done", "sublayers", len(prof.Thickness))
	return s.Layers(film.Front)[0], nil
}

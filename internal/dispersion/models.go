package dispersion

import (
	"fmt"
	"math"

	"github.com/cwbudde/thinfilm/internal/numeric"
)

// Model identifies the dispersion formula of a material.
type Model int

const (
	ModelConstant Model = iota
	ModelTable
	ModelCauchy
	ModelSellmeier
)

func (m Model) String() string {
	switch m {
	case ModelConstant:
		return "constant"
	case ModelTable:
		return "table"
	case ModelCauchy:
		return "cauchy"
	case ModelSellmeier:
		return "sellmeier"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// Params are the parameters of one dispersion formula. The set of
// implementations is closed: Constant, *Table, Cauchy and Sellmeier.
type Params interface {
	Model() Model
	eval(nm float64) complex128
}

// Urbach is an exponential absorption tail
//
//	k(λ) = Ak · exp(Exponent · (12400/λ[Å] − 12400/Edge[Å]))
//
// i.e. an exponential in photon energy (eV) above the edge. A zero Ak
// disables absorption.
type Urbach struct {
	Ak       float64
	Exponent float64
	Edge     float64 // Å
}

func (u Urbach) k(nm float64) float64 {
	if u.Ak == 0 {
		return 0
	}
	return u.Ak * math.Exp(12400*u.Exponent*(1/(10*nm)-1/u.Edge))
}

// Constant is a wavelength independent index N = n − ik.
type Constant struct {
	N, K float64
}

func (Constant) Model() Model { return ModelConstant }

func (c Constant) eval(float64) complex128 { return complex(c.N, -c.K) }

// Cauchy is n(λ) = A + B/λ² + C/λ⁴ with λ in µm plus an Urbach tail.
type Cauchy struct {
	A, B, C float64
	Urbach
}

func (Cauchy) Model() Model { return ModelCauchy }

func (c Cauchy) eval(nm float64) complex128 {
	l2 := nm * nm * 1e-6
	return complex(c.A+c.B/l2+c.C/(l2*l2), -c.k(nm))
}

// Sellmeier is n(λ)² = 1 + Σ Bᵢλ²/(λ² − Cᵢ) with λ in µm and Cᵢ in µm²,
// plus an Urbach tail. A negative n² yields n = 0.
type Sellmeier struct {
	B1, C1, B2, C2, B3, C3 float64
	Urbach
}

func (Sellmeier) Model() Model { return ModelSellmeier }

func (s Sellmeier) eval(nm float64) complex128 {
	l2 := nm * nm * 1e-6
	n2 := 1 +
		s.B1*l2/(l2-s.C1) +
		s.B2*l2/(l2-s.C2) +
		s.B3*l2/(l2-s.C3)
	n := 0.0
	if n2 > 0 {
		n = math.Sqrt(n2)
	}
	return complex(n, -s.k(nm))
}

// Table interpolates tabulated n and k with PCHIP, extrapolating the end
// cubics. The interpolated imaginary part is clamped to ≤ 0.
type Table struct {
	wavelengths []float64
	n, k        []float64
	nInterp     *numeric.PCHIP
	kInterp     *numeric.PCHIP
}

// NewTable builds a table from wavelengths (nm, strictly increasing) and
// the real index n and extinction k (k ≥ 0 absorbs).
func NewTable(wavelengths, n, k []float64) (*Table, error) {
	if len(n) != len(wavelengths) || len(k) != len(wavelengths) {
		return nil, fmt.Errorf("table with %d wavelengths, %d n and %d k values: %w",
			len(wavelengths), len(n), len(k), ErrInvalid)
	}
	t := &Table{
		wavelengths: append([]float64(nil), wavelengths...),
		n:           append([]float64(nil), n...),
		k:           append([]float64(nil), k...),
	}
	if len(wavelengths) == 1 {
		return t, nil
	}
	var err error
	if t.nInterp, err = numeric.NewPCHIP(t.wavelengths, t.n); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if t.kInterp, err = numeric.NewPCHIP(t.wavelengths, t.k); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	return t, nil
}

func (*Table) Model() Model { return ModelTable }

func (t *Table) eval(nm float64) complex128 {
	if t.nInterp == nil {
		return complex(t.n[0], math.Min(0, -t.k[0]))
	}
	return complex(t.nInterp.Eval(nm), math.Min(0, -t.kInterp.Eval(nm)))
}

// Points returns copies of the tabulated wavelengths, n and k.
func (t *Table) Points() (wavelengths, n, k []float64) {
	return append([]float64(nil), t.wavelengths...),
		append([]float64(nil), t.n...),
		append([]float64(nil), t.k...)
}

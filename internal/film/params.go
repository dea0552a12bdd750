package film

import (
	"fmt"
	"math"

	"github.com/cwbudde/thinfilm/internal/abeles"
)

// ParamKind selects what a parameter changes.
type ParamKind int

const (
	Thickness ParamKind = iota
	Index
)

func (k ParamKind) String() string {
	if k == Index {
		return "index"
	}
	return "thickness"
}

// Param is a free parameter of a filter: the thickness of a layer or the
// centre wavelength index of a homogeneous mixture layer.
type Param struct {
	Side  Side
	Layer int
	Kind  ParamKind
}

func (p Param) String() string { return fmt.Sprintf("%s[%d].%s", p.Side, p.Layer, p.Kind) }

func (p Param) key() layerKey { return layerKey{p.Side, p.Layer} }

// Parameters lists the thicknesses of every layer that takes part in a
// calculation and, when withIndex is set, the indices of homogeneous
// mixture layers. Back layers count only when the back face is included.
func (s *Session) Parameters(withIndex bool) []Param {
	var out []Param
	sides := []Side{Front}
	if s.f.Backside {
		sides = append(sides, Back)
	}
	for _, side := range sides {
		for i, l := range s.f.side(side) {
			out = append(out, Param{side, i, Thickness})
			if withIndex && l.Material.IsMixture() && !l.Graded() {
				out = append(out, Param{side, i, Index})
			}
		}
	}
	return out
}

func (s *Session) layer(p Param) (Layer, error) {
	if err := s.f.checkPos(p.Side, p.Layer); err != nil {
		return Layer{}, err
	}
	return s.f.side(p.Side)[p.Layer], nil
}

// Values returns the current parameter values.
func (s *Session) Values(params []Param) ([]float64, error) {
	out := make([]float64, len(params))
	for i, p := range params {
		l, err := s.layer(p)
		if err != nil {
			return nil, err
		}
		if p.Kind == Index {
			out[i] = l.Index
		} else {
			out[i] = l.Thickness
		}
	}
	return out, nil
}

// SetValues writes parameter values back into the filter. Index changes
// are applied before thickness changes, and under ConstantOT the
// thickness of a layer whose index changed keeps n·d fixed unless the
// thickness is a parameter too.
func (s *Session) SetValues(params []Param, x []float64) error {
	if len(params) != len(x) {
		panic("film: parameter and value counts differ")
	}
	hasThickness := make(map[layerKey]bool)
	for _, p := range params {
		if p.Kind == Thickness {
			hasThickness[p.key()] = true
		}
	}
	for i, p := range params {
		if p.Kind != Index {
			continue
		}
		l, err := s.layer(p)
		if err != nil {
			return err
		}
		if err := s.f.setIndex(p.Side, p.Layer, x[i]); err != nil {
			return err
		}
		if s.ConstantOT && !hasThickness[p.key()] && x[i] > 0 {
			if err := s.f.setThickness(p.Side, p.Layer, l.Thickness*l.Index/x[i]); err != nil {
				return err
			}
		}
	}
	for i, p := range params {
		if p.Kind != Thickness {
			continue
		}
		if err := s.f.setThickness(p.Side, p.Layer, math.Max(0, x[i])); err != nil {
			return err
		}
	}
	return nil
}

// Bounds returns the box of admissible values: thicknesses are non
// negative and mixture indices stay inside the range of the mixture at
// the centre wavelength.
func (s *Session) Bounds(params []Param) (lo, hi []float64, err error) {
	lo = make([]float64, len(params))
	hi = make([]float64, len(params))
	for i, p := range params {
		l, err := s.layer(p)
		if err != nil {
			return nil, nil, err
		}
		if p.Kind == Index {
			lo[i], hi[i] = l.Material.IndexRange(s.f.CenterWavelength)
		} else {
			lo[i], hi[i] = 0, math.Inf(1)
		}
	}
	return lo, hi, nil
}

// paramPerturbation returns the derivative of B and C with respect to p.
func (s *system) paramPerturbation(p Param, constantOT bool) perturbation {
	return func(sens *abeles.Sensitivity, idx []int, _ bool) ([][]abeles.Delta, error) {
		r := s.refs[p.key()]
		switch p.Kind {
		case Thickness:
			if len(idx) == 1 {
				return [][]abeles.Delta{sens.Thickness(idx[0])}, nil
			}
			// Graded layers scale every sublayer with the total.
			total := r.layer.Thickness
			bundles := make([][]abeles.Delta, len(idx))
			weights := make([]float64, len(idx))
			for k, j := range idx {
				bundles[k] = sens.Thickness(j)
				if total > 0 {
					weights[k] = sens.Solution().Stack.Layers[j].Thickness / total
				} else {
					weights[k] = 1 / float64(len(idx))
				}
			}
			return [][]abeles.Delta{abeles.Sum(weights, bundles...)}, nil
		case Index:
			if r.layer.Graded() || !r.layer.Material.IsMixture() {
				return nil, fmt.Errorf("%s: %w", p, ErrNotMixture)
			}
			if r.slope == nil {
				slope, err := s.f.indexSlope(r.layer.Material, r.layer.Index, s.w)
				if err != nil {
					return nil, err
				}
				r.slope = slope
			}
			d := sens.Index(idx[0], r.slope)
			if constantOT && r.layer.Index > 0 {
				d = abeles.Sum([]float64{1, -r.layer.Thickness / r.layer.Index}, d, sens.Thickness(idx[0]))
			}
			return [][]abeles.Delta{d}, nil
		}
		return nil, fmt.Errorf("parameter kind %d: %w", p.Kind, ErrLayer)
	}
}

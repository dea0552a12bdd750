package film

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/thinfilm/internal/abeles"
	"github.com/cwbudde/thinfilm/internal/dispersion"
)

// Needle is a material that may be inserted as a needle.
type Needle struct {
	Material *dispersion.Material
	Index    float64 // centre wavelength index of a mixture needle
}

// Candidate is a needle or step position together with the derivative of
// the merit function with respect to the needle thickness or step height.
// Negative gradients predict an improvement.
type Candidate struct {
	Side     Side
	Layer    int
	Position float64 // nm from the face nearer the start of the side
	Material int     // index into the needle list, 0 for steps
	Gradient float64
}

// Positions returns the candidate depths 0, spacing, 2·spacing, ... in a
// layer of thickness d, always ending with d.
func Positions(d, spacing float64) []float64 {
	if !(spacing > 0) || d <= 0 {
		return []float64{0}
	}
	n := int(math.Floor(d/spacing + 1e-9))
	out := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		out = append(out, math.Min(d, float64(i)*spacing))
	}
	if out[len(out)-1] < d {
		out = append(out, d)
	}
	return out
}

func stackPositions(positions []float64, d float64, flipped bool) []float64 {
	if !flipped {
		return positions
	}
	out := make([]float64, len(positions))
	for i, z := range positions {
		out[i] = d - z
	}
	return out
}

func needlePerturbation(positions []float64, d float64, needles [][]complex128) perturbation {
	return func(sens *abeles.Sensitivity, idx []int, flipped bool) ([][]abeles.Delta, error) {
		bundle := sens.Needle(idx[0], stackPositions(positions, d, flipped), needles)
		out := make([][]abeles.Delta, 0, len(needles)*len(positions))
		for _, byPos := range bundle {
			out = append(out, byPos...)
		}
		return out, nil
	}
}

func stepPerturbation(positions []float64, d float64, dN []complex128) perturbation {
	return func(sens *abeles.Sensitivity, idx []int, flipped bool) ([][]abeles.Delta, error) {
		out := sens.Step(idx[0], stackPositions(positions, d, flipped), dN)
		if flipped {
			// The part nearer the stack start is the upper step.
			for _, col := range out {
				for i := range col {
					col[i] = col[i].Scale(-1)
				}
			}
		}
		return out, nil
	}
}

// gradients accumulates 2·Σ r·∂r over every target group for the
// perturbation columns that build returns for one layer.
func gradients(groups []*evaluated, key layerKey, cols int, build func(g *evaluated) (perturbation, error)) ([]float64, error) {
	out := make([]float64, cols)
	for _, g := range groups {
		pert, err := build(g)
		if err != nil {
			return nil, err
		}
		dq, err := g.e.derivatives(key, cols, pert)
		if err != nil {
			return nil, err
		}
		rows, err := g.rows(dq)
		if err != nil {
			return nil, err
		}
		for c, row := range rows {
			for k, d := range row {
				out[c] += 2 * g.res[k] * d
			}
		}
	}
	return out, nil
}

func (s *Session) scanLayers(eligible func(Layer) bool) []layerKey {
	var keys []layerKey
	sides := []Side{Front}
	if s.f.Backside {
		sides = append(sides, Back)
	}
	for _, side := range sides {
		for i, l := range s.f.side(side) {
			if eligible(l) {
				keys = append(keys, layerKey{side, i})
			}
		}
	}
	return keys
}

// NeedleGradients returns the merit derivative of a needle of every
// material at every candidate position, spaced spacing nm apart, of every
// homogeneous layer.
func (s *Session) NeedleGradients(targets []Target, needles []Needle, spacing float64) ([]Candidate, error) {
	if len(needles) == 0 {
		return nil, nil
	}
	groups, err := s.evaluateTargets(targets, true)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, key := range s.scanLayers(func(l Layer) bool { return !l.Graded() }) {
		l := s.f.side(key.side)[key.index]
		positions := Positions(l.Thickness, spacing)
		grads, err := gradients(groups, key, len(needles)*len(positions), func(g *evaluated) (perturbation, error) {
			spectra := make([][]complex128, len(needles))
			for m, nd := range needles {
				n, err := s.f.indices(nd.Material, nd.Index, g.e.sys.w)
				if err != nil {
					return nil, fmt.Errorf("needle %s: %w", nd.Material.Name(), err)
				}
				spectra[m] = n
			}
			return needlePerturbation(positions, l.Thickness, spectra), nil
		})
		if err != nil {
			return nil, err
		}
		for c, gr := range grads {
			m, p := c/len(positions), c%len(positions)
			out = append(out, Candidate{Side: key.side, Layer: key.index, Position: positions[p], Material: m, Gradient: gr})
		}
	}
	return out, nil
}

// StepGradients returns the merit derivative with respect to the height
// of an index step at every interior candidate position of every
// homogeneous mixture layer. The part nearer the start of the side takes
// the lower index.
func (s *Session) StepGradients(targets []Target, spacing float64) ([]Candidate, error) {
	groups, err := s.evaluateTargets(targets, true)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, key := range s.scanLayers(func(l Layer) bool { return !l.Graded() && l.Material.IsMixture() }) {
		l := s.f.side(key.side)[key.index]
		positions := Positions(l.Thickness, spacing)
		grads, err := gradients(groups, key, len(positions), func(g *evaluated) (perturbation, error) {
			slope, err := s.f.indexSlope(l.Material, l.Index, g.e.sys.w)
			if err != nil {
				return nil, err
			}
			return stepPerturbation(positions, l.Thickness, slope), nil
		})
		if err != nil {
			return nil, err
		}
		for p, gr := range grads {
			if p == 0 || p == len(positions)-1 {
				continue
			}
			out = append(out, Candidate{Side: key.side, Layer: key.index, Position: positions[p], Gradient: gr})
		}
	}
	return out, nil
}

// Best returns the candidate with the most negative gradient. Ties keep
// the earliest candidate. ok is false when no gradient is negative.
func Best(cands []Candidate) (best Candidate, ok bool) {
	sorted := append([]Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Gradient < sorted[j].Gradient })
	if len(sorted) == 0 || !(sorted[0].Gradient < 0) {
		return Candidate{}, false
	}
	return sorted[0], true
}

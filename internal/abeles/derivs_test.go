package abeles

import (
	"math"
	"testing"

	"github.com/cwbudde/thinfilm/internal/grid"
)

// quantities evaluates the values checked by the derivative tests.
type quantities struct {
	r, t, a, phr, pht []float64
}

func evaluate(sol *Solution) quantities {
	return quantities{
		r:   sol.R(),
		t:   sol.T(),
		a:   sol.A(),
		phr: sol.Phase(Reflected),
		pht: sol.Phase(Transmitted),
	}
}

func derive(sol *Solution, d []Delta) quantities {
	return quantities{
		r:   sol.DR(d),
		t:   sol.DT(d),
		a:   sol.DA(d),
		phr: sol.DPhase(Reflected, d),
		pht: sol.DPhase(Transmitted, d),
	}
}

// wrapDiff returns (a − b) with phase jumps of 2π removed.
func wrapDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

func compare(t *testing.T, name string, got quantities, up, down quantities, h float64) {
	t.Helper()
	check := func(q string, a, p, m []float64, phase bool) {
		for i := range a {
			diff := p[i] - m[i]
			if phase {
				diff = wrapDiff(p[i], m[i])
			}
			fd := diff / (2 * h)
			if math.Abs(a[i]-fd) > 1e-6*math.Abs(a[i])+1e-7 {
				t.Errorf("%s d%s[%d] = %.10g, finite difference %.10g", name, q, i, a[i], fd)
			}
		}
	}
	check("R", got.r, up.r, down.r, false)
	check("T", got.t, up.t, down.t, false)
	check("A", got.a, up.a, down.a, false)
	check("phaseR", got.phr, up.phr, down.phr, true)
	check("phaseT", got.pht, up.pht, down.pht, true)
}

var derivGrid = grid.MustLinear(400, 800, 9)

func TestThicknessDerivative(t *testing.T) {
	for _, pol := range []Pol{S, P} {
		for j := range testFilms {
			sol := newTestStack(derivGrid, 1, 1.52, 40, testFilms).Solve(pol)
			got := derive(sol, sol.Sensitivity().Thickness(j))

			h := 1e-3
			films := append([]film(nil), testFilms...)
			films[j].d += h
			up := evaluate(newTestStack(derivGrid, 1, 1.52, 40, films).Solve(pol))
			films[j].d -= 2 * h
			down := evaluate(newTestStack(derivGrid, 1, 1.52, 40, films).Solve(pol))
			compare(t, pol.String()+"/thickness", got, up, down, h)
		}
	}
}

func TestIndexDerivative(t *testing.T) {
	dn := complex(1, -0.1)
	for _, pol := range []Pol{S, P} {
		for j := range testFilms {
			sol := newTestStack(derivGrid, 1, 1.52, 40, testFilms).Solve(pol)
			got := derive(sol, sol.Sensitivity().Index(j, constant(derivGrid, dn)))

			h := 1e-6
			films := append([]film(nil), testFilms...)
			films[j].n += complex(h, 0) * dn
			up := evaluate(newTestStack(derivGrid, 1, 1.52, 40, films).Solve(pol))
			films[j].n -= complex(2*h, 0) * dn
			down := evaluate(newTestStack(derivGrid, 1, 1.52, 40, films).Solve(pol))
			compare(t, pol.String()+"/index", got, up, down, h)
		}
	}
}

func TestNeedleDerivative(t *testing.T) {
	positions := []float64{0, 17.5, 45, 89.9, 90}
	needles := [][]complex128{constant(derivGrid, 1.38), constant(derivGrid, complex(2.4, -0.02))}
	needleIndex := []complex128{1.38, complex(2.4, -0.02)}
	host := 1

	for _, pol := range []Pol{S, P} {
		sol := newTestStack(derivGrid, 1, 1.52, 40, testFilms).Solve(pol)
		bundle := sol.Sensitivity().Needle(host, positions, needles)
		if len(bundle) != len(needles) || len(bundle[0]) != len(positions) {
			t.Fatalf("needle bundle shape %dx%d", len(bundle), len(bundle[0]))
		}
		for m := range needles {
			for p, z := range positions {
				got := derive(sol, bundle[m][p])
				h := 1e-3
				split := func(h float64) quantities {
					hf := testFilms[host]
					films := append([]film(nil), testFilms[:host]...)
					films = append(films,
						film{hf.n, z},
						film{needleIndex[m], h},
						film{hf.n, hf.d - z - h},
					)
					films = append(films, testFilms[host+1:]...)
					return evaluate(newTestStack(derivGrid, 1, 1.52, 40, films).Solve(pol))
				}
				compare(t, pol.String()+"/needle", got, split(h), split(-h), h)
			}
		}
	}
}

func TestStepDerivative(t *testing.T) {
	positions := []float64{0, 30, 60}
	dn := complex(0.8, -0.01)
	host := 2

	for _, pol := range []Pol{S, P} {
		sol := newTestStack(derivGrid, 1, 1.52, 40, testFilms).Solve(pol)
		bundle := sol.Sensitivity().Step(host, positions, constant(derivGrid, dn))
		for p, z := range positions {
			got := derive(sol, bundle[p])
			h := 1e-6
			split := func(delta float64) quantities {
				hf := testFilms[host]
				films := append([]film(nil), testFilms[:host]...)
				films = append(films,
					film{hf.n - complex(delta/2, 0)*dn, z},
					film{hf.n + complex(delta/2, 0)*dn, hf.d - z},
				)
				films = append(films, testFilms[host+1:]...)
				return evaluate(newTestStack(derivGrid, 1, 1.52, 40, films).Solve(pol))
			}
			compare(t, pol.String()+"/step", got, split(h), split(-h), h)
		}
	}
}

func TestPositionCountMatchesInput(t *testing.T) {
	sol := newTestStack(derivGrid, 1, 1.52, 0, testFilms).Solve(S)
	positions := make([]float64, 101)
	for i := range positions {
		positions[i] = float64(i) * 1.2
	}
	needle := sol.Sensitivity().Needle(0, positions, [][]complex128{constant(derivGrid, 1.38)})
	if len(needle[0]) != 101 {
		t.Errorf("needle positions = %d, want 101", len(needle[0]))
	}
	step := sol.Sensitivity().Step(0, positions, constant(derivGrid, 1))
	if len(step) != 101 {
		t.Errorf("step positions = %d, want 101", len(step))
	}
}

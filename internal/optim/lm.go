// Package optim refines and synthesizes thin-film designs: Levenberg-
// Marquardt refinement of layer parameters, needle and step synthesis
// around it, a Fourier transform starting design and a global search
// pre-stage.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/thinfilm/internal/numeric"
)

// Status is the state of a refinement.
type Status int

const (
	Prepared Status = iota
	Iterating
	MinimumFound
	Chi2Acceptable
	Chi2ChangeTooSmall
	DeltaTooSmall
	MaxIterations
)

var statusNames = [...]string{
	"prepared", "iterating", "minimum found", "chi2 acceptable",
	"chi2 change too small", "delta too small", "max iterations",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Converged reports whether the refinement met a stop criterion other than
// the iteration budget.
func (s Status) Converged() bool { return s >= MinimumFound && s < MaxIterations }

// Progress receives the completed fraction of a run in [0, 1]. Indeterminate
// is passed when the fraction cannot be estimated.
type Progress func(fraction float64)

// Indeterminate is the progress value of a run of unknown length.
const Indeterminate = -1.0

func (p Progress) report(fraction float64) {
	if p != nil {
		p(fraction)
	}
}

// Problem is a nonlinear least-squares problem.
type Problem interface {
	// Residuals returns r(x) and, when jacobian is set, dr/dx indexed
	// [residual][parameter].
	Residuals(x []float64, jacobian bool) ([]float64, [][]float64, error)
}

// Iteration is reported after every accepted step.
type Iteration struct {
	N      int
	Chi2   float64
	Lambda float64
	X      []float64
}

// LMConfig controls a Levenberg-Marquardt refinement.
type LMConfig struct {
	MaxIterations  int
	AcceptableChi2 float64 // stop once chi2 falls below
	MinChi2Change  float64 // relative chi2 decrease below which to stop
	MinDelta       float64 // relative step length below which to stop
	InitialLambda  float64
	LambdaUp       float64
	LambdaDown     float64
	MaxLambda      float64 // a rejected step beyond this damping ends the run
	Indices        bool    // refine mixture indices as well as thicknesses
	Solver         Solver
	OnIteration    func(Iteration)
}

// DefaultLMConfig returns the settings used by the synthesis methods.
func DefaultLMConfig() LMConfig {
	return LMConfig{
		MaxIterations:  100,
		AcceptableChi2: 0,
		MinChi2Change:  1e-6,
		MinDelta:       1e-8,
		InitialLambda:  1e-3,
		LambdaUp:       10,
		LambdaDown:     10,
		MaxLambda:      1e12,
		Solver:         QRSolver{},
	}
}

// Damped solves the damped step for one factorization of the Jacobian.
type Damped interface {
	// Step returns dx minimizing ||J·dx + r||² + λ·||diag(scale)·dx||².
	Step(lambda float64, scale []float64) ([]float64, error)
}

// Solver factors a Jacobian for repeated damped solves.
type Solver interface {
	Factor(jac [][]float64, res []float64) (Damped, error)
}

// QRSolver factors J by pivoted QR once and folds every damping diagonal
// into R with Givens rotations.
type QRSolver struct{}

type qrDamped struct {
	qr  *numeric.QR
	rhs []float64
}

func (QRSolver) Factor(jac [][]float64, res []float64) (Damped, error) {
	rhs := make([]float64, len(res))
	floats.ScaleTo(rhs, -1, res)
	return &qrDamped{qr: numeric.NewQR(jac), rhs: rhs}, nil
}

func (d *qrDamped) Step(lambda float64, scale []float64) ([]float64, error) {
	diag := make([]float64, len(scale))
	floats.ScaleTo(diag, math.Sqrt(lambda), scale)
	return d.qr.SolveWithDiagonal(d.rhs, diag), nil
}

// NormalSolver solves the normal equations (JᵀJ + λ·D²)·dx = −Jᵀr by
// Gauss-Jordan elimination.
type NormalSolver struct{}

type normalDamped struct {
	jtj [][]float64
	jtr []float64
}

func (NormalSolver) Factor(jac [][]float64, res []float64) (Damped, error) {
	n := 0
	if len(jac) > 0 {
		n = len(jac[0])
	}
	d := &normalDamped{jtj: make([][]float64, n), jtr: make([]float64, n)}
	for a := 0; a < n; a++ {
		d.jtj[a] = make([]float64, n)
	}
	for i, row := range jac {
		for a := 0; a < n; a++ {
			if row[a] == 0 {
				continue
			}
			d.jtr[a] -= row[a] * res[i]
			for b := a; b < n; b++ {
				d.jtj[a][b] += row[a] * row[b]
			}
		}
	}
	for a := 0; a < n; a++ {
		for b := 0; b < a; b++ {
			d.jtj[a][b] = d.jtj[b][a]
		}
	}
	return d, nil
}

func (d *normalDamped) Step(lambda float64, scale []float64) ([]float64, error) {
	n := len(d.jtr)
	a := make([][]float64, n)
	b := make([][]float64, n)
	for i := 0; i < n; i++ {
		a[i] = append([]float64(nil), d.jtj[i]...)
		a[i][i] += lambda * scale[i] * scale[i]
		b[i] = []float64{d.jtr[i]}
	}
	if err := numeric.GaussJordan(a, b, nil); err != nil {
		return nil, err
	}
	dx := make([]float64, n)
	for i := range dx {
		dx[i] = b[i][0]
	}
	return dx, nil
}

// Result is the outcome of a refinement. Running out of iterations is a
// status, not an error.
type Result struct {
	X           []float64
	Chi2        float64
	InitialChi2 float64
	Iterations  int
	Lambda      float64
	Status      Status
}

// minLambda is the damping used after a rejected undamped step.
const minLambda = 1e-12

func clamp(x, lo, hi []float64) {
	for i := range x {
		if lo != nil && x[i] < lo[i] {
			x[i] = lo[i]
		}
		if hi != nil && x[i] > hi[i] {
			x[i] = hi[i]
		}
	}
}

// updateScale keeps the largest column norm of J seen so far per
// parameter. Zero columns get unit scale.
func updateScale(scale []float64, jac [][]float64) {
	for j := range scale {
		s := 0.0
		for _, row := range jac {
			s = math.Hypot(s, row[j])
		}
		if s > scale[j] {
			scale[j] = s
		}
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
}

// Refine minimizes the sum of squared residuals of p from x0 inside the
// box [lo, hi] (nil for unbounded). Trial steps are clamped into the box.
// A singular damped system counts as a rejected step. When ctx is
// cancelled the best point so far is returned with the context error.
func Refine(ctx context.Context, p Problem, x0, lo, hi []float64, cfg LMConfig, progress Progress) (*Result, error) {
	solver := cfg.Solver
	if solver == nil {
		solver = QRSolver{}
	}
	x := append([]float64(nil), x0...)
	clamp(x, lo, hi)

	res, jac, err := p.Residuals(x, true)
	if err != nil {
		return nil, err
	}
	chi2 := floats.Dot(res, res)
	out := &Result{X: x, Chi2: chi2, InitialChi2: chi2, Lambda: cfg.InitialLambda, Status: Prepared}
	if len(x) == 0 {
		out.Status = MinimumFound
		return out, nil
	}
	slog.Debug("Refinement started", "params", len(x), "residuals", len(res), "chi2", chi2)

	up, down := cfg.LambdaUp, cfg.LambdaDown
	if up <= 1 {
		up = 10
	}
	if down <= 1 {
		down = 10
	}
	scale := make([]float64, len(x))
	lambda := cfg.InitialLambda
	raise := func() { lambda = math.Max(lambda*up, minLambda) }
	out.Status = Iterating
	for it := 0; it < cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("refinement cancelled: %w", err)
		}
		if chi2 <= cfg.AcceptableChi2 {
			out.Status = Chi2Acceptable
			break
		}
		updateScale(scale, jac)
		fac, err := solver.Factor(jac, res)
		if err != nil {
			return out, err
		}

		accepted := false
		var trial []float64
		var trialRes []float64
		trialChi2 := chi2
		for lambda <= cfg.MaxLambda {
			dx, err := fac.Step(lambda, scale)
			if err != nil {
				if !errors.Is(err, numeric.ErrSingular) {
					return out, err
				}
				raise()
				continue
			}
			trial = make([]float64, len(x))
			floats.AddTo(trial, x, dx)
			clamp(trial, lo, hi)
			trialRes, _, err = p.Residuals(trial, false)
			if err != nil {
				return out, err
			}
			trialChi2 = floats.Dot(trialRes, trialRes)
			if trialChi2 < chi2 {
				accepted = true
				break
			}
			raise()
		}
		if !accepted {
			out.Status = MinimumFound
			break
		}

		step := floats.Distance(trial, x, 2)
		change := (chi2 - trialChi2) / chi2
		x, chi2 = trial, trialChi2
		lambda /= down
		out.X, out.Chi2, out.Iterations, out.Lambda = x, chi2, it+1, lambda
		if cfg.OnIteration != nil {
			cfg.OnIteration(Iteration{N: it + 1, Chi2: chi2, Lambda: lambda, X: append([]float64(nil), x...)})
		}
		slog.Debug("Refinement iteration", "iteration", it+1, "chi2", chi2, "lambda", lambda)
		progress.report(float64(it+1) / float64(cfg.MaxIterations))

		switch {
		case chi2 <= cfg.AcceptableChi2:
			out.Status = Chi2Acceptable
		case change < cfg.MinChi2Change:
			out.Status = Chi2ChangeTooSmall
		case step <= cfg.MinDelta*(floats.Norm(x, 2)+cfg.MinDelta):
			out.Status = DeltaTooSmall
		}
		if out.Status != Iterating {
			break
		}
		if res, jac, err = p.Residuals(x, true); err != nil {
			return out, err
		}
	}
	if out.Status == Iterating {
		out.Status = MaxIterations
	}
	// Leave the problem at the returned point.
	if _, _, err := p.Residuals(out.X, false); err != nil {
		return out, err
	}
	slog.Debug("Refinement finished", "status", out.Status, "iterations", out.Iterations, "chi2", out.Chi2)
	return out, nil
}

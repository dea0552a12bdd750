package optim

import (
	"context"
	"log/slog"

	"github.com/cwbudde/thinfilm/internal/film"
)

// FilmProblem exposes the targets of a filter held by a session as a
// least-squares problem over film parameters.
type FilmProblem struct {
	Session *film.Session
	Targets []film.Target
	Params  []film.Param
}

// NewFilmProblem selects the thicknesses, and with indices the mixture
// indices, of the session's filter as parameters.
func NewFilmProblem(s *film.Session, targets []film.Target, indices bool) *FilmProblem {
	return &FilmProblem{Session: s, Targets: targets, Params: s.Parameters(indices)}
}

// Residuals writes x into the filter and evaluates the targets.
func (p *FilmProblem) Residuals(x []float64, jacobian bool) ([]float64, [][]float64, error) {
	if err := p.Session.SetValues(p.Params, x); err != nil {
		return nil, nil, err
	}
	return p.Session.Residuals(p.Targets, p.Params, jacobian)
}

// Start returns the current values and bounds of the parameters.
func (p *FilmProblem) Start() (x, lo, hi []float64, err error) {
	if x, err = p.Session.Values(p.Params); err != nil {
		return nil, nil, nil, err
	}
	lo, hi, err = p.Session.Bounds(p.Params)
	return x, lo, hi, err
}

// RefineFilm refines the filter held by s against targets and leaves it
// at the best point found.
func RefineFilm(ctx context.Context, s *film.Session, targets []film.Target, cfg LMConfig, progress Progress) (*Result, error) {
	p := NewFilmProblem(s, targets, cfg.Indices)
	x, lo, hi, err := p.Start()
	if err != nil {
		return nil, err
	}
	res, err := Refine(ctx, p, x, lo, hi, cfg, progress)
	if res != nil {
		slog.Info("Refinement done", "status", res.Status, "iterations", res.Iterations,
			"initial_chi2", res.InitialChi2, "chi2", res.Chi2)
	}
	return res, err
}

package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/opt"
)

// GlobalConfig controls the global search that seeds a refinement.
type GlobalConfig struct {
	Optimizer opt.Optimizer
	// MaxThickness bounds unbounded thickness parameters. Zero uses twice
	// the largest starting thickness.
	MaxThickness float64
	LM           LMConfig
}

// DefaultGlobalConfig searches with a seeded mayfly swarm.
func DefaultGlobalConfig(seed int64) GlobalConfig {
	return GlobalConfig{Optimizer: opt.NewMayfly(200, 20, seed), LM: DefaultLMConfig()}
}

// GlobalRefine searches the parameter box with cfg.Optimizer, keeps the
// better of the starting point and the search result, and refines it with
// Levenberg-Marquardt.
func GlobalRefine(ctx context.Context, s *film.Session, targets []film.Target, cfg GlobalConfig, progress Progress) (*Result, error) {
	if cfg.Optimizer == nil {
		return nil, fmt.Errorf("optim: global search without optimizer")
	}
	p := NewFilmProblem(s, targets, cfg.LM.Indices)
	x0, lo, hi, err := p.Start()
	if err != nil {
		return nil, err
	}
	limit := cfg.MaxThickness
	if limit <= 0 {
		for _, v := range x0 {
			limit = math.Max(limit, 2*v)
		}
	}
	for i := range hi {
		if math.IsInf(hi[i], 1) {
			hi[i] = math.Max(limit, lo[i])
		}
	}

	eval := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		r, _, err := p.Residuals(x, false)
		if err != nil {
			return math.Inf(1)
		}
		return film.Chi2(r)
	}
	start := eval(x0)
	progress.report(Indeterminate)
	best, cost := cfg.Optimizer.Run(eval, lo, hi, len(x0))
	if err := ctx.Err(); err != nil {
		// Leave the filter where it started.
		if _, _, perr := p.Residuals(x0, false); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("global search cancelled: %w", err)
	}
	slog.Info("Global search done", "start_chi2", start, "best_chi2", cost)
	if cost < start {
		x0 = best
	}
	res, err := Refine(ctx, p, x0, lo, hi, cfg.LM, progress)
	if res != nil {
		res.InitialChi2 = start
	}
	return res, err
}

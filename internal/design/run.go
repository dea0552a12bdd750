package design

import (
	"context"
	"fmt"
	"strings"

	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/opt"
	"github.com/cwbudde/thinfilm/internal/optim"
)

// Methods lists the optimisation methods Run accepts.
var Methods = []string{"refine", "needle", "step", "fourier", "global"}

// Hooks receive the progress of Run. Either may be nil.
type Hooks struct {
	Progress    optim.Progress
	OnIteration func(optim.Iteration)
}

// Outcome summarises a Run.
type Outcome struct {
	Method      string
	Status      string
	InitialChi2 float64
	Chi2        float64
	Iterations  int
	Inserted    int
}

func (o Optimization) lm(h Hooks) (optim.LMConfig, error) {
	cfg := optim.DefaultLMConfig()
	if o.MaxIterations > 0 {
		cfg.MaxIterations = o.MaxIterations
	}
	cfg.AcceptableChi2 = o.AcceptableChi2
	cfg.Indices = o.Indices
	switch strings.ToLower(o.Solver) {
	case "", "qr":
	case "normal":
		cfg.Solver = optim.NormalSolver{}
	default:
		return cfg, fmt.Errorf("solver %q: %w", o.Solver, ErrInvalid)
	}
	cfg.OnIteration = h.OnIteration
	return cfg, nil
}

func (o Optimization) method() string {
	if o.Method == "" {
		return "refine"
	}
	return strings.ToLower(o.Method)
}

func fromResult(method string, res *optim.Result) Outcome {
	out := Outcome{Method: method}
	if res != nil {
		out.Status = res.Status.String()
		out.InitialChi2 = res.InitialChi2
		out.Chi2 = res.Chi2
		out.Iterations = res.Iterations
	}
	return out
}

func fromSynthesis(method string, res *optim.SynthesisResult) Outcome {
	out := Outcome{Method: method}
	if res == nil {
		return out
	}
	out = fromResult(method, res.Refinement)
	out.Inserted = res.Inserted
	if res.Stop != "" {
		out.Status = string(res.Stop)
	}
	if len(res.History) > 0 {
		out.Chi2 = res.History[len(res.History)-1]
	}
	return out
}

// Run optimises f against targets with the method of d.Optimization. d
// must have been built. The filter is held for the whole run.
func (d *Document) Run(ctx context.Context, f *film.Filter, targets []film.Target, h Hooks) (Outcome, error) {
	o := d.Optimization
	method := o.method()
	lm, err := o.lm(h)
	if err != nil {
		return Outcome{Method: method}, err
	}
	s, err := f.Begin()
	if err != nil {
		return Outcome{Method: method}, err
	}
	defer s.End()
	s.ConstantOT = o.ConstantOT

	switch method {
	case "refine":
		res, err := optim.RefineFilm(ctx, s, targets, lm, h.Progress)
		return fromResult(method, res), err

	case "needle":
		cfg := optim.DefaultNeedleConfig()
		cfg.LM = lm
		for _, name := range o.NeedleMaterials {
			m, err := d.lookup(name)
			if err != nil {
				return Outcome{Method: method}, err
			}
			n := film.Needle{Material: m}
			if m.IsMixture() {
				lo, hi := m.IndexRange(f.CenterWavelength)
				n.Index = (lo + hi) / 2
			}
			cfg.Materials = append(cfg.Materials, n)
		}
		if o.NeedleThickness > 0 {
			cfg.Thickness = o.NeedleThickness
		}
		if o.Spacing > 0 {
			cfg.Spacing = o.Spacing
		}
		if o.MaxInsertions > 0 {
			cfg.MaxNeedles = o.MaxInsertions
		}
		if o.MinThickness > 0 {
			cfg.MinThickness = o.MinThickness
		}
		cfg.MaxLayers = o.MaxLayers
		res, err := optim.NeedleSynthesis(ctx, s, targets, cfg, h.Progress)
		return fromSynthesis(method, res), err

	case "step":
		cfg := optim.DefaultStepConfig()
		lm.Indices = true
		cfg.LM = lm
		if o.Spacing > 0 {
			cfg.Spacing = o.Spacing
		}
		if o.StepDelta > 0 {
			cfg.Delta = o.StepDelta
		}
		if o.MaxInsertions > 0 {
			cfg.MaxSteps = o.MaxInsertions
		}
		if o.MinThickness > 0 {
			cfg.MinThickness = o.MinThickness
		}
		res, err := optim.StepSynthesis(ctx, s, targets, cfg, h.Progress)
		return fromSynthesis(method, res), err

	case "fourier":
		if o.Fourier == nil {
			return Outcome{Method: method}, fmt.Errorf("fourier method without fourier settings: %w", ErrInvalid)
		}
		fo := o.Fourier
		m, err := d.lookup(fo.Material)
		if err != nil {
			return Outcome{Method: method}, err
		}
		if fo.Target < 0 || fo.Target >= len(targets) {
			return Outcome{Method: method}, fmt.Errorf("fourier target %d of %d: %w", fo.Target, len(targets), ErrInvalid)
		}
		cfg := optim.DefaultFourierConfig(m)
		if fo.OpticalThickness > 0 {
			cfg.OpticalThickness = fo.OpticalThickness
		}
		if fo.Samples > 0 {
			cfg.Samples = fo.Samples
		}
		cfg.Index = fo.Index
		before, err := s.Merit(targets)
		if err != nil {
			return Outcome{Method: method}, err
		}
		if _, err := optim.FourierSynthesis(s, targets[fo.Target], cfg); err != nil {
			return Outcome{Method: method}, err
		}
		after, err := s.Merit(targets)
		if err != nil {
			return Outcome{Method: method}, err
		}
		return Outcome{Method: method, Status: "profile built", InitialChi2: before, Chi2: after}, nil

	case "global":
		iters, pop := o.SearchIters, o.Population
		if iters <= 0 {
			iters = 200
		}
		if pop < 20 {
			pop = 20
		}
		cfg := optim.GlobalConfig{
			Optimizer:    opt.NewMayfly(iters, pop, o.Seed),
			MaxThickness: o.MaxThickness,
			LM:           lm,
		}
		res, err := optim.GlobalRefine(ctx, s, targets, cfg, h.Progress)
		return fromResult(method, res), err
	}
	return Outcome{Method: method}, fmt.Errorf("optimisation method %q: %w", o.Method, ErrInvalid)
}

package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/thinfilm/internal/film"
)

// StopReason tells why a synthesis loop ended.
type StopReason string

const (
	StopNoCandidate StopReason = "no improving candidate"
	StopSmallGain   StopReason = "predicted gain below threshold"
	StopBudget      StopReason = "insertion budget exhausted"
	StopStalled     StopReason = "merit stalled"
	StopAcceptable  StopReason = "chi2 acceptable"
	StopLayerLimit  StopReason = "layer limit reached"
)

// SynthesisResult is the outcome of a needle or step synthesis.
type SynthesisResult struct {
	Refinement *Result // last refinement
	Inserted   int
	History    []float64 // merit after every round, starting with the initial refinement
	Stop       StopReason
}

// NeedleConfig controls needle synthesis.
type NeedleConfig struct {
	LM           LMConfig
	Materials    []film.Needle
	Spacing      float64 // nm between candidate positions
	Thickness    float64 // nm of an inserted needle
	MaxNeedles   int
	MaxLayers    int     // 0 for no limit
	MinGain      float64 // relative predicted merit decrease required to insert
	MinThickness float64 // layers that refine below this are removed
	Convergence  ConvergenceConfig
}

// DefaultNeedleConfig returns needle synthesis settings for the given
// needle materials.
func DefaultNeedleConfig(materials ...film.Needle) NeedleConfig {
	return NeedleConfig{
		LM:           DefaultLMConfig(),
		Materials:    materials,
		Spacing:      2,
		Thickness:    1,
		MaxNeedles:   20,
		MinGain:      1e-4,
		MinThickness: 0.5,
		Convergence:  DefaultConvergenceConfig(),
	}
}

// StepConfig controls step synthesis.
type StepConfig struct {
	LM           LMConfig
	Spacing      float64
	Delta        float64 // index height of an inserted step
	MaxSteps     int
	MinGain      float64
	MinThickness float64
	Convergence  ConvergenceConfig
}

// DefaultStepConfig refines indices as well as thicknesses.
func DefaultStepConfig() StepConfig {
	lm := DefaultLMConfig()
	lm.Indices = true
	return StepConfig{
		LM:           lm,
		Spacing:      2,
		Delta:        0.05,
		MaxSteps:     20,
		MinGain:      1e-4,
		MinThickness: 0.5,
		Convergence:  DefaultConvergenceConfig(),
	}
}

func layerCount(s *film.Session) int {
	return len(s.Layers(film.Front)) + len(s.Layers(film.Back))
}

// inserter picks the next candidate and its predicted merit decrease,
// and inserts a picked candidate.
type inserter struct {
	pick  func() (c film.Candidate, gain float64, ok bool, err error)
	apply func(c film.Candidate) error
}

type loopConfig struct {
	lm           LMConfig
	conv         ConvergenceConfig
	budget       int
	maxLayers    int
	minGain      float64
	minThickness float64
}

// synthesize refines, then repeatedly inserts the best candidate and
// refines again.
func synthesize(ctx context.Context, s *film.Session, targets []film.Target, cfg loopConfig, ins inserter, progress Progress) (*SynthesisResult, error) {
	out := &SynthesisResult{}
	tracker := NewConvergenceTracker(cfg.conv)
	stalled := false
	refine := func() error {
		res, err := RefineFilm(ctx, s, targets, cfg.lm, nil)
		if res != nil {
			out.Refinement = res
		}
		if err != nil {
			return err
		}
		if cfg.minThickness > 0 {
			s.RemoveThinLayers(cfg.minThickness)
		}
		chi2, err := s.Merit(targets)
		if err != nil {
			return err
		}
		out.History = append(out.History, chi2)
		stalled = tracker.Update(chi2)
		return nil
	}
	if err := refine(); err != nil {
		return out, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("synthesis cancelled: %w", err)
		}
		chi2 := out.History[len(out.History)-1]
		switch {
		case out.Inserted >= cfg.budget:
			out.Stop = StopBudget
		case stalled:
			out.Stop = StopStalled
		case chi2 <= cfg.lm.AcceptableChi2:
			out.Stop = StopAcceptable
		case cfg.maxLayers > 0 && layerCount(s) >= cfg.maxLayers:
			out.Stop = StopLayerLimit
		}
		if out.Stop != "" {
			return out, nil
		}

		c, gain, ok, err := ins.pick()
		if err != nil {
			return out, err
		}
		if !ok {
			out.Stop = StopNoCandidate
			return out, nil
		}
		if gain < cfg.minGain*chi2 {
			out.Stop = StopSmallGain
			return out, nil
		}
		if err := ins.apply(c); err != nil {
			return out, err
		}
		out.Inserted++
		if err := refine(); err != nil {
			return out, err
		}
		progress.report(float64(out.Inserted) / float64(cfg.budget))
	}
}

// NeedleSynthesis inserts needles where the merit derivative is most
// negative and refines after every insertion.
func NeedleSynthesis(ctx context.Context, s *film.Session, targets []film.Target, cfg NeedleConfig, progress Progress) (*SynthesisResult, error) {
	if len(cfg.Materials) == 0 {
		return nil, fmt.Errorf("optim: needle synthesis without needle materials")
	}
	ins := inserter{
		pick: func() (film.Candidate, float64, bool, error) {
			cands, err := s.NeedleGradients(targets, cfg.Materials, cfg.Spacing)
			if err != nil {
				return film.Candidate{}, 0, false, err
			}
			best, ok := film.Best(cands)
			return best, -best.Gradient * cfg.Thickness, ok, nil
		},
		apply: func(c film.Candidate) error {
			m := cfg.Materials[c.Material]
			if err := s.InsertNeedle(c.Side, c.Layer, c.Position, m.Material, m.Index, cfg.Thickness); err != nil {
				return err
			}
			slog.Info("Needle inserted", "side", c.Side, "layer", c.Layer, "position", c.Position,
				"material", m.Material.Name(), "gradient", c.Gradient)
			return nil
		},
	}
	return synthesize(ctx, s, targets, loopConfig{
		lm: cfg.LM, conv: cfg.Convergence, budget: cfg.MaxNeedles, maxLayers: cfg.MaxLayers,
		minGain: cfg.MinGain, minThickness: cfg.MinThickness,
	}, ins, progress)
}

// bestStep picks the step with the largest gradient magnitude; the first
// wins a tie.
func bestStep(cands []film.Candidate) (film.Candidate, bool) {
	var best film.Candidate
	found := false
	for _, c := range cands {
		if c.Gradient != 0 && (!found || math.Abs(c.Gradient) > math.Abs(best.Gradient)) {
			best, found = c, true
		}
	}
	return best, found
}

// StepSynthesis inserts index steps into homogeneous mixture layers where
// the merit changes fastest with the step height, in the direction that
// lowers it, and refines after every insertion.
func StepSynthesis(ctx context.Context, s *film.Session, targets []film.Target, cfg StepConfig, progress Progress) (*SynthesisResult, error) {
	ins := inserter{
		pick: func() (film.Candidate, float64, bool, error) {
			cands, err := s.StepGradients(targets, cfg.Spacing)
			if err != nil {
				return film.Candidate{}, 0, false, err
			}
			best, ok := bestStep(cands)
			return best, math.Abs(best.Gradient) * cfg.Delta, ok, nil
		},
		apply: func(c film.Candidate) error {
			delta := -math.Copysign(cfg.Delta, c.Gradient)
			if err := s.InsertStep(c.Side, c.Layer, c.Position, delta); err != nil {
				return err
			}
			slog.Info("Step inserted", "side", c.Side, "layer", c.Layer, "position", c.Position,
				"delta", delta, "gradient", c.Gradient)
			return nil
		},
	}
	return synthesize(ctx, s, targets, loopConfig{
		lm: cfg.LM, conv: cfg.Convergence, budget: cfg.MaxSteps,
		minGain: cfg.MinGain, minThickness: cfg.MinThickness,
	}, ins, progress)
}

package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter runs the mayfly swarm optimizer. The library works on one
// scalar bound for every dimension, so the search runs on the unit cube
// and points are mapped onto the per-dimension box.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly returns a seeded mayfly optimizer. popSize must be at least 20.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{maxIters: maxIters, popSize: popSize, seed: seed}
}

// scale maps u in the unit cube onto [lower, upper].
func scale(u, lower, upper []float64) []float64 {
	x := make([]float64, len(u))
	for i, v := range u {
		v = min(1, max(0, v))
		x[i] = lower[i] + v*(upper[i]-lower[i])
	}
	return x
}

func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 { return eval(scale(u, lower, upper)) }
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Warn("Mayfly search failed, keeping the lower corner", "error", err)
		x := append([]float64(nil), lower...)
		return x, eval(x)
	}
	return scale(result.GlobalBest.Position, lower, upper), result.GlobalBest.Cost
}

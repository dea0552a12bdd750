package optim

import (
	"log/slog"
	"math"
)

// ConvergenceConfig detects a stalled synthesis loop.
type ConvergenceConfig struct {
	Enabled bool

	// Patience is the number of rounds without significant improvement
	// before the loop stops.
	Patience int

	// Threshold is the relative merit decrease (old − new)/old that counts
	// as an improvement.
	Threshold float64
}

// DefaultConvergenceConfig stops after three rounds without a 0.1% gain.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: true, Patience: 3, Threshold: 0.001}
}

// DisabledConvergenceConfig never reports convergence.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{}
}

// ConvergenceTracker follows the merit after every synthesis round.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	stale           int
}

func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	t := &ConvergenceTracker{config: config}
	t.Reset()
	return t
}

// Update records the merit of a round and reports whether the loop has stalled.
func (t *ConvergenceTracker) Update(chi2 float64) bool {
	if !t.config.Enabled {
		return false
	}
	t.history = append(t.history, chi2)
	t.best = math.Min(t.best, chi2)
	if len(t.history) == 1 {
		t.lastSignificant = chi2
		return false
	}

	gain := 0.0
	if t.lastSignificant > 0 {
		gain = (t.lastSignificant - chi2) / t.lastSignificant
	}
	if gain >= t.config.Threshold {
		t.lastSignificant = chi2
		t.stale = 0
		return false
	}
	t.stale++
	slog.Debug("No significant merit improvement",
		"chi2", chi2,
		"last_significant", t.lastSignificant,
		"stale", t.stale,
		"patience", t.config.Patience,
	)
	if t.stale >= t.config.Patience {
		slog.Info("Synthesis stalled", "rounds", len(t.history), "best_chi2", t.best)
		return true
	}
	return false
}

// Best returns the lowest merit seen.
func (t *ConvergenceTracker) Best() float64 { return t.best }

// History returns a copy of the recorded merits.
func (t *ConvergenceTracker) History() []float64 { return append([]float64(nil), t.history...) }

// Stale returns the number of rounds since the last improvement.
func (t *ConvergenceTracker) Stale() int { return t.stale }

func (t *ConvergenceTracker) Reset() {
	t.history = nil
	t.best = math.Inf(1)
	t.lastSignificant = math.Inf(1)
	t.stale = 0
}

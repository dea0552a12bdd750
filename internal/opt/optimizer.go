// Package opt provides derivative-free global optimizers over a box.
package opt

// Optimizer minimizes eval over the box [lower, upper] of dimension dim
// and returns the best point with its cost.
type Optimizer interface {
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

package film

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/thinfilm/internal/abeles"
	"github.com/cwbudde/thinfilm/internal/color"
	"github.com/cwbudde/thinfilm/internal/grid"
)

// Color is the colour of a reflected or transmitted spectrum.
type Color struct {
	XYZ     color.XYZ
	X, Y    float64 // chromaticity
	Lum     float64 // luminance Y
	L, A, B float64 // CIE L*a*b*
}

func (f *Filter) color(q Quantity, opts Options, obs color.Observer, ill color.Illuminant) (Color, error) {
	if !q.Energy() {
		return Color{}, fmt.Errorf("film: colour of %s: only R, T and A have a colour", q)
	}
	spec, err := f.spectrum(q, color.Wavelengths(), opts)
	if err != nil {
		return Color{}, err
	}
	c, err := color.Tristimulus(obs, ill, spec)
	if err != nil {
		return Color{}, err
	}
	out := Color{XYZ: c}
	out.X, out.Y, out.Lum = c.XyY()
	out.L, out.A, out.B = c.Lab(color.White(obs, ill))
	return out, nil
}

// Color returns the colour of spectrum q under ill as seen by obs.
func (f *Filter) Color(q Quantity, opts Options, obs color.Observer, ill color.Illuminant) (Color, error) {
	var out Color
	err := f.guard(func() error {
		var err error
		out, err = f.color(q, opts, obs, ill)
		return err
	})
	return out, err
}

// Monitoring is the signal predicted while the front coating grows.
type Monitoring struct {
	Thickness []float64 // total deposited thickness, nm
	Layer     []int     // front layer being deposited
	Signal    []float64
}

// partial returns the part of l grown to thickness t. Graded layers grow
// from their substrate side.
func partial(l Layer, t float64) Layer {
	p := l.clone()
	if !l.Graded() {
		p.Thickness = t
		return p
	}
	prof := &Profile{}
	left := t
	for i := len(l.Profile.Thickness) - 1; i >= 0 && left > 0; i-- {
		d := math.Min(left, l.Profile.Thickness[i])
		prof.Thickness = append([]float64{d}, prof.Thickness...)
		prof.Index = append([]float64{l.Profile.Index[i]}, prof.Index...)
		left -= d
	}
	p.Profile = prof
	p.Thickness = prof.total()
	return p
}

// Monitoring simulates the deposition of the front coating from the
// substrate outward and returns quantity q at wavelength nm after every
// step nm of growth. progress, when not nil, receives the deposited
// fraction. Cancelling ctx returns the samples taken so far with the
// context error.
func (f *Filter) Monitoring(ctx context.Context, q Quantity, nm float64, opts Options, step float64, progress func(float64)) (*Monitoring, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("monitoring step %g: %w", step, ErrThickness)
	}
	if q.order() > 0 {
		return nil, fmt.Errorf("monitoring %s: %w", q, abeles.ErrTooFewWavelengths)
	}
	w, err := grid.Single(nm)
	if err != nil {
		return nil, err
	}
	out := &Monitoring{}
	err = f.guard(func() error {
		layers := f.side(Front)
		total := layerSum(layers)
		work := f.Clone()
		grown := 0.0

		sample := func(k int, stack []Layer) error {
			work.front = stack
			v, err := work.spectrum(q, w, opts)
			if err != nil {
				return err
			}
			out.Thickness = append(out.Thickness, grown)
			out.Layer = append(out.Layer, k)
			out.Signal = append(out.Signal, v[0])
			if progress != nil && total > 0 {
				progress(grown / total)
			}
			return nil
		}

		if err := sample(len(layers)-1, nil); err != nil {
			return err
		}
		for k := len(layers) - 1; k >= 0; k-- {
			l := layers[k]
			done := layers[k+1:]
			for t := step; ; t += step {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("monitoring cancelled: %w", err)
				}
				t = math.Min(t, l.Thickness)
				stack := append([]Layer{partial(l, t)}, done...)
				grown = layerSum(done) + t
				if err := sample(k, stack); err != nil {
					return err
				}
				if t >= l.Thickness {
					break
				}
			}
		}
		slog.Debug("Monitoring simulated", "samples", len(out.Signal), "wavelength", nm)
		return nil
	})
	return out, err
}

func layerSum(layers []Layer) float64 {
	s := 0.0
	for _, l := range layers {
		s += l.Thickness
	}
	return s
}

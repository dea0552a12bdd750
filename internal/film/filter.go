// Package film models optical filters: a substrate coated on both faces,
// the parameters an optimiser may change, and the spectra a design produces.
package film

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/thinfilm/internal/dispersion"
	"github.com/cwbudde/thinfilm/internal/grid"
)

// Side selects a face of the substrate.
type Side int

const (
	Front Side = iota
	Back
)

func (s Side) String() string {
	if s == Back {
		return "back"
	}
	return "front"
}

// Profile is a graded index region made of sublayers of a mixture. Index
// holds the real index of each sublayer at the centre wavelength.
type Profile struct {
	Thickness []float64
	Index     []float64
}

func (p *Profile) clone() *Profile {
	if p == nil {
		return nil
	}
	return &Profile{
		Thickness: append([]float64(nil), p.Thickness...),
		Index:     append([]float64(nil), p.Index...),
	}
}

func (p *Profile) total() float64 {
	sum := 0.0
	for _, d := range p.Thickness {
		sum += d
	}
	return sum
}

// Layer is one film of a coating. Index is the real index at the centre
// wavelength and is only meaningful for homogeneous mixture layers.
// A layer with a Profile is graded; its Thickness is the sum of the
// sublayer thicknesses.
type Layer struct {
	Material  *dispersion.Material
	Thickness float64
	Index     float64
	Profile   *Profile
}

// Graded reports whether the layer has a graded index profile.
func (l Layer) Graded() bool { return l.Profile != nil }

// sameAs reports whether two homogeneous layers can be merged.
func (l Layer) sameAs(o Layer) bool {
	if l.Graded() || o.Graded() || l.Material != o.Material {
		return false
	}
	return !l.Material.IsMixture() || l.Index == o.Index
}

func (l Layer) clone() Layer {
	l.Profile = l.Profile.clone()
	return l
}

// Filter is a substrate with coatings on its front and back faces. Front
// layers are ordered from the medium toward the substrate, back layers from
// the substrate toward the medium.
//
// A filter refuses to be changed or evaluated while a Session holds it.
type Filter struct {
	Medium             *dispersion.Material
	Substrate          *dispersion.Material
	CenterWavelength   float64
	SubstrateThickness float64 // nm, used when Backside is set
	Backside           bool    // add the incoherent back face reflection
	FrontAngle         float64
	BackAngle          float64

	// Wavelengths is the design range; graded layers are checked for
	// mixture monotonicity on it when they are added.
	Wavelengths *grid.Wavelengths

	front []Layer
	back  []Layer

	mu   sync.Mutex
	busy bool
}

// New returns an uncoated filter.
func New(medium, substrate *dispersion.Material, center float64) (*Filter, error) {
	if medium == nil || substrate == nil || medium.IsMixture() || substrate.IsMixture() {
		return nil, ErrMaterial
	}
	if !(center > 0) {
		return nil, fmt.Errorf("film: centre wavelength %g: %w", center, grid.ErrInvalid)
	}
	return &Filter{Medium: medium, Substrate: substrate, CenterWavelength: center}, nil
}

// Clone returns an independent copy of the filter that is not busy.
func (f *Filter) Clone() *Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &Filter{
		Medium:             f.Medium,
		Substrate:          f.Substrate,
		CenterWavelength:   f.CenterWavelength,
		SubstrateThickness: f.SubstrateThickness,
		Backside:           f.Backside,
		FrontAngle:         f.FrontAngle,
		BackAngle:          f.BackAngle,
		Wavelengths:        f.Wavelengths,
		front:              make([]Layer, len(f.front)),
		back:               make([]Layer, len(f.back)),
	}
	for i, l := range f.front {
		c.front[i] = l.clone()
	}
	for i, l := range f.back {
		c.back[i] = l.clone()
	}
	return c
}

// Incidence returns the angle of incidence of the face lit in direction
// dir: FrontAngle for Forward and BackAngle for Reverse.
func (f *Filter) Incidence(dir Direction) float64 {
	if dir == Reverse {
		return f.BackAngle
	}
	return f.FrontAngle
}

// Layers returns a copy of the layers of one side.
func (f *Filter) Layers(side Side) []Layer {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.side(side)
	out := make([]Layer, len(src))
	for i, l := range src {
		out[i] = l.clone()
	}
	return out
}

// Busy reports whether a session holds the filter.
func (f *Filter) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *Filter) side(s Side) []Layer {
	if s == Back {
		return f.back
	}
	return f.front
}

func (f *Filter) setSide(s Side, layers []Layer) {
	if s == Back {
		f.back = layers
	} else {
		f.front = layers
	}
}

// guard runs fn while holding the busy flag.
func (f *Filter) guard(fn func() error) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	f.busy = true
	f.mu.Unlock()
	defer f.release()
	return fn()
}

func (f *Filter) release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

// Session is exclusive access to a filter for an optimisation run.
type Session struct {
	f *Filter

	// ConstantOT keeps n·d at the centre wavelength fixed when an index
	// parameter changes.
	ConstantOT bool
}

// Begin marks the filter busy and returns a session on it. The session
// must be closed with End.
func (f *Filter) Begin() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return nil, ErrBusy
	}
	f.busy = true
	return &Session{f: f}, nil
}

// End releases the filter.
func (s *Session) End() { s.f.release() }

// Filter returns the filter the session holds.
func (s *Session) Filter() *Filter { return s.f }

// Layers returns a copy of the layers of one side.
func (s *Session) Layers(side Side) []Layer {
	src := s.f.side(side)
	out := make([]Layer, len(src))
	for i, l := range src {
		out[i] = l.clone()
	}
	return out
}

func validThickness(d float64) bool { return d >= 0 && !math.IsInf(d, 0) && !math.IsNaN(d) }

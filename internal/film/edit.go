package film

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/thinfilm/internal/dispersion"
	"github.com/cwbudde/thinfilm/internal/grid"
)

func (f *Filter) checkPos(side Side, pos int) error {
	if side != Front && side != Back {
		return fmt.Errorf("side %d: %w", side, ErrLayer)
	}
	if pos < 0 || pos >= len(f.side(side)) {
		return fmt.Errorf("%s layer %d of %d: %w", side, pos, len(f.side(side)), ErrLayer)
	}
	return nil
}

func (f *Filter) checkIndex(m *dispersion.Material, n float64) error {
	lo, hi := m.IndexRange(f.CenterWavelength)
	if n < lo || n > hi {
		return &dispersion.RangeError{Material: m.Name(), Value: n, Min: lo, Max: hi}
	}
	return nil
}

func (f *Filter) validate(l Layer) error {
	if l.Material == nil {
		return fmt.Errorf("film: layer without material: %w", ErrLayer)
	}
	if !validThickness(l.Thickness) {
		return fmt.Errorf("%s thickness %g: %w", l.Material.Name(), l.Thickness, ErrThickness)
	}
	if l.Profile == nil {
		if l.Material.IsMixture() {
			return f.checkIndex(l.Material, l.Index)
		}
		return nil
	}

	if !l.Material.IsMixture() {
		return fmt.Errorf("graded %s: %w", l.Material.Name(), ErrNotMixture)
	}
	p := l.Profile
	if len(p.Thickness) == 0 || len(p.Thickness) != len(p.Index) {
		return fmt.Errorf("graded %s has %d thicknesses and %d indices: %w",
			l.Material.Name(), len(p.Thickness), len(p.Index), ErrLayer)
	}
	for i, d := range p.Thickness {
		if !validThickness(d) {
			return fmt.Errorf("graded %s sublayer %d thickness %g: %w", l.Material.Name(), i, d, ErrThickness)
		}
		if err := f.checkIndex(l.Material, p.Index[i]); err != nil {
			return err
		}
	}
	w := f.Wavelengths
	if w == nil {
		w, _ = grid.Single(f.CenterWavelength)
	}
	return l.Material.CheckMonotonicity(w)
}

func (f *Filter) insert(side Side, pos int, l Layer) error {
	layers := f.side(side)
	if pos < 0 || pos > len(layers) {
		return fmt.Errorf("%s insert position %d of %d: %w", side, pos, len(layers), ErrLayer)
	}
	if l.Profile != nil {
		l.Profile = l.Profile.clone()
		l.Thickness = l.Profile.total()
	}
	if err := f.validate(l); err != nil {
		return err
	}
	layers = append(layers, Layer{})
	copy(layers[pos+1:], layers[pos:])
	layers[pos] = l
	f.setSide(side, layers)
	return nil
}

// AddLayer inserts l before position pos of a side; pos equal to the
// number of layers appends.
func (f *Filter) AddLayer(side Side, pos int, l Layer) error {
	return f.guard(func() error { return f.insert(side, pos, l) })
}

// AppendLayer adds l at the end of a side.
func (f *Filter) AppendLayer(side Side, l Layer) error {
	return f.guard(func() error { return f.insert(side, len(f.side(side)), l) })
}

func (f *Filter) remove(side Side, pos int) error {
	if err := f.checkPos(side, pos); err != nil {
		return err
	}
	layers := f.side(side)
	f.setSide(side, append(layers[:pos], layers[pos+1:]...))
	return nil
}

// RemoveLayer deletes a layer.
func (f *Filter) RemoveLayer(side Side, pos int) error {
	return f.guard(func() error { return f.remove(side, pos) })
}

func (f *Filter) setThickness(side Side, pos int, d float64) error {
	if err := f.checkPos(side, pos); err != nil {
		return err
	}
	if !validThickness(d) {
		return fmt.Errorf("thickness %g: %w", d, ErrThickness)
	}
	l := &f.side(side)[pos]
	if l.Profile != nil {
		total := l.Profile.total()
		for i := range l.Profile.Thickness {
			if total > 0 {
				l.Profile.Thickness[i] *= d / total
			} else {
				l.Profile.Thickness[i] = d / float64(len(l.Profile.Thickness))
			}
		}
	}
	l.Thickness = d
	return nil
}

// SetThickness changes the physical thickness of a layer. Graded layers
// are scaled proportionally.
func (f *Filter) SetThickness(side Side, pos int, d float64) error {
	return f.guard(func() error { return f.setThickness(side, pos, d) })
}

func (f *Filter) setIndex(side Side, pos int, n float64) error {
	if err := f.checkPos(side, pos); err != nil {
		return err
	}
	l := &f.side(side)[pos]
	if !l.Material.IsMixture() || l.Graded() {
		return fmt.Errorf("%s layer %d (%s): %w", side, pos, l.Material.Name(), ErrNotMixture)
	}
	if err := f.checkIndex(l.Material, n); err != nil {
		return err
	}
	l.Index = n
	return nil
}

// SetIndex changes the centre wavelength index of a homogeneous mixture layer.
func (f *Filter) SetIndex(side Side, pos int, n float64) error {
	return f.guard(func() error { return f.setIndex(side, pos, n) })
}

// SwapSides turns the substrate around: the back coating faces the medium.
func (f *Filter) SwapSides() error {
	return f.guard(func() error {
		front, back := f.front, f.back
		f.front = reversed(back)
		f.back = reversed(front)
		f.FrontAngle, f.BackAngle = f.BackAngle, f.FrontAngle
		return nil
	})
}

func reversed(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[len(out)-1-i] = l
	}
	return out
}

func (f *Filter) merge() int {
	merged := 0
	for _, side := range []Side{Front, Back} {
		layers := f.side(side)
		if len(layers) == 0 {
			continue
		}
		out := layers[:1]
		for _, l := range layers[1:] {
			last := &out[len(out)-1]
			if last.sameAs(l) {
				last.Thickness += l.Thickness
				merged++
				continue
			}
			out = append(out, l)
		}
		f.setSide(side, out)
	}
	return merged
}

// MergeLayers joins adjacent homogeneous layers of the same material and
// index. It returns the number of layers removed.
func (f *Filter) MergeLayers() (int, error) {
	var n int
	err := f.guard(func() error {
		n = f.merge()
		return nil
	})
	return n, err
}

func (f *Filter) removeThin(minThickness float64) int {
	removed := 0
	for _, side := range []Side{Front, Back} {
		var out []Layer
		for _, l := range f.side(side) {
			if l.Thickness < minThickness {
				removed++
				continue
			}
			out = append(out, l)
		}
		f.setSide(side, out)
	}
	return removed + f.merge()
}

// RemoveThinLayers deletes layers thinner than minThickness and merges the
// neighbours that become adjacent. It returns the number of layers removed.
func (f *Filter) RemoveThinLayers(minThickness float64) (int, error) {
	var n int
	err := f.guard(func() error {
		n = f.removeThin(minThickness)
		return nil
	})
	return n, err
}

func (f *Filter) convertToSteps(side Side, pos int, minThickness float64) (int, error) {
	if err := f.checkPos(side, pos); err != nil {
		return 0, err
	}
	layers := f.side(side)
	l := layers[pos]
	if !l.Graded() {
		return 1, nil
	}

	type group struct{ d, nd float64 }
	var groups []group
	cur := group{}
	for i, d := range l.Profile.Thickness {
		cur.d += d
		cur.nd += d * l.Profile.Index[i]
		if cur.d >= minThickness {
			groups = append(groups, cur)
			cur = group{}
		}
	}
	if cur.d > 0 {
		if len(groups) == 0 {
			groups = append(groups, cur)
		} else {
			last := &groups[len(groups)-1]
			last.d += cur.d
			last.nd += cur.nd
		}
	}

	steps := make([]Layer, 0, len(groups))
	for _, g := range groups {
		n := g.nd / g.d
		// Clamp rounding outside the mixture range.
		lo, hi := l.Material.IndexRange(f.CenterWavelength)
		n = math.Max(lo, math.Min(hi, n))
		steps = append(steps, Layer{Material: l.Material, Thickness: g.d, Index: n})
	}
	out := append([]Layer(nil), layers[:pos]...)
	out = append(out, steps...)
	out = append(out, layers[pos+1:]...)
	f.setSide(side, out)
	return len(steps), nil
}

// ConvertToSteps replaces a graded layer by homogeneous steps of at least
// minThickness each, every step taking the thickness weighted mean index of
// the sublayers it covers. It returns the number of steps.
func (f *Filter) ConvertToSteps(side Side, pos int, minThickness float64) (int, error) {
	var n int
	err := f.guard(func() error {
		var err error
		n, err = f.convertToSteps(side, pos, minThickness)
		return err
	})
	return n, err
}

// SetThickness changes a layer thickness within the session.
func (s *Session) SetThickness(side Side, pos int, d float64) error {
	return s.f.setThickness(side, pos, d)
}

// SetIndex changes a mixture layer index within the session.
func (s *Session) SetIndex(side Side, pos int, n float64) error {
	return s.f.setIndex(side, pos, n)
}

// RemoveThinLayers deletes layers thinner than minThickness within the session.
func (s *Session) RemoveThinLayers(minThickness float64) int { return s.f.removeThin(minThickness) }

// MergeLayers merges identical neighbours within the session.
func (s *Session) MergeLayers() int { return s.f.merge() }

// InsertNeedle splits layer pos at depth z (nm from the face nearer the
// start of the side) and inserts a layer of material m and thickness d.
// The needle displaces host material, so z is clamped to the host
// thickness less d; host pieces of zero thickness are dropped. index is
// used for mixture needles.
func (s *Session) InsertNeedle(side Side, pos int, z float64, m *dispersion.Material, index, d float64) error {
	f := s.f
	if err := f.checkPos(side, pos); err != nil {
		return err
	}
	host := f.side(side)[pos]
	if host.Graded() {
		return fmt.Errorf("needle in graded %s layer %d: %w", side, pos, ErrLayer)
	}
	z = math.Max(0, math.Min(host.Thickness-d, z))
	needle := Layer{Material: m, Thickness: d, Index: index}
	if err := f.validate(needle); err != nil {
		return err
	}

	a, b := host, host
	a.Thickness = z
	b.Thickness = math.Max(0, host.Thickness-z-d)
	var pieces []Layer
	if a.Thickness > 0 {
		pieces = append(pieces, a)
	}
	pieces = append(pieces, needle)
	if b.Thickness > 0 {
		pieces = append(pieces, b)
	}
	layers := f.side(side)
	out := append([]Layer(nil), layers[:pos]...)
	out = append(out, pieces...)
	out = append(out, layers[pos+1:]...)
	f.setSide(side, out)
	slog.Debug("Inserted needle", "side", side, "layer", pos, "depth", z, "material", m.Name(), "thickness", d)
	return nil
}

// InsertStep splits the homogeneous mixture layer pos at depth z into a
// part with index n − delta/2 and a part with index n + delta/2. Indices
// are clamped into the mixture range.
func (s *Session) InsertStep(side Side, pos int, z, delta float64) error {
	f := s.f
	if err := f.checkPos(side, pos); err != nil {
		return err
	}
	host := f.side(side)[pos]
	if !host.Material.IsMixture() || host.Graded() {
		return fmt.Errorf("step in %s layer %d (%s): %w", side, pos, host.Material.Name(), ErrNotMixture)
	}
	lo, hi := host.Material.IndexRange(f.CenterWavelength)
	clamp := func(n float64) float64 { return math.Max(lo, math.Min(hi, n)) }

	z = math.Max(0, math.Min(host.Thickness, z))
	a, b := host, host
	a.Thickness, a.Index = z, clamp(host.Index-delta/2)
	b.Thickness, b.Index = host.Thickness-z, clamp(host.Index+delta/2)
	var pieces []Layer
	for _, p := range []Layer{a, b} {
		if p.Thickness > 0 {
			pieces = append(pieces, p)
		}
	}
	layers := f.side(side)
	out := append([]Layer(nil), layers[:pos]...)
	out = append(out, pieces...)
	out = append(out, layers[pos+1:]...)
	f.setSide(side, out)
	slog.Debug("Inserted step", "side", side, "layer", pos, "depth", z, "delta", delta)
	return nil
}

// SetLayers replaces the layers of one side within the session.
func (s *Session) SetLayers(side Side, layers []Layer) error {
	f := s.f
	if side != Front && side != Back {
		return fmt.Errorf("side %d: %w", side, ErrLayer)
	}
	old := f.side(side)
	f.setSide(side, nil)
	for i, l := range layers {
		if err := f.insert(side, i, l.clone()); err != nil {
			f.setSide(side, old)
			return err
		}
	}
	return nil
}

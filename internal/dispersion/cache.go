package dispersion

import (
	"github.com/cwbudde/thinfilm/internal/grid"
	"github.com/cwbudde/thinfilm/internal/numeric"
)

// mixtureTable holds, per wavelength, the interpolants of Re N and Im N
// across the mixture rows.
type mixtureTable struct {
	re, im []*numeric.PCHIP
}

// maxCachedGrids bounds the per-material cache; the whole cache is dropped
// when it fills up.
const maxCachedGrids = 16

func (m *Material) table(w *grid.Wavelengths) *mixtureTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.cache[w.Key()]; ok && len(t.re) == w.Len() {
		return t
	}
	if len(m.cache) >= maxCachedGrids {
		m.cache = make(map[uint64]*mixtureTable)
	}

	rows := len(m.rows)
	x := make([]float64, rows)
	for j, r := range m.rows {
		x[j] = r.X
	}
	t := &mixtureTable{
		re: make([]*numeric.PCHIP, w.Len()),
		im: make([]*numeric.PCHIP, w.Len()),
	}
	re := make([]float64, rows)
	im := make([]float64, rows)
	for i := 0; i < w.Len(); i++ {
		nm := w.At(i)
		for j, r := range m.rows {
			v := r.Params.eval(nm)
			re[j], im[j] = real(v), imag(v)
		}
		// x is strictly increasing, checked by NewMixture.
		t.re[i], _ = numeric.NewPCHIP(x, re)
		t.im[i], _ = numeric.NewPCHIP(x, im)
	}
	m.cache[w.Key()] = t
	return t
}

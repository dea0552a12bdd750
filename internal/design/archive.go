package design

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/store"
)

// DisplayName is the document name, or "design" when unnamed.
func (d *Document) DisplayName() string {
	if d.Name == "" {
		return "design"
	}
	return d.Name
}

// Snapshot captures f after a run of d as a store snapshot with the
// written back document.
func (d *Document) Snapshot(id string, f *film.Filter, out Outcome) (*store.Snapshot, error) {
	s, err := f.Begin()
	if err != nil {
		return nil, err
	}
	params := s.Parameters(d.Optimization.Indices)
	values, err := s.Values(params)
	s.End()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.String()
	}

	var buf bytes.Buffer
	if err := Encode(&buf, FromFilter(d, f)); err != nil {
		return nil, fmt.Errorf("failed to encode design: %w", err)
	}
	snap := store.NewSnapshot(id, d.DisplayName(), out.Method, names, values, out.Chi2, out.InitialChi2, buf.String())
	snap.Status = out.Status
	snap.Iterations = out.Iterations
	snap.Inserted = out.Inserted
	return snap, nil
}

// Spectrum computes the quantity of a spectral target for archiving.
// Color targets have no spectrum and return nil.
func Spectrum(f *film.Filter, t film.Target) (*store.SpectrumArchive, error) {
	if t.Color != nil || t.Wavelengths == nil {
		return nil, nil
	}
	values, err := f.Spectrum(t.Quantity, t.Wavelengths, t.Options)
	if err != nil {
		return nil, err
	}
	return &store.SpectrumArchive{
		Kind:         t.Quantity.String(),
		Angle:        t.Angle,
		Polarization: t.Polarization,
		Reverse:      t.Direction == film.Reverse,
		Wavelengths:  t.Wavelengths.Values(),
		Values:       values,
		Timestamp:    time.Now(),
	}, nil
}

// Archive saves the snapshot of a run and the spectrum of its first
// spectral target under id.
func (d *Document) Archive(st store.Store, id string, f *film.Filter, targets []film.Target, out Outcome) (*store.Snapshot, error) {
	snap, err := d.Snapshot(id, f, out)
	if err != nil {
		return nil, err
	}
	if err := st.SaveDesign(id, snap); err != nil {
		return nil, err
	}
	for _, t := range targets {
		a, err := Spectrum(f, t)
		if err != nil {
			return snap, err
		}
		if a != nil {
			return snap, st.SaveSpectrum(id, a)
		}
	}
	return snap, nil
}

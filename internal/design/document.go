// Package design reads and writes YAML design documents: the materials,
// coating, targets and optimisation settings of one filter.
package design

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/thinfilm/internal/dispersion"
	"github.com/cwbudde/thinfilm/internal/film"
)

// ErrInvalid is returned for documents that cannot describe a filter.
var ErrInvalid = errors.New("design: invalid document")

// Document is the YAML form of a design.
type Document struct {
	Name               string  `yaml:"name"`
	CenterWavelength   float64 `yaml:"center_wavelength"`
	Medium             string  `yaml:"medium"`
	Substrate          string  `yaml:"substrate"`
	SubstrateThickness float64 `yaml:"substrate_thickness,omitempty"`
	Backside           bool    `yaml:"backside,omitempty"`
	Angle              float64 `yaml:"angle,omitempty"`
	BackAngle          float64 `yaml:"back_angle,omitempty"`

	// Wavelengths is the design range. Without it the range spans the
	// target wavelengths.
	Wavelengths *Range `yaml:"wavelengths,omitempty"`

	Materials    []Material   `yaml:"materials"`
	Front        []Layer      `yaml:"front,omitempty"`
	Back         []Layer      `yaml:"back,omitempty"`
	Targets      []Target     `yaml:"targets,omitempty"`
	Optimization Optimization `yaml:"optimization,omitempty"`

	baseDir   string
	materials map[string]*dispersion.Material
}

// Range is an evenly spaced wavelength range.
type Range struct {
	From   float64 `yaml:"from"`
	To     float64 `yaml:"to"`
	Points int     `yaml:"points"`
}

// Formula holds the parameters of every dispersion model; the model
// decides which are read.
type Formula struct {
	N  float64 `yaml:"n,omitempty"`
	K  float64 `yaml:"k,omitempty"`
	A  float64 `yaml:"a,omitempty"`
	B  float64 `yaml:"b,omitempty"`
	C  float64 `yaml:"c,omitempty"`
	B1 float64 `yaml:"b1,omitempty"`
	C1 float64 `yaml:"c1,omitempty"`
	B2 float64 `yaml:"b2,omitempty"`
	C2 float64 `yaml:"c2,omitempty"`
	B3 float64 `yaml:"b3,omitempty"`
	C3 float64 `yaml:"c3,omitempty"`

	// Urbach absorption tail.
	Ak       float64 `yaml:"ak,omitempty"`
	Exponent float64 `yaml:"exponent,omitempty"`
	Edge     float64 `yaml:"edge,omitempty"` // Å

	// CSV is a table file, relative to the document.
	CSV string `yaml:"csv,omitempty"`
}

// MixtureRow is the formula of a mixture at mixture number X.
type MixtureRow struct {
	X       float64 `yaml:"x"`
	Formula `yaml:",inline"`
}

// Material names a dispersion model. A material with Mixture rows is a
// mixture.
type Material struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	Formula `yaml:",inline"`
	Mixture []MixtureRow `yaml:"mixture,omitempty"`
}

// Layer is one film. Index applies to homogeneous mixture layers; a layer
// with a Profile is graded.
type Layer struct {
	Material  string   `yaml:"material"`
	Thickness float64  `yaml:"thickness,omitempty"`
	Index     float64  `yaml:"index,omitempty"`
	Profile   *Profile `yaml:"profile,omitempty"`
}

// Profile is the sublayer list of a graded layer.
type Profile struct {
	Thickness []float64 `yaml:"thickness,flow"`
	Index     []float64 `yaml:"index,flow"`
}

// Color selects colour target evaluation.
type Color struct {
	Observer   string `yaml:"observer,omitempty"`
	Illuminant string `yaml:"illuminant,omitempty"`
}

// Target is one set of desired values. Either Wavelengths or Range gives
// the points; a single value or tolerance applies to every point.
type Target struct {
	Kind string `yaml:"kind"`
	// Polarization in degrees; unset means 45 for energies and 90 (s)
	// for phase, group delay and GDD.
	Polarization *float64 `yaml:"polarization,omitempty"`
	// Angle in degrees; unset means the document angle of the lit face.
	Angle       *float64  `yaml:"angle,omitempty"`
	Reverse     bool      `yaml:"reverse,omitempty"`
	Wavelengths []float64 `yaml:"wavelengths,omitempty,flow"`
	Range       *Range    `yaml:"range,omitempty"`
	Values      []float64 `yaml:"values,flow"`
	Tolerances  []float64 `yaml:"tolerances,flow"`
	Inequality  string    `yaml:"inequality,omitempty"`
	Color       *Color    `yaml:"color,omitempty"`
}

// Fourier configures Fourier transform synthesis.
type Fourier struct {
	Material         string  `yaml:"material"`
	OpticalThickness float64 `yaml:"optical_thickness,omitempty"`
	Samples          int     `yaml:"samples,omitempty"`
	Index            float64 `yaml:"index,omitempty"`
	Target           int     `yaml:"target,omitempty"` // index into targets
}

// Optimization selects the method run by "thinfilm optimize" and by jobs.
type Optimization struct {
	Method          string   `yaml:"method,omitempty"` // refine, needle, step, fourier, global
	Solver          string   `yaml:"solver,omitempty"` // qr or normal
	MaxIterations   int      `yaml:"max_iterations,omitempty"`
	AcceptableChi2  float64  `yaml:"acceptable_chi2,omitempty"`
	Indices         bool     `yaml:"indices,omitempty"`
	ConstantOT      bool     `yaml:"constant_ot,omitempty"`
	NeedleMaterials []string `yaml:"needle_materials,omitempty,flow"`
	NeedleThickness float64  `yaml:"needle_thickness,omitempty"`
	Spacing         float64  `yaml:"spacing,omitempty"`
	MaxInsertions   int      `yaml:"max_insertions,omitempty"`
	MaxLayers       int      `yaml:"max_layers,omitempty"`
	MinThickness    float64  `yaml:"min_thickness,omitempty"`
	StepDelta       float64  `yaml:"step_delta,omitempty"`
	Seed            int64    `yaml:"seed,omitempty"`
	MaxThickness    float64  `yaml:"max_thickness,omitempty"`
	SearchIters     int      `yaml:"search_iterations,omitempty"`
	Population      int      `yaml:"population,omitempty"`
	Fourier         *Fourier `yaml:"fourier,omitempty"`
}

// Load reads a design file. Table paths resolve against its directory.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open design: %w", err)
	}
	defer f.Close()
	return Decode(f, filepath.Dir(path))
}

// Decode reads a design from r, resolving table paths against baseDir.
// Unknown keys are rejected.
func Decode(r io.Reader, baseDir string) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode design: %w", err)
	}
	doc.baseDir = baseDir
	return &doc, nil
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode design: %w", err)
	}
	return enc.Close()
}

// Save writes doc to path.
func Save(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create design: %w", err)
	}
	if err := Encode(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FromFilter returns a copy of doc whose coating and substrate settings
// are taken from f. Layer materials are written by name.
func FromFilter(doc *Document, f *film.Filter) *Document {
	out := *doc
	out.SubstrateThickness = f.SubstrateThickness
	out.Backside = f.Backside
	out.Angle = f.FrontAngle
	out.BackAngle = f.BackAngle
	out.Front = layersOf(f.Layers(film.Front))
	out.Back = layersOf(f.Layers(film.Back))
	return &out
}

func layersOf(layers []film.Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = Layer{Material: l.Material.Name(), Thickness: l.Thickness}
		if l.Material.IsMixture() {
			out[i].Index = l.Index
		}
		if l.Graded() {
			out[i].Thickness = 0
			out[i].Index = 0
			out[i].Profile = &Profile{
				Thickness: append([]float64(nil), l.Profile.Thickness...),
				Index:     append([]float64(nil), l.Profile.Index...),
			}
		}
	}
	return out
}

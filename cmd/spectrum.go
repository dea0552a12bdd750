package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/thinfilm/internal/color"
	"github.com/cwbudde/thinfilm/internal/design"
	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/grid"
)

var (
	specKind         string
	specFrom         float64
	specTo           float64
	specPoints       int
	specAngle        float64
	specPolarization float64
	specReverse      bool
	specWavelength   float64
	specStep         float64
	specQuantity     string
	specObserver     string
	specIlluminant   string
	specPlot         string
	specCSV          string
)

var spectrumCmd = &cobra.Command{
	Use:   "spectrum <design.yaml>",
	Short: "Compute a spectrum of a design",
	Long: `Computes a spectral quantity of the filter of a design document.

Kinds over the wavelength range: R, T, A, phase, phaseT, GD, GDT, GDD, GDDT,
psi and delta (ellipsometry). At a single wavelength: field (|E|² against
depth), admittance and circle (loci against depth) and monitoring (signal
against deposited thickness). color prints the colour of R and T.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpectrum,
}

func init() {
	f := spectrumCmd.Flags()
	f.StringVar(&specKind, "kind", "R", "Quantity to compute")
	f.Float64Var(&specFrom, "from", 0, "First wavelength in nm (default: design range or 400)")
	f.Float64Var(&specTo, "to", 0, "Last wavelength in nm (default: design range or 800)")
	f.IntVar(&specPoints, "points", 0, "Number of wavelengths (default: design range or 201)")
	f.Float64Var(&specAngle, "angle", 0, "Angle of incidence in degrees (default: design angle of the lit face)")
	f.Float64Var(&specPolarization, "polarization", 45, "Polarization angle in degrees, 90 is s and 0 is p (default 90 for phase type kinds)")
	f.BoolVar(&specReverse, "reverse", false, "Light incident from the substrate side")
	f.Float64Var(&specWavelength, "wavelength", 0, "Wavelength of single wavelength kinds (default: centre wavelength)")
	f.Float64Var(&specStep, "step", 1, "Depth step in nm of field, loci and monitoring")
	f.StringVar(&specQuantity, "quantity", "T", "Quantity monitored by the monitoring kind")
	f.StringVar(&specObserver, "observer", "CIE1931", "Colour observer")
	f.StringVar(&specIlluminant, "illuminant", "D65", "Colour illuminant (D65, A, E)")
	f.StringVar(&specPlot, "plot", "", "Write a PNG plot to this file")
	f.StringVar(&specCSV, "csv", "", "Write the table as CSV to this file")
	rootCmd.AddCommand(spectrumCmd)
}

// table is a set of named columns over a shared abscissa.
type table struct {
	xName string
	x     []float64
	names []string
	cols  [][]float64
}

func (t *table) add(name string, col []float64) {
	t.names = append(t.names, name)
	t.cols = append(t.cols, col)
}

func (t *table) frame() dataframe.DataFrame {
	s := []series.Series{series.New(t.x, series.Float, t.xName)}
	for i, name := range t.names {
		s = append(s, series.New(t.cols[i], series.Float, name))
	}
	return dataframe.New(s...)
}

func (t *table) writeCSV(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	if err := t.frame().WriteCSV(out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return out.Close()
}

func (t *table) print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", t.xName, strings.Join(t.names, "\t"))
	for i, x := range t.x {
		fmt.Fprintf(tw, "%.4f", x)
		for _, col := range t.cols {
			fmt.Fprintf(tw, "\t%.6g", col[i])
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

// savePlot draws every column against the abscissa, or the second column
// against the first for loci.
func (t *table) savePlot(path, title string, locus bool) error {
	p := plot.New()
	p.Title.Text = title
	var lines []any
	if locus {
		p.X.Label.Text = t.names[0]
		p.Y.Label.Text = t.names[1]
		xy := make(plotter.XYs, len(t.x))
		for i := range xy {
			xy[i].X, xy[i].Y = t.cols[0][i], t.cols[1][i]
		}
		lines = append(lines, title, xy)
	} else {
		p.X.Label.Text = t.xName
		for k, name := range t.names {
			xy := make(plotter.XYs, len(t.x))
			for i := range xy {
				xy[i].X, xy[i].Y = t.x[i], t.cols[k][i]
			}
			lines = append(lines, name, xy)
		}
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("failed to add lines: %w", err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// wavelengths resolves the range flags against the design range.
func wavelengths(doc *design.Document) (*grid.Wavelengths, error) {
	from, to, points := 400.0, 800.0, 201
	if r := doc.Wavelengths; r != nil {
		from, to, points = r.From, r.To, r.Points
	}
	if specFrom > 0 {
		from = specFrom
	}
	if specTo > 0 {
		to = specTo
	}
	if specPoints > 0 {
		points = specPoints
	}
	return grid.Linear(from, to, points)
}

// options reads the illumination flags. An unset --angle takes the angle
// the design gives for the lit face.
func options(cmd *cobra.Command, f *film.Filter, phaseType bool) film.Options {
	opts := film.Options{Angle: specAngle, Polarization: specPolarization}
	if phaseType && !cmd.Flags().Changed("polarization") {
		opts.Polarization = 90
	}
	if specReverse {
		opts.Direction = film.Reverse
	}
	if !cmd.Flags().Changed("angle") {
		opts.Angle = f.Incidence(opts.Direction)
	}
	return opts
}

func complexTable(depth []float64, values [][]complex128) *table {
	t := &table{xName: "depth", x: depth}
	re := make([]float64, len(depth))
	im := make([]float64, len(depth))
	for i, row := range values {
		re[i], im[i] = real(row[0]), imag(row[0])
	}
	t.add("re", re)
	t.add("im", im)
	return t
}

// compute evaluates the kind of the spectrum command on f.
func compute(cmd *cobra.Command, doc *design.Document, f *film.Filter) (*table, bool, error) {
	kind := strings.ToLower(specKind)
	single := func() (*grid.Wavelengths, float64, error) {
		nm := specWavelength
		if nm <= 0 {
			nm = f.CenterWavelength
		}
		w, err := grid.Single(nm)
		return w, nm, err
	}

	switch kind {
	case "psi", "delta":
		w, err := wavelengths(doc)
		if err != nil {
			return nil, false, err
		}
		psi, delta, err := f.Ellipsometry(w, options(cmd, f, false))
		if err != nil {
			return nil, false, err
		}
		t := &table{xName: "wavelength", x: w.Values()}
		t.add("psi", psi)
		t.add("delta", delta)
		return t, false, nil

	case "field":
		w, _, err := single()
		if err != nil {
			return nil, false, err
		}
		prof, err := f.ElectricField(w, options(cmd, f, true), specStep)
		if err != nil {
			return nil, false, err
		}
		t := &table{xName: "depth", x: prof.Depth}
		e2 := make([]float64, len(prof.Depth))
		for i, row := range prof.Values {
			e2[i] = row[0]
		}
		t.add("E2", e2)
		return t, false, nil

	case "admittance", "circle":
		w, _, err := single()
		if err != nil {
			return nil, false, err
		}
		locus := f.AdmittanceLocus
		if kind == "circle" {
			locus = f.CircleLocus
		}
		prof, err := locus(w, options(cmd, f, true), specStep)
		if err != nil {
			return nil, false, err
		}
		return complexTable(prof.Depth, prof.Values), true, nil

	case "monitoring":
		_, nm, err := single()
		if err != nil {
			return nil, false, err
		}
		q, err := film.ParseQuantity(specQuantity)
		if err != nil {
			return nil, false, err
		}
		m, err := f.Monitoring(cmd.Context(), q, nm, options(cmd, f, !q.Energy()), specStep, nil)
		if err != nil {
			return nil, false, err
		}
		t := &table{xName: "thickness", x: m.Thickness}
		t.add(q.String(), m.Signal)
		layer := make([]float64, len(m.Layer))
		for i, l := range m.Layer {
			layer[i] = float64(l)
		}
		t.add("layer", layer)
		return t, false, nil
	}

	q, err := film.ParseQuantity(specKind)
	if err != nil {
		return nil, false, err
	}
	w, err := wavelengths(doc)
	if err != nil {
		return nil, false, err
	}
	values, err := f.Spectrum(q, w, options(cmd, f, !q.Energy()))
	if err != nil {
		return nil, false, err
	}
	t := &table{xName: "wavelength", x: w.Values()}
	t.add(q.String(), values)
	return t, false, nil
}

func printColor(cmd *cobra.Command, f *film.Filter) error {
	obs, err := color.ObserverByName(specObserver)
	if err != nil {
		return err
	}
	ill, err := color.IlluminantByName(specIlluminant)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUANTITY\tX\tY\tZ\tx\ty\tL*\ta*\tb*")
	for _, q := range []film.Quantity{film.Reflectance, film.Transmittance} {
		c, err := f.Color(q, options(cmd, f, false), obs, ill)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.4f\t%.4f\t%.2f\t%.2f\t%.2f\n",
			q, c.XYZ.X, c.XYZ.Y, c.XYZ.Z, c.X, c.Y, c.L, c.A, c.B)
	}
	return tw.Flush()
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	doc, err := design.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load design: %w", err)
	}
	f, _, err := doc.Build()
	if err != nil {
		return fmt.Errorf("failed to build design: %w", err)
	}
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}

	if strings.EqualFold(specKind, "color") {
		return printColor(cmd, f)
	}

	t, isLocus, err := compute(cmd, doc, f)
	if err != nil {
		return err
	}
	if specCSV != "" {
		if err := t.writeCSV(specCSV); err != nil {
			return err
		}
	}
	if specPlot != "" {
		if err := t.savePlot(specPlot, doc.DisplayName()+" "+specKind, isLocus); err != nil {
			return err
		}
	}
	if specCSV == "" && specPlot == "" {
		t.print(cmd.OutOrStdout())
	}
	return nil
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
)

func readCSV(t *testing.T, path string) dataframe.DataFrame {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	df := dataframe.ReadCSV(f)
	if df.Err != nil {
		t.Fatal(df.Err)
	}
	return df
}

func TestSpectrumCSV(t *testing.T) {
	path := writeDesign(t, quarterWave)
	csv := filepath.Join(t.TempDir(), "r.csv")

	if _, err := execute(t, "spectrum", path, "--kind", "R", "--csv", csv); err != nil {
		t.Fatal(err)
	}
	df := readCSV(t, csv)
	if df.Nrow() != 31 {
		t.Fatalf("Expected the 31 design wavelengths, got %d", df.Nrow())
	}
	if names := df.Names(); len(names) != 2 || names[0] != "wavelength" || names[1] != "R" {
		t.Errorf("Unexpected columns %v", names)
	}
	for _, r := range df.Col("R").Float() {
		// Bare glass reflects about 4.3 %, the MgF2 layer reflects less.
		if r < 0 || r > 0.045 {
			t.Errorf("Reflectance out of range: %g", r)
		}
	}
}

func TestSpectrumRangeFlagsAndPlot(t *testing.T) {
	path := writeDesign(t, quarterWave)
	dir := t.TempDir()
	csv := filepath.Join(dir, "phase.csv")
	png := filepath.Join(dir, "phase.png")

	_, err := execute(t, "spectrum", path, "--kind", "phase", "--from", "500", "--to", "600", "--points", "5", "--csv", csv, "--plot", png)
	if err != nil {
		t.Fatal(err)
	}
	df := readCSV(t, csv)
	if df.Nrow() != 5 {
		t.Errorf("Expected 5 rows, got %d", df.Nrow())
	}
	if info, err := os.Stat(png); err != nil || info.Size() == 0 {
		t.Errorf("Plot should be written: %v", err)
	}
}

func TestSpectrumAngleDefaultsToDesign(t *testing.T) {
	tilted := writeDesign(t, strings.Replace(quarterWave, "center_wavelength: 550\n", "center_wavelength: 550\nangle: 60\n", 1))
	plain := writeDesign(t, quarterWave)
	dir := t.TempDir()
	run := func(name string, args ...string) []float64 {
		csv := filepath.Join(dir, name+".csv")
		if _, err := execute(t, append(append([]string{"spectrum"}, args...), "--csv", csv)...); err != nil {
			t.Fatal(err)
		}
		return readCSV(t, csv).Col("R").Float()
	}
	fromDesign := run("design", tilted)
	fromFlag := run("flag", plain, "--angle", "60")
	normal := run("normal", tilted, "--angle", "0")
	for i := range fromDesign {
		if fromDesign[i] != fromFlag[i] {
			t.Fatalf("Wavelength %d: design angle gives %g, --angle 60 gives %g", i, fromDesign[i], fromFlag[i])
		}
	}
	if fromDesign[0] == normal[0] {
		t.Error("An explicit --angle should override the design angle")
	}
}

func TestSpectrumTablesOfOtherKinds(t *testing.T) {
	path := writeDesign(t, quarterWave)
	tests := []struct {
		kind    string
		columns []string
	}{
		{"delta", []string{"wavelength", "psi", "delta"}},
		{"field", []string{"depth", "E2"}},
		{"admittance", []string{"depth", "re", "im"}},
		{"circle", []string{"depth", "re", "im"}},
		{"monitoring", []string{"thickness", "T", "layer"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			args := []string{"spectrum", path, "--kind", tt.kind, "--step", "10"}
			if tt.kind == "delta" {
				args = append(args, "--angle", "60")
			}
			out, err := execute(t, args...)
			if err != nil {
				t.Fatal(err)
			}
			header := strings.Fields(strings.SplitN(out, "\n", 2)[0])
			if strings.Join(header, ",") != strings.Join(tt.columns, ",") {
				t.Errorf("Expected columns %v, got %v", tt.columns, header)
			}
		})
	}
}

func TestSpectrumColor(t *testing.T) {
	path := writeDesign(t, quarterWave)
	out, err := execute(t, "spectrum", path, "--kind", "color")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "R") || !strings.HasPrefix(lines[2], "T") {
		t.Errorf("Unexpected colour table:\n%s", out)
	}
}

func TestSpectrumErrors(t *testing.T) {
	path := writeDesign(t, quarterWave)
	if _, err := execute(t, "spectrum", path, "--kind", "X"); err == nil {
		t.Error("Unknown kind should fail")
	}
	if _, err := execute(t, "spectrum", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Missing design should fail")
	}
	if _, err := execute(t, "spectrum", path, "--kind", "color", "--illuminant", "F2"); err == nil {
		t.Error("Unknown illuminant should fail")
	}
}

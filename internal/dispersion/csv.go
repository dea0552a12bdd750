package dispersion

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ReadTable reads a table model from CSV with a header row naming the
// columns wavelength (nm), n and optionally k.
func ReadTable(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(','),
		dataframe.HasHeader(true))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse table: %w", df.Err)
	}
	names := df.Names()
	for _, col := range []string{"wavelength", "n"} {
		if !slices.Contains(names, col) {
			return nil, fmt.Errorf("table has no %q column: %w", col, ErrInvalid)
		}
	}
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("table has no rows: %w", ErrInvalid)
	}

	df = df.Arrange(dataframe.Sort("wavelength"))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to sort table: %w", df.Err)
	}
	wl := df.Col("wavelength").Float()
	n := df.Col("n").Float()
	k := make([]float64, len(wl))
	if slices.Contains(names, "k") {
		k = df.Col("k").Float()
	}
	return NewTable(wl, n, k)
}

// LoadTable reads a CSV table file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}

// WriteTable writes the table in the format ReadTable accepts.
func WriteTable(w io.Writer, t *Table) error {
	wl, n, k := t.Points()
	df := dataframe.New(
		series.New(wl, series.Float, "wavelength"),
		series.New(n, series.Float, "n"),
		series.New(k, series.Float, "k"),
	)
	if df.Err != nil {
		return fmt.Errorf("failed to build table: %w", df.Err)
	}
	return df.WriteCSV(w)
}

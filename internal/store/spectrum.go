package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// SpectrumArchive is a computed spectrum kept with a snapshot.
type SpectrumArchive struct {
	Kind         string    `json:"kind"` // quantity name, e.g. R or GDR
	Angle        float64   `json:"angle"`
	Polarization float64   `json:"polarization"`
	Reverse      bool      `json:"reverse,omitempty"`
	Wavelengths  []float64 `json:"wavelengths"`
	Values       []float64 `json:"values"`
	Timestamp    time.Time `json:"timestamp"`
}

// Encoders and decoders are reused; EncodeAll and DecodeAll keep no state
// between calls.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return enc
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return dec
	},
}

func compress(data []byte) []byte {
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil)
}

func decompress(data []byte) ([]byte, error) {
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

func (fs *FSStore) spectrumPath(id string) string {
	return filepath.Join(designDir(fs.baseDir, id), "spectrum.json.zst")
}

// SaveSpectrum writes a zstd compressed JSON archive of a spectrum.
func (fs *FSStore) SaveSpectrum(id string, a *SpectrumArchive) error {
	if id == "" {
		return fmt.Errorf("design id cannot be empty")
	}
	if a == nil {
		return fmt.Errorf("spectrum cannot be nil")
	}
	if len(a.Wavelengths) != len(a.Values) {
		return &ValidationError{
			Field:  "Values",
			Reason: fmt.Sprintf("length mismatch: %d values for %d wavelengths", len(a.Values), len(a.Wavelengths)),
		}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to serialize spectrum: %w", err)
	}
	packed := compress(data)
	if err := writeAtomic(fs.spectrumPath(id), packed); err != nil {
		return err
	}
	slog.Debug("Spectrum saved", "id", id, "kind", a.Kind, "bytes", len(packed), "raw", len(data))
	return nil
}

// LoadSpectrum reads an archived spectrum.
func (fs *FSStore) LoadSpectrum(id string) (*SpectrumArchive, error) {
	if id == "" {
		return nil, fmt.Errorf("design id cannot be empty")
	}
	packed, err := os.ReadFile(fs.spectrumPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read spectrum: %w", err)
	}
	data, err := decompress(packed)
	if err != nil {
		return nil, err
	}
	var a SpectrumArchive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to deserialize spectrum: %w", err)
	}
	return &a, nil
}

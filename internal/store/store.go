// Package store persists optimised designs, their optimisation traces and
// archived spectra on the filesystem.
package store

// Store is the persistence of design snapshots. Implementations must be
// safe for concurrent use.
//
// Load and Delete of a missing snapshot return an error matching
// ErrNotFound; other failures are wrapped with context.
type Store interface {
	// SaveDesign atomically writes a snapshot, replacing an existing one
	// with the same id.
	SaveDesign(id string, s *Snapshot) error

	// LoadDesign reads a snapshot.
	LoadDesign(id string) (*Snapshot, error)

	// ListDesigns returns the metadata of every readable snapshot.
	ListDesigns() ([]SnapshotInfo, error)

	// DeleteDesign removes a snapshot with its trace and spectra.
	DeleteDesign(id string) error

	// SaveSpectrum archives a computed spectrum next to a snapshot.
	SaveSpectrum(id string, a *SpectrumArchive) error

	// LoadSpectrum reads an archived spectrum.
	LoadSpectrum(id string) (*SpectrumArchive, error)
}

// ErrNotFound matches every NotFoundError with errors.Is.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a missing snapshot or artifact.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "design not found: " + e.ID
	}
	return "design not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

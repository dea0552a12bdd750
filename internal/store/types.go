package store

import (
	"fmt"
	"math"
	"time"
)

// Snapshot is an optimised design saved after a run.
//
// The snapshot keeps the design document as written back after the run
// together with the parameter vector the optimiser ended on, so a later
// run can start from it or compare against it. It does not keep optimiser
// internals such as the damping parameter; a refinement started from a
// snapshot starts with fresh settings.
type Snapshot struct {
	// ID identifies the snapshot, usually the job ID of the run
	ID string `json:"id"`

	// Design is the name of the design document
	Design string `json:"design"`

	// Method is the optimisation method (refine, needle, step, fourier, global)
	Method string `json:"method"`

	// Status is the terminal status or stop reason of the run
	Status string `json:"status"`

	// Params are the film parameters at the end of the run, named by ParamNames
	Params     []float64 `json:"params"`
	ParamNames []string  `json:"paramNames"`

	// Chi2 is the merit at the end of the run, InitialChi2 at its start
	Chi2        float64 `json:"chi2"`
	InitialChi2 float64 `json:"initialChi2"`

	// Iterations of the last refinement and layers inserted by synthesis
	Iterations int `json:"iterations"`
	Inserted   int `json:"inserted,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Document is the YAML design with the optimised coating
	Document string `json:"document"`
}

// SnapshotInfo is the metadata of a snapshot without parameters or the
// document.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Design    string    `json:"design"`
	Method    string    `json:"method"`
	Chi2      float64   `json:"chi2"`
	Params    int       `json:"params"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshot creates a snapshot stamped with the current time.
func NewSnapshot(id, design, method string, names []string, params []float64, chi2, initial float64, document string) *Snapshot {
	return &Snapshot{
		ID:          id,
		Design:      design,
		Method:      method,
		Params:      params,
		ParamNames:  names,
		Chi2:        chi2,
		InitialChi2: initial,
		Timestamp:   time.Now(),
		Document:    document,
	}
}

// ToInfo returns the metadata of the snapshot.
func (s *Snapshot) ToInfo() SnapshotInfo {
	return SnapshotInfo{
		ID:        s.ID,
		Design:    s.Design,
		Method:    s.Method,
		Chi2:      s.Chi2,
		Params:    len(s.Params),
		Timestamp: s.Timestamp,
	}
}

func validMerit(v float64) bool { return v >= 0 && !math.IsInf(v, 0) }

// Validate checks that the snapshot can be stored and reused.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if s.Design == "" {
		return &ValidationError{Field: "Design", Reason: "cannot be empty"}
	}
	if s.Method == "" {
		return &ValidationError{Field: "Method", Reason: "cannot be empty"}
	}
	if len(s.Params) != len(s.ParamNames) {
		return &ValidationError{
			Field:  "Params",
			Reason: fmt.Sprintf("length mismatch: %d values for %d names", len(s.Params), len(s.ParamNames)),
		}
	}
	for i, v := range s.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "Params", Reason: fmt.Sprintf("value %d is not finite", i)}
		}
	}
	if !validMerit(s.Chi2) {
		return &ValidationError{Field: "Chi2", Reason: "must be finite and non-negative"}
	}
	if !validMerit(s.InitialChi2) {
		return &ValidationError{Field: "InitialChi2", Reason: "must be finite and non-negative"}
	}
	if s.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if s.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if s.Document == "" {
		return &ValidationError{Field: "Document", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError is a snapshot field that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible reports whether the snapshot can seed a run of the named
// design over params parameters.
func (s *Snapshot) IsCompatible(design string, params int) error {
	if s.Design != design {
		return &CompatibilityError{Field: "Design", Expected: s.Design, Actual: design}
	}
	if len(s.Params) != params {
		return &CompatibilityError{
			Field:    "Params",
			Expected: fmt.Sprintf("%d", len(s.Params)),
			Actual:   fmt.Sprintf("%d", params),
		}
	}
	return nil
}

// CompatibilityError is a mismatch between a snapshot and a design.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

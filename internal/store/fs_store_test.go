package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, dir
}

func TestNewFSStore_CreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != dir {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("base directory was not created: %v", err)
	}
}

func TestSaveAndLoadDesign(t *testing.T) {
	store, dir := setupTestStore(t)
	want := testSnapshot("job-1")
	if err := store.SaveDesign("job-1", want); err != nil {
		t.Fatalf("SaveDesign failed: %v", err)
	}

	path := filepath.Join(dir, "designs", "job-1", "design.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("design.json not written: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	got, err := store.LoadDesign("job-1")
	if err != nil {
		t.Fatalf("LoadDesign failed: %v", err)
	}
	if got.Design != want.Design || got.Method != want.Method || got.Status != want.Status {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if len(got.Params) != 2 || got.Params[0] != 55.2 || got.ParamNames[1] != "front[1].thickness" {
		t.Errorf("params mismatch: %v %v", got.Params, got.ParamNames)
	}
	if got.Chi2 != want.Chi2 || got.Iterations != want.Iterations || got.Document != want.Document {
		t.Errorf("result mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", got.Timestamp, want.Timestamp)
	}
}

func TestSaveDesign_Overwrites(t *testing.T) {
	store, _ := setupTestStore(t)
	s := testSnapshot("job-1")
	if err := store.SaveDesign("job-1", s); err != nil {
		t.Fatal(err)
	}
	s.Chi2 = 0.01
	if err := store.SaveDesign("job-1", s); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadDesign("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Chi2 != 0.01 {
		t.Errorf("Chi2 = %g after overwrite", got.Chi2)
	}
}

func TestSaveDesign_Rejects(t *testing.T) {
	store, _ := setupTestStore(t)
	if err := store.SaveDesign("", testSnapshot("x")); err == nil {
		t.Error("empty id accepted")
	}
	if err := store.SaveDesign("x", nil); err == nil {
		t.Error("nil snapshot accepted")
	}
	bad := testSnapshot("x")
	bad.Document = ""
	var verr *ValidationError
	if err := store.SaveDesign("x", bad); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestLoadDesign_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	_, err := store.LoadDesign("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteDesign("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestLoadDesign_Corrupted(t *testing.T) {
	store, dir := setupTestStore(t)
	path := filepath.Join(dir, "designs", "bad", "design.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadDesign("bad"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a decode error, got %v", err)
	}

	// Listing skips the corrupted snapshot.
	if err := store.SaveDesign("good", testSnapshot("good")); err != nil {
		t.Fatal(err)
	}
	infos, err := store.ListDesigns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != "good" {
		t.Errorf("unexpected listing %+v", infos)
	}
}

func TestListDesigns(t *testing.T) {
	store, dir := setupTestStore(t)
	infos, err := store.ListDesigns()
	if err != nil || len(infos) != 0 {
		t.Fatalf("empty store listed %v, %v", infos, err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		s := testSnapshot(id)
		s.Timestamp = base.Add(time.Duration(i) * time.Hour)
		if err := store.SaveDesign(id, s); err != nil {
			t.Fatal(err)
		}
	}
	// Directories without a snapshot are ignored.
	if err := os.MkdirAll(filepath.Join(dir, "designs", "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	infos, err = store.ListDesigns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("listed %d designs, want 3", len(infos))
	}
	for i, want := range []string{"c", "b", "a"} {
		if infos[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, infos[i].ID, want)
		}
	}
}

func TestDeleteDesign_RemovesArtifacts(t *testing.T) {
	store, dir := setupTestStore(t)
	if err := store.SaveDesign("job-1", testSnapshot("job-1")); err != nil {
		t.Fatal(err)
	}
	tw, err := NewTraceWriter(dir, "job-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Iteration: 1, Chi2: 2}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSpectrum("job-1", &SpectrumArchive{Kind: "R", Wavelengths: []float64{500}, Values: []float64{0.04}}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteDesign("job-1"); err != nil {
		t.Fatalf("DeleteDesign failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "designs", "job-1")); !os.IsNotExist(err) {
		t.Error("design directory still exists")
	}
}

func TestConcurrentSaves(t *testing.T) {
	store, _ := setupTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := store.SaveDesign(id, testSnapshot(id)); err != nil {
				t.Errorf("save %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()
	infos, err := store.ListDesigns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 8 {
		t.Errorf("listed %d designs, want 8", len(infos))
	}
}

func TestSpectrumArchive(t *testing.T) {
	store, dir := setupTestStore(t)
	n := 2001
	a := &SpectrumArchive{Kind: "T", Angle: 45, Polarization: 90, Timestamp: time.Now().UTC()}
	for i := 0; i < n; i++ {
		a.Wavelengths = append(a.Wavelengths, 400+float64(i))
		a.Values = append(a.Values, 0.9)
	}
	if err := store.SaveSpectrum("job-1", a); err != nil {
		t.Fatalf("SaveSpectrum failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "designs", "job-1", "spectrum.json.zst"))
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	if info.Size() > int64(n*8) {
		t.Errorf("archive of %d bytes is not compressed", info.Size())
	}

	got, err := store.LoadSpectrum("job-1")
	if err != nil {
		t.Fatalf("LoadSpectrum failed: %v", err)
	}
	if got.Kind != "T" || got.Angle != 45 || len(got.Values) != n || got.Wavelengths[n-1] != a.Wavelengths[n-1] {
		t.Errorf("archive mismatch: kind %s angle %g %d values", got.Kind, got.Angle, len(got.Values))
	}

	if _, err := store.LoadSpectrum("other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var verr *ValidationError
	if err := store.SaveSpectrum("job-1", &SpectrumArchive{Wavelengths: []float64{1}}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestLoadSpectrum_Corrupted(t *testing.T) {
	store, dir := setupTestStore(t)
	path := filepath.Join(dir, "designs", "job-1", "spectrum.json.zst")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadSpectrum("job-1"); err == nil {
		t.Error("corrupted archive accepted")
	}
}

var _ Store = (*FSStore)(nil)

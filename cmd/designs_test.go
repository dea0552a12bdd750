package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/thinfilm/internal/store"
)

func infosAt(now time.Time, design string, days ...int) []store.SnapshotInfo {
	var infos []store.SnapshotInfo
	for i, d := range days {
		infos = append(infos, store.SnapshotInfo{
			ID:        design + string(rune('a'+i)),
			Design:    design,
			Timestamp: now.AddDate(0, 0, -d),
		})
	}
	return infos
}

func ids(infos []store.SnapshotInfo) map[string]bool {
	out := make(map[string]bool)
	for _, info := range infos {
		out[info.ID] = true
	}
	return out
}

func TestSelectDesignsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := infosAt(now, "ar", 10, 5, 1, 30)

	toDelete := selectDesignsForDeletion(infos, 0, 7, now)
	got := ids(toDelete)
	if len(got) != 2 || !got["ara"] || !got["ard"] {
		t.Errorf("Expected ara and ard, got %v", got)
	}
}

func TestSelectDesignsForDeletion_ByCountPerDesign(t *testing.T) {
	now := time.Now()
	infos := append(infosAt(now, "ar", 10, 5, 1, 30), infosAt(now, "hr", 3, 2)...)

	toDelete := selectDesignsForDeletion(infos, 2, 0, now)
	got := ids(toDelete)
	// ar keeps its two newest, hr has only two.
	if len(got) != 2 || !got["ara"] || !got["ard"] {
		t.Errorf("Expected ara and ard, got %v", got)
	}
}

func TestSelectDesignsForDeletion_CombinedWithoutDuplicates(t *testing.T) {
	now := time.Now()
	infos := infosAt(now, "ar", 10, 5, 1, 30, 2)

	toDelete := selectDesignsForDeletion(infos, 3, 7, now)
	if len(toDelete) != 2 {
		t.Errorf("Expected 2 designs to delete, got %d", len(toDelete))
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("Hello, World!")
	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}
	for _, tt := range tests {
		if result := formatBytes(tt.bytes); result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func saveSnapshot(t *testing.T, st *store.FSStore, id, design string, age time.Duration) {
	t.Helper()
	s := store.NewSnapshot(id, design, "refine", []string{"front[0].thickness"}, []float64{99.6}, 0.1, 1, "name: "+design+"\n")
	s.Timestamp = time.Now().Add(-age)
	if err := st.SaveDesign(id, s); err != nil {
		t.Fatalf("Failed to save design: %v", err)
	}
}

func withDataDir(t *testing.T, dir string) {
	t.Helper()
	original := designsDataDir
	designsDataDir = dir
	t.Cleanup(func() {
		designsDataDir = original
		keepLast, olderThanDays, designFilter, forceClean = 0, 0, "", false
	})
}

func TestDesignsList(t *testing.T) {
	tmpDir := t.TempDir()
	withDataDir(t, tmpDir)

	var out bytes.Buffer
	if err := listDesigns(&out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No designs found") {
		t.Errorf("Unexpected output: %s", out.String())
	}

	st, _ := store.NewFSStore(tmpDir)
	saveSnapshot(t, st, "run-1", "ar", 0)
	out.Reset()
	if err := listDesigns(&out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "run-1") || !strings.Contains(out.String(), "Total designs: 1") {
		t.Errorf("Unexpected output: %s", out.String())
	}
}

func TestDesignsClean_NoFlags(t *testing.T) {
	withDataDir(t, t.TempDir())
	if err := cleanDesigns(strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestDesignsClean_WithForce(t *testing.T) {
	tmpDir := t.TempDir()
	withDataDir(t, tmpDir)
	st, _ := store.NewFSStore(tmpDir)
	saveSnapshot(t, st, "old", "ar", 30*24*time.Hour)
	saveSnapshot(t, st, "new", "ar", 0)

	olderThanDays = 7
	forceClean = true
	if err := cleanDesigns(strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := st.LoadDesign("old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected old design to be deleted, got %v", err)
	}
	if _, err := st.LoadDesign("new"); err != nil {
		t.Errorf("New design should be kept: %v", err)
	}
}

func TestDesignsClean_Prompt(t *testing.T) {
	tmpDir := t.TempDir()
	withDataDir(t, tmpDir)
	st, _ := store.NewFSStore(tmpDir)
	saveSnapshot(t, st, "a", "ar", 2*time.Hour)
	saveSnapshot(t, st, "b", "ar", time.Hour)
	saveSnapshot(t, st, "c", "hr", 3*time.Hour)
	keepLast = 1

	var out bytes.Buffer
	if err := cleanDesigns(strings.NewReader("n\n"), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Aborted") {
		t.Errorf("Expected abort, got %s", out.String())
	}
	if _, err := st.LoadDesign("a"); err != nil {
		t.Error("Aborted clean should keep designs")
	}

	designFilter = "hr"
	out.Reset()
	if err := cleanDesigns(strings.NewReader("y\n"), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No designs match") {
		t.Errorf("Filtered design has one snapshot, got %s", out.String())
	}

	designFilter = ""
	if err := cleanDesigns(strings.NewReader("y\n"), &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.LoadDesign("a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Oldest ar snapshot should be deleted, got %v", err)
	}
	for _, id := range []string{"b", "c"} {
		if _, err := st.LoadDesign(id); err != nil {
			t.Errorf("%s should be kept: %v", id, err)
		}
	}
}

package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c := &Cache{}
	if _, ok := c.Get("anything", "fp"); ok {
		t.Fatal("disabled cache should never hit")
	}
	c.Set("anything", "fp", []float64{1, 2, 3})
	if _, ok := c.Get("anything", "fp"); ok {
		t.Fatal("disabled cache Set should be a no-op")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on disabled cache: %v", err)
	}
}

func TestFingerprintChangesWithMTimeAndMetadata(t *testing.T) {
	f1 := []FileStamp{{Name: "ndm.csv", ModTimeUnix: 1000}}
	f2 := []FileStamp{{Name: "ndm.csv", ModTimeUnix: 1001}}

	a := Fingerprint(f1, "2:2:[0 1 2]")
	b := Fingerprint(f2, "2:2:[0 1 2]")
	if a == b {
		t.Fatal("fingerprint should change when mtime changes")
	}

	c := Fingerprint(f1, "3:3:[0 1 2]")
	if a == c {
		t.Fatal("fingerprint should change when caller metadata changes")
	}
}

func TestStatReadsModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ndm.csv")
	if err := os.WriteFile(path, []byte("lon,lat\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fs, err := Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fs.Name != path {
		t.Errorf("Name = %q, want %q", fs.Name, path)
	}
	if fs.ModTimeUnix <= 0 {
		t.Errorf("ModTimeUnix = %d, want > 0", fs.ModTimeUnix)
	}
}

func TestStatMissingFile(t *testing.T) {
	if _, err := Stat(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

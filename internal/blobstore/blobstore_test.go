package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"orphan-sweep/internal/fsops"
	"orphan-sweep/internal/scan"
)

func TestNewRejectsRelativeRoot(t *testing.T) {
	if _, err := New("relative/blobs"); err == nil {
		t.Error("Expected error for relative root")
	}
}

// TestDeleteAreaFilesPath proves exactly the area directory is removed
func TestDeleteAreaFilesPath(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fake := &fsops.FakeDeleter{}
	s.SetDeleter(fake)

	if err := s.DeleteAreaFiles(100, scan.Component, "pages", 42); err != nil {
		t.Fatalf("DeleteAreaFiles failed: %v", err)
	}

	want := "rmall:" + filepath.Join(root, "100", scan.Component, "pages", "42")
	if len(fake.Calls) != 1 || fake.Calls[0] != want {
		t.Errorf("Expected single call %q, got %v", want, fake.Calls)
	}
}

// TestDeleteAreaFilesIdempotent verifies a tuple with no blobs on disk is a
// no-op so interrupted runs can be repeated
func TestDeleteAreaFilesIdempotent(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Real deleter against a tuple that was never written
	if err := s.DeleteAreaFiles(1, scan.Component, "download", 2); err != nil {
		t.Errorf("Expected no-op for missing area, got %v", err)
	}
}

// TestDeleteAreaFilesRemovesBlobs verifies real blobs are removed and
// sibling areas stay intact
func TestDeleteAreaFilesRemovesBlobs(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	target := s.AreaPath(100, scan.Component, "pages", 42)
	sibling := s.AreaPath(100, scan.Component, "combined", 42)
	for _, dir := range []string{target, sibling} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "blob.pdf"), []byte("pdf"), 0o644); err != nil {
			t.Fatalf("Failed to write blob: %v", err)
		}
	}

	if err := s.DeleteAreaFiles(100, scan.Component, "pages", 42); err != nil {
		t.Fatalf("DeleteAreaFiles failed: %v", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("Target area still exists")
	}
	if _, err := os.Stat(sibling); err != nil {
		t.Errorf("Sibling area was touched: %v", err)
	}

	// Second delete of the same tuple is a no-op
	if err := s.DeleteAreaFiles(100, scan.Component, "pages", 42); err != nil {
		t.Errorf("Repeated delete failed: %v", err)
	}
}

// TestConfinement proves values that resolve outside the root are refused
func TestConfinement(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fake := &fsops.FakeDeleter{}
	s.SetDeleter(fake)

	if err := s.DeleteAreaFiles(100, "../../outside", "pages", 42); err == nil {
		t.Error("Expected confinement error for escaping component")
	}
	if len(fake.Calls) != 0 {
		t.Errorf("Deleter called for unsafe path: %v", fake.Calls)
	}
}

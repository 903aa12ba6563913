package blobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"orphan-sweep/internal/fsops"
)

// Store removes blob data for one file area. Blobs live under
// root/<contextid>/<component>/<filearea>/<itemid>/.
type Store struct {
	root    string
	deleter fsops.Deleter
}

var errOutsideRoot = errors.New("area path escapes blob root")

// New creates a Store over the given root directory. The root must be
// absolute so the confinement check below has a fixed anchor.
func New(root string) (*Store, error) {
	cleaned := filepath.Clean(root)
	if !filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("blob root must be absolute: %s", root)
	}
	return &Store{root: cleaned, deleter: fsops.OSDeleter{}}, nil
}

// SetDeleter replaces the filesystem deleter. Tests use this to prove which
// paths would be removed without touching the disk.
func (s *Store) SetDeleter(d fsops.Deleter) {
	s.deleter = d
}

// AreaPath resolves the directory holding all blobs for one tuple.
func (s *Store) AreaPath(contextID int64, component, fileArea string, itemID int64) string {
	return filepath.Join(
		s.root,
		strconv.FormatInt(contextID, 10),
		component,
		fileArea,
		strconv.FormatInt(itemID, 10),
	)
}

// DeleteAreaFiles removes every blob stored for the (context, component,
// area, item) tuple. A tuple with no blobs on disk is a no-op, not an
// error, so interrupted fix runs can be repeated safely.
func (s *Store) DeleteAreaFiles(contextID int64, component, fileArea string, itemID int64) error {
	dir := s.AreaPath(contextID, component, fileArea, itemID)

	// Component and area names come from the database; refuse anything
	// that would resolve outside the blob root.
	if !withinRoot(dir, s.root) {
		return fmt.Errorf("%w: %s", errOutsideRoot, dir)
	}

	if err := s.deleter.RemoveAll(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete area files %s: %w", dir, err)
	}
	return nil
}

func withinRoot(path, root string) bool {
	cleaned := filepath.Clean(path)
	if cleaned == root {
		// Never delete the root itself
		return false
	}
	rel, err := filepath.Rel(root, cleaned)
	if err != nil {
		return false
	}
	if rel == "." {
		return false
	}
	return !startsWithDotDot(rel)
}

func startsWithDotDot(rel string) bool {
	if rel == ".." {
		return true
	}
	prefix := ".." + string(os.PathSeparator)
	return strings.HasPrefix(rel, prefix)
}

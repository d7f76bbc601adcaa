package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// archiveIndex remembers the content hashes of already-archived files so a
// re-dropped copy of an old export is skipped instead of re-imported.
type archiveIndex struct {
	hashes map[uint64]string // content hash -> archived file name
}

// newArchiveIndex hashes every file in the archive directory.
func newArchiveIndex(dir string) (*archiveIndex, error) {
	idx := &archiveIndex{hashes: map[uint64]string{}}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("scan archive %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := idx.Add(filepath.Join(dir, e.Name())); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Seen reports whether path's content matches an archived file.
func (i *archiveIndex) Seen(path string) (bool, error) {
	h, err := hashFile(path)
	if err != nil {
		return false, err
	}
	_, ok := i.hashes[h]
	return ok, nil
}

// Add records path's content hash.
func (i *archiveIndex) Add(path string) error {
	h, err := hashFile(path)
	if err != nil {
		return err
	}
	i.hashes[h] = filepath.Base(path)
	return nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Sum64(), nil
}

// archiveFile moves a fully processed file out of the inbox. Remove-then-
// move: an existing destination from an interrupted earlier attempt is
// deleted first so a retry cannot silently duplicate.
func archiveFile(src, destDir string) error {
	dest := filepath.Join(destDir, filepath.Base(src))
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("clear stale archive copy %s: %w", dest, err)
		}
	}
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("archive %s: %w", src, err)
	}
	return nil
}

package archiver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

var ErrNotDirectory = errors.New("source is not a directory")

const (
	dirPerm     = 0755
	filePerm    = 0644
	archivePerm = 0600
)

// sourceRoot resolves src to an absolute directory path.
func sourceRoot(src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, src)
	}
	return abs, nil
}

// createExclusive creates the archive file, refusing to replace one.
func createExclusive(dst string) (*os.File, error) {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, archivePerm)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	}
	return f, err
}

type walkFunc func(rel string, d fs.DirEntry, fullPath string) error

// walkSource visits src in lexical order, calling fn with slash-separated
// paths relative to src ("." for src itself). Symlinks and special files are
// skipped, as is skip (the archive being written, if it lies inside src).
func walkSource(src, skip string, fn walkFunc) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == skip {
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), d, p)
	})
}

// entryName joins an optional root prefix with a relative walk path.
func entryName(prefix, rel string) string {
	if rel == "." {
		return prefix
	}
	return path.Join(prefix, rel)
}

// finishArchive closes out and removes dst if anything failed.
func finishArchive(out *os.File, dst string, err error) (string, error) {
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", archiveError(dst, err)
	}
	return dst, nil
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes destination")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// PathValidator confines extraction to a destination directory using
// os.Root. Archive entry names are untrusted input, so every write goes
// through the root handle rather than a joined path.
type PathValidator struct {
	root     *os.Root
	rootPath string
}

// New opens a PathValidator on an existing directory.
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open destination root: %w", err)
	}

	return &PathValidator{
		root:     root,
		rootPath: absPath,
	}, nil
}

// Close releases the root handle.
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// Path returns the absolute path of the root directory.
func (pv *PathValidator) Path() string {
	return pv.rootPath
}

// Normalize validates an entry name lexically and returns it as a clean,
// slash-separated relative path. It rejects:
// - Empty paths
// - Absolute paths
// - Paths that escape the root (using ..)
// - Windows reserved names (CON, NUL, etc.)
func Normalize(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}

	platformPath := filepath.FromSlash(name)
	if !filepath.IsLocal(platformPath) {
		if filepath.IsAbs(platformPath) || strings.HasPrefix(name, "/") {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return filepath.ToSlash(filepath.Clean(platformPath)), nil
}

// ValidateAndNormalize applies Normalize and double-checks that the result
// stays under the root directory.
func (pv *PathValidator) ValidateAndNormalize(name string) (string, error) {
	clean, err := Normalize(name)
	if err != nil {
		return "", err
	}

	relPath, err := filepath.Rel(pv.rootPath, filepath.Join(pv.rootPath, filepath.FromSlash(clean)))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return filepath.ToSlash(relPath), nil
}

// MkdirAllInRoot creates a directory and its parents inside the root.
func (pv *PathValidator) MkdirAllInRoot(name string, perm os.FileMode) error {
	clean, err := pv.ValidateAndNormalize(name)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.MkdirAll(filepath.FromSlash(clean), perm)
}

// CreateInRoot creates a new file inside the root. It fails with
// fs.ErrExist if the file is already present.
func (pv *PathValidator) CreateInRoot(name string, perm os.FileMode) (*os.File, error) {
	clean, err := pv.ValidateAndNormalize(name)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.OpenFile(filepath.FromSlash(clean), os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
}

// WriteFileInRoot writes a new file inside the root, never overwriting.
func (pv *PathValidator) WriteFileInRoot(name string, data []byte, perm os.FileMode) error {
	f, err := pv.CreateInRoot(name, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExistsInRoot reports whether name is present inside the root.
// Symlinks are not followed.
func (pv *PathValidator) ExistsInRoot(name string) (bool, error) {
	clean, err := pv.ValidateAndNormalize(name)
	if err != nil {
		return false, fmt.Errorf("invalid path: %w", err)
	}
	_, err = pv.root.Lstat(filepath.FromSlash(clean))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

package archiver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/asyncdoggo/locker/internal/security"
)

// plan collects validated entry names during the first pass over an archive.
type plan struct {
	names []string
	dirs  map[string]bool
}

func newPlan() *plan {
	return &plan{dirs: make(map[string]bool)}
}

// add validates one entry. Unsafe names, duplicate files and file/dir
// clashes make the archive malformed.
func (p *plan) add(name string, dir bool) error {
	clean, err := security.Normalize(name)
	if err != nil {
		return malformed("entry %q: %v", name, err)
	}
	if clean == "." {
		if !dir {
			return malformed("file entry without a name")
		}
		return nil
	}
	if prevDir, ok := p.dirs[clean]; ok {
		if dir && prevDir {
			return nil
		}
		return malformed("duplicate entry %q", clean)
	}
	p.dirs[clean] = dir
	p.names = append(p.names, clean)
	return nil
}

// extraction writes entries under a destination folder and undoes its own
// writes if anything fails.
type extraction struct {
	dest    string
	pv      *security.PathValidator
	created bool
	tops    map[string]struct{}
}

// beginExtraction creates dest if needed and fails with ErrDestinationExists
// if any planned entry is already present. Nothing is written on failure.
func beginExtraction(dest string, p *plan) (*extraction, error) {
	_, err := os.Stat(dest)
	created := errors.Is(err, fs.ErrNotExist)
	if err != nil && !created {
		return nil, err
	}
	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return nil, err
	}

	pv, err := security.New(dest)
	if err != nil {
		if created {
			os.RemoveAll(dest)
		}
		return nil, err
	}

	x := &extraction{
		dest:    dest,
		pv:      pv,
		created: created,
		tops:    make(map[string]struct{}),
	}

	for _, name := range p.names {
		exists, err := pv.ExistsInRoot(name)
		if err == nil && exists {
			err = fmt.Errorf("%w: %s", ErrDestinationExists, filepath.Join(pv.Path(), filepath.FromSlash(name)))
		}
		if err != nil {
			x.finish(err)
			return nil, err
		}
	}

	return x, nil
}

func (x *extraction) track(clean string) {
	top, _, _ := strings.Cut(clean, "/")
	x.tops[top] = struct{}{}
}

func (x *extraction) mkdir(name string) error {
	clean, err := security.Normalize(name)
	if err != nil {
		return malformed("entry %q: %v", name, err)
	}
	if clean == "." {
		return nil
	}
	x.track(clean)
	return x.pv.MkdirAllInRoot(clean, dirPerm)
}

// prepare validates name, records it for rollback and creates its parent
// directories.
func (x *extraction) prepare(name string) (string, error) {
	clean, err := security.Normalize(name)
	if err != nil {
		return "", malformed("entry %q: %v", name, err)
	}
	x.track(clean)
	if dir := path.Dir(clean); dir != "." {
		if err := x.pv.MkdirAllInRoot(dir, dirPerm); err != nil {
			return "", err
		}
	}
	return clean, nil
}

func (x *extraction) create(name string) (*os.File, error) {
	clean, err := x.prepare(name)
	if err != nil {
		return nil, err
	}
	return x.pv.CreateInRoot(clean, filePerm)
}

func (x *extraction) writeFile(name string, data []byte) error {
	clean, err := x.prepare(name)
	if err != nil {
		return err
	}
	return x.pv.WriteFileInRoot(clean, data, filePerm)
}

// finish releases the root handle and, when err is non-nil, removes every
// top-level path this extraction created (or dest itself if it was new).
func (x *extraction) finish(err error) error {
	x.pv.Close()
	if err == nil {
		return nil
	}
	if x.created {
		os.RemoveAll(x.dest)
		return err
	}
	for top := range x.tops {
		os.RemoveAll(filepath.Join(x.dest, filepath.FromSlash(top)))
	}
	return err
}

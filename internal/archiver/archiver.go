package archiver

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies an archive container.
type Format string

const (
	FormatTar    Format = "tarfile"
	FormatShutil Format = "shutil"
	FormatZip    Format = "zipfile"
	FormatPickle Format = "pickle"
	FormatJSON   Format = "json"
)

var (
	ErrUnknownFormat     = errors.New("unknown archive format")
	ErrDestinationExists = errors.New("destination already exists")
	ErrMalformedArchive  = errors.New("malformed archive")
	ErrUnsupportedName   = errors.New("name cannot be stored in this format")
)

// Error describes a failed archive operation.
type Error struct {
	Op   string // "archive" or "unarchive"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Archiver converts a directory tree to one file and back.
type Archiver interface {
	// Format returns the container format this archiver writes.
	Format() Format
	// Archive writes src into dst and returns dst. An empty dst means
	// DefaultPath(src, Format()).
	Archive(src, dst string) (string, error)
	// Unarchive extracts archivePath under destFolder.
	Unarchive(archivePath, destFolder string) error
}

type formatInfo struct {
	format Format
	suffix string
	rooted bool
	build  func() Archiver
}

// Registry order is stable and is the order Formats reports.
var registry = []formatInfo{
	{FormatTar, ".tar", true, func() Archiver { return &TarArchiver{rooted: true} }},
	{FormatShutil, ".tar", false, func() Archiver { return &TarArchiver{rooted: false} }},
	{FormatZip, ".zip", false, func() Archiver { return &ZipArchiver{} }},
	{FormatPickle, ".archive", true, func() Archiver { return &TreeArchiver{codec: gobCodec{}} }},
	{FormatJSON, ".json", true, func() Archiver { return &TreeArchiver{codec: jsonCodec{}} }},
}

func lookup(f Format) (formatInfo, bool) {
	for _, info := range registry {
		if info.format == f {
			return info, true
		}
	}
	return formatInfo{}, false
}

// New returns the archiver registered under id.
func New(id string) (Archiver, error) {
	info, ok := lookup(Format(strings.ToLower(strings.TrimSpace(id))))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, id)
	}
	return info.build(), nil
}

// Formats lists every registered format.
func Formats() []Format {
	out := make([]Format, len(registry))
	for i, info := range registry {
		out[i] = info.format
	}
	return out
}

// Valid reports whether f is registered.
func (f Format) Valid() bool {
	_, ok := lookup(f)
	return ok
}

// Suffix returns the file extension archives of this format get.
func (f Format) Suffix() string {
	info, _ := lookup(f)
	return info.suffix
}

// Rooted reports whether extraction recreates the source folder by name
// under the destination (true) or writes its contents directly (false).
func (f Format) Rooted() bool {
	info, _ := lookup(f)
	return info.rooted
}

func (f Format) String() string {
	return string(f)
}

// DefaultPath derives the archive path for src.
func DefaultPath(src string, f Format) string {
	return filepath.Clean(src) + f.Suffix()
}

// DetectFormat guesses the format from a file name such as
// "photos.zip.enc" or "photos.json". Both tar formats share ".tar", which
// maps to tarfile.
func DetectFormat(name string) (Format, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".enc")
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return "", false
	}
	for _, info := range registry {
		if info.suffix == ext {
			return info.format, true
		}
	}
	return "", false
}

func archiveError(path string, err error) error {
	return &Error{Op: "archive", Path: path, Err: err}
}

func unarchiveError(path string, err error) error {
	return &Error{Op: "unarchive", Path: path, Err: err}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedArchive, fmt.Sprintf(format, args...))
}

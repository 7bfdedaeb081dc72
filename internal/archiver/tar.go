package archiver

import (
	"archive/tar"
	"bufio"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TarArchiver streams a tree into an uncompressed tar file. When rooted,
// every entry sits under the source folder's base name (tarfile); otherwise
// entries are relative to the source folder (shutil).
type TarArchiver struct {
	rooted bool
}

func (a *TarArchiver) Format() Format {
	if a.rooted {
		return FormatTar
	}
	return FormatShutil
}

func (a *TarArchiver) Archive(src, dst string) (string, error) {
	root, err := sourceRoot(src)
	if err != nil {
		return "", archiveError(src, err)
	}
	if dst == "" {
		dst = DefaultPath(root, a.Format())
	}

	out, err := createExclusive(dst)
	if err != nil {
		return "", archiveError(dst, err)
	}

	return finishArchive(out, dst, a.write(out, root, absOrSelf(dst)))
}

func (a *TarArchiver) write(w io.Writer, root, skip string) error {
	bw := bufio.NewWriter(w)
	tw := tar.NewWriter(bw)

	prefix := ""
	if a.rooted {
		prefix = filepath.Base(root)
	}

	err := walkSource(root, skip, func(rel string, d fs.DirEntry, fullPath string) error {
		name := entryName(prefix, rel)
		if name == "" {
			// Unrooted archives still carry a "./" entry so an archive of an
			// empty folder is not an empty file.
			name = "."
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Uname, hdr.Gname = "", ""
		if d.IsDir() {
			hdr.Name += "/"
			return tw.WriteHeader(hdr)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(fullPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// Unarchive reads the archive twice: once to validate every header and body,
// once to extract. A truncated or foreign file fails before any write.
func (a *TarArchiver) Unarchive(archivePath, destFolder string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return unarchiveError(archivePath, err)
	}
	defer f.Close()

	p := newPlan()
	if err := scanTar(bufio.NewReader(f), p); err != nil {
		return unarchiveError(archivePath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return unarchiveError(archivePath, err)
	}

	x, err := beginExtraction(destFolder, p)
	if err != nil {
		return unarchiveError(archivePath, err)
	}
	if err := x.finish(extractTar(bufio.NewReader(f), x)); err != nil {
		return unarchiveError(archivePath, err)
	}
	return nil
}

func scanTar(r io.Reader, p *plan) error {
	tr := tar.NewReader(r)
	entries := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return malformed("%v", err)
		}
		entries++

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := p.add(hdr.Name, true); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := p.add(hdr.Name, false); err != nil {
				return err
			}
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return malformed("%s: %v", hdr.Name, err)
			}
		}
	}
	if entries == 0 {
		return malformed("no entries")
	}
	return nil
}

func extractTar(r io.Reader, x *extraction) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return malformed("%v", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := x.mkdir(hdr.Name); err != nil {
				return err
			}
		case tar.TypeReg:
			out, err := x.create(hdr.Name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

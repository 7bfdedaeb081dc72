package archiver

import (
	"archive/zip"
	"bufio"
	"io"
	"io/fs"
	"os"
)

// ZipArchiver writes one stored (uncompressed) entry per file, with names
// relative to the source folder. Empty directories get their own entry.
type ZipArchiver struct{}

func (a *ZipArchiver) Format() Format {
	return FormatZip
}

func (a *ZipArchiver) Archive(src, dst string) (string, error) {
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

func (a *ZipArchiver) write(w io.Writer, root, skip string) error {
	bw := bufio.NewWriter(w)
	zw := zip.NewWriter(bw)

	err := walkSource(root, skip, func(rel string, d fs.DirEntry, fullPath string) error {
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Method = zip.Store
		if d.IsDir() {
			hdr.Name += "/"
			_, err := zw.CreateHeader(hdr)
			return err
		}

		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(fullPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// Unarchive checks the central directory and every entry's CRC before
// extracting anything.
func (a *ZipArchiver) Unarchive(archivePath, destFolder string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			r.Close()
		}
		if _, statErr := os.Stat(archivePath); statErr != nil {
			return unarchiveError(archivePath, statErr)
		}
		return unarchiveError(archivePath, malformed("%v", err))
	}
	defer r.Close()

	p := newPlan()
	for _, zf := range r.File {
		dir := zf.FileInfo().IsDir()
		if err := p.add(zf.Name, dir); err != nil {
			return unarchiveError(archivePath, err)
		}
		if !dir {
			if err := verifyZipEntry(zf); err != nil {
				return unarchiveError(archivePath, err)
			}
		}
	}

	x, err := beginExtraction(destFolder, p)
	if err != nil {
		return unarchiveError(archivePath, err)
	}
	if err := x.finish(extractZip(r, x)); err != nil {
		return unarchiveError(archivePath, err)
	}
	return nil
}

func verifyZipEntry(zf *zip.File) error {
	rc, err := zf.Open()
	if err != nil {
		return malformed("%s: %v", zf.Name, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return malformed("%s: %v", zf.Name, err)
	}
	return nil
}

func extractZip(r *zip.ReadCloser, x *extraction) error {
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			if err := x.mkdir(zf.Name); err != nil {
				return err
			}
			continue
		}
		if err := extractZipEntry(zf, x); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(zf *zip.File, x *extraction) error {
	rc, err := zf.Open()
	if err != nil {
		return malformed("%s: %v", zf.Name, err)
	}
	defer rc.Close()

	out, err := x.create(zf.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

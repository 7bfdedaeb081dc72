package archiver

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree builds photos/{a.jpg, sub/b.txt, empty/} under a fresh temp dir.
func makeTree(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "photos")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.jpg"), []byte{0xff, 0xd8, 0x00, 0x01}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("hello\n"), 0644))
	return src
}

func assertTree(t *testing.T, root string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00, 0x01}, data)

	data, err = os.ReadFile(filepath.Join(root, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	info, err := os.Stat(filepath.Join(root, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func extractedRoot(dest string, f Format) string {
	if f.Rooted() {
		return filepath.Join(dest, "photos")
	}
	return dest
}

func TestRoundTripAllFormats(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			src := makeTree(t)
			a, err := New(string(f))
			require.NoError(t, err)
			assert.Equal(t, f, a.Format())

			dst := filepath.Join(t.TempDir(), "out"+f.Suffix())
			got, err := a.Archive(src, dst)
			require.NoError(t, err)
			assert.Equal(t, dst, got)

			info, err := os.Stat(got)
			require.NoError(t, err)
			assert.True(t, info.Mode().IsRegular())

			dest := filepath.Join(t.TempDir(), "restore")
			require.NoError(t, a.Unarchive(got, dest))
			assertTree(t, extractedRoot(dest, f))
		})
	}
}

func TestArchiveDefaultPath(t *testing.T) {
	src := makeTree(t)
	a, err := New("zipfile")
	require.NoError(t, err)

	got, err := a.Archive(src, "")
	require.NoError(t, err)
	assert.Equal(t, src+".zip", got)
	assert.FileExists(t, got)
}

func TestArchiveEmptyFolder(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "photos")
			require.NoError(t, os.Mkdir(src, 0755))

			a, err := New(string(f))
			require.NoError(t, err)
			got, err := a.Archive(src, "")
			require.NoError(t, err)

			dest := t.TempDir()
			require.NoError(t, a.Unarchive(got, dest))
			if f.Rooted() {
				assert.DirExists(t, filepath.Join(dest, "photos"))
			}
		})
	}
}

func TestArchiveRefusesExistingDestination(t *testing.T) {
	src := makeTree(t)
	dst := filepath.Join(t.TempDir(), "taken.tar")
	require.NoError(t, os.WriteFile(dst, []byte("keep"), 0644))

	a, err := New("tarfile")
	require.NoError(t, err)
	_, err = a.Archive(src, dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationExists)

	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "archive", aerr.Op)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestArchiveMissingSource(t *testing.T) {
	a, err := New("shutil")
	require.NoError(t, err)
	_, err = a.Archive(filepath.Join(t.TempDir(), "nope"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArchiveSourceIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	a, err := New("json")
	require.NoError(t, err)
	_, err = a.Archive(file, "")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestArchiveInsideSource(t *testing.T) {
	src := makeTree(t)
	a, err := New("tarfile")
	require.NoError(t, err)

	dst := filepath.Join(src, "self.tar")
	_, err = a.Archive(src, dst)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, a.Unarchive(dst, dest))
	assert.NoFileExists(t, filepath.Join(dest, "photos", "self.tar"))
	assertTree(t, filepath.Join(dest, "photos"))
}

func TestUnarchiveCollision(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			src := makeTree(t)
			a, err := New(string(f))
			require.NoError(t, err)
			got, err := a.Archive(src, filepath.Join(t.TempDir(), "out"+f.Suffix()))
			require.NoError(t, err)

			dest := t.TempDir()
			root := extractedRoot(dest, f)
			require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
			existing := filepath.Join(root, "sub", "b.txt")
			require.NoError(t, os.WriteFile(existing, []byte("mine"), 0644))

			err = a.Unarchive(got, dest)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDestinationExists)

			data, err := os.ReadFile(existing)
			require.NoError(t, err)
			assert.Equal(t, "mine", string(data))
			assert.NoFileExists(t, filepath.Join(root, "a.jpg"))
		})
	}
}

func TestUnarchiveMalformed(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			bogus := filepath.Join(t.TempDir(), "bogus"+f.Suffix())
			require.NoError(t, os.WriteFile(bogus, []byte("definitely not an archive"), 0644))

			a, err := New(string(f))
			require.NoError(t, err)

			dest := filepath.Join(t.TempDir(), "restore")
			err = a.Unarchive(bogus, dest)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedArchive)
			assert.NoDirExists(t, dest)
		})
	}
}

func TestUnarchiveTruncated(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			src := makeTree(t)
			a, err := New(string(f))
			require.NoError(t, err)
			got, err := a.Archive(src, filepath.Join(t.TempDir(), "out"+f.Suffix()))
			require.NoError(t, err)

			data, err := os.ReadFile(got)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(got, data[:len(data)/2], 0644))

			dest := filepath.Join(t.TempDir(), "restore")
			err = a.Unarchive(got, dest)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedArchive)
			assert.NoDirExists(t, dest)
		})
	}
}

func TestUnarchiveMissingFile(t *testing.T) {
	a, err := New("pickle")
	require.NoError(t, err)
	err = a.Unarchive(filepath.Join(t.TempDir(), "missing.archive"), t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTarRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	body := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil.txt", Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0644))

	dest := filepath.Join(dir, "restore")
	a, err := New("shutil")
	require.NoError(t, err)
	err = a.Unarchive(archive, dest)
	assert.ErrorIs(t, err, ErrMalformedArchive)
	assert.NoFileExists(t, filepath.Join(dir, "evil.txt"))
	assert.NoDirExists(t, dest)
}

func TestZipRejectsAbsolute(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("/etc/evil")
	require.NoError(t, err)
	_, err = w.Write([]byte("owned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	archive := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0644))

	a, err := New("zipfile")
	require.NoError(t, err)
	err = a.Unarchive(archive, t.TempDir())
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestTreeRejectsForeignKeys(t *testing.T) {
	tree := Tree{
		"/home/u/photos":     {"a.jpg": []byte("x")},
		"/home/other/secret": {"b.txt": []byte("y")},
	}
	data, err := json.Marshal(tree)
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "evil.json")
	require.NoError(t, os.WriteFile(archive, data, 0644))

	a, err := New("json")
	require.NoError(t, err)
	err = a.Unarchive(archive, t.TempDir())
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestTreeRejectsSlashInFileName(t *testing.T) {
	tree := Tree{"/home/u/photos": {"../x": []byte("x")}}
	data, err := json.Marshal(tree)
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "evil.json")
	require.NoError(t, os.WriteFile(archive, data, 0644))

	a, err := New("json")
	require.NoError(t, err)
	err = a.Unarchive(archive, t.TempDir())
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestJSONTreeLayout(t *testing.T) {
	src := makeTree(t)
	a, err := New("json")
	require.NoError(t, err)
	got, err := a.Archive(src, "")
	require.NoError(t, err)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	var tree Tree
	require.NoError(t, json.Unmarshal(data, &tree))

	root, ok := TreeRoot(tree)
	require.True(t, ok)
	assert.Equal(t, filepath.ToSlash(src), root)
	assert.Len(t, tree, 3)
	assert.Equal(t, []byte("hello\n"), tree[root+"/sub"]["b.txt"])
	assert.Empty(t, tree[root+"/empty"])
}

func TestTreeRoot(t *testing.T) {
	_, ok := TreeRoot(Tree{})
	assert.False(t, ok)

	root, ok := TreeRoot(Tree{"/a/b/c": nil, "/a/b": nil, "/a/b/d": nil})
	assert.True(t, ok)
	assert.Equal(t, "/a/b", root)
}

func TestUnarchiveIntoExistingFolder(t *testing.T) {
	src := makeTree(t)
	a, err := New("tarfile")
	require.NoError(t, err)
	got, err := a.Archive(src, "")
	require.NoError(t, err)

	dest := t.TempDir()
	other := filepath.Join(dest, "other.txt")
	require.NoError(t, os.WriteFile(other, []byte("stay"), 0644))

	require.NoError(t, a.Unarchive(got, dest))
	assertTree(t, filepath.Join(dest, "photos"))
	assert.FileExists(t, other)
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("rar")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	a, err := New("  ZipFile ")
	require.NoError(t, err)
	assert.Equal(t, FormatZip, a.Format())
}

func TestFormats(t *testing.T) {
	assert.Equal(t, []Format{FormatTar, FormatShutil, FormatZip, FormatPickle, FormatJSON}, Formats())
	for _, f := range Formats() {
		assert.True(t, f.Valid())
	}
	assert.False(t, Format("rar").Valid())
	assert.True(t, FormatTar.Rooted())
	assert.False(t, FormatShutil.Rooted())
	assert.False(t, FormatZip.Rooted())
	assert.True(t, FormatPickle.Rooted())
	assert.True(t, FormatJSON.Rooted())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
		ok   bool
	}{
		{"photos.tar", FormatTar, true},
		{"photos.tar.enc", FormatTar, true},
		{"/x/photos.zip.enc", FormatZip, true},
		{"photos.archive", FormatPickle, true},
		{"photos.JSON.enc", FormatJSON, true},
		{"photos.enc", "", false},
		{"photos", "", false},
		{"photos.rar", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectFormat(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "photos.tar"), DefaultPath(filepath.Join("a", "photos")+string(filepath.Separator), FormatShutil))
	assert.Equal(t, "photos.archive", DefaultPath("photos", FormatPickle))
}

func TestRoundTripUnusualNames(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		unixOnly  bool
		rawBytes  bool
		rejectFor []Format
	}{
		{name: "leading dot", file: ".hidden"},
		{name: "unicode", file: "caf\u00e9 \u2615.txt"},
		{name: "spaces", file: "two  spaces.txt"},
		{name: "backslash", file: `a\b.txt`, unixOnly: true},
		{name: "invalid utf8", file: "x\xff.txt", rawBytes: true, rejectFor: []Format{FormatJSON}},
	}

	for _, tt := range tests {
		for _, f := range Formats() {
			t.Run(tt.name+"/"+string(f), func(t *testing.T) {
				if tt.unixOnly && runtime.GOOS == "windows" {
					t.Skip("not a valid file name on windows")
				}
				src := filepath.Join(t.TempDir(), "photos")
				require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
				if err := os.WriteFile(filepath.Join(src, "sub", tt.file), []byte("payload"), 0644); err != nil {
					if tt.rawBytes {
						t.Skipf("filesystem rejects %q: %v", tt.file, err)
					}
					require.NoError(t, err)
				}

				a, err := New(string(f))
				require.NoError(t, err)
				dst := filepath.Join(t.TempDir(), "out"+f.Suffix())

				if slices.Contains(tt.rejectFor, f) {
					_, err := a.Archive(src, dst)
					require.Error(t, err)
					assert.True(t, errors.Is(err, ErrUnsupportedName), "got %v", err)
					var aerr *Error
					assert.True(t, errors.As(err, &aerr))
					assert.NoFileExists(t, dst)
					return
				}

				_, err = a.Archive(src, dst)
				require.NoError(t, err)

				dest := filepath.Join(t.TempDir(), "restore")
				require.NoError(t, a.Unarchive(dst, dest))

				data, err := os.ReadFile(filepath.Join(extractedRoot(dest, f), "sub", tt.file))
				require.NoError(t, err)
				assert.Equal(t, "payload", string(data))
			})
		}
	}
}

func TestTreeFileNameValidation(t *testing.T) {
	assert.True(t, validTreeName(".hidden"))
	assert.False(t, validTreeName(""))
	assert.False(t, validTreeName("a/b"))
	assert.Equal(t, runtime.GOOS != "windows", validTreeName(`a\b`))
}

package archiver

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Tree is a whole directory held in memory: absolute slash-separated
// directory path to file name to contents. Every directory has a key, empty
// ones included; the shortest key is the root.
type Tree map[string]map[string][]byte

type codec interface {
	format() Format
	// storable reports whether name survives an encode/decode round trip.
	storable(name string) bool
	encode(w io.Writer, t Tree) error
	decode(r io.Reader) (Tree, error)
}

type gobCodec struct{}

func (gobCodec) format() Format { return FormatPickle }

func (gobCodec) storable(string) bool { return true }

func (gobCodec) encode(w io.Writer, t Tree) error {
	return gob.NewEncoder(w).Encode(t)
}

func (gobCodec) decode(r io.Reader) (Tree, error) {
	var t Tree
	if err := gob.NewDecoder(r).Decode(&t); err != nil {
		return nil, err
	}
	return t, nil
}

// jsonCodec relies on encoding/json writing []byte as base64 strings.
// Map keys are JSON strings, so names must be valid UTF-8: encoding/json
// would replace invalid bytes with U+FFFD.
type jsonCodec struct{}

func (jsonCodec) format() Format { return FormatJSON }

func (jsonCodec) storable(name string) bool { return utf8.ValidString(name) }

func (jsonCodec) encode(w io.Writer, t Tree) error {
	return json.NewEncoder(w).Encode(t)
}

func (jsonCodec) decode(r io.Reader) (Tree, error) {
	var t Tree
	dec := json.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, malformed("trailing data after tree")
	}
	return t, nil
}

// TreeArchiver serializes the whole tree in one value. Unlike the stream
// formats it holds every file in memory on both sides.
type TreeArchiver struct {
	codec codec
}

func (a *TreeArchiver) Format() Format {
	return a.codec.format()
}

func (a *TreeArchiver) Archive(src, dst string) (string, error) {
	root, err := sourceRoot(src)
	if err != nil {
		return "", archiveError(src, err)
	}
	if dst == "" {
		dst = DefaultPath(root, a.Format())
	}

	tree, err := readTree(root, absOrSelf(dst), a.codec)
	if err != nil {
		return "", archiveError(src, err)
	}

	out, err := createExclusive(dst)
	if err != nil {
		return "", archiveError(dst, err)
	}

	bw := bufio.NewWriter(out)
	err = a.codec.encode(bw, tree)
	if err == nil {
		err = bw.Flush()
	}
	return finishArchive(out, dst, err)
}

func readTree(root, skip string, c codec) (Tree, error) {
	tree := make(Tree)
	err := walkSource(root, skip, func(rel string, d fs.DirEntry, fullPath string) error {
		if !validTreeName(d.Name()) || !c.storable(d.Name()) {
			return fmt.Errorf("%w: %q (%s)", ErrUnsupportedName, fullPath, c.format())
		}
		if d.IsDir() {
			tree[filepath.ToSlash(fullPath)] = make(map[string][]byte)
			return nil
		}
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(filepath.Dir(fullPath))
		tree[dir][d.Name()] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

func (a *TreeArchiver) Unarchive(archivePath, destFolder string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return unarchiveError(archivePath, err)
	}
	tree, err := a.codec.decode(bufio.NewReader(f))
	f.Close()
	if err != nil {
		return unarchiveError(archivePath, malformed("%v", err))
	}

	layout, err := planTree(tree)
	if err != nil {
		return unarchiveError(archivePath, err)
	}

	x, err := beginExtraction(destFolder, layout.plan)
	if err != nil {
		return unarchiveError(archivePath, err)
	}
	if err := x.finish(extractTree(tree, layout, x)); err != nil {
		return unarchiveError(archivePath, err)
	}
	return nil
}

// treeLayout maps each tree key to its relative extraction path.
type treeLayout struct {
	plan *plan
	keys []string
	rel  map[string]string
}

// TreeRoot returns the shortest key of t.
func TreeRoot(t Tree) (string, bool) {
	root, found := "", false
	for key := range t {
		if !found || len(key) < len(root) || (len(key) == len(root) && key < root) {
			root, found = key, true
		}
	}
	return root, found
}

func planTree(t Tree) (*treeLayout, error) {
	root, ok := TreeRoot(t)
	if !ok {
		return nil, malformed("empty tree")
	}
	base := path.Base(root)
	if base == "/" || base == "." || base == "" {
		return nil, malformed("root %q has no name", root)
	}

	layout := &treeLayout{
		plan: newPlan(),
		rel:  make(map[string]string, len(t)),
	}
	for key := range t {
		layout.keys = append(layout.keys, key)
	}
	sort.Strings(layout.keys)

	prefix := strings.TrimSuffix(root, "/") + "/"
	for _, key := range layout.keys {
		name := base
		if key != root {
			if !strings.HasPrefix(key, prefix) {
				return nil, malformed("directory %q is outside root %q", key, root)
			}
			name = path.Join(base, strings.TrimPrefix(key, prefix))
		}
		if err := layout.plan.add(name, true); err != nil {
			return nil, err
		}
		layout.rel[key] = name

		for file := range t[key] {
			if !validTreeName(file) {
				return nil, malformed("invalid file name %q in %q", file, key)
			}
			if err := layout.plan.add(path.Join(name, file), false); err != nil {
				return nil, err
			}
		}
	}
	return layout, nil
}

// validTreeName reports whether name is a single path element on this
// platform. A backslash is an ordinary character outside Windows.
func validTreeName(name string) bool {
	return name != "" && !strings.ContainsRune(name, '/') && !strings.ContainsRune(name, filepath.Separator)
}

func extractTree(t Tree, layout *treeLayout, x *extraction) error {
	for _, key := range layout.keys {
		dir := layout.rel[key]
		if err := x.mkdir(dir); err != nil {
			return err
		}

		files := make([]string, 0, len(t[key]))
		for name := range t[key] {
			files = append(files, name)
		}
		sort.Strings(files)
		for _, name := range files {
			if err := x.writeFile(path.Join(dir, name), t[key][name]); err != nil {
				return err
			}
		}
	}
	return nil
}

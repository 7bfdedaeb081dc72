package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/asyncdoggo/locker/internal/crypto"
)

// VerifyResult compares an envelope's contents with a folder on disk.
// Paths are slash-separated and relative to the folder root.
type VerifyResult struct {
	Changed   []string          // in both, contents differ
	Missing   []string          // in the envelope, not on disk
	Extra     []string          // on disk, not in the envelope
	Unchanged []string          // in both, identical
	Diffs     map[string]string // unified diffs for Changed
}

// Match reports whether the envelope and the folder hold the same files.
func (r *VerifyResult) Match() bool {
	return len(r.Changed) == 0 && len(r.Missing) == 0 && len(r.Extra) == 0
}

// Verify unlocks file into a private temporary directory and compares it
// with folder by SHA-256. The temporary directory is always removed.
func (l *Locker) Verify(ctx context.Context, file string, password []byte, folder string) (*VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := l.loggerFor(ctx).WithField("envelope", file)

	tmp, err := os.MkdirTemp("", "locker-verify-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			log.WithField("path", tmp).WithError(err).Warn("failed to remove verify directory")
		}
	}()

	extracted := filepath.Join(tmp, "tree")
	if err := l.unlock(log, file, password, extracted, filepath.Join(tmp, "archive")); err != nil {
		return nil, err
	}

	root := extracted
	if l.Format().Rooted() {
		root, err = singleDir(extracted)
		if err != nil {
			return nil, err
		}
	}

	want, err := hashTree(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read envelope contents: %w", err)
	}
	have, err := hashTree(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	result := &VerifyResult{
		Changed:   make([]string, 0),
		Missing:   make([]string, 0),
		Extra:     make([]string, 0),
		Unchanged: make([]string, 0),
		Diffs:     make(map[string]string),
	}

	for _, rel := range sortedKeys(want) {
		localHash, ok := have[rel]
		switch {
		case !ok:
			result.Missing = append(result.Missing, rel)
		case localHash == want[rel]:
			result.Unchanged = append(result.Unchanged, rel)
		default:
			result.Changed = append(result.Changed, rel)
			diff, err := diffFiles(rel, root, folder)
			if err != nil {
				return nil, err
			}
			result.Diffs[rel] = diff
		}
	}
	for _, rel := range sortedKeys(have) {
		if _, ok := want[rel]; !ok {
			result.Extra = append(result.Extra, rel)
		}
	}

	return result, nil
}

// singleDir returns the one directory a rooted archive extracts to.
func singleDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", fmt.Errorf("expected a single root folder in envelope, found %d entries", len(entries))
	}
	return filepath.Join(dir, entries[0].Name()), nil
}

// hashTree maps every regular file under root to its SHA-256.
func hashTree(root string) (map[string]string, error) {
	hashes := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		sum, err := crypto.HashFile(p)
		if err != nil {
			return err
		}
		hashes[filepath.ToSlash(rel)] = sum
		return nil
	})
	return hashes, err
}

func diffFiles(rel, envelopeRoot, folder string) (string, error) {
	envelopeData, err := os.ReadFile(filepath.Join(envelopeRoot, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(envelopeData)

	localData, err := os.ReadFile(filepath.Join(folder, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(localData)

	return GenerateUnifiedDiff(rel, envelopeData, localData)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

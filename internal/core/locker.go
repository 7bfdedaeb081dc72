package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/asyncdoggo/locker/internal/archiver"
	"github.com/asyncdoggo/locker/internal/crypto"
	"github.com/asyncdoggo/locker/internal/events"
)

// decryptedExt names the intermediate archive when the envelope lacks the
// usual ".enc" suffix.
const decryptedExt = ".dec"

var ErrIntermediateExists = errors.New("intermediate archive path already exists")

// Locker turns a folder into one encrypted file and back.
type Locker struct {
	archiver archiver.Archiver
	logger   *events.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithLogger sets the logger for cleanup warnings and progress events.
// Without it each call logs to the logger carried by its context.
func WithLogger(logger *events.Logger) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Locker over an archiver.
func New(a archiver.Archiver, opts ...Option) *Locker {
	l := &Locker{archiver: a}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Format returns the archive format this Locker writes and reads.
func (l *Locker) Format() archiver.Format {
	return l.archiver.Format()
}

// Lock archives folder next to itself, encrypts the archive into outFolder
// (the archive's folder when empty) and returns the envelope path. The
// plaintext archive is removed on every exit path once it exists.
func (l *Locker) Lock(ctx context.Context, folder string, password []byte, outFolder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log := l.loggerFor(ctx).WithFields(map[string]any{
		"folder": folder,
		"format": string(l.Format()),
	})

	archivePath, err := l.archiver.Archive(folder, "")
	if err != nil {
		return "", fmt.Errorf("failed to archive folder: %w", err)
	}
	defer remove(log, archivePath)
	log.WithField("archive", archivePath).Debug("archive written")

	envelope, err := crypto.EncryptFile(password, archivePath, outFolder)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt archive: %w", err)
	}
	log.WithField("envelope", envelope).Info("folder locked")

	return envelope, nil
}

// Unlock decrypts file next to itself, extracts the archive under outFolder
// ("." when empty) and returns outFolder. A wrong password fails before
// anything is written. The decrypted archive is removed on every exit path
// once it exists.
func (l *Locker) Unlock(ctx context.Context, file string, password []byte, outFolder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outFolder == "" {
		outFolder = "."
	}

	log := l.loggerFor(ctx).WithFields(map[string]any{
		"envelope": file,
		"format":   string(l.Format()),
	})
	if err := l.unlock(log, file, password, outFolder, IntermediatePath(file)); err != nil {
		return "", err
	}
	log.WithField("output", outFolder).Info("envelope unlocked")

	return outFolder, nil
}

func (l *Locker) unlock(log *events.Logger, file string, password []byte, outFolder, archivePath string) error {
	if _, err := os.Lstat(archivePath); err == nil {
		return fmt.Errorf("%w: %s", ErrIntermediateExists, archivePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	decrypted, err := crypto.DecryptFile(password, file, archivePath)
	if err != nil {
		return fmt.Errorf("failed to decrypt envelope: %w", err)
	}
	defer remove(log, decrypted)
	log.WithField("archive", decrypted).Debug("envelope decrypted")

	if err := l.archiver.Unarchive(decrypted, outFolder); err != nil {
		return fmt.Errorf("failed to extract archive: %w", err)
	}
	return nil
}

// IntermediatePath is where Unlock writes the decrypted archive: the
// envelope path without ".enc", or with ".dec" appended if it has no such
// suffix.
func IntermediatePath(envelope string) string {
	if filepath.Base(envelope) != crypto.EncryptedExt {
		if trimmed, ok := strings.CutSuffix(envelope, crypto.EncryptedExt); ok {
			return trimmed
		}
	}
	return envelope + decryptedExt
}

func (l *Locker) loggerFor(ctx context.Context) *events.Logger {
	if l.logger != nil {
		return l.logger
	}
	return events.FromContext(ctx)
}

func remove(log *events.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).WithError(err).Warn("failed to remove plaintext archive")
	}
}

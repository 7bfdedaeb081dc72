package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/asyncdoggo/locker/internal/archiver"
	"github.com/asyncdoggo/locker/internal/core"
	"github.com/asyncdoggo/locker/internal/crypto"
	"github.com/asyncdoggo/locker/internal/storage"
)

var (
	okLabel    = color.New(color.FgGreen).Sprint("ok:")
	warnLabel  = color.New(color.FgYellow).Sprint("warning:")
	errorLabel = color.New(color.FgRed, color.Bold).Sprint("Error:")
)

var errVerifyMismatch = errors.New("envelope does not match folder")

// GetPassword retrieves the password from LOCKER_PASSWORD or prompts.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(prompt string) ([]byte, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, nil
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// GetPasswordForLock is GetPassword with confirmation when prompting.
func GetPasswordForLock() ([]byte, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, nil
	}
	return core.ReadPasswordConfirm()
}

// HandleError prints a friendly message for err and exits.
func HandleError(err error) {
	os.Exit(reportError(os.Stderr, err))
}

// reportError writes the message for err to w, closes the logger and
// returns the exit code.
func reportError(w io.Writer, err error) int {
	switch {
	case errors.Is(err, crypto.ErrAuthFailed):
		fmt.Fprintf(w, "%s incorrect password\n", errorLabel)
	case errors.Is(err, crypto.ErrInvalidEnvelope):
		fmt.Fprintf(w, "%s not a locker envelope (file is too short or corrupted)\n", errorLabel)
	case errors.Is(err, archiver.ErrUnknownFormat):
		fmt.Fprintf(w, "%s %s\n", errorLabel, err)
		fmt.Fprintf(w, "Run 'locker formats' to list supported formats\n")
	case errors.Is(err, archiver.ErrMalformedArchive):
		fmt.Fprintf(w, "%s %s\n", errorLabel, err)
		fmt.Fprintf(w, "The envelope may have been made with another format; try --format\n")
	case errors.Is(err, archiver.ErrUnsupportedName):
		fmt.Fprintf(w, "%s %s\n", errorLabel, err)
		fmt.Fprintf(w, "Choose a format that keeps raw file names, e.g. --format pickle\n")
	case errors.Is(err, archiver.ErrDestinationExists):
		fmt.Fprintf(w, "%s %s\n", errorLabel, err)
		fmt.Fprintf(w, "Choose another output folder with --out\n")
	case errors.Is(err, core.ErrPasswordMismatch):
		fmt.Fprintf(w, "%s passwords do not match\n", errorLabel)
	case errors.Is(err, errVerifyMismatch):
		fmt.Fprintf(w, "%s %s\n", errorLabel, err)
	default:
		fmt.Fprintf(w, "%s %s\n", errorLabel, err)
	}
	// PersistentPostRun is skipped when RunE fails.
	logger.Close()
	return 1
}

// newLocker builds a Locker for a format id. The Locker logs to the logger
// setup stores in the command context.
func newLocker(format string) (*core.Locker, error) {
	a, err := archiver.New(format)
	if err != nil {
		return nil, err
	}
	return core.New(a), nil
}

// openJournal opens the lock journal, or returns nil when it is disabled
// or cannot be opened. Journal problems never fail a command.
func openJournal() *storage.Storage {
	if cfg == nil || !cfg.Journal.Enabled {
		return nil
	}
	db, err := storage.OpenInitialized(cfg.Journal.Path)
	if err != nil {
		logger.WithField("path", cfg.Journal.Path).WithError(err).Warn("journal unavailable")
		return nil
	}
	return db
}

// resolveFormat picks the archive format for an existing envelope:
// explicit flag, then the journal record, then the file suffix, then the
// configured default.
func resolveFormat(envelope string, flagSet bool) string {
	if flagSet {
		return cfg.Archive.Format
	}
	if db := openJournal(); db != nil {
		defer db.Close()
		if rec, err := db.Get(envelope); err == nil && archiver.Format(rec.Format).Valid() {
			logger.WithField("format", rec.Format).Debug("format from journal")
			return rec.Format
		}
	}
	if f, ok := archiver.DetectFormat(envelope); ok {
		logger.WithField("format", string(f)).Debug("format from file name")
		return string(f)
	}
	return cfg.Archive.Format
}

// requireDir returns the absolute path of an existing directory.
func requireDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return abs, nil
}

// requireFile returns the absolute path of an existing regular file.
func requireFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", &fs.PathError{Op: "open", Path: path, Err: errors.New("not a regular file")}
	}
	return abs, nil
}

// withSpinner runs fn while a spinner is shown on an interactive stderr.
func withSpinner(description string, fn func() error) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn()
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := fn()
	close(done)
	_ = bar.Finish()
	return err
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/archiver"
	"github.com/asyncdoggo/locker/internal/core"
	"github.com/asyncdoggo/locker/internal/crypto"
	"github.com/asyncdoggo/locker/internal/git"
	"github.com/asyncdoggo/locker/internal/storage"
)

var lockCmd = &cobra.Command{
	Use:   "lock <folder>",
	Short: "Archive and encrypt a folder into one file",
	Long: `Lock archives the folder next to itself, encrypts the archive and
deletes the plaintext archive. The envelope is named after the archive with
".enc" appended, e.g. photos.tar.enc.

With --remove the source folder is deleted, but only after the new envelope
has been decrypted and checked against it.`,
	Example: `  locker lock ./photos
  locker lock ./photos --format zipfile --out /mnt/backup
  LOCKER_PASSWORD=secret locker lock ./photos --remove`,
	Args: cobra.ExactArgs(1),
	RunE: runLock,
}

var lockRemove bool

func init() {
	rootCmd.AddCommand(lockCmd)

	lockCmd.Flags().StringP("format", "f", "",
		"Archive format (tarfile, shutil, zipfile, pickle, json)")
	lockCmd.Flags().StringP("out", "o", "",
		"Folder for the encrypted file (default: next to the folder)")
	lockCmd.Flags().BoolVarP(&lockRemove, "remove", "r", false,
		"Delete the source folder after a verified lock")
}

func runLock(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	folder, err := requireDir(args[0])
	if err != nil {
		return err
	}

	locker, err := newLocker(cfg.Archive.Format)
	if err != nil {
		return err
	}

	outFolder := cfg.Output.Dir
	expected := archiver.DefaultPath(folder, locker.Format()) + crypto.EncryptedExt
	if outFolder != "" {
		expected = filepath.Join(outFolder, filepath.Base(expected))
	}
	if status, err := git.CheckFolder(folder, expected); err == nil {
		if msg := git.FormatFolderStatus(status); msg != "" {
			fmt.Fprint(os.Stderr, msg)
		}
	}

	password, err := GetPasswordForLock()
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	var envelope string
	err = withSpinner("Locking "+filepath.Base(folder), func() error {
		var err error
		envelope, err = locker.Lock(ctx, folder, password, outFolder)
		return err
	})
	if err != nil {
		return err
	}

	size, sum := recordLock(envelope, folder, string(locker.Format()))
	fmt.Printf("%s locked %s -> %s (%s)\n", okLabel, folder, envelope, humanize.Bytes(uint64(size)))
	if sum != "" {
		fmt.Printf("    sha256 %s\n", sum)
	}

	if !lockRemove {
		return nil
	}

	var result *core.VerifyResult
	err = withSpinner("Verifying "+filepath.Base(envelope), func() error {
		var err error
		result, err = locker.Verify(ctx, envelope, password, folder)
		return err
	})
	if err != nil {
		return fmt.Errorf("verification failed, %s was kept: %w", folder, err)
	}
	if !result.Match() {
		printVerify(result, false)
		return fmt.Errorf("%w, %s was kept", errVerifyMismatch, folder)
	}

	if err := os.RemoveAll(folder); err != nil {
		return fmt.Errorf("failed to remove %s: %w", folder, err)
	}
	fmt.Printf("%s removed %s\n", okLabel, folder)
	return nil
}

// recordLock stores a journal record for a new envelope and returns its
// size and hash. Failures are logged, never returned.
func recordLock(envelope, folder, format string) (int64, string) {
	var size int64
	if info, err := os.Stat(envelope); err == nil {
		size = info.Size()
	}

	sum, err := crypto.HashFile(envelope)
	if err != nil {
		logger.WithField("envelope", envelope).WithError(err).Warn("failed to hash envelope")
		return size, ""
	}

	db := openJournal()
	if db == nil {
		return size, sum
	}
	defer db.Close()

	abs, err := filepath.Abs(envelope)
	if err != nil {
		abs = envelope
	}
	if err := db.Put(storage.NewRecord(abs, folder, format, size, sum)); err != nil {
		logger.WithField("envelope", abs).WithError(err).Warn("failed to record lock in journal")
	}
	return size, sum
}

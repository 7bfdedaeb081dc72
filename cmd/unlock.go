package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/crypto"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock <file>",
	Short: "Decrypt a locked file and restore the folder",
	Long: `Unlock decrypts the file next to itself, extracts the archive into the
output folder and deletes the decrypted archive. Nothing is extracted when
the password is wrong, and existing files are never overwritten.

The archive format comes from --format, else the lock journal, else the
file name (photos.zip.enc is a zipfile), else the configured default.`,
	Example: `  locker unlock photos.tar.enc
  locker unlock photos.zip.enc --out ./restored`,
	Args: cobra.ExactArgs(1),
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)

	unlockCmd.Flags().StringP("format", "f", "",
		"Archive format (default: detect)")
	unlockCmd.Flags().StringP("out", "o", "",
		"Folder to restore into (default: the file's folder)")
}

func runUnlock(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, err := requireFile(args[0])
	if err != nil {
		return err
	}

	locker, err := newLocker(resolveFormat(file, cmd.Flags().Changed("format")))
	if err != nil {
		return err
	}

	outFolder := cfg.Output.Dir
	if outFolder == "" {
		outFolder = filepath.Dir(file)
	}

	password, err := GetPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	var restored string
	err = withSpinner("Unlocking "+filepath.Base(file), func() error {
		var err error
		restored, err = locker.Unlock(ctx, file, password, outFolder)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s unlocked %s -> %s (%s)\n", okLabel, file, restored, locker.Format())
	return nil
}

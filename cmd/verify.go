package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/core"
	"github.com/asyncdoggo/locker/internal/crypto"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file> <folder>",
	Short: "Check that a locked file matches a folder",
	Long: `Verify decrypts the file into a private temporary directory and compares
its contents with the folder by SHA-256. Nothing is written next to the file
or into the folder. Exits non-zero when they differ.`,
	Example: `  locker verify photos.tar.enc ./photos
  locker verify photos.tar.enc ./photos --diff`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

var verifyDiff bool

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringP("format", "f", "",
		"Archive format (default: detect)")
	verifyCmd.Flags().BoolVarP(&verifyDiff, "diff", "d", false,
		"Show unified diffs for changed text files")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, err := requireFile(args[0])
	if err != nil {
		return err
	}
	folder, err := requireDir(args[1])
	if err != nil {
		return err
	}

	locker, err := newLocker(resolveFormat(file, cmd.Flags().Changed("format")))
	if err != nil {
		return err
	}

	password, err := GetPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	var result *core.VerifyResult
	err = withSpinner("Verifying "+filepath.Base(file), func() error {
		var err error
		result, err = locker.Verify(ctx, file, password, folder)
		return err
	})
	if err != nil {
		return err
	}

	printVerify(result, verifyDiff)
	if !result.Match() {
		return errVerifyMismatch
	}
	return nil
}

func printVerify(result *core.VerifyResult, showDiff bool) {
	total := len(result.Changed) + len(result.Unchanged) + len(result.Missing)
	fmt.Printf("Envelope: %d files\n", total)

	if len(result.Unchanged) > 0 {
		fmt.Printf("  %d unchanged\n", len(result.Unchanged))
	}
	printPaths("modified", result.Changed)
	printPaths("missing from folder", result.Missing)
	printPaths("not in envelope", result.Extra)

	if result.Match() {
		fmt.Printf("%s folder matches envelope\n", okLabel)
	}

	if !showDiff {
		return
	}
	for _, path := range result.Changed {
		if diff := result.Diffs[path]; diff != "" {
			fmt.Print(diff)
		}
	}
}

func printPaths(label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Printf("  %d %s:\n", len(paths), label)
	for _, path := range paths {
		fmt.Printf("    - %s\n", path)
	}
}

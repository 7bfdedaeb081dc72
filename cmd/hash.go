package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/crypto"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file> [file...]",
	Short: "Print the SHA-256 of files",
	Long: `Hash prints the hex SHA-256 of each file in sha256sum format. Use it to
check an envelope against the hash recorded by lock.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		sum, err := crypto.HashFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", sum, path)
	}
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish>",
	Short: "Output shell completion scripts",
	Long: `Completion prints a completion script for the given shell.

  bash:  source <(locker completion bash)
  zsh:   locker completion zsh > "${fpath[1]}/_locker"
  fish:  locker completion fish > ~/.config/fish/completions/locker.fish`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish"},
	// Completion scripts need no config or journal.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletionV2(os.Stdout, true)
	case "zsh":
		return rootCmd.GenZshCompletion(os.Stdout)
	case "fish":
		return rootCmd.GenFishCompletion(os.Stdout, true)
	default:
		return fmt.Errorf("unknown shell: %s (supported: bash, zsh, fish)", args[0])
	}
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/config"
	"github.com/asyncdoggo/locker/internal/events"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger = events.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "locker",
	Short: "Encrypt a folder into a single password-protected file",
	Long: `locker archives a folder into one file and encrypts it with a password
(PBKDF2-SHA256 key derivation, AES-256-CBC). Unlock reverses both steps.
The plaintext archive only exists while a command runs.

The password is read from the terminal, or from LOCKER_PASSWORD if set.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: ./locker.yaml or ~/.config/locker/locker.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format: text, json")
}

// flagKeys maps command flags onto config keys; a flag only overrides the
// config when it is set.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"format":     "archive.format",
	"out":        "output.dir",
}

func setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := loader.BindFlag(key, f); err != nil {
				return err
			}
		}
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(events.WithLogger(ctx, logger))
	if path := loader.ConfigFile(); path != "" {
		logger.WithField("path", path).Debug("config loaded")
	}
	return nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		HandleError(err)
	}
}

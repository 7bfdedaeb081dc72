package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/crypto"
	"github.com/asyncdoggo/locker/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show envelopes recorded by lock",
	Long: `History lists the lock journal: every envelope written by a successful
lock with its source folder, format, size and SHA-256. The journal never
holds passwords or file contents.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyForgetCmd = &cobra.Command{
	Use:   "forget <file> [file...]",
	Short: "Remove envelopes from the journal",
	Long:  `Forget removes journal records. The envelope files are left alone.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryForget,
}

var historyCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim unused space in the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistoryCompact,
}

var historyCheck bool

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyForgetCmd, historyCompactCmd)

	historyCmd.Flags().BoolVarP(&historyCheck, "check", "c", false,
		"Re-hash each envelope and report missing or modified files")
}

var errJournalDisabled = errors.New("journal is disabled (journal.enabled=false)")

func journalOrError() (*storage.Storage, error) {
	if !cfg.Journal.Enabled {
		return nil, errJournalDisabled
	}
	return storage.OpenInitialized(cfg.Journal.Path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := journalOrError()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.List()
	if err != nil {
		return err
	}
	if modified, err := db.GetModified(); err == nil {
		fmt.Printf("Journal %s, last written %s\n", db.Path(), humanize.Time(modified))
	}
	if len(records) == 0 {
		fmt.Println("No envelopes recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := "LOCKED\tFORMAT\tSIZE\tENVELOPE\tSOURCE"
	if historyCheck {
		header += "\tSTATUS"
	}
	fmt.Fprintln(w, header)
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s",
			humanize.Time(rec.Created), rec.Format, humanize.Bytes(uint64(rec.Size)), rec.Envelope, rec.Source)
		if historyCheck {
			fmt.Fprintf(w, "\t%s", envelopeStatus(rec))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func envelopeStatus(rec storage.Record) string {
	sum, err := crypto.HashFile(rec.Envelope)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return warnLabel + " missing"
	case err != nil:
		return warnLabel + " " + err.Error()
	case sum != rec.SHA256:
		return warnLabel + " modified"
	default:
		return "ok"
	}
}

func runHistoryForget(cmd *cobra.Command, args []string) error {
	db, err := journalOrError()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		if err := db.Delete(path); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "%s %s is not in the journal\n", warnLabel, arg)
				continue
			}
			return err
		}
		fmt.Printf("%s forgot %s\n", okLabel, path)
	}
	return nil
}

func runHistoryCompact(cmd *cobra.Command, args []string) error {
	db, err := journalOrError()
	if err != nil {
		return err
	}
	defer db.Close()

	info, err := os.Stat(db.Path())
	if err != nil {
		return err
	}
	sizeBefore := info.Size()

	if err := db.Compact(); err != nil {
		return err
	}

	info, err = os.Stat(db.Path())
	if err != nil {
		return err
	}

	fmt.Printf("Compacted: %s -> %s\n", humanize.Bytes(uint64(sizeBefore)), humanize.Bytes(uint64(info.Size())))
	return nil
}

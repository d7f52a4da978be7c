// Package main implements casectl, the command line companion to casewatch
// for working with saved pages and the result cache.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/casewatch/internal/cache"
	"github.com/dgnsrekt/casewatch/internal/config"
	"github.com/dgnsrekt/casewatch/internal/extract"
	"github.com/dgnsrekt/casewatch/internal/logging"
)

var (
	version = "dev"
	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "casectl",
	Short: "Inspect, export and capture case pages",
	Long: `casectl works with the casewatch result cache and with saved case pages.

It reads the same configuration as the casewatch daemon (environment, .env
and CASEWATCH_CONFIG_FILE), so both share one cache.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded.WithLogFile("logs/casectl.log")
		return logging.Setup(cfg.LogLevel, cfg.LogFile, nil)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(captureCmd)
}

func openStore() (*cache.Store, error) {
	kv, err := cache.OpenBackend(cfg.CacheBackend, cfg.CacheDir, cfg.CacheDBPath)
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}
	return cache.NewStore(kv, cache.WithStaleGuard(cfg.CacheStaleGuard)), nil
}

func closeStore(store *cache.Store) {
	if err := store.Close(); err != nil {
		slog.Debug("result cache close failed", "error", err)
	}
}

// recordOutput is the JSON shape printed by extract and capture.
type recordOutput struct {
	extract.Record
	Contacts extract.Contacts `json:"contacts"`
}

func printRecord(w io.Writer, rec extract.Record, asJSON, withHTML bool) error {
	if !withHTML {
		rec.HTML = ""
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recordOutput{Record: rec, Contacts: extract.DeriveContacts(rec)})
	}
	fmt.Fprintf(w, "Title: %s\n", rec.Title)
	fmt.Fprintf(w, "URL: %s\n", rec.URL)
	if rec.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", rec.Name)
	}
	if rec.AccountName != "" {
		fmt.Fprintf(w, "Account Name: %s\n", rec.AccountName)
	}
	for _, email := range rec.ContactEmails {
		fmt.Fprintf(w, "Email: %s\n", email)
	}
	for _, line := range extract.DeriveContacts(rec).Lines() {
		fmt.Fprintln(w, line)
	}
	return nil
}

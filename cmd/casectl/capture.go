package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/casewatch/internal/capture"
	"github.com/dgnsrekt/casewatch/internal/cdp"
	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/trigger"
)

var (
	captureRemote  bool
	captureNoSave  bool
	captureJSON    bool
	captureTimeout time.Duration
)

func init() {
	captureCmd.Flags().BoolVar(&captureRemote, "remote", false, "open the page in the configured browser instead of a headless one")
	captureCmd.Flags().BoolVar(&captureNoSave, "no-save", false, "do not store the result as the last scrape")
	captureCmd.Flags().BoolVar(&captureJSON, "json", false, "print the record as JSON")
	captureCmd.Flags().DurationVar(&captureTimeout, "timeout", 30*time.Second, "overall capture timeout")
}

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Load a case page once and extract it",
	Long: `Load a case page in a browser, capture it and run the extraction.

Only addresses on the allowed origin are captured. With --remote the page
opens in a new tab of the browser at the configured CDP endpoint, which keeps
its login session; otherwise a fresh headless browser is started.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func runCapture(cmd *cobra.Command, args []string) error {
	url := args[0]
	if !trigger.OriginAllowed(url, cfg.AllowedOrigin) {
		return cdpcontrol.NewError(cdpcontrol.CodeOriginNotAllowed, "Scraping is restricted to "+cfg.AllowedOrigin, nil)
	}

	opts := cdp.Options{Timeout: captureTimeout}
	if captureRemote {
		opts.RemoteURL = cfg.CDPURL()
	}
	page, err := cdp.CaptureURL(cmd.Context(), url, opts)
	if err != nil {
		return err
	}
	rec := capture.NewEngine(nil, cfg.MaxHTMLBytes).Extract(page)

	if !captureNoSave {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)
		if err := store.Set(cmd.Context(), rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
	}
	return printRecord(cmd.OutOrStdout(), rec, captureJSON, false)
}

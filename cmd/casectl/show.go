package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/casewatch/internal/controller"
)

var (
	showJSON bool
	showBody string
)

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the record as JSON")
	showCmd.Flags().StringVar(&showBody, "body", "", "print the page text: on, off, or empty to follow the saved preference")
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last saved scrape",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	svc := controller.NewService(nil, nil, store, nil, cfg.AllowedOrigin)
	ctx := cmd.Context()
	rec, err := svc.Last(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if showJSON {
		return printRecord(w, rec, true, false)
	}
	if err := printRecord(w, rec, false, false); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved: %s\n", time.UnixMilli(rec.Timestamp).Format(time.DateTime))

	body := showBody == "on"
	if showBody == "" {
		if body, err = svc.ShowBody(ctx); err != nil {
			return err
		}
	}
	if body {
		fmt.Fprintf(w, "\n%s\n", rec.Text)
	}
	return nil
}

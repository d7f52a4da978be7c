package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/casewatch/internal/controller"
)

var (
	exportFormat string
	exportDir    string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", controller.FormatHTML, "export format: "+strings.Join(controller.ExportFormats, ", "))
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default: CASEWATCH_EXPORT_DIR)")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the last saved scrape to a file",
	Long: `Write the last saved scrape to <title>.<ext> in the export directory.
An existing file is never overwritten; a numbered name is used instead.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	dir := exportDir
	if dir == "" {
		dir = cfg.ExportDir
	}
	svc := controller.NewService(nil, nil, store, nil, cfg.AllowedOrigin)
	path, err := svc.SaveExport(cmd.Context(), dir, exportFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

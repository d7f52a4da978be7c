package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/casewatch/internal/capture"
	"github.com/dgnsrekt/casewatch/internal/extract"
)

var (
	extractURL      string
	extractJSON     bool
	extractWithHTML bool
	extractSave     bool
)

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "page address recorded with the result")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the record as JSON")
	extractCmd.Flags().BoolVar(&extractWithHTML, "with-html", false, "include the page markup in the output")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "store the result as the last scrape")
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.html>",
	Short: "Run the case extraction on a saved page",
	Long: `Run DOM-mode and text-mode extraction on a saved HTML page.

Examples:
  # Extract a page saved from the browser
  casectl extract case.html

  # Read from stdin and keep the result as the last scrape
  cat case.html | casectl extract - --save`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	page, err := pageFromHTML(r, extractURL)
	if err != nil {
		return err
	}
	rec := capture.NewEngine(nil, cfg.MaxHTMLBytes).Extract(page)

	if extractSave {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)
		if err := store.Set(cmd.Context(), rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
	}
	return printRecord(cmd.OutOrStdout(), rec, extractJSON, extractWithHTML)
}

// pageFromHTML builds the capture a browser would have produced for markup:
// the document title, its visible text and the markup itself.
func pageFromHTML(r io.Reader, url string) (extract.Page, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return extract.Page{}, err
	}
	doc, err := extract.ParseDocument(bytes.NewReader(raw), "text/html")
	if err != nil {
		return extract.Page{}, fmt.Errorf("parse html: %w", err)
	}
	return extract.Page{
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		URL:       url,
		Text:      extract.VisibleText(doc),
		HTML:      string(raw),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

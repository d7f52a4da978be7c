package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/extract"
)

const (
	FormatHTML     = "html"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatSafeHTML = "safe-html"
)

const defaultExportName = "scraped"

// ExportFormats lists the accepted export formats.
var ExportFormats = []string{FormatHTML, FormatText, FormatMarkdown, FormatSafeHTML}

var unsafeFilenameChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_", "\n", " ", "\r", " ", "\t", " ",
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export renders the cached record. The html format writes the captured
// markup, or the page text when no markup was captured, to <title>.html.
func (s *Service) Export(ctx context.Context, format string) (ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatHTML
	}
	if !validFormat(format) {
		return ExportFile{}, cdpcontrol.NewError(cdpcontrol.CodeValidation,
			fmt.Sprintf("unknown export format %q (want one of %s)", format, strings.Join(ExportFormats, ", ")), nil)
	}

	rec, err := s.Last(ctx)
	if err != nil {
		return ExportFile{}, err
	}
	name := exportBaseName(rec.Title)

	switch format {
	case FormatText:
		return ExportFile{Filename: name + ".txt", ContentType: "text/plain; charset=utf-8", Data: []byte(rec.Text)}, nil
	case FormatMarkdown:
		md, err := toMarkdown(rec)
		if err != nil {
			return ExportFile{}, cdpcontrol.NewError(cdpcontrol.CodeEvalFailure, "markdown conversion failed", err)
		}
		return ExportFile{Filename: name + ".md", ContentType: "text/markdown; charset=utf-8", Data: []byte(md)}, nil
	case FormatSafeHTML:
		return ExportFile{Filename: name + ".html", ContentType: "text/html; charset=utf-8", Data: []byte(sanitize(exportContent(rec)))}, nil
	default:
		return ExportFile{Filename: name + ".html", ContentType: "text/html; charset=utf-8", Data: []byte(exportContent(rec))}, nil
	}
}

// SaveExport renders the cached record and writes it under dir without
// replacing existing files. It returns the written path. Nothing is written
// when there is no cached record.
func (s *Service) SaveExport(ctx context.Context, dir, format string) (string, error) {
	file, err := s.Export(ctx, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", storageError("create export dir", err)
	}
	path, err := writeUnique(dir, file.Filename, file.Data)
	if err != nil {
		return "", storageError("write export", err)
	}
	slog.Info("controller export saved", "path", path, "bytes", len(file.Data))
	return path, nil
}

func validFormat(format string) bool {
	for _, f := range ExportFormats {
		if f == format {
			return true
		}
	}
	return false
}

func exportContent(rec extract.Record) string {
	if rec.HTML != "" {
		return rec.HTML
	}
	return rec.Text
}

func exportBaseName(title string) string {
	name := strings.TrimSpace(unsafeFilenameChars.Replace(title))
	name = strings.Trim(name, ".")
	if name == "" {
		return defaultExportName
	}
	return name
}

func toMarkdown(rec extract.Record) (string, error) {
	if rec.HTML == "" {
		return rec.Text, nil
	}
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return conv.ConvertString(rec.HTML, converter.WithDomain(rec.URL))
}

func sanitize(markup string) string {
	return bluemonday.UGCPolicy().Sanitize(markup)
}

// createExclusive creates path, failing when it already exists.
var createExclusive = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// writeUnique writes name under dir, adding " (n)" before the extension
// when the name is taken. A failed write leaves no file behind.
func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := createExclusive(path)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		_, err = f.Write(data)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path)
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

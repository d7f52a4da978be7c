// Package runlog keeps an append-only operational journal of successful
// scrapes, one JSON line per run and one directory per UTC day. Entries hold
// counts and identifiers only; the result itself lives in the cache.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/casewatch/internal/extract"
)

const fileName = "scrapes.jsonl"

var (
	ErrClosed     = errors.New("runlog: writer is closed")
	ErrBufferFull = errors.New("runlog: buffer full")
)

// Entry is one journal line.
type Entry struct {
	Time       time.Time `json:"time"`
	URL        string    `json:"url"`
	CaseNumber string    `json:"case_number,omitempty"`
	Actions    int       `json:"actions"`
	Emails     int       `json:"emails"`
	TextBytes  int       `json:"text_bytes"`
	HTMLBytes  int       `json:"html_bytes"`
}

// EntryFor summarizes a stored record.
func EntryFor(rec extract.Record) Entry {
	return Entry{
		Time:       time.UnixMilli(rec.Timestamp).UTC(),
		URL:        rec.URL,
		CaseNumber: extract.CaseNumberFromTitle(rec.Title),
		Actions:    len(rec.ActionsForIDs),
		Emails:     len(rec.ContactEmails),
		TextBytes:  len(rec.Text),
		HTMLBytes:  len(rec.HTML),
	}
}

// Writer appends entries asynchronously. Writes never block the caller; a
// full buffer drops the entry.
type Writer struct {
	baseDir   string
	maxSizeMB int
	now       func() time.Time

	writeCh   chan Entry
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

func NewWriter(baseDir string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
		writeCh:   make(chan Entry, bufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues an entry.
func (w *Writer) Write(e Entry) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- e:
		return nil
	default:
		slog.Warn("runlog buffer full, dropping entry", "url", e.URL)
		return ErrBufferFull
	}
}

// Hook journals a freshly stored record. It matches trigger.Hook.
func (w *Writer) Hook(_ context.Context, rec extract.Record) error {
	return w.Write(EntryFor(rec))
}

// Close flushes queued entries and closes the current file.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		err := w.logger.Close()
		w.logger = nil
		return err
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.writeCh:
			w.writeEntry(e)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.writeCh:
			w.writeEntry(e)
		case <-deadline:
			slog.Warn("runlog close timeout, some entries may be lost")
			return
		default:
			return
		}
	}
}

func (w *Writer) writeEntry(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("runlog marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format(time.DateOnly)
	if date != w.currentDate || w.logger == nil {
		if err := w.rotateForDate(date); err != nil {
			slog.Error("runlog rotate failed", "date", date, "error", err)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("runlog write failed", "error", err)
	}
}

func (w *Writer) rotateForDate(date string) error {
	if w.logger != nil {
		if err := w.logger.Close(); err != nil {
			slog.Debug("runlog close previous file failed", "error", err)
		}
		w.logger = nil
	}

	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, fileName)
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("runlog opened file", "file", filename)
	return nil
}

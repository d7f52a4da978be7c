package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/casewatch/internal/cache"
	"github.com/dgnsrekt/casewatch/internal/capture"
	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/config"
	"github.com/dgnsrekt/casewatch/internal/controller"
	"github.com/dgnsrekt/casewatch/internal/logging"
	"github.com/dgnsrekt/casewatch/internal/popup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "casepopup:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.WithLogFile("logs/casepopup.log")
	// The terminal belongs to the popup, so logs go to the file only.
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile, nil); err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}

	kv, err := cache.OpenBackend(cfg.CacheBackend, cfg.CacheDir, cfg.CacheDBPath)
	if err != nil {
		return fmt.Errorf("open result cache: %w", err)
	}
	store := cache.NewStore(kv, cache.WithStaleGuard(cfg.CacheStaleGuard))
	defer func() {
		if err := store.Close(); err != nil {
			slog.Debug("result cache close failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := cdpClient.Connect(ctx); err != nil {
		// Without a browser the popup still shows the cached scrape.
		slog.Warn("CDP unavailable, popup limited to cache", "cdp_url", cfg.CDPURL(), "error", err)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	engine := capture.NewEngine(cdpClient, cfg.MaxHTMLBytes)
	svc := controller.NewService(cdpClient, engine, store, nil, cfg.AllowedOrigin)

	m := popup.NewModel(ctx, svc, popup.OSC52Clipboard{}, cfg.ExportDir)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("popup: %w", err)
	}
	return nil
}

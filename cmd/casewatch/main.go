package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/casewatch/internal/api"
	"github.com/dgnsrekt/casewatch/internal/browser"
	"github.com/dgnsrekt/casewatch/internal/cache"
	"github.com/dgnsrekt/casewatch/internal/capture"
	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/config"
	"github.com/dgnsrekt/casewatch/internal/controller"
	"github.com/dgnsrekt/casewatch/internal/logging"
	"github.com/dgnsrekt/casewatch/internal/netutil"
	"github.com/dgnsrekt/casewatch/internal/notify"
	"github.com/dgnsrekt/casewatch/internal/relay"
	"github.com/dgnsrekt/casewatch/internal/runlog"
	"github.com/dgnsrekt/casewatch/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load casewatch config", "error", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFile, os.Stdout); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("casewatch config loaded",
		"cdp_url", cfg.CDPURL(),
		"allowed_origin", cfg.AllowedOrigin,
		"bind_addr", cfg.BindAddr,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"poll_interval_ms", cfg.PollIntervalMS,
		"cache_backend", cfg.CacheBackend,
		"cache_stale_guard", cfg.CacheStaleGuard,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"notify", cfg.NotifyURL != "",
		"run_log_dir", cfg.RunLogDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var launcher *browser.Launcher
	if cfg.BrowserLaunch {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.AllowedOrigin,
			ProfileDir: cfg.BrowserProfileDir,
			WindowSize: cfg.BrowserWindow,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	kv, err := cache.OpenBackend(cfg.CacheBackend, cfg.CacheDir, cfg.CacheDBPath)
	if err != nil {
		slog.Error("failed to open result cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	store := cache.NewStore(kv, cache.WithStaleGuard(cfg.CacheStaleGuard))
	defer func() {
		if err := store.Close(); err != nil {
			slog.Debug("result cache close failed", "error", err)
		}
	}()

	_, cached, err := store.Get(ctx)
	if err != nil {
		slog.Warn("result cache unreadable at startup", "error", err)
	}

	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("failed to connect CDP controller", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	engine := capture.NewEngine(cdpClient, cfg.MaxHTMLBytes)
	broker := relay.NewBroker()
	notifier := notify.NewNotifier(&http.Client{Timeout: 10 * time.Second}, cfg.NotifyURL)

	var hooks []trigger.Hook
	if cfg.RunLogDir != "" {
		journal := runlog.NewWriter(cfg.RunLogDir, 256, 50)
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Debug("runlog close failed", "error", err)
			}
		}()
		hooks = append(hooks, journal.Hook)
	}
	if notifier.Enabled() {
		hooks = append(hooks, notifier.Scraped)
	}
	trig := trigger.New(trigger.Options{
		Tabs:    cdpClient,
		Scraper: engine,
		Cache:   store,
		Broker:  broker,
		Origin:  cfg.AllowedOrigin,
		Hooks:   hooks,
	})
	events := cdpClient.Watch(ctx, cdpcontrol.WatchOptions{
		Interval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		FirstRun: !cached,
	})
	triggerDone := make(chan struct{})
	go func() {
		defer close(triggerDone)
		trig.Run(ctx, events)
	}()

	svc := controller.NewService(cdpClient, engine, store, broker, cfg.AllowedOrigin)
	h := api.NewServer(svc, broker)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr := ln.Addr().String()
	srv := &http.Server{Handler: h}

	go func() {
		slog.Info("casewatch listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("casewatch server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("casewatch shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("casewatch shutdown failed", "error", err)
	}
	<-triggerDone
}

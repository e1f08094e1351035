package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/hcaptcha-monitor/internal/api"
	"github.com/user/hcaptcha-monitor/internal/archive"
	"github.com/user/hcaptcha-monitor/internal/config"
	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/fetch"
	"github.com/user/hcaptcha-monitor/internal/hcaptcha"
	"github.com/user/hcaptcha-monitor/internal/monitor"
	"github.com/user/hcaptcha-monitor/internal/monitoring"
	"github.com/user/hcaptcha-monitor/internal/notify"
	"github.com/user/hcaptcha-monitor/internal/proxy"
	"github.com/user/hcaptcha-monitor/pkg/logger"
)

// app holds everything built from the config file.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	ledger  *archive.Ledger
	monitor *monitor.Monitor
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func setup(ctx context.Context, configPath string) (*app, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	// Initialize structured logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("could not build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}

	// Output directories; the monitor cannot work without them.
	targets := cfg.Targets()
	a.ledger = archive.NewLedger(cfg.OutputDir)
	if err := a.ledger.Init(targets); err != nil {
		a.close()
		return nil, err
	}

	// Fetchers
	proxies := proxy.NewManager(cfg.Proxies, cfg.UserAgents)
	httpFetcher, err := fetch.NewHTTP(fetch.Options{Timeout: cfg.Timeout(), Proxies: proxies})
	if err != nil {
		a.close()
		return nil, err
	}
	var scriptFetcher fetch.Fetcher = httpFetcher
	if cfg.Fetcher == "browser" {
		browser := fetch.NewBrowser(cfg.Timeout(), proxies.GetUserAgent(), log)
		a.closers = append(a.closers, browser.Close)
		scriptFetcher = browser
	}

	client := hcaptcha.NewClient(scriptFetcher, httpFetcher, hcaptcha.Endpoints{
		BootstrapURL:  cfg.BootstrapURL,
		SiteConfigURL: cfg.SiteConfigURL,
		AssetHost:     cfg.AssetHost,
	})

	// Notification sinks
	var sinks []notify.Notifier
	if cfg.NotificationEndpoint != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.NotificationEndpoint, nil))
	}
	if cfg.RedisAddr != "" {
		pub := notify.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannel)
		if err := pub.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		sinks = append(sinks, pub)
	}
	router := notify.NewRouter(log, sinks...)
	if router.Len() == 0 {
		log.Warn("no notification sinks configured")
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	a.monitor = monitor.New(monitor.Config{
		Interval:  cfg.PollInterval(),
		Scripts:   cfg.Scripts,
		AssetHost: cfg.AssetHost,
	}, targets, client, a.ledger, archive.NewArchiver(httpFetcher, cfg.AssetHost, log), router, metrics, log)

	log.Info("configuration loaded",
		zap.Int("websites", len(targets)),
		zap.Strings("scripts", cfg.Scripts),
		zap.String("output", cfg.OutputDir),
		zap.String("fetcher", cfg.Fetcher),
	)
	return a, nil
}

func runLoop(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	var server *api.Server
	if a.cfg.ServerPort != "" {
		server = api.NewServer(a.cfg.ServerPort, a.ledger, prometheus.DefaultGatherer, a.logger)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("could not start server", zap.Error(err))
			}
		}()
		a.logger.Info("server started", zap.String("port", a.cfg.ServerPort))
	}

	a.monitor.Run(ctx)

	a.logger.Info("shutting down...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server forced to shutdown", zap.Error(err))
		}
	}
	return nil
}

func runOnce(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	report := a.monitor.RunCycle(ctx)
	failed := 0
	for _, t := range report.Targets {
		if t.Outcome == domain.OutcomeFailed {
			failed++
		}
	}
	a.logger.Info("cycle complete",
		zap.Int("targets", len(report.Targets)),
		zap.Int("failed", failed),
		zap.Duration("duration", report.Duration),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d website(s) failed", failed, len(report.Targets))
	}
	return nil
}

// Package monitor runs the poll loop: for every target, in order, it resolves
// the current asset bundle, archives it if it is new and sends a notification.
package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/hcaptcha-monitor/internal/archive"
	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/hcaptcha"
	"github.com/user/hcaptcha-monitor/internal/monitoring"
	"github.com/user/hcaptcha-monitor/internal/notify"
	"github.com/user/hcaptcha-monitor/pkg/utils"
)

// Resolver finds the current release of the provider for a target.
type Resolver interface {
	Version(ctx context.Context) (string, error)
	ResolveResourcePath(ctx context.Context, target domain.Target, version string) (string, error)
}

// AssetArchiver downloads the assets of a resource path into a directory.
type AssetArchiver interface {
	ArchiveAssets(ctx context.Context, resourcePath string, names []string, dir string) []domain.AssetResult
}

// Config holds the loop settings.
type Config struct {
	Interval  time.Duration
	Scripts   []string
	AssetHost string
}

// Monitor polls targets sequentially.
type Monitor struct {
	config   Config
	targets  []domain.Target
	resolver Resolver
	ledger   *archive.Ledger
	archiver AssetArchiver
	notifier notify.Notifier
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg Config, targets []domain.Target, r Resolver, l *archive.Ledger, a AssetArchiver, n notify.Notifier, m *monitoring.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		config:   cfg,
		targets:  targets,
		resolver: r,
		ledger:   l,
		archiver: a,
		notifier: n,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled: one cycle immediately, then one cycle
// per interval. The interval is measured from the end of a cycle.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started",
		zap.Int("targets", len(m.targets)),
		zap.Duration("interval", m.config.Interval),
		zap.Strings("scripts", m.config.Scripts),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-timer.C:
			m.RunCycle(ctx)
			timer.Reset(m.config.Interval)
		}
	}
}

// RunCycle checks every target once. A failing target never affects the
// others. Cancellation is checked before each target.
func (m *Monitor) RunCycle(ctx context.Context) domain.CycleReport {
	report := domain.CycleReport{StartedAt: m.now()}
	for _, target := range m.targets {
		if ctx.Err() != nil {
			m.logger.Info("cycle interrupted", zap.Int("checked", len(report.Targets)))
			break
		}
		report.Targets = append(report.Targets, m.checkTarget(ctx, target))
	}
	report.Duration = m.now().Sub(report.StartedAt)
	m.metrics.IncCycles()
	return report
}

func (m *Monitor) checkTarget(ctx context.Context, target domain.Target) domain.TargetReport {
	start := time.Now()
	defer func() {
		m.metrics.ObserveCheck(target.Host, time.Since(start).Seconds())
	}()

	log := m.logger.With(zap.String("host", target.Host), zap.String("sitekey", target.SiteKey))
	log.Info("locating version")

	report := domain.TargetReport{Target: target}

	scriptVer, err := m.resolver.Version(ctx)
	if err != nil {
		return m.fail(log, report, err)
	}

	resourcePath, err := m.resolver.ResolveResourcePath(ctx, target, scriptVer)
	if err != nil {
		return m.fail(log, report, err)
	}

	version := utils.TrailingSegment(resourcePath)
	if version != scriptVer {
		// The resource path is authoritative for archival.
		log.Debug("script version differs from resource path version",
			zap.String("script_version", scriptVer), zap.String("version", version))
	}

	isNew, err := m.ledger.IsNew(target, resourcePath)
	if err != nil {
		return m.fail(log, report, err)
	}
	if !isNew {
		log.Info("version unchanged", zap.String("version", version))
		report.Outcome = domain.OutcomeUnchanged
		m.metrics.IncChecks(target.Host, string(report.Outcome))
		return report
	}

	// Claim before downloading so a crash mid-download is not re-detected.
	dir, err := m.ledger.Claim(target, resourcePath)
	if err != nil {
		return m.fail(log, report, err)
	}
	log.Info("version changed", zap.String("version", version), zap.String("resource_path", resourcePath))
	m.metrics.IncVersionsDetected(target.Host)

	report.Assets = m.archiver.ArchiveAssets(ctx, resourcePath, m.config.Scripts, dir)
	for _, a := range report.Assets {
		if a.OK() {
			m.metrics.IncAssets("success")
			continue
		}
		m.metrics.IncAssets("failure")
		stage, kind := hcaptcha.Classify(a.Err)
		m.metrics.IncErrors(string(stage), string(kind))
	}

	release := domain.Release{
		Target:       target,
		Version:      version,
		ScriptVer:    scriptVer,
		ResourcePath: resourcePath,
		ResourceURL:  utils.ResourceURL(m.config.AssetHost, resourcePath),
		ArchiveDir:   dir,
		DetectedAt:   m.now(),
	}
	report.Release = &release
	report.Outcome = domain.OutcomeNew
	m.metrics.IncChecks(target.Host, string(report.Outcome))

	if err := m.notifier.Notify(ctx, release); err != nil {
		log.Warn("failed to send notification", zap.Error(err))
		m.metrics.IncNotifications("failure")
	} else {
		m.metrics.IncNotifications("success")
	}
	return report
}

func (m *Monitor) fail(log *zap.Logger, report domain.TargetReport, err error) domain.TargetReport {
	stage, kind := hcaptcha.Classify(err)
	fields := []zap.Field{zap.String("stage", string(stage)), zap.String("kind", string(kind)), zap.Error(err)}
	var se *hcaptcha.StageError
	if errors.As(err, &se) && !se.Transient() {
		fields = append(fields, zap.Bool("remote_format_changed", true))
	}
	log.Error("target check failed", fields...)

	m.metrics.IncErrors(string(stage), string(kind))
	m.metrics.IncChecks(report.Target.Host, string(domain.OutcomeFailed))
	report.Outcome = domain.OutcomeFailed
	report.Err = err
	return report
}

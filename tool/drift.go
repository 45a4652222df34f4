package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/tooltailor/override"
)

// DefaultDriftSchedule checks every server at the top of each hour.
const DefaultDriftSchedule = "0 * * * *"

var driftCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// DriftReport compares a server's catalog with what it reports live.
type DriftReport struct {
	Server string `json:"server"`
	// Extra lists live tools missing from the catalog.
	Extra []string `json:"extra"`
	// Missing lists catalog tools the server did not report.
	Missing   []string  `json:"missing"`
	CheckedAt time.Time `json:"checked_at"`
}

// HasDrift reports whether the catalog and live tools disagree.
func (r DriftReport) HasDrift() bool {
	return len(r.Extra) > 0 || len(r.Missing) > 0
}

// Drift discovers server's live tools and compares them with its catalog.
// Unlike Load, a discovery failure is returned.
func (s *CustomizationService) Drift(ctx context.Context, server string) (DriftReport, error) {
	spec, err := s.Server(server)
	if err != nil {
		return DriftReport{}, err
	}
	if s.discoverer == nil || spec.Transport.IsZero() {
		return DriftReport{}, discoveryError(errors.New("no transport configured"), server)
	}

	started := s.now()
	live, err := s.discoverer.Discover(ctx, spec)
	s.observer.ObserveDiscovery(DiscoveryObservation{
		Server:     server,
		Tools:      len(live),
		DurationMS: s.now().Sub(started).Milliseconds(),
		Success:    err == nil,
		ErrorCode:  ErrorCode(err),
	})
	if err != nil {
		return DriftReport{}, err
	}

	extra, missing := override.Drift(spec.Tools, live)
	report := DriftReport{Server: server, Extra: extra, Missing: missing, CheckedAt: s.now().UTC()}
	s.observer.ObserveDrift(DriftObservation{Server: server, Extra: len(extra), Missing: len(missing)})
	return report, nil
}

// DriftHandler receives each report produced by a watcher pass.
type DriftHandler func(report DriftReport, err error)

// DriftWatcherConfig configures a DriftWatcher.
type DriftWatcherConfig struct {
	Service *CustomizationService
	// Schedule is a five-field UTC cron expression.
	Schedule string
	OnReport DriftHandler
	Logger   *slog.Logger
}

// DriftWatcher re-runs discovery for every configured server on a cron
// schedule and reports drift.
type DriftWatcher struct {
	service  *CustomizationService
	schedule cron.Schedule
	onReport DriftHandler
	logger   *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// ParseSchedule parses a five-field cron expression. Timezone prefixes are
// rejected; schedules run in UTC.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("tool: cron expression is required")
	}
	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("tool: cron expression must not carry a timezone")
	}
	schedule, err := driftCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("tool: invalid cron expression: %w", err)
	}
	return schedule, nil
}

// NewDriftWatcher validates cfg.
func NewDriftWatcher(cfg DriftWatcherConfig) (*DriftWatcher, error) {
	if cfg.Service == nil {
		return nil, errors.New("tool: drift watcher service is nil")
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultDriftSchedule
	}
	schedule, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnReport == nil {
		cfg.OnReport = func(DriftReport, error) {}
	}
	return &DriftWatcher{
		service:  cfg.Service,
		schedule: schedule,
		onReport: cfg.OnReport,
		logger:   cfg.Logger,
	}, nil
}

// Start schedules passes until Stop is called. Starting twice is a no-op.
func (w *DriftWatcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("tool: drift watcher is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(cron.WithLocation(time.UTC))
	c.Schedule(w.schedule, cron.FuncJob(func() { w.RunOnce(runCtx) }))
	c.Start()
	w.cron = c
	w.cancel = cancel
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (w *DriftWatcher) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce checks every server with a transport and returns the reports.
func (w *DriftWatcher) RunOnce(ctx context.Context) []DriftReport {
	reports := make([]DriftReport, 0)
	for _, spec := range w.service.Servers() {
		if spec.Transport.IsZero() {
			continue
		}
		report, err := w.service.Drift(ctx, spec.Name)
		if err != nil {
			w.logger.Warn("drift check failed", "server", spec.Name, "error", err)
			w.onReport(DriftReport{Server: spec.Name}, err)
			continue
		}
		if report.HasDrift() {
			w.logger.Warn("tool catalog drift detected",
				"server", report.Server,
				"extra", report.Extra,
				"missing", report.Missing,
			)
		}
		w.onReport(report, nil)
		reports = append(reports, report)
	}
	return reports
}

// Package cleanup runs the periodic retention sweep described in spec
// §3/§9: closing stale sessions, deleting expired stored messages, and
// purging dead cache rows. Structured on the teacher's pkg/cleanup
// (Start/Stop/run/runAll lifecycle), but driven by a cron schedule
// instead of a fixed ticker, since spec §9 calls for an operator-tunable
// cadence (RETENTION_CRON) rather than a hardcoded interval.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/session"
)

// CachePurger is satisfied by *cache.Hierarchy so the sweep can clear
// expired rows without depending on cache internals.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Service periodically enforces retention policy across the session
// store and the sqlite-backed cache layers.
type Service struct {
	retentionDays    int
	inactivityWindow time.Duration
	schedule         string

	sessions *session.Store
	cache    CachePurger
	logger   *slog.Logger

	cronEngine *cron.Cron
}

// NewService builds a cleanup service.
func NewService(cfg config.RetentionConfig, schedule string, sessions *session.Store, cache CachePurger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retentionDays:    cfg.StoredMessageRetentionDays,
		inactivityWindow: cfg.InactivityWindow,
		schedule:         schedule,
		sessions:         sessions,
		cache:            cache,
		logger:           logger,
	}
}

// Start registers the sweep on the cron schedule and runs it once
// immediately, mirroring the teacher's run() doing an initial pass
// before waiting on the first tick.
func (s *Service) Start(ctx context.Context) error {
	if s.cronEngine != nil {
		return nil
	}

	s.cronEngine = cron.New()
	if _, err := s.cronEngine.AddFunc(s.schedule, func() { s.runAll(ctx) }); err != nil {
		s.cronEngine = nil
		return err
	}
	s.cronEngine.Start()

	go s.runAll(ctx)

	s.logger.Info("cleanup service started",
		"retention_days", s.retentionDays,
		"inactivity_window", s.inactivityWindow,
		"schedule", s.schedule)
	return nil
}

// Stop halts the cron engine and waits for any in-flight job.
func (s *Service) Stop() {
	if s.cronEngine == nil {
		return
	}
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.cronEngine = nil
	s.logger.Info("cleanup service stopped")
}

func (s *Service) runAll(ctx context.Context) {
	s.sweepSessions(ctx)
	s.purgeCache(ctx)
}

func (s *Service) sweepSessions(ctx context.Context) {
	result, err := s.sessions.SweepExpired(ctx, s.retentionDays, s.inactivityWindow)
	if err != nil {
		s.logger.Error("retention: session sweep failed", "error", err)
		return
	}
	if result.SessionsClosed > 0 || result.MessagesDeleted > 0 {
		s.logger.Info("retention: session sweep complete",
			"sessions_closed", result.SessionsClosed,
			"messages_deleted", result.MessagesDeleted)
	}
}

func (s *Service) purgeCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.Purge(ctx)
	if err != nil {
		s.logger.Error("retention: cache purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("retention: cache purge complete", "rows_removed", n)
	}
}

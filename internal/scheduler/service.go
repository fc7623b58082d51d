package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rugguard/rugguard-bot/internal/dispatcher"
	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/rugguard/rugguard-bot/internal/notifications"
	"github.com/rugguard/rugguard-bot/internal/trustlist"
	"github.com/sirupsen/logrus"
)

// Service runs the background maintenance jobs: keeping the trusted-list
// cache warm so triggers never pay the fetch latency, and a daily operator
// summary of dispatch activity.
type Service struct {
	cache      *trustlist.Cache
	dispatcher *dispatcher.Service
	notifier   notifications.Notifier
	cron       *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cache *trustlist.Cache, disp *dispatcher.Service, notifier notifications.Notifier) *Service {
	return &Service{
		cache:      cache,
		dispatcher: disp,
		notifier:   notifier,
		cron:       cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled jobs
func (s *Service) Start() error {
	// Warm the trusted list every 30 minutes; a stale snapshot refreshes
	// lazily anyway, this just moves the cost off the reply path.
	_, err := s.cron.AddFunc("0 */30 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.cache.Warm(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule trusted-list warmup: %w", err)
	}

	// Daily activity summary at 9 AM UTC.
	_, err = s.cron.AddFunc("0 0 9 * * *", func() {
		logrus.Info("Sending daily activity summary")
		alert := &models.Alert{
			Type:      "info",
			Title:     "Daily dispatch summary",
			Message:   s.dispatcher.GetMetrics(),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.notifier.SendAlert(alert); err != nil {
			logrus.Errorf("Daily summary delivery failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule daily summary: %w", err)
	}

	s.cron.Start()
	logrus.Info("Scheduler started")
	return nil
}

// Stop halts the scheduled jobs
func (s *Service) Stop() {
	s.cron.Stop()
	logrus.Info("Scheduler stopped")
}

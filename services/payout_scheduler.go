// services/payout_scheduler.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PayoutScheduler ticks the payout batch on a fixed interval until its
// context is cancelled. It runs once immediately on start so a restart does
// not postpone overdue payouts by a full interval.
type PayoutScheduler struct {
	Payouts  *PayoutService
	Interval time.Duration
}

func NewPayoutScheduler(payouts *PayoutService, interval time.Duration) *PayoutScheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &PayoutScheduler{Payouts: payouts, Interval: interval}
}

func (s *PayoutScheduler) Run(ctx context.Context) {
	logrus.WithField("interval", s.Interval.String()).Info("payout scheduler started")

	tick := func() {
		if _, err := s.Payouts.RunOnce(ctx, time.Now().UTC()); err != nil {
			logrus.WithError(err).Error("payout batch run failed")
		}
	}

	tick()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("payout scheduler stopped")
			return
		case <-ticker.C:
			tick()
		}
	}
}

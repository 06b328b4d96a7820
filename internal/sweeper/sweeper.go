// internal/sweeper/sweeper.go
package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/services"
)

// Sweeper drives the auction expiry sweep on a fixed interval. Each pass is
// independent; transient settlement failures are logged and picked up again
// on the next tick.
type Sweeper struct {
	auctions *services.AuctionService
	interval time.Duration
}

func New(auctions *services.AuctionService, interval time.Duration) *Sweeper {
	return &Sweeper{
		auctions: auctions,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	logrus.WithField("interval", s.interval).Info("Auction sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Auction sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	closed, err := s.auctions.SweepExpiredAuctions()
	if err != nil {
		entry := logrus.WithError(err)
		if apperrors.IsRetryable(err) {
			entry.Warn("Sweep pass aborted, will retry on next tick")
		} else {
			entry.Error("Sweep pass failed")
		}
		return
	}

	if len(closed) > 0 {
		logrus.WithField("settled", len(closed)).Info("Sweep pass completed")
	}
}

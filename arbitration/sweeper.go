package arbitration

import (
	"context"
	"errors"
	"time"

	"auditflow/metrics"
)

// RunSweeper settles polls whose force-vote deadline passed without a
// closing vote, so stalled disputes do not wait for the next arbiter to
// show up. Blocks until ctx is cancelled.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	metrics.SweepRun()
	expired, err := c.store.ListExpired(ctx, c.now())
	if err != nil {
		c.logger.Error("sweep: list expired polls", "error", err)
		return
	}

	for _, rec := range expired {
		info, err := c.gateway.GetPaymentInfo(ctx, rec.CurrentAuditID)
		if err != nil {
			c.logger.Error("sweep: payment info", "postID", rec.PostID, "error", err)
			continue
		}
		switch err := c.settle(ctx, rec, info); {
		case err == nil:
			c.logger.Info("sweep: poll settled", "postID", rec.PostID, "pollID", rec.VoteID)
		case errors.Is(err, ErrAlreadyResolving):
			// lost the race to a concurrent vote call
		case errors.Is(err, ErrUnresolvable):
			c.logger.Warn("sweep: poll not settleable yet", "postID", rec.PostID, "status", info.Status)
		default:
			c.logger.Error("sweep: settle", "postID", rec.PostID, "error", err)
		}
	}
}

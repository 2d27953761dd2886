package delivery

import (
	"context"
	"time"

	"rescuelink/internal/models"
	"rescuelink/pkg/logger"
)

// Poller reconciles acknowledgments from the ingest API. Dispatch consoles
// ack alerts out of band, so sent events would otherwise sit until the
// ack-overdue sweep recycled them.
type Poller struct {
	ingest   IngestClient
	acks     Acknowledger
	interval time.Duration
	logger   *logger.Logger
}

func NewPoller(ingestClient IngestClient, acks Acknowledger, interval time.Duration, log *logger.Logger) *Poller {
	return &Poller{
		ingest:   ingestClient,
		acks:     acks,
		interval: interval,
		logger:   log.WithComponent("ack_poller"),
	}
}

// Start polls until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Ack poller stopped")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce fetches the remote alert statuses and records any new acks.
// Exported so tests can step the poller without the timing loop.
func (p *Poller) PollOnce(ctx context.Context) {
	statuses, err := p.ingest.ActiveAlerts(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to poll ingest for ack status")
		return
	}

	for _, status := range statuses {
		if !status.Acknowledged {
			continue
		}
		if err := p.acks.Acknowledge(ctx, status.ID, models.AckSourcePoll); err != nil {
			p.logger.WithEventID(status.ID).WithError(err).Error("Failed to record polled ack")
		}
	}
}

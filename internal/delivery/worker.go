package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rescuelink/internal/config"
	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"
	"rescuelink/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Worker drains the event store against the ingest API. One worker owns the
// store's delivery work per process; the sending state doubles as the mutual
// exclusion flag, claimed with a compare-and-swap so at most one attempt per
// event is ever in flight.
type Worker struct {
	events   interfaces.EventRepository
	ledger   interfaces.LedgerRepository
	ingest   IngestClient
	fallback FallbackNotifier
	notifier Notifier
	backoff  Backoff
	cfg      *config.WorkerConfig
	logger   *logger.Logger
	cron     *cron.Cron
}

func NewWorker(
	events interfaces.EventRepository,
	ledger interfaces.LedgerRepository,
	ingestClient IngestClient,
	fallback FallbackNotifier,
	notifier Notifier,
	cfg *config.WorkerConfig,
	log *logger.Logger,
) *Worker {
	return &Worker{
		events:   events,
		ledger:   ledger,
		ingest:   ingestClient,
		fallback: fallback,
		notifier: notifier,
		backoff: Backoff{
			Base:   cfg.BackoffBase,
			Cap:    cfg.BackoffCap,
			Jitter: cfg.BackoffJitter,
		},
		cfg:    cfg,
		logger: log.WithComponent("delivery_worker"),
	}
}

// Start recovers state left over from a crash, schedules the periodic
// sweeps, and runs the drain loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if recovered, err := w.events.RecoverStaleSending(ctx, w.cfg.StaleSendTimeout); err != nil {
		w.logger.WithError(err).Error("Startup recovery sweep failed")
	} else if recovered > 0 {
		w.logger.Infof("Recovered %d events stuck in sending", recovered)
	}

	w.cron = cron.New()
	w.cron.AddFunc(w.cfg.SweepSchedule, func() { w.sweep(ctx) })
	w.cron.Start()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cronCtx := w.cron.Stop()
			<-cronCtx.Done()
			w.logger.Info("Delivery worker stopped")
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce processes one batch of eligible events. Exported so tests can
// step the worker without the timing loop.
func (w *Worker) DrainOnce(ctx context.Context) {
	pending, err := w.events.ListPending(ctx, time.Now(), w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Error("Failed to list pending events")
		return
	}

	for _, event := range pending {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, event)
	}
}

func (w *Worker) deliver(ctx context.Context, event *models.SOSEvent) {
	// A resolve or a racing ack channel may have finished this event since
	// it was listed; re-sending after an ack would double-notify responders.
	if w.shortCircuitAcknowledged(ctx, event) {
		return
	}

	attempt := event.Attempts + 1
	now := time.Now()
	claimed, err := w.events.TransitionState(ctx, event.ID, event.DeliveryState, models.DeliveryStateSending, map[string]interface{}{
		"attempts":      attempt,
		"sending_since": now,
	})
	if err != nil {
		w.logger.WithEventID(event.ID).WithError(err).Error("Failed to claim event")
		return
	}
	if !claimed {
		// Lost the race to another actor; nothing to do.
		return
	}
	w.logger.LogStateChange(event.ID, string(event.DeliveryState), string(models.DeliveryStateSending), attempt)

	attemptCtx, cancel := context.WithTimeout(ctx, w.attemptTimeout())
	err = w.ingest.Submit(attemptCtx, event)
	cancel()
	w.logger.LogDeliveryAttempt(event.ID, attempt, err)

	switch {
	case err == nil:
		w.markSent(ctx, event, attempt)
	case !Retryable(err):
		w.abandon(ctx, event, models.DeliveryStateSending, attempt, err)
	case attempt >= w.cfg.MaxAttempts:
		w.abandon(ctx, event, models.DeliveryStateSending, attempt, fmt.Errorf("attempts exhausted: %w", err))
	default:
		w.scheduleRetry(ctx, event, attempt, err)
	}
}

func (w *Worker) shortCircuitAcknowledged(ctx context.Context, event *models.SOSEvent) bool {
	acked, err := w.ledger.HasAcknowledged(ctx, event.ID)
	if err != nil {
		w.logger.WithEventID(event.ID).WithError(err).Warn("Ledger check failed, proceeding with send")
		return false
	}
	if !acked {
		return false
	}

	ok, err := w.events.TransitionState(ctx, event.ID, event.DeliveryState, models.DeliveryStateAcknowledged, map[string]interface{}{
		"acknowledged_at": time.Now(),
	})
	if err != nil {
		w.logger.WithEventID(event.ID).WithError(err).Error("Failed to finalize acknowledged event")
		return true
	}
	if ok {
		w.logger.LogStateChange(event.ID, string(event.DeliveryState), string(models.DeliveryStateAcknowledged), event.Attempts)
		w.notifyState(ctx, event.ID)
	}
	return true
}

func (w *Worker) markSent(ctx context.Context, event *models.SOSEvent, attempt int) {
	ok, err := w.events.TransitionState(ctx, event.ID, models.DeliveryStateSending, models.DeliveryStateSent, map[string]interface{}{
		"sent_at":       time.Now(),
		"sending_since": nil,
		"last_error":    "",
	})
	if err != nil {
		w.logger.WithEventID(event.ID).WithError(err).Error("Failed to mark event sent")
		return
	}
	if ok {
		w.logger.LogStateChange(event.ID, string(models.DeliveryStateSending), string(models.DeliveryStateSent), attempt)
		w.notifyState(ctx, event.ID)
	}
}

func (w *Worker) scheduleRetry(ctx context.Context, event *models.SOSEvent, attempt int, cause error) {
	delay := w.backoff.Delay(attempt)
	ok, err := w.events.TransitionState(ctx, event.ID, models.DeliveryStateSending, models.DeliveryStateFailed, map[string]interface{}{
		"last_error":      cause.Error(),
		"next_attempt_at": time.Now().Add(delay),
		"sending_since":   nil,
	})
	if err != nil {
		w.logger.WithEventID(event.ID).WithError(err).Error("Failed to schedule retry")
		return
	}
	if ok {
		w.logger.LogStateChange(event.ID, string(models.DeliveryStateSending), string(models.DeliveryStateFailed), attempt)
		w.logger.WithEventID(event.ID).Infof("Retry %d/%d in %s", attempt, w.cfg.MaxAttempts, delay.Round(time.Millisecond))
		w.notifyState(ctx, event.ID)
	}
}

func (w *Worker) abandon(ctx context.Context, event *models.SOSEvent, from models.DeliveryState, attempt int, cause error) {
	ok, err := w.events.TransitionState(ctx, event.ID, from, models.DeliveryStateAbandoned, map[string]interface{}{
		"last_error":    cause.Error(),
		"abandoned_at":  time.Now(),
		"sending_since": nil,
	})
	if err != nil {
		w.logger.WithEventID(event.ID).WithError(err).Error("Failed to abandon event")
		return
	}
	if !ok {
		return
	}

	w.logger.LogStateChange(event.ID, string(from), string(models.DeliveryStateAbandoned), attempt)
	w.logger.WithEventID(event.ID).WithError(cause).Error("Delivery abandoned, firing fallback")
	w.notifyState(ctx, event.ID)
	w.fireFallback(ctx, event.ID)
}

// fireFallback invokes the SMS fan-out at most once per event; the flag flip
// in the store is the exactly-once guard across restarts.
func (w *Worker) fireFallback(ctx context.Context, eventID string) {
	first, err := w.events.MarkFallbackNotified(ctx, eventID)
	if err != nil {
		w.logger.WithEventID(eventID).WithError(err).Error("Failed to mark fallback notified")
		return
	}
	if !first {
		return
	}

	event, err := w.events.GetByID(ctx, eventID)
	if err != nil {
		w.logger.WithEventID(eventID).WithError(err).Error("Failed to load event for fallback")
		return
	}

	if err := w.fallback.Notify(ctx, event); err != nil {
		// Best effort only; the event record keeps the abandoned state.
		w.logger.WithEventID(eventID).WithError(err).Error("Fallback notification failed")
	}
}

// sweep runs the periodic maintenance passes: stuck sending records from a
// crashed attempt, and sent events whose ack never arrived.
func (w *Worker) sweep(ctx context.Context) {
	if recovered, err := w.events.RecoverStaleSending(ctx, w.cfg.StaleSendTimeout); err != nil {
		w.logger.WithError(err).Error("Stale sending sweep failed")
	} else if recovered > 0 {
		w.logger.Infof("Recovered %d stale sending events", recovered)
	}

	overdue, err := w.events.ListAckOverdue(ctx, w.cfg.AckTimeout)
	if err != nil {
		w.logger.WithError(err).Error("Ack overdue sweep failed")
		return
	}

	for _, event := range overdue {
		if acked, err := w.ledger.HasAcknowledged(ctx, event.ID); err == nil && acked {
			continue
		}
		if event.Attempts >= w.cfg.MaxAttempts {
			w.abandon(ctx, event, models.DeliveryStateSent, event.Attempts, errors.New("acknowledgment never arrived"))
			continue
		}
		ok, err := w.events.TransitionState(ctx, event.ID, models.DeliveryStateSent, models.DeliveryStateFailed, map[string]interface{}{
			"last_error":      "acknowledgment overdue",
			"next_attempt_at": time.Now(),
		})
		if err != nil {
			w.logger.WithEventID(event.ID).WithError(err).Error("Failed to recycle ack-overdue event")
			continue
		}
		if ok {
			w.logger.LogStateChange(event.ID, string(models.DeliveryStateSent), string(models.DeliveryStateFailed), event.Attempts)
			w.notifyState(ctx, event.ID)
		}
	}
}

func (w *Worker) notifyState(ctx context.Context, eventID string) {
	if w.notifier == nil {
		return
	}
	event, err := w.events.GetByID(ctx, eventID)
	if err != nil {
		return
	}
	w.notifier.EventStateChanged(event)
}

func (w *Worker) attemptTimeout() time.Duration {
	if w.cfg.StaleSendTimeout > 0 {
		return w.cfg.StaleSendTimeout
	}
	return 10 * time.Second
}

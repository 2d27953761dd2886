package services

import (
	"context"
	"fmt"
	"time"

	"rescuelink/internal/models"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/push"
	"rescuelink/pkg/websocket"
)

const pushTimeout = 5 * time.Second

// NotificationService broadcasts delivery state changes: every change goes
// to the dashboard stream, and terminal states also push back to the
// triggering device so the user knows whether help is coming.
type NotificationService interface {
	EventStateChanged(event *models.SOSEvent)
}

type notificationService struct {
	hub       *websocket.Hub
	providers map[string]push.PushProvider // keyed by device platform
	logger    *logger.Logger
}

// NewNotificationService builds the notifier. hub may be nil (no dashboard
// stream) and providers may be empty (push disabled).
func NewNotificationService(hub *websocket.Hub, providers map[string]push.PushProvider, log *logger.Logger) NotificationService {
	if providers == nil {
		providers = make(map[string]push.PushProvider)
	}
	return &notificationService{
		hub:       hub,
		providers: providers,
		logger:    log.WithComponent("notifications"),
	}
}

func (n *notificationService) EventStateChanged(event *models.SOSEvent) {
	if n.hub != nil {
		n.hub.Broadcast("alert_update", event)
	}
	if event.DeliveryState.Terminal() {
		go n.pushStatus(event)
	}
}

func (n *notificationService) pushStatus(event *models.SOSEvent) {
	title, body := statusNotification(event)
	if title == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	for _, token := range event.Profile.DeviceTokens {
		provider, ok := n.providers[token.Platform]
		if !ok {
			continue
		}
		_, err := provider.SendNotification(ctx, &push.NotificationRequest{
			Token:    token.Token,
			Title:    title,
			Body:     body,
			Priority: "high",
			Sound:    "default",
			Data: map[string]string{
				"event_id":       event.ID,
				"delivery_state": string(event.DeliveryState),
			},
		})
		if err != nil {
			n.logger.WithEventID(event.ID).WithError(err).
				WithField("platform", token.Platform).Warn("Status push failed")
		}
	}
}

func statusNotification(event *models.SOSEvent) (title, body string) {
	switch event.DeliveryState {
	case models.DeliveryStateAcknowledged:
		if event.AckSource == models.AckSourceUserResolve {
			return "SOS resolved", "Your alert was cancelled."
		}
		return "Help is on the way", "Responders have received your SOS alert."
	case models.DeliveryStateAbandoned:
		return "SOS delivery failed",
			fmt.Sprintf("We could not reach dispatch after %d attempts. Your emergency contacts were texted directly. Call emergency services if you can.", event.Attempts)
	}
	return "", ""
}

package services

import (
	"context"
	"fmt"
	"strings"

	"rescuelink/internal/config"
	"rescuelink/internal/models"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/sms"
)

// FallbackService fans out the last-resort SMS after delivery is abandoned.
// Every emergency contact on the snapshot plus the staffed dispatch number
// gets the full alert text, so the incident reaches a human even when the
// ingest API never did.
type FallbackService interface {
	Notify(ctx context.Context, event *models.SOSEvent) error
}

type fallbackService struct {
	provider sms.SMSProvider
	cfg      *config.SMSConfig
	logger   *logger.Logger
}

func NewFallbackService(provider sms.SMSProvider, cfg *config.SMSConfig, log *logger.Logger) FallbackService {
	return &fallbackService{
		provider: provider,
		cfg:      cfg,
		logger:   log.WithComponent("fallback"),
	}
}

func (f *fallbackService) Notify(ctx context.Context, event *models.SOSEvent) error {
	recipients := f.recipients(event)
	if len(recipients) == 0 {
		f.logger.WithEventID(event.ID).Warn("No fallback recipients, alert goes nowhere")
		return fmt.Errorf("event %s has no fallback recipients", event.ID)
	}

	message := FormatAlertSMS(event)
	requests := make([]*sms.SMSRequest, 0, len(recipients))
	for _, to := range recipients {
		requests = append(requests, &sms.SMSRequest{
			To:      to,
			From:    f.cfg.DefaultFrom,
			Message: message,
		})
	}

	responses, err := f.provider.SendBulkSMS(ctx, requests)
	if err != nil {
		return fmt.Errorf("fallback SMS fan-out failed: %w", err)
	}

	failed := 0
	for _, resp := range responses {
		if resp.Error != "" {
			failed++
		}
	}
	f.logger.WithEventID(event.ID).
		WithField("recipients", len(recipients)).
		WithField("failed", failed).
		Info("Fallback SMS fan-out complete")
	if failed == len(responses) {
		return fmt.Errorf("all %d fallback SMS sends failed", failed)
	}
	return nil
}

// recipients dedups the contact numbers plus the dispatch desk.
func (f *fallbackService) recipients(event *models.SOSEvent) []string {
	seen := make(map[string]bool)
	var recipients []string
	add := func(phone string) {
		if phone == "" || seen[phone] {
			return
		}
		seen[phone] = true
		recipients = append(recipients, phone)
	}

	for _, contact := range event.Profile.EmergencyContacts {
		add(contact.Phone)
	}
	add(f.cfg.DispatchNumber)
	return recipients
}

// FormatAlertSMS renders the alert as a plain text message a responder can
// act on from a phone with no app installed.
func FormatAlertSMS(event *models.SOSEvent) string {
	var b strings.Builder
	b.WriteString("🚨 RESCUELINK SOS ALERT 🚨\n")
	fmt.Fprintf(&b, "ID: %s\n", event.ID)
	fmt.Fprintf(&b, "Name: %s\n", event.Profile.Name)
	if event.Profile.Age > 0 {
		fmt.Fprintf(&b, "Age: %d\n", event.Profile.Age)
	}
	if event.Profile.BloodGroup != "" {
		fmt.Fprintf(&b, "Blood Group: %s\n", event.Profile.BloodGroup)
	}
	if len(event.Profile.MedicalConditions) > 0 {
		fmt.Fprintf(&b, "Medical: %s\n", strings.Join(event.Profile.MedicalConditions, ", "))
	}
	if event.Location != nil {
		fmt.Fprintf(&b, "Location: https://maps.google.com/?q=%f,%f\n",
			event.Location.Latitude, event.Location.Longitude)
	} else {
		b.WriteString("Location: unknown\n")
	}
	fmt.Fprintf(&b, "Emergency: %s\n", event.EmergencyType)
	fmt.Fprintf(&b, "Time: %s\n", event.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Urgency: %s\n", strings.ToUpper(string(event.Urgency)))
	b.WriteString("RESCUE NEEDED - please respond or call emergency services.")
	return b.String()
}

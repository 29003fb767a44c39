package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/sendgrid"
)

// Notification events emitted by the group-buy core.
const (
	EventParticipantJoined = "group.participant_joined"
	EventProposalSubmitted = "group.proposal_submitted"
	EventProposalApproved  = "group.proposal_approved"
	EventProposalRejected  = "group.proposal_rejected"
	EventPaymentUpdated    = "group.payment_updated"
	EventStatusChanged     = "group.status_changed"
)

// Notifier is the external notification sink. Fire and forget: Notify never
// blocks the caller and a delivery failure never invalidates the mutation
// that triggered it.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any)
}

type logNotifier struct {
	log *logger.Logger
}

// NewLogNotifier is the fallback sink used when no mail transport is
// configured.
func NewLogNotifier(log *logger.Logger) Notifier {
	return &logNotifier{log: log.With("service", "LogNotifier")}
}

func (n *logNotifier) Notify(ctx context.Context, event string, payload map[string]any) {
	n.log.Info("notification", "event", event, "payload", payload)
}

type emailNotifier struct {
	log        *logger.Logger
	mail       sendgrid.Client
	recipients []sendgrid.EmailAddress
}

// NewEmailNotifier delivers notifications by email to the configured admin
// recipients (comma-separated NOTIFY_ADMIN_EMAILS).
func NewEmailNotifier(log *logger.Logger, mail sendgrid.Client, adminEmails string) (Notifier, error) {
	if mail == nil {
		return nil, fmt.Errorf("mail client required")
	}
	var recipients []sendgrid.EmailAddress
	for _, addr := range strings.Split(adminEmails, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		recipients = append(recipients, sendgrid.EmailAddress{Email: addr})
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no notification recipients configured")
	}
	return &emailNotifier{
		log:        log.With("service", "EmailNotifier"),
		mail:       mail,
		recipients: recipients,
	}, nil
}

func (n *emailNotifier) Notify(ctx context.Context, event string, payload map[string]any) {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		n.log.Warn("notification payload marshal failed", "event", event, "error", err)
		return
	}
	// Detached from the request context: the caller must never wait on, or
	// fail because of, notification delivery.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, sendErr := n.mail.Send(sendCtx, sendgrid.SendEmailRequest{
			To:      n.recipients,
			Subject: "[groupbuy] " + event,
			Text:    string(body),
		})
		if sendErr != nil {
			n.log.Warn("notification delivery failed", "event", event, "error", sendErr)
		}
	}()
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gopkg.in/yaml.v3"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// PaymentProvider describes one way a participant can pay (mobile money,
// bank transfer, ...). Loaded from the provider catalog file; the core never
// talks to a payment processor, it only records externally-confirmed status.
type PaymentProvider struct {
	Name         string `yaml:"name" json:"name"`
	URLTemplate  string `yaml:"url_template" json:"-"`
	PhoneNumber  string `yaml:"phone_number" json:"phone_number,omitempty"`
	Instructions string `yaml:"instructions" json:"instructions,omitempty"`
}

type providerCatalog struct {
	Providers []PaymentProvider `yaml:"providers"`
}

// LoadPaymentProviders reads the YAML provider catalog. A missing path is
// not an error; it just means no payment links get issued.
func LoadPaymentProviders(path string) ([]PaymentProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payment providers: %w", err)
	}
	var catalog providerCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse payment providers: %w", err)
	}
	return catalog.Providers, nil
}

// PaymentLink is one issued payment descriptor for a participant.
type PaymentLink struct {
	Provider     string `json:"provider"`
	URL          string `json:"url,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type PaymentLinksResult struct {
	Reference string        `json:"reference"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Links     []PaymentLink `json:"links"`
}

// PaymentService tracks per-participant payment state and issues
// provider-agnostic payment links.
type PaymentService interface {
	UpdateStatus(ctx context.Context, groupID, participantID uuid.UUID, update repos.PaymentUpdate) (*types.Participant, error)

	// PaymentLinks resolves the participant by phone (guests) or id and
	// issues links with an idempotent reference: the same participant always
	// gets the same reference back.
	PaymentLinks(ctx context.Context, groupID uuid.UUID, participantID *uuid.UUID, phone string) (*PaymentLinksResult, error)
}

type paymentService struct {
	db           *gorm.DB
	log          *logger.Logger
	groups       repos.GroupOrderRepo
	participants repos.ParticipantRepo
	providers    []PaymentProvider
	notifier     Notifier
	groupEvents  GroupNotifier
}

func NewPaymentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	groupRepo repos.GroupOrderRepo,
	participantRepo repos.ParticipantRepo,
	providers []PaymentProvider,
	notifier Notifier,
	groupEvents GroupNotifier,
) PaymentService {
	return &paymentService{
		db:           db,
		log:          baseLog.With("service", "PaymentService"),
		groups:       groupRepo,
		participants: participantRepo,
		providers:    providers,
		notifier:     notifier,
		groupEvents:  groupEvents,
	}
}

func (s *paymentService) UpdateStatus(ctx context.Context, groupID, participantID uuid.UUID, update repos.PaymentUpdate) (*types.Participant, error) {
	if !update.Status.Valid() {
		return nil, apierr.Validationf("unknown payment status %q", update.Status)
	}
	if update.PaidAmount != nil && *update.PaidAmount < 0 {
		return nil, apierr.Validationf("paid amount cannot be negative")
	}

	group, err := s.groups.GetByID(ctx, nil, groupID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, apierr.NotFoundf("group %s not found", groupID)
	}
	participant, err := s.participants.GetByID(ctx, nil, participantID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if participant == nil || participant.GroupOrderID != groupID {
		return nil, apierr.NotFoundf("participant %s not found in group %s", participantID, group.Code)
	}

	if err := s.participants.UpdatePayment(ctx, nil, participantID, update); err != nil {
		return nil, apierr.Internal(err)
	}

	participant.PaymentStatus = update.Status
	if update.PaidAmount != nil {
		participant.PaidAmount = *update.PaidAmount
	}
	if update.TransactionID != nil {
		participant.TransactionID = *update.TransactionID
	}
	if update.AdminNote != nil {
		participant.AdminNote = *update.AdminNote
	}

	s.groupEvents.PaymentUpdated(group, participant)
	s.notifier.Notify(ctx, EventPaymentUpdated, map[string]any{
		"group_id":       group.ID,
		"group_code":     group.Code,
		"participant":    participant.DisplayName(),
		"payment_status": update.Status,
		"paid_amount":    participant.PaidAmount,
	})
	return participant, nil
}

func (s *paymentService) PaymentLinks(ctx context.Context, groupID uuid.UUID, participantID *uuid.UUID, phone string) (*PaymentLinksResult, error) {
	group, err := s.groups.GetByID(ctx, nil, groupID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, apierr.NotFoundf("group %s not found", groupID)
	}

	var participant *types.Participant
	switch {
	case participantID != nil:
		participant, err = s.participants.GetByID(ctx, nil, *participantID)
		if err == nil && participant != nil && participant.GroupOrderID != groupID {
			participant = nil
		}
	case strings.TrimSpace(phone) != "":
		participant, err = s.participants.FindByGroupAndPhone(ctx, nil, groupID, Actor{Phone: phone}.NormalizedPhone())
	default:
		return nil, apierr.Validationf("participant id or phone required")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if participant == nil {
		return nil, apierr.NotFoundf("participant not found in group %s", group.Code)
	}

	reference := participant.PaymentReference
	if reference == "" {
		reference = paymentReference(group.ID, participant)
		// Conditional write keeps the first issued reference authoritative
		// even under concurrent requests.
		if err := s.participants.SetPaymentReference(ctx, nil, participant.ID, reference); err != nil {
			return nil, apierr.Internal(err)
		}
		stored, sErr := s.participants.GetByID(ctx, nil, participant.ID)
		if sErr == nil && stored != nil && stored.PaymentReference != "" {
			reference = stored.PaymentReference
		}
	}

	amount := participant.TotalAmount
	links := make([]PaymentLink, 0, len(s.providers))
	for _, p := range s.providers {
		links = append(links, PaymentLink{
			Provider:     p.Name,
			URL:          expandURLTemplate(p.URLTemplate, amount, reference),
			PhoneNumber:  p.PhoneNumber,
			Instructions: p.Instructions,
		})
	}

	return &PaymentLinksResult{
		Reference: reference,
		Amount:    amount,
		Currency:  group.Currency,
		Links:     links,
	}, nil
}

// paymentReference derives a stable reference from the group id plus the
// participant's identity key, so regenerating always yields the same value.
func paymentReference(groupID uuid.UUID, participant *types.Participant) string {
	identity := participant.GuestPhone
	if identity == "" && participant.UserID != nil {
		identity = participant.UserID.String()
	}
	sum := sha256.Sum256([]byte(groupID.String() + "|" + identity))
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "PAY-" + encoded[:12]
}

func expandURLTemplate(template string, amount int64, reference string) string {
	if template == "" {
		return ""
	}
	out := strings.ReplaceAll(template, "{amount}", fmt.Sprintf("%d", amount))
	out = strings.ReplaceAll(out, "{reference}", reference)
	return out
}

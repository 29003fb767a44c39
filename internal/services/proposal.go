package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// ProposalService runs the client-originated path: a candidate group waits
// in pending_approval until an admin approves (making it an open group with
// the proposer as first participant) or rejects it.
type ProposalService interface {
	Propose(ctx context.Context, productID uuid.UUID, actor Actor, desiredQty int, message string) (*types.GroupOrder, error)
	Review(ctx context.Context, groupID, adminID uuid.UUID, action ReviewAction, reason string) (*types.GroupOrder, error)
	ListPending(ctx context.Context) ([]*types.GroupOrder, error)
}

type proposalService struct {
	db          *gorm.DB
	log         *logger.Logger
	catalog     Catalog
	groups      repos.GroupOrderRepo
	ledger      ParticipantService
	notifier    Notifier
	groupEvents GroupNotifier
	openWindow  time.Duration
}

func NewProposalService(
	db *gorm.DB,
	baseLog *logger.Logger,
	catalog Catalog,
	groupRepo repos.GroupOrderRepo,
	ledger ParticipantService,
	notifier Notifier,
	groupEvents GroupNotifier,
	openWindow time.Duration,
) ProposalService {
	if openWindow <= 0 {
		openWindow = 7 * 24 * time.Hour
	}
	return &proposalService{
		db:          db,
		log:         baseLog.With("service", "ProposalService"),
		catalog:     catalog,
		groups:      groupRepo,
		ledger:      ledger,
		notifier:    notifier,
		groupEvents: groupEvents,
		openWindow:  openWindow,
	}
}

func (s *proposalService) Propose(ctx context.Context, productID uuid.UUID, actor Actor, desiredQty int, message string) (*types.GroupOrder, error) {
	if desiredQty < 1 {
		return nil, apierr.Validationf("desired quantity must be at least 1")
	}
	if err := actor.validate(); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if !product.GroupBuyEnabled {
		return nil, apierr.Validationf("product %s is not enabled for group buying", product.Name)
	}

	now := time.Now().UTC()

	// One live group per product: callers are pointed at the existing group
	// instead of splitting demand across duplicates.
	existing, err := s.groups.List(ctx, nil, repos.GroupOrderFilter{
		Statuses:  []types.GroupStatus{types.GroupStatusOpen},
		ProductID: &productID,
		ActiveAt:  &now,
	})
	if err != nil {
		return nil, apierr.Internal(err)
	}
	for _, g := range existing {
		if !g.Expired(now) {
			return nil, apierr.Conflictf("an open group already exists for this product: %s", g.Code)
		}
	}

	pending, err := s.groups.List(ctx, nil, repos.GroupOrderFilter{
		Statuses:  []types.GroupStatus{types.GroupStatusPendingApproval},
		ProductID: &productID,
	})
	if err != nil {
		return nil, apierr.Internal(err)
	}
	for _, g := range pending {
		if sameProposer(g.Proposal.Data(), actor) {
			return nil, apierr.Conflictf("you already have a pending proposal for this product: %s", g.Code)
		}
	}

	group := newGroupFromProduct(product, now)
	group.Status = types.GroupStatusPendingApproval
	group.Origin = types.GroupOriginProposal
	group.Deadline = now.Add(s.openWindow) // provisional; reset at approval
	group.CreatedBy = creatorLabel(actor)
	group.Proposal = newProposalDetails(actor, desiredQty, message, now)

	if _, err := s.groups.Create(ctx, nil, group); err != nil {
		return nil, apierr.Internal(err)
	}

	s.notifier.Notify(ctx, EventProposalSubmitted, map[string]any{
		"group_id":    group.ID,
		"group_code":  group.Code,
		"product":     group.ProductName,
		"proposer":    creatorLabel(actor),
		"desired_qty": desiredQty,
		"message":     strings.TrimSpace(message),
	})
	return group, nil
}

func (s *proposalService) Review(ctx context.Context, groupID, adminID uuid.UUID, action ReviewAction, reason string) (*types.GroupOrder, error) {
	reason = strings.TrimSpace(reason)
	if action == ReviewReject && reason == "" {
		return nil, apierr.Validationf("a rejection reason is required")
	}
	if action != ReviewApprove && action != ReviewReject {
		return nil, apierr.Validationf("unknown review action %q", action)
	}

	group, err := s.groups.GetByID(ctx, nil, groupID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, apierr.NotFoundf("group %s not found", groupID)
	}
	if group.Status != types.GroupStatusPendingApproval {
		return nil, apierr.Statef("group %s is not awaiting review (status %s)", group.Code, group.Status)
	}
	details := group.Proposal.Data()
	if details == nil {
		return nil, apierr.Statef("group %s carries no proposal", group.Code)
	}

	now := time.Now().UTC()
	details.ReviewedAt = &now
	details.ReviewedBy = &adminID

	if action == ReviewReject {
		return s.reject(ctx, group, details, reason)
	}
	return s.approve(ctx, group, details)
}

func (s *proposalService) ListPending(ctx context.Context) ([]*types.GroupOrder, error) {
	groups, err := s.groups.List(ctx, nil, repos.GroupOrderFilter{
		Statuses: []types.GroupStatus{types.GroupStatusPendingApproval},
	})
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return groups, nil
}

func (s *proposalService) reject(ctx context.Context, group *types.GroupOrder, details *types.ProposalDetails, reason string) (*types.GroupOrder, error) {
	details.RejectionReason = reason
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.groups.UpdateStatus(ctx, tx, group.ID, []types.GroupStatus{types.GroupStatusPendingApproval}, types.GroupStatusRejected)
		if err != nil {
			return apierr.Internal(err)
		}
		if !ok {
			return apierr.Statef("group %s was reviewed concurrently", group.Code)
		}
		if err := s.groups.SetProposal(ctx, tx, group.ID, details); err != nil {
			return apierr.Internal(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, apierr.From(txErr)
	}

	group.Status = types.GroupStatusRejected
	s.groupEvents.StatusChanged(group)
	s.notifier.Notify(ctx, EventProposalRejected, map[string]any{
		"group_id":       group.ID,
		"group_code":     group.Code,
		"product":        group.ProductName,
		"proposer":       details.ProposerName,
		"proposer_phone": details.ProposerPhone,
		"proposer_email": details.ProposerEmail,
		"reason":         reason,
	})
	return group, nil
}

func (s *proposalService) approve(ctx context.Context, group *types.GroupOrder, details *types.ProposalDetails) (*types.GroupOrder, error) {
	now := time.Now().UTC()
	deadline := now.Add(s.openWindow)
	actor := Actor{
		UserID: details.ProposerUserID,
		Name:   details.ProposerName,
		Phone:  details.ProposerPhone,
		Email:  details.ProposerEmail,
	}

	var joined *JoinResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.groups.UpdateStatus(ctx, tx, group.ID, []types.GroupStatus{types.GroupStatusPendingApproval}, types.GroupStatusOpen)
		if err != nil {
			return apierr.Internal(err)
		}
		if !ok {
			return apierr.Statef("group %s was reviewed concurrently", group.Code)
		}
		if err := s.groups.SetDeadline(ctx, tx, group.ID, deadline); err != nil {
			return apierr.Internal(err)
		}
		if err := s.groups.SetProposal(ctx, tx, group.ID, details); err != nil {
			return apierr.Internal(err)
		}
		// The proposer becomes the first participant, priced through the
		// same ledger path every later join uses.
		var jErr error
		joined, jErr = s.ledger.JoinTx(ctx, tx, group.ID, actor, details.DesiredQty)
		return jErr
	})
	if txErr != nil {
		return nil, apierr.From(txErr)
	}

	joined.Group.Deadline = deadline
	s.groupEvents.StatusChanged(joined.Group)
	s.groupEvents.ParticipantJoined(joined.Group, joined.Participant)
	s.notifier.Notify(ctx, EventProposalApproved, map[string]any{
		"group_id":       group.ID,
		"group_code":     group.Code,
		"product":        group.ProductName,
		"proposer":       details.ProposerName,
		"proposer_phone": details.ProposerPhone,
		"proposer_email": details.ProposerEmail,
		"deadline":       deadline,
		"chat_token":     joined.ChatToken,
	})
	return joined.Group, nil
}

func sameProposer(details *types.ProposalDetails, actor Actor) bool {
	if details == nil {
		return false
	}
	if !actor.IsGuest() && details.ProposerUserID != nil {
		return *details.ProposerUserID == *actor.UserID
	}
	phone := actor.NormalizedPhone()
	return phone != "" && details.ProposerPhone == phone
}

func newProposalDetails(actor Actor, desiredQty int, message string, now time.Time) datatypes.JSONType[*types.ProposalDetails] {
	details := &types.ProposalDetails{
		Message:       strings.TrimSpace(message),
		DesiredQty:    desiredQty,
		ProposerName:  actor.Name,
		ProposerPhone: actor.NormalizedPhone(),
		ProposerEmail: actor.Email,
		SubmittedAt:   now,
	}
	if !actor.IsGuest() {
		details.ProposerUserID = actor.UserID
	}
	return datatypes.NewJSONType(details)
}

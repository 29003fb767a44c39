package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/pricing"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// JoinResult is what a successful join hands back to the caller. ChatToken
// is the participant's capability token in plaintext; it is never shown
// again.
type JoinResult struct {
	Group         *types.GroupOrder  `json:"group"`
	Participant   *types.Participant `json:"participant"`
	NewCurrentQty int                `json:"new_current_qty"`
	NewUnitPrice  int64              `json:"new_unit_price"`
	ChatToken     string             `json:"chat_token"`
}

// ParticipantService owns the participant ledger: the atomic
// quantity/price mutation that adds a buyer to a group.
type ParticipantService interface {
	Join(ctx context.Context, groupID uuid.UUID, actor Actor, qty int) (*JoinResult, error)

	// JoinTx runs the join inside a caller-owned transaction. Side effects
	// (notifications, realtime events) stay with the caller, who knows when
	// the transaction commits.
	JoinTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, actor Actor, qty int) (*JoinResult, error)
}

type participantService struct {
	db           *gorm.DB
	log          *logger.Logger
	groups       repos.GroupOrderRepo
	participants repos.ParticipantRepo
	notifier     Notifier
	groupEvents  GroupNotifier
}

func NewParticipantService(
	db *gorm.DB,
	baseLog *logger.Logger,
	groupRepo repos.GroupOrderRepo,
	participantRepo repos.ParticipantRepo,
	notifier Notifier,
	groupEvents GroupNotifier,
) ParticipantService {
	return &participantService{
		db:           db,
		log:          baseLog.With("service", "ParticipantService"),
		groups:       groupRepo,
		participants: participantRepo,
		notifier:     notifier,
		groupEvents:  groupEvents,
	}
}

// errConcurrentJoin marks a compare-and-swap miss: another join landed
// between our read and our write. Retried a few times before surfacing.
var errConcurrentJoin = errors.New("concurrent join, retry")

const joinMaxAttempts = 3

func (s *participantService) Join(ctx context.Context, groupID uuid.UUID, actor Actor, qty int) (*JoinResult, error) {
	var result *JoinResult
	var err error
	for attempt := 0; attempt < joinMaxAttempts; attempt++ {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result, err = s.JoinTx(ctx, tx, groupID, actor, qty)
			return err
		})
		if txErr == nil {
			break
		}
		if errors.Is(txErr, errConcurrentJoin) && attempt < joinMaxAttempts-1 {
			continue
		}
		if errors.Is(txErr, errConcurrentJoin) {
			return nil, apierr.Conflictf("group %s is being updated concurrently, retry", groupID)
		}
		return nil, apierr.From(txErr)
	}

	// Downstream effects are fire-and-forget; their failure never rolls the
	// join back.
	s.groupEvents.ParticipantJoined(result.Group, result.Participant)
	if result.Group.Status == types.GroupStatusFilled {
		s.groupEvents.StatusChanged(result.Group)
	}
	s.notifier.Notify(ctx, EventParticipantJoined, map[string]any{
		"group_id":    result.Group.ID,
		"group_code":  result.Group.Code,
		"product":     result.Group.ProductName,
		"participant": result.Participant.DisplayName(),
		"qty":         result.Participant.Qty,
		"current_qty": result.NewCurrentQty,
		"unit_price":  result.NewUnitPrice,
		"created_by":  result.Group.CreatedBy,
	})
	return result, nil
}

func (s *participantService) JoinTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, actor Actor, qty int) (*JoinResult, error) {
	if qty < 1 {
		return nil, apierr.Validationf("quantity must be at least 1")
	}
	if err := actor.validate(); err != nil {
		return nil, err
	}

	group, err := s.groups.GetByID(ctx, tx, groupID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, apierr.NotFoundf("group %s not found", groupID)
	}
	now := time.Now().UTC()
	if group.Status != types.GroupStatusOpen {
		return nil, apierr.Statef("group %s is not open for joining (status %s)", group.Code, group.Status)
	}
	if now.After(group.Deadline) {
		return nil, apierr.Statef("group %s deadline has passed", group.Code)
	}

	if err := s.checkDuplicate(ctx, tx, group, actor); err != nil {
		return nil, err
	}

	newQty := group.CurrentQty + qty
	if group.MaxQty != nil && newQty > *group.MaxQty {
		return nil, apierr.Conflictf("group %s cannot take %d more units (cap %d, current %d)", group.Code, qty, *group.MaxQty, group.CurrentQty)
	}
	if group.MaxParticipants != nil {
		count, cErr := s.participants.CountByGroup(ctx, tx, group.ID)
		if cErr != nil {
			return nil, apierr.Internal(cErr)
		}
		if count+1 > int64(*group.MaxParticipants) {
			return nil, apierr.Conflictf("group %s is full (%d participants)", group.Code, *group.MaxParticipants)
		}
	}

	unitPrice := pricing.ResolveUnitPrice(newQty, group.PriceTiers, group.BasePrice)
	newStatus := types.GroupStatusOpen
	if newQty >= group.TargetQty {
		newStatus = types.GroupStatusFilled
	}

	// The capacity check and the quantity bump commit or fail as one
	// conditional write; a miss means a concurrent join moved the counter.
	swapped, err := s.groups.CompareAndSwapQty(ctx, tx, group.ID, group.CurrentQty, newQty, unitPrice, newStatus)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if !swapped {
		return nil, errConcurrentJoin
	}

	token, tokenHash, err := mintChatToken()
	if err != nil {
		return nil, apierr.Internal(err)
	}

	participant := &types.Participant{
		ID:                 uuid.New(),
		GroupOrderID:       group.ID,
		Qty:                qty,
		UnitPriceAtJoin:    unitPrice,
		TotalAmount:        int64(qty) * unitPrice,
		PaymentStatus:      types.PaymentStatusPending,
		ChatTokenHash:      tokenHash,
		ChatTokenCreatedAt: &now,
		JoinedAt:           now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if actor.IsGuest() {
		participant.GuestName = actor.Name
		participant.GuestPhone = actor.NormalizedPhone()
		participant.GuestEmail = actor.Email
	} else {
		participant.UserID = actor.UserID
	}

	if _, err := s.participants.Create(ctx, tx, participant); err != nil {
		return nil, apierr.Internal(err)
	}

	group.CurrentQty = newQty
	group.CurrentUnitPrice = unitPrice
	group.Status = newStatus

	return &JoinResult{
		Group:         group,
		Participant:   participant,
		NewCurrentQty: newQty,
		NewUnitPrice:  unitPrice,
		ChatToken:     token,
	}, nil
}

// checkDuplicate enforces the one-join-per-identity policy: one row per
// authenticated user, one row per guest phone. Postgres backs this with
// partial unique indexes; here the transactional check produces the friendly
// error.
func (s *participantService) checkDuplicate(ctx context.Context, tx *gorm.DB, group *types.GroupOrder, actor Actor) error {
	if actor.IsGuest() {
		existing, err := s.participants.FindByGroupAndPhone(ctx, tx, group.ID, actor.NormalizedPhone())
		if err != nil {
			return apierr.Internal(err)
		}
		if existing != nil {
			return apierr.Conflictf("phone number already joined group %s", group.Code)
		}
		return nil
	}
	existing, err := s.participants.FindByGroupAndUser(ctx, tx, group.ID, *actor.UserID)
	if err != nil {
		return apierr.Internal(err)
	}
	if existing != nil {
		return apierr.Conflictf("user already joined group %s", group.Code)
	}
	return nil
}

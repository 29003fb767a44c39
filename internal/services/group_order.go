package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/pricing"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type CreateGroupInput struct {
	ProductID      uuid.UUID `json:"product_id"`
	Actor          Actor     `json:"actor"`
	Qty            int       `json:"qty"`
	Deadline       time.Time `json:"deadline"`
	ShippingMethod string    `json:"shipping_method"`
	Description    string    `json:"description"`
}

type ListGroupsFilter struct {
	Statuses   []types.GroupStatus
	ProductID  *uuid.UUID
	ActiveOnly bool
}

// GroupOrderService owns the aggregate lifecycle: direct creation, reads
// with lazy deadline filtering, and the admin-driven forward progression.
type GroupOrderService interface {
	CreateDirect(ctx context.Context, in CreateGroupInput) (*JoinResult, error)
	Get(ctx context.Context, id uuid.UUID) (*types.GroupOrder, error)
	GetByCode(ctx context.Context, code string) (*types.GroupOrder, error)
	List(ctx context.Context, filter ListGroupsFilter) ([]*types.GroupOrder, error)
	Advance(ctx context.Context, id uuid.UUID, next types.GroupStatus) (*types.GroupOrder, error)
	Cancel(ctx context.Context, id uuid.UUID) (*types.GroupOrder, error)
}

type groupOrderService struct {
	db          *gorm.DB
	log         *logger.Logger
	catalog     Catalog
	groups      repos.GroupOrderRepo
	ledger      ParticipantService
	notifier    Notifier
	groupEvents GroupNotifier
}

func NewGroupOrderService(
	db *gorm.DB,
	baseLog *logger.Logger,
	catalog Catalog,
	groupRepo repos.GroupOrderRepo,
	ledger ParticipantService,
	notifier Notifier,
	groupEvents GroupNotifier,
) GroupOrderService {
	return &groupOrderService{
		db:          db,
		log:         baseLog.With("service", "GroupOrderService"),
		catalog:     catalog,
		groups:      groupRepo,
		ledger:      ledger,
		notifier:    notifier,
		groupEvents: groupEvents,
	}
}

var allowedShippingMethods = map[string]bool{
	"pickup":   true,
	"delivery": true,
	"courier":  true,
}

func (s *groupOrderService) CreateDirect(ctx context.Context, in CreateGroupInput) (*JoinResult, error) {
	if in.Qty < 1 {
		return nil, apierr.Validationf("quantity must be at least 1")
	}
	if err := in.Actor.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !in.Deadline.After(now) {
		return nil, apierr.Validationf("deadline must be in the future")
	}
	method := strings.ToLower(strings.TrimSpace(in.ShippingMethod))
	if !allowedShippingMethods[method] {
		return nil, apierr.Validationf("unknown shipping method %q", in.ShippingMethod)
	}

	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if !product.GroupBuyEnabled {
		return nil, apierr.Validationf("product %s is not enabled for group buying", product.Name)
	}

	group := newGroupFromProduct(product, now)
	group.Status = types.GroupStatusOpen
	group.Origin = types.GroupOriginDirect
	group.Deadline = in.Deadline.UTC()
	group.ShippingMethod = method
	group.Description = strings.TrimSpace(in.Description)
	group.CreatedBy = creatorLabel(in.Actor)

	var result *JoinResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := s.groups.Create(ctx, tx, group); cErr != nil {
			return apierr.Internal(cErr)
		}
		var jErr error
		result, jErr = s.ledger.JoinTx(ctx, tx, group.ID, in.Actor, in.Qty)
		return jErr
	})
	if txErr != nil {
		return nil, apierr.From(txErr)
	}

	s.groupEvents.ParticipantJoined(result.Group, result.Participant)
	s.notifier.Notify(ctx, EventParticipantJoined, map[string]any{
		"group_id":    result.Group.ID,
		"group_code":  result.Group.Code,
		"product":     result.Group.ProductName,
		"participant": result.Participant.DisplayName(),
		"qty":         result.Participant.Qty,
		"current_qty": result.NewCurrentQty,
		"unit_price":  result.NewUnitPrice,
		"new_group":   true,
	})
	return result, nil
}

func (s *groupOrderService) Get(ctx context.Context, id uuid.UUID) (*types.GroupOrder, error) {
	group, err := s.groups.GetByID(ctx, nil, id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, apierr.NotFoundf("group %s not found", id)
	}
	return group, nil
}

func (s *groupOrderService) GetByCode(ctx context.Context, code string) (*types.GroupOrder, error) {
	group, err := s.groups.GetByCode(ctx, nil, strings.TrimSpace(code))
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, apierr.NotFoundf("group %q not found", code)
	}
	return group, nil
}

func (s *groupOrderService) List(ctx context.Context, filter ListGroupsFilter) ([]*types.GroupOrder, error) {
	repoFilter := repos.GroupOrderFilter{
		Statuses:  filter.Statuses,
		ProductID: filter.ProductID,
	}
	if filter.ActiveOnly {
		now := time.Now().UTC()
		repoFilter.ActiveAt = &now
	}
	groups, err := s.groups.List(ctx, nil, repoFilter)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return groups, nil
}

// Advance moves a group exactly one step along the fulfillment progression.
func (s *groupOrderService) Advance(ctx context.Context, id uuid.UUID, next types.GroupStatus) (*types.GroupOrder, error) {
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !group.Status.CanAdvanceTo(next) {
		return nil, apierr.Statef("cannot advance group %s from %s to %s", group.Code, group.Status, next)
	}
	ok, uErr := s.groups.UpdateStatus(ctx, nil, id, []types.GroupStatus{group.Status}, next)
	if uErr != nil {
		return nil, apierr.Internal(uErr)
	}
	if !ok {
		return nil, apierr.Statef("group %s changed state concurrently, retry", group.Code)
	}
	group.Status = next
	s.groupEvents.StatusChanged(group)
	s.notifier.Notify(ctx, EventStatusChanged, map[string]any{
		"group_id":   group.ID,
		"group_code": group.Code,
		"status":     next,
	})
	return group, nil
}

func (s *groupOrderService) Cancel(ctx context.Context, id uuid.UUID) (*types.GroupOrder, error) {
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.Status.IsTerminal() {
		return nil, apierr.Statef("group %s is already %s", group.Code, group.Status)
	}
	nonTerminal := []types.GroupStatus{
		types.GroupStatusDraft,
		types.GroupStatusPendingApproval,
		types.GroupStatusOpen,
		types.GroupStatusFilled,
		types.GroupStatusOrdering,
		types.GroupStatusOrdered,
		types.GroupStatusShipped,
	}
	ok, uErr := s.groups.UpdateStatus(ctx, nil, id, nonTerminal, types.GroupStatusCancelled)
	if uErr != nil {
		return nil, apierr.Internal(uErr)
	}
	if !ok {
		return nil, apierr.Statef("group %s changed state concurrently, retry", group.Code)
	}
	group.Status = types.GroupStatusCancelled
	s.groupEvents.StatusChanged(group)
	s.notifier.Notify(ctx, EventStatusChanged, map[string]any{
		"group_id":   group.ID,
		"group_code": group.Code,
		"status":     types.GroupStatusCancelled,
	})
	return group, nil
}

// newGroupFromProduct snapshots the catalog entry onto a fresh aggregate;
// later catalog edits never touch it.
func newGroupFromProduct(product *types.Product, now time.Time) *types.GroupOrder {
	return &types.GroupOrder{
		ID:               uuid.New(),
		Code:             newGroupCode(),
		ProductID:        product.ID,
		ProductName:      product.Name,
		ProductImage:     product.ImageURL,
		BasePrice:        product.BasePrice,
		Currency:         product.Currency,
		MinQty:           product.MinQty,
		TargetQty:        product.TargetQty,
		MaxQty:           product.MaxQty,
		MaxParticipants:  product.MaxParticipants,
		CurrentQty:       0,
		CurrentUnitPrice: pricing.ResolveUnitPrice(0, product.PriceTiers, product.BasePrice),
		PriceTiers:       datatypes.JSONSlice[types.PriceTier](product.PriceTiers),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// newGroupCode mints the human-shareable identifier printed on links and
// receipts.
func newGroupCode() string {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("GB-%s", string(out))
}

func creatorLabel(actor Actor) string {
	if !actor.IsGuest() {
		return actor.UserID.String()
	}
	return actor.Name
}

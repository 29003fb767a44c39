package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// GroupOrderFilter narrows List results. ActiveAt, when set, excludes open
// groups whose deadline already passed at that instant; nothing is written
// back.
type GroupOrderFilter struct {
	Statuses  []types.GroupStatus
	ProductID *uuid.UUID
	ActiveAt  *time.Time
	Limit     int
}

type GroupOrderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, group *types.GroupOrder) (*types.GroupOrder, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GroupOrder, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.GroupOrder, error)
	List(ctx context.Context, tx *gorm.DB, filter GroupOrderFilter) ([]*types.GroupOrder, error)

	// CompareAndSwapQty is the ledger's conditional write: it bumps the
	// quantity columns only when current_qty still equals expectQty and the
	// group is still open. A false return means the optimistic precondition
	// failed and the caller must re-read and retry or surface an error.
	CompareAndSwapQty(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectQty, newQty int, newUnitPrice int64, newStatus types.GroupStatus) (bool, error)

	// UpdateStatus transitions the lifecycle only when the row still carries
	// one of the expected statuses; false means the guard did not match.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expect []types.GroupStatus, next types.GroupStatus) (bool, error)

	SetProposal(ctx context.Context, tx *gorm.DB, id uuid.UUID, proposal *types.ProposalDetails) error
	SetDeadline(ctx context.Context, tx *gorm.DB, id uuid.UUID, deadline time.Time) error
}

type groupOrderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupOrderRepo(db *gorm.DB, baseLog *logger.Logger) GroupOrderRepo {
	return &groupOrderRepo{db: db, log: baseLog.With("repo", "GroupOrderRepo")}
}

func (gr *groupOrderRepo) Create(ctx context.Context, tx *gorm.DB, group *types.GroupOrder) (*types.GroupOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	if err := transaction.WithContext(ctx).Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func (gr *groupOrderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GroupOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var group types.GroupOrder
	if err := transaction.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (gr *groupOrderRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.GroupOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var group types.GroupOrder
	if err := transaction.WithContext(ctx).
		Preload("Participants").
		Where("code = ?", code).
		First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (gr *groupOrderRepo) List(ctx context.Context, tx *gorm.DB, filter GroupOrderFilter) ([]*types.GroupOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	q := transaction.WithContext(ctx).Model(&types.GroupOrder{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.ActiveAt != nil {
		q = q.Where("status <> ? OR deadline >= ?", types.GroupStatusOpen, *filter.ActiveAt)
	}
	var results []*types.GroupOrder
	if err := q.Order("created_at DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (gr *groupOrderRepo) CompareAndSwapQty(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectQty, newQty int, newUnitPrice int64, newStatus types.GroupStatus) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.GroupOrder{}).
		Where("id = ? AND status = ? AND current_qty = ?", id, types.GroupStatusOpen, expectQty).
		Updates(map[string]any{
			"current_qty":        newQty,
			"current_unit_price": newUnitPrice,
			"status":             newStatus,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (gr *groupOrderRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expect []types.GroupStatus, next types.GroupStatus) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	q := transaction.WithContext(ctx).
		Model(&types.GroupOrder{}).
		Where("id = ?", id)
	if len(expect) > 0 {
		q = q.Where("status IN ?", expect)
	}
	res := q.Updates(map[string]any{
		"status":     next,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (gr *groupOrderRepo) SetProposal(ctx context.Context, tx *gorm.DB, id uuid.UUID, proposal *types.ProposalDetails) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.GroupOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"proposal":   datatypes.NewJSONType(proposal),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (gr *groupOrderRepo) SetDeadline(ctx context.Context, tx *gorm.DB, id uuid.UUID, deadline time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.GroupOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deadline":   deadline,
			"updated_at": time.Now().UTC(),
		}).Error
}

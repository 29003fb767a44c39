package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// PaymentUpdate is the admin-editable slice of a participant's payment state.
type PaymentUpdate struct {
	Status        types.PaymentStatus
	PaidAmount    *int64
	TransactionID *string
	AdminNote     *string
}

type ParticipantRepo interface {
	Create(ctx context.Context, tx *gorm.DB, participant *types.Participant) (*types.Participant, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error)
	ListByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]*types.Participant, error)
	CountByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int64, error)
	FindByGroupAndUser(ctx context.Context, tx *gorm.DB, groupID, userID uuid.UUID) (*types.Participant, error)
	FindByGroupAndPhone(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, phone string) (*types.Participant, error)
	UpdatePayment(ctx context.Context, tx *gorm.DB, id uuid.UUID, update PaymentUpdate) error

	// SetPaymentReference writes the reference only when none is stored yet,
	// keeping reference generation idempotent under retries.
	SetPaymentReference(ctx context.Context, tx *gorm.DB, id uuid.UUID, reference string) error
}

type participantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ParticipantRepo {
	return &participantRepo{db: db, log: baseLog.With("repo", "ParticipantRepo")}
}

func (pr *participantRepo) Create(ctx context.Context, tx *gorm.DB, participant *types.Participant) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if err := transaction.WithContext(ctx).Create(participant).Error; err != nil {
		return nil, err
	}
	return participant, nil
}

func (pr *participantRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participant types.Participant
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

func (pr *participantRepo) ListByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.Participant
	if err := transaction.WithContext(ctx).
		Where("group_order_id = ?", groupID).
		Order("joined_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *participantRepo) CountByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Participant{}).
		Where("group_order_id = ?", groupID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (pr *participantRepo) FindByGroupAndUser(ctx context.Context, tx *gorm.DB, groupID, userID uuid.UUID) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participant types.Participant
	if err := transaction.WithContext(ctx).
		Where("group_order_id = ? AND user_id = ?", groupID, userID).
		First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

func (pr *participantRepo) FindByGroupAndPhone(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, phone string) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participant types.Participant
	if err := transaction.WithContext(ctx).
		Where("group_order_id = ? AND guest_phone = ?", groupID, phone).
		First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

func (pr *participantRepo) UpdatePayment(ctx context.Context, tx *gorm.DB, id uuid.UUID, update PaymentUpdate) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	fields := map[string]any{
		"payment_status": update.Status,
		"updated_at":     time.Now().UTC(),
	}
	if update.PaidAmount != nil {
		fields["paid_amount"] = *update.PaidAmount
	}
	if update.TransactionID != nil {
		fields["transaction_id"] = *update.TransactionID
	}
	if update.AdminNote != nil {
		fields["admin_note"] = *update.AdminNote
	}
	return transaction.WithContext(ctx).
		Model(&types.Participant{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (pr *participantRepo) SetPaymentReference(ctx context.Context, tx *gorm.DB, id uuid.UUID, reference string) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Participant{}).
		Where("id = ? AND (payment_reference IS NULL OR payment_reference = '')", id).
		Updates(map[string]any{
			"payment_reference": reference,
			"updated_at":        time.Now().UTC(),
		}).Error
}

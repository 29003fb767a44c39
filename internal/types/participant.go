package types

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// Participant is one buyer inside a group order. Identity is either an
// authenticated user (UserID set) or a guest keyed by normalized phone
// number. UnitPriceAtJoin is contractual; later tier shifts never reprice an
// existing participant.
type Participant struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupOrderID uuid.UUID `gorm:"type:uuid;not null;index;column:group_order_id" json:"group_order_id"`

	UserID     *uuid.UUID `gorm:"type:uuid;index;column:user_id" json:"user_id,omitempty"`
	GuestName  string     `gorm:"column:guest_name" json:"guest_name,omitempty"`
	GuestPhone string     `gorm:"index;column:guest_phone" json:"guest_phone,omitempty"`
	GuestEmail string     `gorm:"column:guest_email" json:"guest_email,omitempty"`

	Qty             int   `gorm:"not null;column:qty" json:"qty"`
	UnitPriceAtJoin int64 `gorm:"not null;column:unit_price_at_join" json:"unit_price_at_join"`
	TotalAmount     int64 `gorm:"not null;column:total_amount" json:"total_amount"`

	PaidAmount       int64         `gorm:"not null;default:0;column:paid_amount" json:"paid_amount"`
	PaymentStatus    PaymentStatus `gorm:"not null;default:'pending';column:payment_status" json:"payment_status"`
	PaymentReference string        `gorm:"index;column:payment_reference" json:"payment_reference,omitempty"`
	TransactionID    string        `gorm:"column:transaction_id" json:"transaction_id,omitempty"`
	AdminNote        string        `gorm:"type:text;column:admin_note" json:"admin_note,omitempty"`

	// Capability token for chat access: only the hash is stored, the
	// plaintext is returned once at join time and never re-derivable.
	ChatTokenHash      string     `gorm:"column:chat_token_hash" json:"-"`
	ChatTokenCreatedAt *time.Time `gorm:"column:chat_token_created_at" json:"-"`

	JoinedAt  time.Time `gorm:"not null;column:joined_at" json:"joined_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Participant) TableName() string {
	return "participant"
}

// DisplayName is what chat and notifications show for the participant.
func (p *Participant) DisplayName() string {
	if p.GuestName != "" {
		return p.GuestName
	}
	if p.UserID != nil {
		return "user " + p.UserID.String()[:8]
	}
	return "participant"
}

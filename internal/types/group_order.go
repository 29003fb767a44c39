package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GroupStatus string

const (
	GroupStatusDraft           GroupStatus = "draft"
	GroupStatusPendingApproval GroupStatus = "pending_approval"
	GroupStatusOpen            GroupStatus = "open"
	GroupStatusFilled          GroupStatus = "filled"
	GroupStatusOrdering        GroupStatus = "ordering"
	GroupStatusOrdered         GroupStatus = "ordered"
	GroupStatusShipped         GroupStatus = "shipped"
	GroupStatusDelivered       GroupStatus = "delivered"
	GroupStatusCancelled       GroupStatus = "cancelled"
	GroupStatusRejected        GroupStatus = "rejected"
)

// IsTerminal reports whether no code path transitions out of the status.
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusDelivered || s == GroupStatusCancelled || s == GroupStatusRejected
}

// fulfillmentRank orders the admin-driven forward progression. Statuses
// outside the progression rank as -1.
var fulfillmentRank = map[GroupStatus]int{
	GroupStatusFilled:    0,
	GroupStatusOrdering:  1,
	GroupStatusOrdered:   2,
	GroupStatusShipped:   3,
	GroupStatusDelivered: 4,
}

// CanAdvanceTo reports whether next is exactly one fulfillment step forward.
func (s GroupStatus) CanAdvanceTo(next GroupStatus) bool {
	from, ok := fulfillmentRank[s]
	if !ok {
		return false
	}
	to, ok := fulfillmentRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

type GroupOrigin string

const (
	GroupOriginDirect   GroupOrigin = "direct"
	GroupOriginProposal GroupOrigin = "proposal"
)

// PriceTier is one step of the quantity-based price ladder, snapshotted onto
// the group at creation time.
type PriceTier struct {
	MinQty int   `json:"min_qty"`
	MaxQty *int  `json:"max_qty,omitempty"`
	Price  int64 `json:"price"`
}

// ProposalDetails is the optional sub-record carried by proposal-originated
// groups while they await (or after) admin review.
type ProposalDetails struct {
	Message         string     `json:"message"`
	DesiredQty      int        `json:"desired_qty"`
	ProposerName    string     `json:"proposer_name"`
	ProposerPhone   string     `json:"proposer_phone"`
	ProposerEmail   string     `json:"proposer_email,omitempty"`
	ProposerUserID  *uuid.UUID `json:"proposer_user_id,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// GroupOrder is the collective order aggregating many participants' demand
// for one product. Prices are stored in minor currency units. The product
// columns are a snapshot taken at creation; later catalog edits do not
// retroactively affect the group.
type GroupOrder struct {
	ID     uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Code   string      `gorm:"uniqueIndex;not null;column:code" json:"code"`
	Status GroupStatus `gorm:"not null;index;column:status" json:"status"`
	Origin GroupOrigin `gorm:"not null;default:'direct';column:origin" json:"origin"`

	ProductID    uuid.UUID `gorm:"type:uuid;not null;index;column:product_id" json:"product_id"`
	ProductName  string    `gorm:"not null;column:product_name" json:"product_name"`
	ProductImage string    `gorm:"column:product_image" json:"product_image,omitempty"`
	BasePrice    int64     `gorm:"not null;column:base_price" json:"base_price"`
	Currency     string    `gorm:"not null;default:'XOF';column:currency" json:"currency"`

	MinQty          int  `gorm:"not null;column:min_qty" json:"min_qty"`
	TargetQty       int  `gorm:"not null;column:target_qty" json:"target_qty"`
	MaxQty          *int `gorm:"column:max_qty" json:"max_qty,omitempty"`
	MaxParticipants *int `gorm:"column:max_participants" json:"max_participants,omitempty"`

	CurrentQty       int   `gorm:"not null;default:0;column:current_qty" json:"current_qty"`
	CurrentUnitPrice int64 `gorm:"not null;column:current_unit_price" json:"current_unit_price"`

	PriceTiers datatypes.JSONSlice[PriceTier] `gorm:"column:price_tiers" json:"price_tiers"`

	Deadline       time.Time `gorm:"not null;index;column:deadline" json:"deadline"`
	ShippingMethod string    `gorm:"column:shipping_method" json:"shipping_method,omitempty"`
	Description    string    `gorm:"type:text;column:description" json:"description,omitempty"`
	CreatedBy      string    `gorm:"column:created_by" json:"created_by,omitempty"`

	Proposal datatypes.JSONType[*ProposalDetails] `gorm:"column:proposal" json:"proposal,omitempty"`

	Participants []*Participant `gorm:"foreignKey:GroupOrderID;references:ID" json:"participants,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (GroupOrder) TableName() string {
	return "group_order"
}

// Joinable reports whether a join could succeed right now. The authoritative
// check happens inside the ledger transaction; this is for read paths.
func (g *GroupOrder) Joinable(now time.Time) bool {
	return g.Status == GroupStatusOpen && !now.After(g.Deadline)
}

// Expired reports whether an open group sailed past its deadline without
// filling. Nothing writes this back; list queries surface it lazily.
func (g *GroupOrder) Expired(now time.Time) bool {
	return g.Status == GroupStatusOpen && now.After(g.Deadline)
}

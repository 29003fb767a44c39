package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Product is the catalog entry a group order snapshots from. Only the
// group-buy-relevant fields live here; the full storefront catalog is a
// separate system.
type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"not null;column:name" json:"name"`
	ImageURL string    `gorm:"column:image_url" json:"image_url,omitempty"`

	BasePrice int64  `gorm:"not null;column:base_price" json:"base_price"`
	Currency  string `gorm:"not null;default:'XOF';column:currency" json:"currency"`

	GroupBuyEnabled bool `gorm:"not null;default:false;column:group_buy_enabled" json:"group_buy_enabled"`
	MinQty          int  `gorm:"not null;default:1;column:min_qty" json:"min_qty"`
	TargetQty       int  `gorm:"not null;default:1;column:target_qty" json:"target_qty"`
	MaxQty          *int `gorm:"column:max_qty" json:"max_qty,omitempty"`
	MaxParticipants *int `gorm:"column:max_participants" json:"max_participants,omitempty"`

	PriceTiers datatypes.JSONSlice[PriceTier] `gorm:"column:price_tiers" json:"price_tiers"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}

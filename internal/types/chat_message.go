package types

import (
	"time"

	"github.com/google/uuid"
)

type ChatAuthorType string

const (
	ChatAuthorParticipant ChatAuthorType = "participant"
	ChatAuthorAdmin       ChatAuthorType = "admin"
)

// ChatMessage is one entry of a group's append-only chat log. CreatedAt is
// the ordering and watermark key; readers page in ascending (created_at, id)
// order.
type ChatMessage struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupOrderID uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_message_group_created,priority:1;column:group_order_id" json:"group_order_id"`

	AuthorType          ChatAuthorType `gorm:"not null;column:author_type" json:"author_type"`
	AuthorParticipantID *uuid.UUID     `gorm:"type:uuid;column:author_participant_id" json:"author_participant_id,omitempty"`
	AuthorName          string         `gorm:"not null;column:author_name" json:"author_name"`

	Text string `gorm:"type:text;not null;column:text" json:"text"`

	CreatedAt time.Time `gorm:"not null;index:idx_chat_message_group_created,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_message"
}

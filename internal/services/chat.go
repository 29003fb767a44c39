package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/envutil"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

const maxChatMessageLen = 2000

// ChatCapability is what a caller presents to read or write a group's chat.
// Either an admin identity or a participant id plus the token minted at join.
type ChatCapability struct {
	AdminID    *uuid.UUID
	AdminEmail string

	ParticipantID *uuid.UUID
	Token         string
}

func (c ChatCapability) isAdmin() bool { return c.AdminID != nil }

// ChatService handles per-group discussion threads.
type ChatService interface {
	PostMessage(ctx context.Context, groupID uuid.UUID, capability ChatCapability, body string) (*types.ChatMessage, error)
	ListMessages(ctx context.Context, groupID uuid.UUID, capability ChatCapability, since *time.Time, limit int) ([]*types.ChatMessage, error)

	// Authorize verifies the capability without touching messages. Used by
	// the stream handler before attaching an SSE client.
	Authorize(ctx context.Context, groupID uuid.UUID, capability ChatCapability) error

	// ListSince reads messages without a capability check, for the internal
	// poll source behind an already-authorized stream.
	ListSince(ctx context.Context, groupID uuid.UUID, since *time.Time, limit int) ([]*types.ChatMessage, error)
}

type chatService struct {
	db           *gorm.DB
	log          *logger.Logger
	groups       repos.GroupOrderRepo
	participants repos.ParticipantRepo
	messages     repos.ChatMessageRepo
	tokenTTL     time.Duration
	groupEvents  GroupNotifier
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	groupRepo repos.GroupOrderRepo,
	participantRepo repos.ParticipantRepo,
	messageRepo repos.ChatMessageRepo,
	groupEvents GroupNotifier,
) ChatService {
	return &chatService{
		db:           db,
		log:          baseLog.With("service", "ChatService"),
		groups:       groupRepo,
		participants: participantRepo,
		messages:     messageRepo,
		tokenTTL:     envutil.Duration("CHAT_TOKEN_TTL", 90*24*time.Hour),
		groupEvents:  groupEvents,
	}
}

func (s *chatService) PostMessage(ctx context.Context, groupID uuid.UUID, capability ChatCapability, body string) (*types.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apierr.Validationf("message body is empty")
	}
	if len(body) > maxChatMessageLen {
		return nil, apierr.Validationf("message body exceeds %d characters", maxChatMessageLen)
	}

	group, participant, err := s.authorize(ctx, groupID, capability)
	if err != nil {
		return nil, err
	}

	msg := &types.ChatMessage{
		ID:           uuid.New(),
		GroupOrderID: group.ID,
		Text:         body,
		CreatedAt:    time.Now().UTC(),
	}
	if capability.isAdmin() {
		msg.AuthorType = types.ChatAuthorAdmin
		msg.AuthorName = capability.AdminEmail
	} else {
		msg.AuthorType = types.ChatAuthorParticipant
		msg.AuthorName = participant.DisplayName()
		msg.AuthorParticipantID = &participant.ID
	}

	if _, err := s.messages.Create(ctx, nil, msg); err != nil {
		return nil, apierr.Internal(err)
	}

	s.groupEvents.MessageCreated(group, msg)
	return msg, nil
}

func (s *chatService) ListMessages(ctx context.Context, groupID uuid.UUID, capability ChatCapability, since *time.Time, limit int) ([]*types.ChatMessage, error) {
	if _, _, err := s.authorize(ctx, groupID, capability); err != nil {
		return nil, err
	}
	return s.ListSince(ctx, groupID, since, limit)
}

func (s *chatService) ListSince(ctx context.Context, groupID uuid.UUID, since *time.Time, limit int) ([]*types.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	msgs, err := s.messages.ListSince(ctx, nil, groupID, since, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return msgs, nil
}

func (s *chatService) Authorize(ctx context.Context, groupID uuid.UUID, capability ChatCapability) error {
	_, _, err := s.authorize(ctx, groupID, capability)
	return err
}

// authorize resolves the group and, for participant capabilities, checks the
// token. Failures deliberately carry no detail about which check failed.
func (s *chatService) authorize(ctx context.Context, groupID uuid.UUID, capability ChatCapability) (*types.GroupOrder, *types.Participant, error) {
	group, err := s.groups.GetByID(ctx, nil, groupID)
	if err != nil {
		return nil, nil, apierr.Internal(err)
	}
	if group == nil {
		return nil, nil, apierr.NotFoundf("group %s not found", groupID)
	}

	if capability.isAdmin() {
		return group, nil, nil
	}

	if capability.ParticipantID == nil || capability.Token == "" {
		return nil, nil, apierr.Unauthorizedf("chat access denied")
	}
	participant, err := s.participants.GetByID(ctx, nil, *capability.ParticipantID)
	if err != nil {
		return nil, nil, apierr.Internal(err)
	}
	if participant == nil || participant.GroupOrderID != group.ID {
		return nil, nil, apierr.Unauthorizedf("chat access denied")
	}
	if !chatTokenMatches(capability.Token, participant.ChatTokenHash) {
		return nil, nil, apierr.Unauthorizedf("chat access denied")
	}
	if participant.ChatTokenCreatedAt == nil || time.Since(*participant.ChatTokenCreatedAt) > s.tokenTTL {
		return nil, nil, apierr.Unauthorizedf("chat access denied")
	}
	return group, participant, nil
}

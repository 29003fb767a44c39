package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

func participantCap(result *JoinResult) ChatCapability {
	id := result.Participant.ID
	return ChatCapability{ParticipantID: &id, Token: result.ChatToken}
}

func adminCap() ChatCapability {
	adminID := uuid.New()
	return ChatCapability{AdminID: &adminID, AdminEmail: "ops@example.com"}
}

func TestChatPostAndListWithCapabilityToken(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)
	ctx := context.Background()
	groupID := created.Group.ID

	msg, err := ts.chat.PostMessage(ctx, groupID, participantCap(created), "Bonjour à tous")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.AuthorType != types.ChatAuthorParticipant {
		t.Fatalf("author type: want=%s got=%s", types.ChatAuthorParticipant, msg.AuthorType)
	}
	if msg.AuthorName != "Fatou Ndiaye" {
		t.Fatalf("author name: got %q", msg.AuthorName)
	}

	if _, err := ts.chat.PostMessage(ctx, groupID, adminCap(), "Bienvenue!"); err != nil {
		t.Fatalf("admin post: %v", err)
	}

	msgs, err := ts.chat.ListMessages(ctx, groupID, participantCap(created), nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("message count: want=2 got=%d", len(msgs))
	}
	if msgs[0].CreatedAt.After(msgs[1].CreatedAt) {
		t.Fatalf("messages should be ascending by created_at")
	}
	if msgs[1].AuthorType != types.ChatAuthorAdmin {
		t.Fatalf("second author: want=%s got=%s", types.ChatAuthorAdmin, msgs[1].AuthorType)
	}

	// Listing after the first message returns only the second.
	since := msgs[0].CreatedAt
	tail, err := ts.chat.ListMessages(ctx, groupID, participantCap(created), &since, 0)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(tail) != 1 || tail[0].ID != msgs[1].ID {
		t.Fatalf("since filter: %+v", tail)
	}
}

func TestChatRejectsBadCapabilities(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)
	ctx := context.Background()
	groupID := created.Group.ID

	other, err := ts.ledger.Join(ctx, groupID, guest("Awa Diop", "+221761112233"), 1)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}

	participantID := created.Participant.ID
	otherID := other.Participant.ID
	cases := []struct {
		name string
		cap  ChatCapability
	}{
		{"no capability", ChatCapability{}},
		{"wrong token", ChatCapability{ParticipantID: &participantID, Token: "deadbeef"}},
		{"token of another participant", ChatCapability{ParticipantID: &participantID, Token: other.ChatToken}},
		{"participant id without token", ChatCapability{ParticipantID: &otherID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ts.chat.PostMessage(ctx, groupID, tc.cap, "salut"); !apierr.Is(err, apierr.CodeUnauthorized) {
				t.Fatalf("want unauthorized, got %v", err)
			}
		})
	}
}

func TestChatTokenScopedToItsGroup(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)
	ctx := context.Background()

	otherProduct, err := ts.catalog.CreateProduct(ctx, &types.Product{
		Name:            "Carton de savon",
		BasePrice:       5000,
		GroupBuyEnabled: true,
		MinQty:          1,
		TargetQty:       20,
	})
	if err != nil {
		t.Fatalf("second product: %v", err)
	}
	otherGroup, err := ts.orders.CreateDirect(ctx, CreateGroupInput{
		ProductID:      otherProduct.ID,
		Actor:          guest("Moussa Ba", "+221770004455"),
		Qty:            1,
		Deadline:       time.Now().Add(24 * time.Hour),
		ShippingMethod: "pickup",
	})
	if err != nil {
		t.Fatalf("second group: %v", err)
	}

	// The first group's capability cannot read the other group's chat.
	_, err = ts.chat.ListMessages(ctx, otherGroup.Group.ID, participantCap(created), nil, 0)
	if !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("cross-group capability: want unauthorized, got %v", err)
	}
}

func TestChatTokenExpires(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)
	ctx := context.Background()

	// Age the token past the default TTL.
	aged := time.Now().Add(-100 * 24 * time.Hour)
	if err := ts.db.Model(&types.Participant{}).
		Where("id = ?", created.Participant.ID).
		Update("chat_token_created_at", aged).Error; err != nil {
		t.Fatalf("age token: %v", err)
	}

	_, err := ts.chat.PostMessage(ctx, created.Group.ID, participantCap(created), "toujours là?")
	if !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("expired token: want unauthorized, got %v", err)
	}
}

func TestChatTokenWithoutMintTimeIsRejected(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)
	ctx := context.Background()

	// A row with a hash but no mint time must deny, not skip the TTL check.
	if err := ts.db.Model(&types.Participant{}).
		Where("id = ?", created.Participant.ID).
		Update("chat_token_created_at", nil).Error; err != nil {
		t.Fatalf("clear mint time: %v", err)
	}

	_, err := ts.chat.PostMessage(ctx, created.Group.ID, participantCap(created), "bonjour")
	if !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("token without mint time: want unauthorized, got %v", err)
	}
}

func TestChatValidatesBody(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)
	ctx := context.Background()

	if _, err := ts.chat.PostMessage(ctx, created.Group.ID, participantCap(created), "   "); !apierr.Is(err, apierr.CodeValidation) {
		t.Fatalf("empty body: want validation error, got %v", err)
	}
	long := make([]byte, maxChatMessageLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := ts.chat.PostMessage(ctx, created.Group.ID, participantCap(created), string(long)); !apierr.Is(err, apierr.CodeValidation) {
		t.Fatalf("oversized body: want validation error, got %v", err)
	}
}

func TestChatEmitsRealtimeEvent(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)

	if _, err := ts.chat.PostMessage(context.Background(), created.Group.ID, participantCap(created), "ça avance?"); err != nil {
		t.Fatalf("post: %v", err)
	}

	found := false
	for _, ev := range ts.emitter.events() {
		if ev == realtime.SSEEventChatMessageCreated {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a %s event, got %v", realtime.SSEEventChatMessageCreated, ts.emitter.events())
	}
}

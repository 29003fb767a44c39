package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

func TestProposeCreatesPendingGroup(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()

	group, err := ts.proposals.Propose(ctx, product.ID, guest("Aminata Sow", "+221765554433"), 12, "Besoin pour la fin du mois")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if group.Status != types.GroupStatusPendingApproval {
		t.Fatalf("status: want=%s got=%s", types.GroupStatusPendingApproval, group.Status)
	}
	if group.Origin != types.GroupOriginProposal {
		t.Fatalf("origin: want=%s got=%s", types.GroupOriginProposal, group.Origin)
	}
	details := group.Proposal.Data()
	if details == nil || details.DesiredQty != 12 || details.ProposerName != "Aminata Sow" {
		t.Fatalf("proposal details: %+v", details)
	}

	pending, err := ts.proposals.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != group.ID {
		t.Fatalf("pending list: %+v", pending)
	}
}

func TestProposeConflictsWithLiveGroup(t *testing.T) {
	ts := newTestStack(t)
	product, _ := ts.seedOpenGroup(t, 5, nil)

	_, err := ts.proposals.Propose(context.Background(), product.ID, guest("Aminata Sow", "+221765554433"), 10, "")
	if !apierr.Is(err, apierr.CodeConflict) {
		t.Fatalf("propose over live group: want conflict, got %v", err)
	}
}

func TestProposeRejectsDuplicatePendingFromSameProposer(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()

	if _, err := ts.proposals.Propose(ctx, product.ID, guest("Aminata Sow", "+221 76 555 44 33"), 10, ""); err != nil {
		t.Fatalf("first proposal: %v", err)
	}
	// Same phone, formatted differently.
	_, err := ts.proposals.Propose(ctx, product.ID, guest("A. Sow", "+221765554433"), 15, "")
	if !apierr.Is(err, apierr.CodeConflict) {
		t.Fatalf("duplicate proposal: want conflict, got %v", err)
	}

	// A different proposer may still queue one.
	if _, err := ts.proposals.Propose(ctx, product.ID, guest("Ibrahima Fall", "+221781112233"), 8, ""); err != nil {
		t.Fatalf("second proposer: %v", err)
	}
}

func TestReviewApproveOpensGroupWithProposerAsFirstParticipant(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()
	adminID := uuid.New()

	group, err := ts.proposals.Propose(ctx, product.ID, guest("Aminata Sow", "+221765554433"), 12, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	before := time.Now()
	approved, err := ts.proposals.Review(ctx, group.ID, adminID, ReviewApprove, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != types.GroupStatusOpen {
		t.Fatalf("status: want=%s got=%s", types.GroupStatusOpen, approved.Status)
	}
	if approved.CurrentQty != 12 {
		t.Fatalf("current qty: want=12 got=%d", approved.CurrentQty)
	}
	// 12 units land in the 10+ tier.
	if approved.CurrentUnitPrice != 9000 {
		t.Fatalf("unit price: want=9000 got=%d", approved.CurrentUnitPrice)
	}
	if approved.Deadline.Before(before.Add(6 * 24 * time.Hour)) {
		t.Fatalf("deadline should be reset to the open window, got %v", approved.Deadline)
	}

	participants, err := ts.participants.ListByGroup(ctx, nil, group.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 1 || participants[0].GuestName != "Aminata Sow" {
		t.Fatalf("participants: %+v", participants)
	}

	stored, err := ts.orders.Get(ctx, group.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	details := stored.Proposal.Data()
	if details == nil || details.ReviewedAt == nil || details.ReviewedBy == nil || *details.ReviewedBy != adminID {
		t.Fatalf("review trail: %+v", details)
	}
}

func TestReviewRejectRequiresReasonAndRecordsIt(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()
	adminID := uuid.New()

	group, err := ts.proposals.Propose(ctx, product.ID, guest("Aminata Sow", "+221765554433"), 12, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := ts.proposals.Review(ctx, group.ID, adminID, ReviewReject, "  "); !apierr.Is(err, apierr.CodeValidation) {
		t.Fatalf("reject without reason: want validation error, got %v", err)
	}

	rejected, err := ts.proposals.Review(ctx, group.ID, adminID, ReviewReject, "stock indisponible")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != types.GroupStatusRejected {
		t.Fatalf("status: want=%s got=%s", types.GroupStatusRejected, rejected.Status)
	}

	stored, err := ts.orders.Get(ctx, group.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	details := stored.Proposal.Data()
	if details == nil || details.RejectionReason != "stock indisponible" {
		t.Fatalf("rejection reason not persisted: %+v", details)
	}

	// No participants were ever created.
	participants, err := ts.participants.ListByGroup(ctx, nil, group.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 0 {
		t.Fatalf("rejected proposal should have no participants, got %d", len(participants))
	}

	// The decision is final.
	if _, err := ts.proposals.Review(ctx, group.ID, adminID, ReviewApprove, ""); !apierr.Is(err, apierr.CodeState) {
		t.Fatalf("re-review: want state error, got %v", err)
	}
}

func TestReviewUnknownAction(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()

	group, err := ts.proposals.Propose(ctx, product.ID, guest("Aminata Sow", "+221765554433"), 12, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := ts.proposals.Review(ctx, group.ID, uuid.New(), ReviewAction("defer"), ""); !apierr.Is(err, apierr.CodeValidation) {
		t.Fatalf("unknown action: want validation error, got %v", err)
	}
}

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

func TestCreateDirectSnapshotsProduct(t *testing.T) {
	ts := newTestStack(t)
	product, created := ts.seedOpenGroup(t, 9, nil)
	ctx := context.Background()

	group := created.Group
	if group.ProductName != product.Name || group.BasePrice != product.BasePrice {
		t.Fatalf("snapshot mismatch: %+v", group)
	}
	if group.Origin != types.GroupOriginDirect {
		t.Fatalf("origin: want=%s got=%s", types.GroupOriginDirect, group.Origin)
	}
	if !strings.HasPrefix(group.Code, "GB-") {
		t.Fatalf("code format: got %q", group.Code)
	}
	if created.ChatToken == "" {
		t.Fatalf("creator should receive a chat token")
	}

	// Catalog edits after creation must not leak into the group.
	product.BasePrice = 99999
	if _, err := ts.catalog.UpdateProduct(ctx, product); err != nil {
		t.Fatalf("update product: %v", err)
	}
	reloaded, err := ts.orders.Get(ctx, group.ID)
	if err != nil {
		t.Fatalf("reload group: %v", err)
	}
	if reloaded.BasePrice != 10000 {
		t.Fatalf("snapshot drifted: want=10000 got=%d", reloaded.BasePrice)
	}
}

func TestCreateDirectValidation(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()

	base := CreateGroupInput{
		ProductID:      product.ID,
		Actor:          guest("Fatou Ndiaye", "+221771234567"),
		Qty:            5,
		Deadline:       time.Now().Add(48 * time.Hour),
		ShippingMethod: "pickup",
	}

	cases := []struct {
		name   string
		mutate func(*CreateGroupInput)
	}{
		{"past deadline", func(in *CreateGroupInput) { in.Deadline = time.Now().Add(-time.Hour) }},
		{"unknown shipping", func(in *CreateGroupInput) { in.ShippingMethod = "drone" }},
		{"zero qty", func(in *CreateGroupInput) { in.Qty = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if _, err := ts.orders.CreateDirect(ctx, in); !apierr.Is(err, apierr.CodeValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestCreateDirectRequiresGroupBuyEnabled(t *testing.T) {
	ts := newTestStack(t)
	product := ts.seedProduct(t)
	ctx := context.Background()

	product.GroupBuyEnabled = false
	if _, err := ts.catalog.UpdateProduct(ctx, product); err != nil {
		t.Fatalf("update product: %v", err)
	}
	_, err := ts.orders.CreateDirect(ctx, CreateGroupInput{
		ProductID:      product.ID,
		Actor:          guest("Fatou Ndiaye", "+221771234567"),
		Qty:            5,
		Deadline:       time.Now().Add(48 * time.Hour),
		ShippingMethod: "pickup",
	})
	if !apierr.Is(err, apierr.CodeValidation) {
		t.Fatalf("disabled product: want validation error, got %v", err)
	}
}

func TestAdvanceMovesOneStepForwardOnly(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 50, nil) // fills immediately
	ctx := context.Background()
	groupID := created.Group.ID

	// Skipping a step is refused.
	if _, err := ts.orders.Advance(ctx, groupID, types.GroupStatusOrdered); !apierr.Is(err, apierr.CodeState) {
		t.Fatalf("skip step: want state error, got %v", err)
	}
	// Moving backward is refused.
	if _, err := ts.orders.Advance(ctx, groupID, types.GroupStatusOpen); !apierr.Is(err, apierr.CodeState) {
		t.Fatalf("backward: want state error, got %v", err)
	}

	steps := []types.GroupStatus{
		types.GroupStatusOrdering,
		types.GroupStatusOrdered,
		types.GroupStatusShipped,
		types.GroupStatusDelivered,
	}
	for _, next := range steps {
		group, err := ts.orders.Advance(ctx, groupID, next)
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if group.Status != next {
			t.Fatalf("status: want=%s got=%s", next, group.Status)
		}
	}

	// Delivered is terminal.
	if _, err := ts.orders.Advance(ctx, groupID, types.GroupStatusOrdering); !apierr.Is(err, apierr.CodeState) {
		t.Fatalf("advance after delivered: want state error, got %v", err)
	}
}

func TestAdvanceRejectsOpenGroup(t *testing.T) {
	ts := newTestStack(t)
	_, created := ts.seedOpenGroup(t, 5, nil)

	_, err := ts.orders.Advance(context.Background(), created.Group.ID, types.GroupStatusOrdering)
	if !apierr.Is(err, apierr.CodeState) {
		t.Fatalf("advance open group: want state error, got %v", err)
	}
}

func TestCancelFromAnyNonTerminalStatus(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	_, open := ts.seedOpenGroup(t, 5, nil)
	group, err := ts.orders.Cancel(ctx, open.Group.ID)
	if err != nil {
		t.Fatalf("cancel open group: %v", err)
	}
	if group.Status != types.GroupStatusCancelled {
		t.Fatalf("status: want=%s got=%s", types.GroupStatusCancelled, group.Status)
	}

	// A second cancel is refused.
	if _, err := ts.orders.Cancel(ctx, open.Group.ID); !apierr.Is(err, apierr.CodeState) {
		t.Fatalf("double cancel: want state error, got %v", err)
	}
}

func TestListActiveHidesExpiredOpenGroups(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	_, live := ts.seedOpenGroup(t, 5, nil)

	// Second product so both groups can be open at once.
	expiredProduct, err := ts.catalog.CreateProduct(ctx, &types.Product{
		Name:            "Bidon d'huile 20L",
		BasePrice:       15000,
		GroupBuyEnabled: true,
		MinQty:          2,
		TargetQty:       30,
	})
	if err != nil {
		t.Fatalf("second product: %v", err)
	}
	expired, err := ts.orders.CreateDirect(ctx, CreateGroupInput{
		ProductID:      expiredProduct.ID,
		Actor:          guest("Moussa Ba", "+221770004455"),
		Qty:            2,
		Deadline:       time.Now().Add(time.Hour),
		ShippingMethod: "delivery",
	})
	if err != nil {
		t.Fatalf("second group: %v", err)
	}
	if err := ts.groups.SetDeadline(ctx, nil, expired.Group.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("backdate deadline: %v", err)
	}

	groups, err := ts.orders.List(ctx, ListGroupsFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, g := range groups {
		if g.ID == expired.Group.ID {
			t.Fatalf("expired group %s should be hidden from active listings", g.Code)
		}
	}
	found := false
	for _, g := range groups {
		if g.ID == live.Group.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("live group missing from active listings")
	}
}

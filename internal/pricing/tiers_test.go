package pricing

import (
	"testing"

	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

func intPtr(v int) *int { return &v }

func TestResolveUnitPrice(t *testing.T) {
	twoTiers := []types.PriceTier{
		{MinQty: 10, Price: 9000},
		{MinQty: 50, Price: 8000},
	}

	cases := []struct {
		name      string
		qty       int
		tiers     []types.PriceTier
		basePrice int64
		want      int64
	}{
		{name: "below_first_tier", qty: 9, tiers: twoTiers, basePrice: 10000, want: 10000},
		{name: "exactly_first_tier", qty: 10, tiers: twoTiers, basePrice: 10000, want: 9000},
		{name: "between_tiers", qty: 49, tiers: twoTiers, basePrice: 10000, want: 9000},
		{name: "exactly_second_tier", qty: 50, tiers: twoTiers, basePrice: 10000, want: 8000},
		{name: "far_past_second_tier", qty: 500, tiers: twoTiers, basePrice: 10000, want: 8000},
		{name: "no_tiers", qty: 100, tiers: nil, basePrice: 12500, want: 12500},
		{name: "zero_qty", qty: 0, tiers: twoTiers, basePrice: 10000, want: 10000},
		{
			name: "unsorted_input",
			qty:  60,
			tiers: []types.PriceTier{
				{MinQty: 50, Price: 8000},
				{MinQty: 10, Price: 9000},
			},
			basePrice: 10000,
			want:      8000,
		},
		{
			name: "bounded_tier_excludes_above_max",
			qty:  30,
			tiers: []types.PriceTier{
				{MinQty: 10, MaxQty: intPtr(20), Price: 9000},
			},
			basePrice: 10000,
			want:      10000,
		},
		{
			name: "bounded_tier_includes_max",
			qty:  20,
			tiers: []types.PriceTier{
				{MinQty: 10, MaxQty: intPtr(20), Price: 9000},
			},
			basePrice: 10000,
			want:      9000,
		},
		{
			name: "falls_through_bounded_to_lower_tier",
			qty:  45,
			tiers: []types.PriceTier{
				{MinQty: 40, MaxQty: intPtr(44), Price: 7000},
				{MinQty: 10, Price: 9000},
			},
			basePrice: 10000,
			want:      9000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveUnitPrice(tc.qty, tc.tiers, tc.basePrice)
			if got != tc.want {
				t.Fatalf("ResolveUnitPrice(%d)=%d, want %d", tc.qty, got, tc.want)
			}
		})
	}
}

func TestResolveUnitPriceDoesNotMutateInput(t *testing.T) {
	tiers := []types.PriceTier{
		{MinQty: 10, Price: 9000},
		{MinQty: 50, Price: 8000},
	}
	_ = ResolveUnitPrice(60, tiers, 10000)
	if tiers[0].MinQty != 10 || tiers[1].MinQty != 50 {
		t.Fatalf("tier slice order mutated: %+v", tiers)
	}
}

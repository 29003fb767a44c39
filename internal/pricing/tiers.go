package pricing

import (
	"sort"

	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// ResolveUnitPrice maps an aggregate quantity to the unit price it earns.
// Tiers are evaluated from the highest MinQty down; the first tier whose
// bounds contain qty wins, otherwise basePrice applies. Pure function: it is
// recomputed from scratch on every quantity change, never patched
// incrementally.
func ResolveUnitPrice(qty int, tiers []types.PriceTier, basePrice int64) int64 {
	if qty <= 0 || len(tiers) == 0 {
		return basePrice
	}
	sorted := make([]types.PriceTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinQty > sorted[j].MinQty
	})
	for _, t := range sorted {
		if qty < t.MinQty {
			continue
		}
		if t.MaxQty != nil && qty > *t.MaxQty {
			continue
		}
		return t.Price
	}
	return basePrice
}

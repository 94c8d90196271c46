package services

import (
	"sort"

	"pos-system/internal/models"
)

// ResolveStack picks which calculated candidates actually get applied.
// Candidates are walked in priority order; a discount already on the order is
// skipped, a zero amount is skipped, and once a non-stackable discount is
// taken nothing else joins it.
func ResolveStack(candidates []*models.CalculationResult, order *models.OrderContext) []*models.CalculationResult {
	sorted := make([]*models.CalculationResult, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].StackPriority > sorted[j].StackPriority
	})

	var selected []*models.CalculationResult
	nonStackableTaken := false
	for _, c := range sorted {
		if c.Amount <= 0 {
			continue
		}
		if c.DiscountID != nil && order.HasDiscount(*c.DiscountID) {
			continue
		}
		if nonStackableTaken {
			continue
		}
		if !c.IsStackable && len(selected) > 0 {
			continue
		}
		selected = append(selected, c)
		if !c.IsStackable {
			nonStackableTaken = true
		}
	}
	return selected
}

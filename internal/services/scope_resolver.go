package services

import (
	"math"

	"github.com/google/uuid"

	"pos-system/internal/models"
)

// round2 rounds a money amount to cents. Every amount that leaves a
// calculation goes through here exactly once.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// ResolveScope returns the base amount a discount applies to and the ids of
// the order lines that contribute to it. Quantity-scoped discounts do not
// have a flat base and always resolve to zero; their amount comes from the
// BOGO calculation instead.
func ResolveScope(d *models.Discount, order *models.OrderContext) (float64, []uuid.UUID) {
	switch targets := d.Targets().(type) {
	case models.OrderTargets:
		return order.Subtotal, allLineIDs(order)
	case models.CustomerGroupTargets:
		// Group membership is an eligibility concern; by the time we are
		// resolving the base the discount already passed it.
		return order.Subtotal, allLineIDs(order)
	case models.ItemTargets:
		return matchingLinesBase(order, func(line models.OrderLine) bool {
			return containsID(targets.ItemIDs, line.ProductID)
		})
	case models.CategoryTargets:
		return matchingLinesBase(order, func(line models.OrderLine) bool {
			return line.CategoryID != nil && containsID(targets.CategoryIDs, *line.CategoryID)
		})
	case models.ModifierTargets:
		return matchingModifiersBase(order, func(m models.LineModifier) bool {
			return containsID(targets.ModifierIDs, m.ModifierID)
		})
	case models.ModifierGroupTargets:
		return matchingModifiersBase(order, func(m models.LineModifier) bool {
			return containsID(targets.GroupIDs, m.ModifierGroupID)
		})
	default:
		return 0, nil
	}
}

func allLineIDs(order *models.OrderContext) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, line := range order.Items {
		ids = append(ids, line.ID)
	}
	return ids
}

func matchingLinesBase(order *models.OrderContext, match func(models.OrderLine) bool) (float64, []uuid.UUID) {
	var base float64
	var ids []uuid.UUID
	for _, line := range order.Items {
		if match(line) {
			base += line.LineTotal
			ids = append(ids, line.ID)
		}
	}
	return base, ids
}

func matchingModifiersBase(order *models.OrderContext, match func(models.LineModifier) bool) (float64, []uuid.UUID) {
	var base float64
	var ids []uuid.UUID
	for _, line := range order.Items {
		matched := false
		for _, m := range line.Modifiers {
			if match(m) {
				base += m.Price
				matched = true
			}
		}
		if matched {
			ids = append(ids, line.ID)
		}
	}
	return base, ids
}

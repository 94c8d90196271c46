package services

import (
	"sort"

	"github.com/google/uuid"

	"pos-system/internal/apperror"
	"pos-system/internal/models"
)

// bogoUnit is a single sellable unit expanded out of an order line.
type bogoUnit struct {
	lineID    uuid.UUID
	unitPrice float64
}

// CalculateBogo computes the amount of a Buy-X-Get-Y discount. The cheapest
// eligible units are discounted first, so the customer always keeps the most
// expensive ones at full price. Returns a zero amount when the order has no
// complete qualifying set.
func CalculateBogo(d *models.Discount, order *models.OrderContext) (float64, []uuid.UUID, error) {
	targets, ok := d.Targets().(models.QuantityTargets)
	if !ok {
		return 0, nil, apperror.Validation("discount is not quantity scoped", nil)
	}
	if targets.BuyQuantity == nil || targets.GetQuantity == nil {
		return 0, nil, apperror.Validation("buy_quantity and get_quantity are required for quantity discounts", nil)
	}
	buyQuantity := *targets.BuyQuantity
	getQuantity := *targets.GetQuantity
	if buyQuantity <= 0 || getQuantity <= 0 {
		return 0, nil, apperror.Validation("buy_quantity and get_quantity must be positive", nil)
	}

	getPercent := 100.0
	if targets.GetDiscountPercent != nil {
		getPercent = *targets.GetDiscountPercent
	}

	// Empty target sets mean every line qualifies for that side of the deal.
	totalBuyQuantity := 0
	for _, line := range order.Items {
		if len(targets.BuyItemIDs) == 0 || containsID(targets.BuyItemIDs, line.ProductID) {
			totalBuyQuantity += line.Quantity
		}
	}
	qualifyingSets := totalBuyQuantity / buyQuantity
	if qualifyingSets == 0 {
		return 0, nil, nil
	}
	freeUnits := qualifyingSets * getQuantity

	var pool []bogoUnit
	for _, line := range order.Items {
		if len(targets.GetItemIDs) > 0 && !containsID(targets.GetItemIDs, line.ProductID) {
			continue
		}
		for i := 0; i < line.Quantity; i++ {
			pool = append(pool, bogoUnit{lineID: line.ID, unitPrice: line.UnitPrice})
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].unitPrice < pool[j].unitPrice
	})

	var discount float64
	var itemIDs []uuid.UUID
	for i := 0; i < len(pool) && i < freeUnits; i++ {
		discount += pool[i].unitPrice * getPercent / 100
		if !containsID(itemIDs, pool[i].lineID) {
			itemIDs = append(itemIDs, pool[i].lineID)
		}
	}
	if discount == 0 {
		return 0, nil, nil
	}
	if d.MaxDiscountAmount != nil && discount > *d.MaxDiscountAmount {
		discount = *d.MaxDiscountAmount
	}
	return round2(discount), itemIDs, nil
}

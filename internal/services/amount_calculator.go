package services

import (
	"fmt"

	"github.com/google/uuid"

	"pos-system/internal/apperror"
	"pos-system/internal/models"
)

// CalculateAmount evaluates one discount against an order context and
// returns the capped, cent-rounded result. A nil-error result with a zero
// amount means the discount simply does not bite on this order.
func CalculateAmount(d *models.Discount, order *models.OrderContext, avgTaxRate float64) (*models.CalculationResult, error) {
	var amount float64
	var itemIDs []uuid.UUID

	if d.Scope == models.ScopeQuantity {
		var err error
		amount, itemIDs, err = CalculateBogo(d, order)
		if err != nil {
			return nil, err
		}
	} else {
		base, ids := ResolveScope(d, order)
		itemIDs = ids
		switch d.Type {
		case models.DiscountTypePercentage:
			amount = base * d.Value / 100
		case models.DiscountTypeFixedAmount:
			// A fixed discount never exceeds what it applies to.
			amount = d.Value
			if amount > base {
				amount = base
			}
		case models.DiscountTypeComp:
			amount = base
		default:
			return nil, apperror.Validation(fmt.Sprintf("unknown discount type: %s", d.Type), nil)
		}
		if d.MaxDiscountAmount != nil && amount > *d.MaxDiscountAmount {
			amount = *d.MaxDiscountAmount
		}
		amount = round2(amount)
	}

	var taxReduction float64
	if d.ApplyBeforeTax && amount > 0 {
		taxReduction = round2(amount * avgTaxRate)
	}

	discountID := d.ID
	return &models.CalculationResult{
		DiscountID:       &discountID,
		Name:             d.Name,
		Type:             d.Type,
		Value:            d.Value,
		Amount:           amount,
		TaxReduction:     taxReduction,
		ItemIDs:          itemIDs,
		IsAutomatic:      d.IsAutomatic,
		IsStackable:      d.IsStackable,
		RequiresApproval: d.RequiresApproval,
		Priority:         d.Priority,
		StackPriority:    d.StackPriority,
	}, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the order aggregate as seen by the discount engine. Subtotal and
// PaidAmount are owned by order management; DiscountAmount, TaxAmount, Total
// and RemainingBalance are adjusted here on every apply/remove.
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	VenueID          uuid.UUID       `json:"venue_id" db:"venue_id"`
	CustomerID       *uuid.UUID      `json:"customer_id,omitempty" db:"customer_id"`
	Subtotal         float64         `json:"subtotal" db:"subtotal"`
	DiscountAmount   float64         `json:"discount_amount" db:"discount_amount"`
	TaxAmount        float64         `json:"tax_amount" db:"tax_amount"`
	TipAmount        float64         `json:"tip_amount" db:"tip_amount"`
	PaidAmount       float64         `json:"paid_amount" db:"paid_amount"`
	Total            float64         `json:"total" db:"total"`
	RemainingBalance float64         `json:"remaining_balance" db:"remaining_balance"`
	Items            []OrderLine     `json:"items,omitempty"`
	Discounts        []OrderDiscount `json:"discounts,omitempty"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderLine is a single line item on an order.
type OrderLine struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	OrderID    uuid.UUID      `json:"order_id" db:"order_id"`
	ProductID  uuid.UUID      `json:"product_id" db:"product_id"`
	CategoryID *uuid.UUID     `json:"category_id,omitempty" db:"category_id"`
	Name       string         `json:"name" db:"name"`
	Quantity   int            `json:"quantity" db:"quantity"`
	UnitPrice  float64        `json:"unit_price" db:"unit_price"`
	LineTotal  float64        `json:"line_total" db:"line_total"`
	Modifiers  []LineModifier `json:"modifiers,omitempty"`
}

// LineModifier is a modifier attached to an order line.
type LineModifier struct {
	ID              uuid.UUID `json:"id" db:"id"`
	OrderItemID     uuid.UUID `json:"order_item_id" db:"order_item_id"`
	ModifierID      uuid.UUID `json:"modifier_id" db:"modifier_id"`
	ModifierGroupID uuid.UUID `json:"modifier_group_id" db:"modifier_group_id"`
	Price           float64   `json:"price" db:"price"`
}

// OrderContext is the ephemeral evaluation snapshot of an order. It is
// rebuilt from the order aggregate on every evaluation and never persisted.
type OrderContext struct {
	OrderID            uuid.UUID   `json:"order_id"`
	VenueID            uuid.UUID   `json:"venue_id"`
	CustomerID         *uuid.UUID  `json:"customer_id,omitempty"`
	Subtotal           float64     `json:"subtotal"`
	Items              []OrderLine `json:"items"`
	AppliedDiscountIDs []uuid.UUID `json:"applied_discount_ids,omitempty"`
}

// HasDiscount reports whether a catalog discount is already applied.
func (c *OrderContext) HasDiscount(id uuid.UUID) bool {
	for _, applied := range c.AppliedDiscountIDs {
		if applied == id {
			return true
		}
	}
	return false
}

// OrderDiscount is the persisted record of one applied discount.
// DiscountID is nil for manual discounts.
type OrderDiscount struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	OrderID            uuid.UUID    `json:"order_id" db:"order_id"`
	DiscountID         *uuid.UUID   `json:"discount_id,omitempty" db:"discount_id"`
	CustomerDiscountID *uuid.UUID   `json:"customer_discount_id,omitempty" db:"customer_discount_id"`
	Type               DiscountType `json:"type" db:"type"`
	Name               string       `json:"name" db:"name"`
	Value              float64      `json:"value" db:"value"`
	Amount             float64      `json:"amount" db:"amount"`
	TaxReduction       float64      `json:"tax_reduction" db:"tax_reduction"`
	IsAutomatic        bool         `json:"is_automatic" db:"is_automatic"`
	IsManual           bool         `json:"is_manual" db:"is_manual"`
	IsComp             bool         `json:"is_comp" db:"is_comp"`
	CompReason         *string      `json:"comp_reason,omitempty" db:"comp_reason"`
	AppliedBy          *uuid.UUID   `json:"applied_by,omitempty" db:"applied_by"`
	AuthorizedBy       *uuid.UUID   `json:"authorized_by,omitempty" db:"authorized_by"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
}

// OrderTotals is the totals block returned after every apply/remove.
type OrderTotals struct {
	Subtotal         float64 `json:"subtotal"`
	DiscountAmount   float64 `json:"discount_amount"`
	TaxAmount        float64 `json:"tax_amount"`
	TipAmount        float64 `json:"tip_amount"`
	Total            float64 `json:"total"`
	PaidAmount       float64 `json:"paid_amount"`
	RemainingBalance float64 `json:"remaining_balance"`
}

// ApplyDiscountResult is the outcome of one successful application.
type ApplyDiscountResult struct {
	OrderDiscount *OrderDiscount `json:"order_discount"`
	Totals        OrderTotals    `json:"totals"`
}

// RemoveDiscountResult is the outcome of one successful removal.
type RemoveDiscountResult struct {
	RemovedID uuid.UUID   `json:"removed_id"`
	Amount    float64     `json:"amount"`
	Totals    OrderTotals `json:"totals"`
}

// AutomaticApplyResult aggregates the bulk automatic-application pass.
type AutomaticApplyResult struct {
	Applied       []*OrderDiscount `json:"applied"`
	TotalDiscount float64          `json:"total_discount"`
	Skipped       int              `json:"skipped"`
	Totals        *OrderTotals     `json:"totals,omitempty"`
}

// ApplyDiscountRequest is the payload for applying a catalog discount.
type ApplyDiscountRequest struct {
	DiscountID   uuid.UUID  `json:"discount_id"`
	AppliedBy    *uuid.UUID `json:"applied_by,omitempty"`
	AuthorizedBy *uuid.UUID `json:"authorized_by,omitempty"`
}

// ManualDiscountRequest is the payload for an ad-hoc staff-entered discount.
type ManualDiscountRequest struct {
	Type         DiscountType `json:"type"`
	Value        float64      `json:"value"`
	Name         string       `json:"name"`
	AppliedBy    *uuid.UUID   `json:"applied_by,omitempty"`
	AuthorizedBy *uuid.UUID   `json:"authorized_by,omitempty"`
	CompReason   *string      `json:"comp_reason,omitempty"`
}

// SummaryEntry is one applied discount with resolved staff names.
type SummaryEntry struct {
	OrderDiscount
	AppliedByName    *string `json:"applied_by_name,omitempty"`
	AuthorizedByName *string `json:"authorized_by_name,omitempty"`
}

// OrderDiscountsSummary is the read-only projection of applied discounts.
type OrderDiscountsSummary struct {
	OrderID     uuid.UUID      `json:"order_id"`
	Discounts   []SummaryEntry `json:"discounts"`
	Totals      OrderTotals    `json:"totals"`
	GeneratedAt time.Time      `json:"generated_at"`
}

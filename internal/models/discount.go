package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType describes how a discount value is interpreted.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
	DiscountTypeComp        DiscountType = "comp"
)

// DiscountScope describes which part of an order the discount base is computed over.
type DiscountScope string

const (
	ScopeOrder         DiscountScope = "order"
	ScopeItem          DiscountScope = "item"
	ScopeCategory      DiscountScope = "category"
	ScopeModifier      DiscountScope = "modifier"
	ScopeModifierGroup DiscountScope = "modifier_group"
	ScopeCustomerGroup DiscountScope = "customer_group"
	ScopeQuantity      DiscountScope = "quantity"
)

// Discount is a catalog promotion rule.
//
// CurrentUses is only ever mutated through atomic SQL increments inside an
// application transaction; the catalog CRUD never writes it.
type Discount struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	VenueID            uuid.UUID     `json:"venue_id" db:"venue_id"`
	Name               string        `json:"name" db:"name"`
	Type               DiscountType  `json:"type" db:"type"`
	Scope              DiscountScope `json:"scope" db:"scope"`
	Value              float64       `json:"value" db:"value"`
	ItemIDs            []uuid.UUID   `json:"item_ids,omitempty" db:"item_ids"`
	CategoryIDs        []uuid.UUID   `json:"category_ids,omitempty" db:"category_ids"`
	ModifierIDs        []uuid.UUID   `json:"modifier_ids,omitempty" db:"modifier_ids"`
	ModifierGroupIDs   []uuid.UUID   `json:"modifier_group_ids,omitempty" db:"modifier_group_ids"`
	CustomerGroupID    *uuid.UUID    `json:"customer_group_id,omitempty" db:"customer_group_id"`
	IsAutomatic        bool          `json:"is_automatic" db:"is_automatic"`
	Priority           int           `json:"priority" db:"priority"`
	StackPriority      int           `json:"stack_priority" db:"stack_priority"`
	IsStackable        bool          `json:"is_stackable" db:"is_stackable"`
	RequiresApproval   bool          `json:"requires_approval" db:"requires_approval"`
	ApplyBeforeTax     bool          `json:"apply_before_tax" db:"apply_before_tax"`
	Active             bool          `json:"active" db:"active"`
	ValidFrom          *time.Time    `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil         *time.Time    `json:"valid_until,omitempty" db:"valid_until"`
	DaysOfWeek         []int64       `json:"days_of_week,omitempty" db:"days_of_week"` // 0=Sunday
	TimeFrom           *string       `json:"time_from,omitempty" db:"time_from"`       // "HH:MM"
	TimeUntil          *string       `json:"time_until,omitempty" db:"time_until"`
	MaxTotalUses       *int          `json:"max_total_uses,omitempty" db:"max_total_uses"`
	MaxUsesPerCustomer *int          `json:"max_uses_per_customer,omitempty" db:"max_uses_per_customer"`
	CurrentUses        int           `json:"current_uses" db:"current_uses"`
	MinPurchaseAmount  *float64      `json:"min_purchase_amount,omitempty" db:"min_purchase_amount"`
	MaxDiscountAmount  *float64      `json:"max_discount_amount,omitempty" db:"max_discount_amount"`
	BuyQuantity        *int          `json:"buy_quantity,omitempty" db:"buy_quantity"`
	GetQuantity        *int          `json:"get_quantity,omitempty" db:"get_quantity"`
	GetDiscountPercent *float64      `json:"get_discount_percent,omitempty" db:"get_discount_percent"`
	BuyItemIDs         []uuid.UUID   `json:"buy_item_ids,omitempty" db:"buy_item_ids"`
	GetItemIDs         []uuid.UUID   `json:"get_item_ids,omitempty" db:"get_item_ids"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// ScopeTargets is the tagged variant of a discount's scope. The catalog row
// stores target sets as flat optional columns; Targets materializes the one
// variant relevant to the scope so scope dispatch can be an exhaustive
// type switch instead of runtime emptiness checks.
type ScopeTargets interface {
	Scope() DiscountScope
}

// OrderTargets covers the whole order.
type OrderTargets struct{}

// ItemTargets covers lines whose product is in ItemIDs.
type ItemTargets struct {
	ItemIDs []uuid.UUID
}

// CategoryTargets covers lines whose category is in CategoryIDs.
type CategoryTargets struct {
	CategoryIDs []uuid.UUID
}

// ModifierTargets covers attached modifiers whose id is in ModifierIDs.
type ModifierTargets struct {
	ModifierIDs []uuid.UUID
}

// ModifierGroupTargets covers attached modifiers whose group is in GroupIDs.
type ModifierGroupTargets struct {
	GroupIDs []uuid.UUID
}

// CustomerGroupTargets covers the whole order, gated on customer group membership.
type CustomerGroupTargets struct {
	GroupID *uuid.UUID
}

// QuantityTargets carries the Buy-X-Get-Y parameters.
type QuantityTargets struct {
	BuyQuantity        *int
	GetQuantity        *int
	GetDiscountPercent *float64
	BuyItemIDs         []uuid.UUID
	GetItemIDs         []uuid.UUID
}

func (OrderTargets) Scope() DiscountScope         { return ScopeOrder }
func (ItemTargets) Scope() DiscountScope          { return ScopeItem }
func (CategoryTargets) Scope() DiscountScope      { return ScopeCategory }
func (ModifierTargets) Scope() DiscountScope      { return ScopeModifier }
func (ModifierGroupTargets) Scope() DiscountScope { return ScopeModifierGroup }
func (CustomerGroupTargets) Scope() DiscountScope { return ScopeCustomerGroup }
func (QuantityTargets) Scope() DiscountScope      { return ScopeQuantity }

// Targets builds the scope variant for this discount.
func (d *Discount) Targets() ScopeTargets {
	switch d.Scope {
	case ScopeItem:
		return ItemTargets{ItemIDs: d.ItemIDs}
	case ScopeCategory:
		return CategoryTargets{CategoryIDs: d.CategoryIDs}
	case ScopeModifier:
		return ModifierTargets{ModifierIDs: d.ModifierIDs}
	case ScopeModifierGroup:
		return ModifierGroupTargets{GroupIDs: d.ModifierGroupIDs}
	case ScopeCustomerGroup:
		return CustomerGroupTargets{GroupID: d.CustomerGroupID}
	case ScopeQuantity:
		return QuantityTargets{
			BuyQuantity:        d.BuyQuantity,
			GetQuantity:        d.GetQuantity,
			GetDiscountPercent: d.GetDiscountPercent,
			BuyItemIDs:         d.BuyItemIDs,
			GetItemIDs:         d.GetItemIDs,
		}
	default:
		return OrderTargets{}
	}
}

// CustomerDiscount links a catalog discount to one customer with its own
// usage cap and optional override validity window.
type CustomerDiscount struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DiscountID uuid.UUID  `json:"discount_id" db:"discount_id"`
	CustomerID uuid.UUID  `json:"customer_id" db:"customer_id"`
	Active     bool       `json:"active" db:"active"`
	MaxUses    *int       `json:"max_uses,omitempty" db:"max_uses"`
	UsageCount int        `json:"usage_count" db:"usage_count"`
	ValidFrom  *time.Time `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// CustomerDiscountOffer pairs a catalog discount with the per-customer
// assignment that makes it available.
type CustomerDiscountOffer struct {
	Discount   Discount         `json:"discount"`
	Assignment CustomerDiscount `json:"assignment"`
}

// CalculationResult is the outcome of evaluating one discount against an
// order context. It carries everything the application transaction needs.
type CalculationResult struct {
	DiscountID         *uuid.UUID   `json:"discount_id,omitempty"`
	CustomerDiscountID *uuid.UUID   `json:"customer_discount_id,omitempty"`
	Name               string       `json:"name"`
	Type               DiscountType `json:"type"`
	Value              float64      `json:"value"`
	Amount             float64      `json:"amount"`
	TaxReduction       float64      `json:"tax_reduction"`
	ItemIDs            []uuid.UUID  `json:"item_ids,omitempty"`
	IsAutomatic        bool         `json:"is_automatic"`
	IsStackable        bool         `json:"is_stackable"`
	RequiresApproval   bool         `json:"requires_approval"`
	Priority           int          `json:"priority"`
	StackPriority      int          `json:"stack_priority"`
}

// CreateDiscountRequest is the payload for creating a catalog discount.
type CreateDiscountRequest struct {
	VenueID            uuid.UUID     `json:"venue_id"`
	Name               string        `json:"name"`
	Type               DiscountType  `json:"type"`
	Scope              DiscountScope `json:"scope"`
	Value              float64       `json:"value"`
	ItemIDs            []uuid.UUID   `json:"item_ids,omitempty"`
	CategoryIDs        []uuid.UUID   `json:"category_ids,omitempty"`
	ModifierIDs        []uuid.UUID   `json:"modifier_ids,omitempty"`
	ModifierGroupIDs   []uuid.UUID   `json:"modifier_group_ids,omitempty"`
	CustomerGroupID    *uuid.UUID    `json:"customer_group_id,omitempty"`
	IsAutomatic        bool          `json:"is_automatic"`
	Priority           int           `json:"priority"`
	StackPriority      int           `json:"stack_priority"`
	IsStackable        bool          `json:"is_stackable"`
	RequiresApproval   bool          `json:"requires_approval"`
	ApplyBeforeTax     bool          `json:"apply_before_tax"`
	Active             bool          `json:"active"`
	ValidFrom          *time.Time    `json:"valid_from,omitempty"`
	ValidUntil         *time.Time    `json:"valid_until,omitempty"`
	DaysOfWeek         []int64       `json:"days_of_week,omitempty"`
	TimeFrom           *string       `json:"time_from,omitempty"`
	TimeUntil          *string       `json:"time_until,omitempty"`
	MaxTotalUses       *int          `json:"max_total_uses,omitempty"`
	MaxUsesPerCustomer *int          `json:"max_uses_per_customer,omitempty"`
	MinPurchaseAmount  *float64      `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount  *float64      `json:"max_discount_amount,omitempty"`
	BuyQuantity        *int          `json:"buy_quantity,omitempty"`
	GetQuantity        *int          `json:"get_quantity,omitempty"`
	GetDiscountPercent *float64      `json:"get_discount_percent,omitempty"`
	BuyItemIDs         []uuid.UUID   `json:"buy_item_ids,omitempty"`
	GetItemIDs         []uuid.UUID   `json:"get_item_ids,omitempty"`
}

// UpdateDiscountRequest is the payload for updating a catalog discount.
// CurrentUses is deliberately absent.
type UpdateDiscountRequest struct {
	Name               string        `json:"name"`
	Type               DiscountType  `json:"type"`
	Scope              DiscountScope `json:"scope"`
	Value              float64       `json:"value"`
	ItemIDs            []uuid.UUID   `json:"item_ids,omitempty"`
	CategoryIDs        []uuid.UUID   `json:"category_ids,omitempty"`
	ModifierIDs        []uuid.UUID   `json:"modifier_ids,omitempty"`
	ModifierGroupIDs   []uuid.UUID   `json:"modifier_group_ids,omitempty"`
	CustomerGroupID    *uuid.UUID    `json:"customer_group_id,omitempty"`
	IsAutomatic        bool          `json:"is_automatic"`
	Priority           int           `json:"priority"`
	StackPriority      int           `json:"stack_priority"`
	IsStackable        bool          `json:"is_stackable"`
	RequiresApproval   bool          `json:"requires_approval"`
	ApplyBeforeTax     bool          `json:"apply_before_tax"`
	Active             bool          `json:"active"`
	ValidFrom          *time.Time    `json:"valid_from,omitempty"`
	ValidUntil         *time.Time    `json:"valid_until,omitempty"`
	DaysOfWeek         []int64       `json:"days_of_week,omitempty"`
	TimeFrom           *string       `json:"time_from,omitempty"`
	TimeUntil          *string       `json:"time_until,omitempty"`
	MaxTotalUses       *int          `json:"max_total_uses,omitempty"`
	MaxUsesPerCustomer *int          `json:"max_uses_per_customer,omitempty"`
	MinPurchaseAmount  *float64      `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount  *float64      `json:"max_discount_amount,omitempty"`
	BuyQuantity        *int          `json:"buy_quantity,omitempty"`
	GetQuantity        *int          `json:"get_quantity,omitempty"`
	GetDiscountPercent *float64      `json:"get_discount_percent,omitempty"`
	BuyItemIDs         []uuid.UUID   `json:"buy_item_ids,omitempty"`
	GetItemIDs         []uuid.UUID   `json:"get_item_ids,omitempty"`
}

// AssignCustomerDiscountRequest links a discount to a customer.
type AssignCustomerDiscountRequest struct {
	DiscountID uuid.UUID  `json:"discount_id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	MaxUses    *int       `json:"max_uses,omitempty"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

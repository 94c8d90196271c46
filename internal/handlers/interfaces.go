package handlers

import (
	"context"
	"time"

	"pos-system/internal/models"

	"github.com/google/uuid"
)

// ----- Discount engine -----

type DiscountEngine interface {
	EvaluateAutomaticDiscounts(ctx context.Context, orderID uuid.UUID) ([]*models.CalculationResult, error)
	CalculateDiscountAmount(ctx context.Context, orderID, discountID uuid.UUID) (*models.CalculationResult, error)
	ApplyDiscount(ctx context.Context, orderID uuid.UUID, req *models.ApplyDiscountRequest) (*models.ApplyDiscountResult, error)
	RemoveDiscountFromOrder(ctx context.Context, orderID, orderDiscountID uuid.UUID) (*models.RemoveDiscountResult, error)
	ApplyAutomaticDiscounts(ctx context.Context, orderID uuid.UUID, appliedBy *uuid.UUID) (*models.AutomaticApplyResult, error)
	ApplyManualDiscount(ctx context.Context, orderID uuid.UUID, req *models.ManualDiscountRequest) (*models.ApplyDiscountResult, error)
	GetOrderDiscountsSummary(ctx context.Context, orderID uuid.UUID) (*models.OrderDiscountsSummary, error)
}

type EligibilityProvider interface {
	GetEligibleDiscounts(ctx context.Context, venueID uuid.UUID, customerID *uuid.UUID, orderSubtotal *float64) ([]*models.Discount, error)
	GetCustomerDiscounts(ctx context.Context, customerID uuid.UUID, orderSubtotal *float64) ([]*models.CustomerDiscountOffer, error)
}

// ----- Catalog -----

type CatalogManager interface {
	CreateDiscount(ctx context.Context, req *models.CreateDiscountRequest) (*models.Discount, error)
	GetDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	ListDiscounts(ctx context.Context, venueID uuid.UUID, limit, offset int) ([]*models.Discount, error)
	UpdateDiscount(ctx context.Context, id uuid.UUID, req *models.UpdateDiscountRequest) (*models.Discount, error)
	DeleteDiscount(ctx context.Context, id uuid.UUID) error
	AssignCustomerDiscount(ctx context.Context, req *models.AssignCustomerDiscountRequest) (*models.CustomerDiscount, error)
	RemoveCustomerDiscount(ctx context.Context, assignmentID uuid.UUID) error
}

// ----- Events -----

type EventProducer interface {
	PublishDiscountApplied(orderID, orderDiscountID uuid.UUID, discountID *uuid.UUID, amount float64) error
	PublishDiscountRemoved(orderID, orderDiscountID uuid.UUID, amount float64) error
	PublishOrderTotalsUpdated(orderID uuid.UUID, totals models.OrderTotals) error
}

// ----- Cache -----

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}

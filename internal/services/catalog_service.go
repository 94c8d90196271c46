package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pos-system/internal/apperror"
	"pos-system/internal/config"
	"pos-system/internal/database"
	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/redis"
)

// discountColumnNames is the canonical select list for the discounts table.
// Scan order must match discountScanDest.
var discountColumnNames = []string{
	"id", "venue_id", "name", "type", "scope", "value",
	"item_ids", "category_ids", "modifier_ids", "modifier_group_ids", "customer_group_id",
	"is_automatic", "priority", "stack_priority", "is_stackable", "requires_approval",
	"apply_before_tax", "active", "valid_from", "valid_until",
	"days_of_week", "time_from", "time_until",
	"max_total_uses", "max_uses_per_customer", "current_uses",
	"min_purchase_amount", "max_discount_amount",
	"buy_quantity", "get_quantity", "get_discount_percent", "buy_item_ids", "get_item_ids",
	"created_at", "updated_at",
}

// discountColumns renders the select list, optionally qualified with a table
// alias.
func discountColumns(alias string) string {
	if alias == "" {
		return strings.Join(discountColumnNames, ", ")
	}
	qualified := make([]string, len(discountColumnNames))
	for i, col := range discountColumnNames {
		qualified[i] = alias + "." + col
	}
	return strings.Join(qualified, ", ")
}

// discountScanDest returns scan targets matching discountColumns order.
func discountScanDest(d *models.Discount) []interface{} {
	return []interface{}{
		&d.ID, &d.VenueID, &d.Name, &d.Type, &d.Scope, &d.Value,
		pq.Array(&d.ItemIDs), pq.Array(&d.CategoryIDs), pq.Array(&d.ModifierIDs),
		pq.Array(&d.ModifierGroupIDs), &d.CustomerGroupID,
		&d.IsAutomatic, &d.Priority, &d.StackPriority, &d.IsStackable, &d.RequiresApproval,
		&d.ApplyBeforeTax, &d.Active, &d.ValidFrom, &d.ValidUntil,
		pq.Array(&d.DaysOfWeek), &d.TimeFrom, &d.TimeUntil,
		&d.MaxTotalUses, &d.MaxUsesPerCustomer, &d.CurrentUses,
		&d.MinPurchaseAmount, &d.MaxDiscountAmount,
		&d.BuyQuantity, &d.GetQuantity, &d.GetDiscountPercent,
		pq.Array(&d.BuyItemIDs), pq.Array(&d.GetItemIDs),
		&d.CreatedAt, &d.UpdatedAt,
	}
}

// CatalogService manages the discount catalog and customer assignments.
// The evaluation side only ever reads the catalog; all writes happen here,
// except for current_uses which is incremented inside application
// transactions.
type CatalogService struct {
	db       *database.DB
	cache    *redis.Client
	log      *logger.Logger
	cacheTTL time.Duration
}

func NewCatalogService(db *database.DB, cache *redis.Client, log *logger.Logger, cfg *config.CacheConfig) *CatalogService {
	return &CatalogService{
		db:       db,
		cache:    cache,
		log:      log,
		cacheTTL: time.Duration(cfg.CatalogTTLMinutes) * time.Minute,
	}
}

// CreateDiscount validates and inserts a new catalog discount.
func (s *CatalogService) CreateDiscount(ctx context.Context, req *models.CreateDiscountRequest) (*models.Discount, error) {
	if err := validateDiscountPayload(req.Type, req.Scope, req.Value, req.CustomerGroupID, req.BuyQuantity, req.GetQuantity, req.GetDiscountPercent); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, apperror.Validation("name is required", nil)
	}
	if req.VenueID == uuid.Nil {
		return nil, apperror.Validation("venue_id is required", nil)
	}

	now := time.Now()
	d := &models.Discount{
		ID:                 uuid.New(),
		VenueID:            req.VenueID,
		Name:               req.Name,
		Type:               req.Type,
		Scope:              req.Scope,
		Value:              req.Value,
		ItemIDs:            req.ItemIDs,
		CategoryIDs:        req.CategoryIDs,
		ModifierIDs:        req.ModifierIDs,
		ModifierGroupIDs:   req.ModifierGroupIDs,
		CustomerGroupID:    req.CustomerGroupID,
		IsAutomatic:        req.IsAutomatic,
		Priority:           req.Priority,
		StackPriority:      req.StackPriority,
		IsStackable:        req.IsStackable,
		RequiresApproval:   req.RequiresApproval,
		ApplyBeforeTax:     req.ApplyBeforeTax,
		Active:             req.Active,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		DaysOfWeek:         req.DaysOfWeek,
		TimeFrom:           req.TimeFrom,
		TimeUntil:          req.TimeUntil,
		MaxTotalUses:       req.MaxTotalUses,
		MaxUsesPerCustomer: req.MaxUsesPerCustomer,
		MinPurchaseAmount:  req.MinPurchaseAmount,
		MaxDiscountAmount:  req.MaxDiscountAmount,
		BuyQuantity:        req.BuyQuantity,
		GetQuantity:        req.GetQuantity,
		GetDiscountPercent: req.GetDiscountPercent,
		BuyItemIDs:         req.BuyItemIDs,
		GetItemIDs:         req.GetItemIDs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	query := `
		INSERT INTO discounts (` + discountColumns("") + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		        $29, $30, $31, $32, $33, $34, $35)`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.VenueID, d.Name, d.Type, d.Scope, d.Value,
		pq.Array(d.ItemIDs), pq.Array(d.CategoryIDs), pq.Array(d.ModifierIDs),
		pq.Array(d.ModifierGroupIDs), d.CustomerGroupID,
		d.IsAutomatic, d.Priority, d.StackPriority, d.IsStackable, d.RequiresApproval,
		d.ApplyBeforeTax, d.Active, d.ValidFrom, d.ValidUntil,
		pq.Array(d.DaysOfWeek), d.TimeFrom, d.TimeUntil,
		d.MaxTotalUses, d.MaxUsesPerCustomer, d.CurrentUses,
		d.MinPurchaseAmount, d.MaxDiscountAmount,
		d.BuyQuantity, d.GetQuantity, d.GetDiscountPercent,
		pq.Array(d.BuyItemIDs), pq.Array(d.GetItemIDs),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discount: %w", err)
	}

	s.invalidateVenue(ctx, d.VenueID)
	s.log.WithFields(map[string]interface{}{
		"discount_id": d.ID,
		"venue_id":    d.VenueID,
		"type":        d.Type,
		"scope":       d.Scope,
	}).Info("Discount created")

	return d, nil
}

// GetDiscount loads one discount, preferring the cache.
func (s *CatalogService) GetDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	if s.cache != nil {
		cached := &models.Discount{}
		key := redis.GenerateKey(redis.KeyPrefixDiscount, id.String())
		if err := s.cache.Get(ctx, key, cached); err == nil {
			return cached, nil
		}
	}

	d, err := s.getDiscount(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		key := redis.GenerateKey(redis.KeyPrefixDiscount, id.String())
		if err := s.cache.Set(ctx, key, d, s.cacheTTL); err != nil {
			s.log.WithField("discount_id", id).Warn("Failed to cache discount")
		}
	}
	return d, nil
}

func (s *CatalogService) getDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	return fetchDiscount(ctx, s.db, id)
}

// fetchDiscount loads one discount row straight from the database.
func fetchDiscount(ctx context.Context, db *database.DB, id uuid.UUID) (*models.Discount, error) {
	query := `SELECT ` + discountColumns("") + ` FROM discounts WHERE id = $1`
	d := &models.Discount{}
	err := db.QueryRowContext(ctx, query, id).Scan(discountScanDest(d)...)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("discount not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}
	return d, nil
}

// ListDiscounts returns a page of a venue's discounts, newest first.
func (s *CatalogService) ListDiscounts(ctx context.Context, venueID uuid.UUID, limit, offset int) ([]*models.Discount, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + discountColumns("") + `
		FROM discounts
		WHERE venue_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, venueID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	defer rows.Close()

	var discounts []*models.Discount
	for rows.Next() {
		d := &models.Discount{}
		if err := rows.Scan(discountScanDest(d)...); err != nil {
			return nil, fmt.Errorf("failed to scan discount: %w", err)
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

// UpdateDiscount replaces a discount's settings. current_uses is left alone.
func (s *CatalogService) UpdateDiscount(ctx context.Context, id uuid.UUID, req *models.UpdateDiscountRequest) (*models.Discount, error) {
	if err := validateDiscountPayload(req.Type, req.Scope, req.Value, req.CustomerGroupID, req.BuyQuantity, req.GetQuantity, req.GetDiscountPercent); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, apperror.Validation("name is required", nil)
	}

	query := `
		UPDATE discounts SET
			name = $2, type = $3, scope = $4, value = $5,
			item_ids = $6, category_ids = $7, modifier_ids = $8,
			modifier_group_ids = $9, customer_group_id = $10,
			is_automatic = $11, priority = $12, stack_priority = $13,
			is_stackable = $14, requires_approval = $15, apply_before_tax = $16,
			active = $17, valid_from = $18, valid_until = $19,
			days_of_week = $20, time_from = $21, time_until = $22,
			max_total_uses = $23, max_uses_per_customer = $24,
			min_purchase_amount = $25, max_discount_amount = $26,
			buy_quantity = $27, get_quantity = $28, get_discount_percent = $29,
			buy_item_ids = $30, get_item_ids = $31, updated_at = $32
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		id, req.Name, req.Type, req.Scope, req.Value,
		pq.Array(req.ItemIDs), pq.Array(req.CategoryIDs), pq.Array(req.ModifierIDs),
		pq.Array(req.ModifierGroupIDs), req.CustomerGroupID,
		req.IsAutomatic, req.Priority, req.StackPriority,
		req.IsStackable, req.RequiresApproval, req.ApplyBeforeTax,
		req.Active, req.ValidFrom, req.ValidUntil,
		pq.Array(req.DaysOfWeek), req.TimeFrom, req.TimeUntil,
		req.MaxTotalUses, req.MaxUsesPerCustomer,
		req.MinPurchaseAmount, req.MaxDiscountAmount,
		req.BuyQuantity, req.GetQuantity, req.GetDiscountPercent,
		pq.Array(req.BuyItemIDs), pq.Array(req.GetItemIDs), time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update discount: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("discount not found", nil)
	}

	d, err := s.getDiscount(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateDiscount(ctx, d)
	s.log.WithField("discount_id", id).Info("Discount updated")
	return d, nil
}

// DeleteDiscount removes a discount from the catalog. Applied order discounts
// keep their own snapshot of name/type/value, so history survives the delete.
func (s *CatalogService) DeleteDiscount(ctx context.Context, id uuid.UUID) error {
	d, err := s.getDiscount(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete discount: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("discount not found", nil)
	}

	s.invalidateDiscount(ctx, d)
	s.log.WithField("discount_id", id).Info("Discount deleted")
	return nil
}

// AssignCustomerDiscount links a discount to a customer.
func (s *CatalogService) AssignCustomerDiscount(ctx context.Context, req *models.AssignCustomerDiscountRequest) (*models.CustomerDiscount, error) {
	if req.DiscountID == uuid.Nil || req.CustomerID == uuid.Nil {
		return nil, apperror.Validation("discount_id and customer_id are required", nil)
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		return nil, apperror.Validation("max_uses must be positive", nil)
	}
	if _, err := s.getDiscount(ctx, req.DiscountID); err != nil {
		return nil, err
	}

	assignment := &models.CustomerDiscount{
		ID:         uuid.New(),
		DiscountID: req.DiscountID,
		CustomerID: req.CustomerID,
		Active:     true,
		MaxUses:    req.MaxUses,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		CreatedAt:  time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_discounts (id, discount_id, customer_id, active, max_uses, usage_count, valid_from, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		assignment.ID, assignment.DiscountID, assignment.CustomerID, assignment.Active,
		assignment.MaxUses, assignment.UsageCount, assignment.ValidFrom, assignment.ValidUntil,
		assignment.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apperror.AlreadyApplied("discount is already assigned to this customer", err)
		}
		return nil, fmt.Errorf("failed to assign customer discount: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"assignment_id": assignment.ID,
		"discount_id":   assignment.DiscountID,
		"customer_id":   assignment.CustomerID,
	}).Info("Customer discount assigned")

	return assignment, nil
}

// RemoveCustomerDiscount deactivates an assignment. Usage history stays.
func (s *CatalogService) RemoveCustomerDiscount(ctx context.Context, assignmentID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE customer_discounts SET active = false WHERE id = $1 AND active = true`,
		assignmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove customer discount: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("customer discount assignment not found", nil)
	}

	s.log.WithField("assignment_id", assignmentID).Info("Customer discount removed")
	return nil
}

func (s *CatalogService) invalidateDiscount(ctx context.Context, d *models.Discount) {
	if s.cache == nil {
		return
	}
	key := redis.GenerateKey(redis.KeyPrefixDiscount, d.ID.String())
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithField("discount_id", d.ID).Warn("Failed to invalidate discount cache")
	}
	s.invalidateVenue(ctx, d.VenueID)
}

func (s *CatalogService) invalidateVenue(ctx context.Context, venueID uuid.UUID) {
	if s.cache == nil {
		return
	}
	prefix := redis.GenerateKey(redis.KeyPrefixEligibility, venueID.String())
	if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
		s.log.WithField("venue_id", venueID).Warn("Failed to invalidate eligibility cache")
	}
}

// validateDiscountPayload checks the cross-field rules of a catalog payload.
func validateDiscountPayload(dtype models.DiscountType, scope models.DiscountScope, value float64, customerGroupID *uuid.UUID, buyQuantity, getQuantity *int, getDiscountPercent *float64) error {
	switch dtype {
	case models.DiscountTypePercentage:
		if value < 0 || value > 100 {
			return apperror.Validation("percentage value must be between 0 and 100", nil)
		}
	case models.DiscountTypeFixedAmount:
		if value <= 0 {
			return apperror.Validation("fixed amount value must be positive", nil)
		}
	case models.DiscountTypeComp:
		// Value is ignored for comps.
	default:
		return apperror.Validation(fmt.Sprintf("unknown discount type: %s", dtype), nil)
	}

	switch scope {
	case models.ScopeOrder, models.ScopeItem, models.ScopeCategory,
		models.ScopeModifier, models.ScopeModifierGroup,
		models.ScopeCustomerGroup, models.ScopeQuantity:
	default:
		return apperror.Validation(fmt.Sprintf("unknown discount scope: %s", scope), nil)
	}

	// A group constraint outside the customer_group scope would be silently
	// ignored by scope resolution, so reject it up front.
	if customerGroupID != nil && scope != models.ScopeCustomerGroup {
		return apperror.Validation("customer_group_id is only valid for customer_group scope", nil)
	}

	if scope == models.ScopeQuantity {
		if buyQuantity == nil || getQuantity == nil {
			return apperror.Validation("buy_quantity and get_quantity are required for quantity discounts", nil)
		}
		if *buyQuantity <= 0 || *getQuantity <= 0 {
			return apperror.Validation("buy_quantity and get_quantity must be positive", nil)
		}
		if getDiscountPercent != nil && (*getDiscountPercent <= 0 || *getDiscountPercent > 100) {
			return apperror.Validation("get_discount_percent must be in (0, 100]", nil)
		}
	}
	return nil
}

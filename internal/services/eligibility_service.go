package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos-system/internal/apperror"
	"pos-system/internal/database"
	"pos-system/internal/logger"
	"pos-system/internal/models"
)

// customerPriorityBoost lifts customer-assigned discounts above catalog
// automatics with the same configured priority.
const customerPriorityBoost = 100

// EligibilityService answers which discounts can be offered right now, for a
// venue and optionally a specific customer and order subtotal.
type EligibilityService struct {
	db  *database.DB
	log *logger.Logger
}

func NewEligibilityService(db *database.DB, log *logger.Logger) *EligibilityService {
	return &EligibilityService{db: db, log: log}
}

// GetEligibleDiscounts returns the venue's active discounts that pass every
// eligibility predicate, ordered by priority then stack priority descending.
func (s *EligibilityService) GetEligibleDiscounts(ctx context.Context, venueID uuid.UUID, customerID *uuid.UUID, orderSubtotal *float64) ([]*models.Discount, error) {
	discounts, err := s.listActiveDiscounts(ctx, venueID)
	if err != nil {
		return nil, err
	}

	var customerGroupID *uuid.UUID
	usage := map[uuid.UUID]int{}
	if customerID != nil {
		customerGroupID, err = s.customerGroup(ctx, *customerID)
		if err != nil {
			return nil, err
		}
		usage, err = s.customerUsageCounts(ctx, *customerID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	eligible := make([]*models.Discount, 0, len(discounts))
	for _, d := range discounts {
		if isDiscountEligible(d, now, orderSubtotal, customerID, customerGroupID, usage[d.ID]) {
			eligible = append(eligible, d)
		}
	}

	s.log.WithField("venue_id", venueID).WithField("eligible", len(eligible)).
		Debug("Eligibility check finished")
	return eligible, nil
}

// GetCustomerDiscounts returns active per-customer assignments whose backing
// discount is also eligible. The returned offers carry a boosted priority and
// are always treated as automatic.
func (s *EligibilityService) GetCustomerDiscounts(ctx context.Context, customerID uuid.UUID, orderSubtotal *float64) ([]*models.CustomerDiscountOffer, error) {
	query := `
		SELECT cd.id, cd.discount_id, cd.customer_id, cd.active, cd.max_uses,
		       cd.usage_count, cd.valid_from, cd.valid_until, cd.created_at,
		       ` + discountColumns("d") + `
		FROM customer_discounts cd
		JOIN discounts d ON d.id = cd.discount_id
		WHERE cd.customer_id = $1 AND cd.active = true AND d.active = true
		ORDER BY d.priority DESC, d.stack_priority DESC`

	customerGroupID, err := s.customerGroup(ctx, customerID)
	if err != nil {
		return nil, err
	}
	usage, err := s.customerUsageCounts(ctx, customerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer discounts: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var offers []*models.CustomerDiscountOffer
	for rows.Next() {
		assignment := models.CustomerDiscount{}
		d := &models.Discount{}
		dest := []interface{}{
			&assignment.ID, &assignment.DiscountID, &assignment.CustomerID,
			&assignment.Active, &assignment.MaxUses, &assignment.UsageCount,
			&assignment.ValidFrom, &assignment.ValidUntil, &assignment.CreatedAt,
		}
		dest = append(dest, discountScanDest(d)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan customer discount: %w", err)
		}
		if !isAssignmentUsable(&assignment, now) {
			continue
		}
		if !isDiscountEligible(d, now, orderSubtotal, &customerID, customerGroupID, usage[d.ID]) {
			continue
		}
		d.Priority += customerPriorityBoost
		d.IsAutomatic = true
		offers = append(offers, &models.CustomerDiscountOffer{Discount: *d, Assignment: assignment})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customer discounts: %w", err)
	}
	return offers, nil
}

func (s *EligibilityService) listActiveDiscounts(ctx context.Context, venueID uuid.UUID) ([]*models.Discount, error) {
	query := `
		SELECT ` + discountColumns("") + `
		FROM discounts
		WHERE venue_id = $1 AND active = true
		ORDER BY priority DESC, stack_priority DESC`

	rows, err := s.db.QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discounts: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate discounts: %w", err)
	}
	return discounts, nil
}

func (s *EligibilityService) customerGroup(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error) {
	var groupID *uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT customer_group_id FROM customers WHERE id = $1`, customerID,
	).Scan(&groupID)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("customer not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return groupID, nil
}

func (s *EligibilityService) customerUsageCounts(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT od.discount_id, COUNT(*)
		FROM order_discounts od
		JOIN orders o ON o.id = od.order_id
		WHERE o.customer_id = $1 AND od.discount_id IS NOT NULL
		GROUP BY od.discount_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discount usage: %w", err)
	}
	defer rows.Close()

	usage := map[uuid.UUID]int{}
	for rows.Next() {
		var discountID uuid.UUID
		var count int
		if err := rows.Scan(&discountID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan discount usage: %w", err)
		}
		usage[discountID] = count
	}
	return usage, rows.Err()
}

// isDiscountEligible runs every per-discount predicate. The venue and active
// flags are enforced in SQL before this is called.
func isDiscountEligible(d *models.Discount, now time.Time, orderSubtotal *float64, customerID, customerGroupID *uuid.UUID, customerUses int) bool {
	if !d.Active {
		return false
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	if len(d.DaysOfWeek) > 0 && !containsDay(d.DaysOfWeek, int64(now.Weekday())) {
		return false
	}
	if !timeWindowOpen(d.TimeFrom, d.TimeUntil, now) {
		return false
	}
	if d.MinPurchaseAmount != nil && orderSubtotal != nil && *orderSubtotal < *d.MinPurchaseAmount {
		return false
	}
	if d.MaxTotalUses != nil && d.CurrentUses >= *d.MaxTotalUses {
		return false
	}
	if d.MaxUsesPerCustomer != nil && customerID != nil && customerUses >= *d.MaxUsesPerCustomer {
		return false
	}
	if d.Scope == models.ScopeCustomerGroup {
		if d.CustomerGroupID == nil {
			return false
		}
		if customerGroupID == nil || *customerGroupID != *d.CustomerGroupID {
			return false
		}
	}
	return true
}

func isAssignmentUsable(a *models.CustomerDiscount, now time.Time) bool {
	if !a.Active {
		return false
	}
	if a.ValidFrom != nil && now.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidUntil != nil && now.After(*a.ValidUntil) {
		return false
	}
	if a.MaxUses != nil && a.UsageCount >= *a.MaxUses {
		return false
	}
	return true
}

func containsDay(days []int64, day int64) bool {
	for _, candidate := range days {
		if candidate == day {
			return true
		}
	}
	return false
}

// timeWindowOpen checks an HH:MM window. When the window crosses midnight
// (from > until, e.g. 22:00-02:00) it is open outside the inverted gap.
// Malformed values disable the window rather than locking the discount out.
func timeWindowOpen(from, until *string, now time.Time) bool {
	if from == nil || until == nil {
		return true
	}
	fromMin, okFrom := parseClock(*from)
	untilMin, okUntil := parseClock(*until)
	if !okFrom || !okUntil {
		return true
	}
	nowMin := now.Hour()*60 + now.Minute()
	if fromMin <= untilMin {
		return nowMin >= fromMin && nowMin <= untilMin
	}
	return nowMin >= fromMin || nowMin <= untilMin
}

func parseClock(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

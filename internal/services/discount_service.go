package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pos-system/internal/apperror"
	"pos-system/internal/config"
	"pos-system/internal/database"
	"pos-system/internal/logger"
	"pos-system/internal/models"
)

// DiscountService evaluates discounts against orders and applies or removes
// them inside a single transaction, so order totals and usage counters never
// drift apart.
type DiscountService struct {
	db          *database.DB
	eligibility *EligibilityService
	log         *logger.Logger
	avgTaxRate  float64
}

func NewDiscountService(db *database.DB, eligibility *EligibilityService, log *logger.Logger, cfg *config.TaxConfig) *DiscountService {
	return &DiscountService{
		db:          db,
		eligibility: eligibility,
		log:         log,
		avgTaxRate:  cfg.AvgRate,
	}
}

// BuildOrderContext loads the evaluation snapshot of an order: its lines,
// their modifiers and the ids of already applied catalog discounts.
func (s *DiscountService) BuildOrderContext(ctx context.Context, orderID uuid.UUID) (*models.OrderContext, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.loadOrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}

	appliedIDs, err := s.loadAppliedDiscountIDs(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &models.OrderContext{
		OrderID:            order.ID,
		VenueID:            order.VenueID,
		CustomerID:         order.CustomerID,
		Subtotal:           order.Subtotal,
		Items:              items,
		AppliedDiscountIDs: appliedIDs,
	}, nil
}

// CalculateDiscountAmount evaluates one catalog discount against an order
// without applying anything.
func (s *DiscountService) CalculateDiscountAmount(ctx context.Context, orderID, discountID uuid.UUID) (*models.CalculationResult, error) {
	d, err := fetchDiscount(ctx, s.db, discountID)
	if err != nil {
		return nil, err
	}
	orderCtx, err := s.BuildOrderContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return CalculateAmount(d, orderCtx, s.avgTaxRate)
}

// EvaluateAutomaticDiscounts returns the calculated discounts that would be
// applied to the order right now: customer-assigned offers first, then the
// venue's automatic catalog discounts, resolved through the stacking rules.
func (s *DiscountService) EvaluateAutomaticDiscounts(ctx context.Context, orderID uuid.UUID) ([]*models.CalculationResult, error) {
	orderCtx, err := s.BuildOrderContext(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var candidates []*models.CalculationResult
	seen := map[uuid.UUID]bool{}

	if orderCtx.CustomerID != nil {
		offers, err := s.eligibility.GetCustomerDiscounts(ctx, *orderCtx.CustomerID, &orderCtx.Subtotal)
		if err != nil {
			return nil, err
		}
		for _, offer := range offers {
			d := offer.Discount
			calc, err := CalculateAmount(&d, orderCtx, s.avgTaxRate)
			if err != nil {
				s.log.WithField("discount_id", d.ID).WithError(err).
					Warn("Skipping customer discount that failed to calculate")
				continue
			}
			assignmentID := offer.Assignment.ID
			calc.CustomerDiscountID = &assignmentID
			seen[d.ID] = true
			candidates = append(candidates, calc)
		}
	}

	catalog, err := s.eligibility.GetEligibleDiscounts(ctx, orderCtx.VenueID, orderCtx.CustomerID, &orderCtx.Subtotal)
	if err != nil {
		return nil, err
	}
	for _, d := range catalog {
		if !d.IsAutomatic || seen[d.ID] {
			continue
		}
		calc, err := CalculateAmount(d, orderCtx, s.avgTaxRate)
		if err != nil {
			s.log.WithField("discount_id", d.ID).WithError(err).
				Warn("Skipping discount that failed to calculate")
			continue
		}
		candidates = append(candidates, calc)
	}

	return ResolveStack(candidates, orderCtx), nil
}

// ApplyDiscount calculates and applies one catalog discount to an order.
func (s *DiscountService) ApplyDiscount(ctx context.Context, orderID uuid.UUID, req *models.ApplyDiscountRequest) (*models.ApplyDiscountResult, error) {
	calc, err := s.CalculateDiscountAmount(ctx, orderID, req.DiscountID)
	if err != nil {
		return nil, err
	}
	return s.ApplyDiscountToOrder(ctx, orderID, calc, req.AppliedBy, req.AuthorizedBy)
}

// ApplyDiscountToOrder persists one calculated discount. The order row is
// locked for the whole transaction; totals, the order discount record and
// usage counters all change together or not at all.
func (s *DiscountService) ApplyDiscountToOrder(ctx context.Context, orderID uuid.UUID, calc *models.CalculationResult, appliedBy, authorizedBy *uuid.UUID) (*models.ApplyDiscountResult, error) {
	if calc == nil {
		return nil, apperror.Validation("calculation result is required", nil)
	}
	if calc.Amount <= 0 {
		return nil, apperror.ZeroBase("discount resolves to a zero amount on this order", nil)
	}
	if calc.RequiresApproval && authorizedBy == nil {
		return nil, apperror.ApprovalRequired("discount requires manager authorization", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if calc.DiscountID != nil {
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM order_discounts WHERE order_id = $1 AND discount_id = $2)`,
			orderID, *calc.DiscountID,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check applied discounts: %w", err)
		}
		if exists {
			return nil, apperror.AlreadyApplied("discount is already applied to this order", nil)
		}
	}

	od := &models.OrderDiscount{
		ID:                 uuid.New(),
		OrderID:            orderID,
		DiscountID:         calc.DiscountID,
		CustomerDiscountID: calc.CustomerDiscountID,
		Type:               calc.Type,
		Name:               calc.Name,
		Value:              calc.Value,
		Amount:             calc.Amount,
		TaxReduction:       calc.TaxReduction,
		IsAutomatic:        calc.IsAutomatic,
		IsComp:             calc.Type == models.DiscountTypeComp,
		AppliedBy:          appliedBy,
		AuthorizedBy:       authorizedBy,
		CreatedAt:          time.Now(),
	}
	if err := insertOrderDiscount(ctx, tx, od); err != nil {
		return nil, err
	}

	totals := computeTotals(order, calc.Amount, -calc.TaxReduction)
	if err := updateOrderTotals(ctx, tx, orderID, totals); err != nil {
		return nil, err
	}

	if calc.DiscountID != nil {
		if err := incrementDiscountUses(ctx, tx, *calc.DiscountID); err != nil {
			return nil, err
		}
	}
	if calc.CustomerDiscountID != nil {
		if err := incrementAssignmentUses(ctx, tx, *calc.CustomerDiscountID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":          orderID,
		"order_discount_id": od.ID,
		"amount":            od.Amount,
		"name":              od.Name,
	}).Info("Discount applied to order")

	return &models.ApplyDiscountResult{OrderDiscount: od, Totals: totals}, nil
}

// RemoveDiscountFromOrder deletes one applied discount and rolls its effect
// out of the order totals and usage counters.
func (s *DiscountService) RemoveDiscountFromOrder(ctx context.Context, orderID, orderDiscountID uuid.UUID) (*models.RemoveDiscountResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	od := &models.OrderDiscount{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, order_id, discount_id, customer_discount_id, amount, tax_reduction
		FROM order_discounts
		WHERE id = $1 AND order_id = $2
		FOR UPDATE`,
		orderDiscountID, orderID,
	).Scan(&od.ID, &od.OrderID, &od.DiscountID, &od.CustomerDiscountID, &od.Amount, &od.TaxReduction)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("applied discount not found on this order", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load applied discount: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_discounts WHERE id = $1`, od.ID); err != nil {
		return nil, fmt.Errorf("failed to delete applied discount: %w", err)
	}

	totals := computeTotals(order, -od.Amount, od.TaxReduction)
	if err := updateOrderTotals(ctx, tx, orderID, totals); err != nil {
		return nil, err
	}

	if od.DiscountID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE discounts SET current_uses = GREATEST(current_uses - 1, 0), updated_at = $2 WHERE id = $1`,
			*od.DiscountID, time.Now(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement discount uses: %w", err)
		}
	}
	if od.CustomerDiscountID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE customer_discounts SET usage_count = GREATEST(usage_count - 1, 0) WHERE id = $1`,
			*od.CustomerDiscountID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement assignment uses: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":          orderID,
		"order_discount_id": od.ID,
		"amount":            od.Amount,
	}).Info("Discount removed from order")

	return &models.RemoveDiscountResult{RemovedID: od.ID, Amount: od.Amount, Totals: totals}, nil
}

// ApplyAutomaticDiscounts evaluates and applies every automatic discount the
// order qualifies for. One failing candidate never aborts the rest; it is
// counted as skipped and the pass continues.
func (s *DiscountService) ApplyAutomaticDiscounts(ctx context.Context, orderID uuid.UUID, appliedBy *uuid.UUID) (*models.AutomaticApplyResult, error) {
	candidates, err := s.EvaluateAutomaticDiscounts(ctx, orderID)
	if err != nil {
		return nil, err
	}

	result := &models.AutomaticApplyResult{Applied: []*models.OrderDiscount{}}
	for _, calc := range candidates {
		if calc.RequiresApproval {
			result.Skipped++
			continue
		}
		applied, err := s.ApplyDiscountToOrder(ctx, orderID, calc, appliedBy, nil)
		if err != nil {
			if apperror.Is(err, apperror.KindAlreadyApplied) || apperror.Is(err, apperror.KindZeroBase) {
				result.Skipped++
				continue
			}
			s.log.WithField("order_id", orderID).WithError(err).
				Warn("Failed to apply automatic discount, continuing")
			result.Skipped++
			continue
		}
		result.Applied = append(result.Applied, applied.OrderDiscount)
		result.TotalDiscount = round2(result.TotalDiscount + applied.OrderDiscount.Amount)
		totals := applied.Totals
		result.Totals = &totals
	}

	s.log.WithFields(map[string]interface{}{
		"order_id": orderID,
		"applied":  len(result.Applied),
		"skipped":  result.Skipped,
	}).Info("Automatic discount pass finished")

	return result, nil
}

// ApplyManualDiscount applies an ad-hoc staff-entered discount. Comps zero
// out the remaining discountable base and always need an authorizer.
func (s *DiscountService) ApplyManualDiscount(ctx context.Context, orderID uuid.UUID, req *models.ManualDiscountRequest) (*models.ApplyDiscountResult, error) {
	switch req.Type {
	case models.DiscountTypePercentage:
		if req.Value < 0 || req.Value > 100 {
			return nil, apperror.Validation("percentage value must be between 0 and 100", nil)
		}
	case models.DiscountTypeFixedAmount:
		if req.Value <= 0 {
			return nil, apperror.Validation("fixed amount value must be positive", nil)
		}
	case models.DiscountTypeComp:
		if req.AuthorizedBy == nil {
			return nil, apperror.ApprovalRequired("comp requires manager authorization", nil)
		}
	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown discount type: %s", req.Type), nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	// Percentage and fixed discounts are computed against the live subtotal.
	// Only comps work against what is still discountable, so a comp zeroes
	// the order out without pushing the total below zero.
	var amount float64
	switch req.Type {
	case models.DiscountTypePercentage:
		if order.Subtotal <= 0 {
			return nil, apperror.ZeroBase("order subtotal is zero", nil)
		}
		amount = round2(order.Subtotal * req.Value / 100)
	case models.DiscountTypeFixedAmount:
		if order.Subtotal <= 0 {
			return nil, apperror.ZeroBase("order subtotal is zero", nil)
		}
		amount = req.Value
		if amount > order.Subtotal {
			amount = order.Subtotal
		}
		amount = round2(amount)
	case models.DiscountTypeComp:
		remaining := round2(order.Subtotal - order.DiscountAmount)
		if remaining <= 0 {
			return nil, apperror.ZeroBase("order has no remaining discountable amount", nil)
		}
		amount = remaining
	}
	if amount <= 0 {
		return nil, apperror.ZeroBase("manual discount resolves to a zero amount", nil)
	}

	name := req.Name
	if name == "" {
		if req.Type == models.DiscountTypeComp {
			name = "Comp"
		} else {
			name = "Manual discount"
		}
	}

	od := &models.OrderDiscount{
		ID:           uuid.New(),
		OrderID:      orderID,
		Type:         req.Type,
		Name:         name,
		Value:        req.Value,
		Amount:       amount,
		IsManual:     true,
		IsComp:       req.Type == models.DiscountTypeComp,
		CompReason:   req.CompReason,
		AppliedBy:    req.AppliedBy,
		AuthorizedBy: req.AuthorizedBy,
		CreatedAt:    time.Now(),
	}
	if err := insertOrderDiscount(ctx, tx, od); err != nil {
		return nil, err
	}

	totals := computeTotals(order, amount, 0)
	if err := updateOrderTotals(ctx, tx, orderID, totals); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":          orderID,
		"order_discount_id": od.ID,
		"type":              od.Type,
		"amount":            od.Amount,
		"is_comp":           od.IsComp,
	}).Info("Manual discount applied")

	return &models.ApplyDiscountResult{OrderDiscount: od, Totals: totals}, nil
}

// GetOrderDiscountsSummary returns every applied discount with resolved
// staff names plus the current order totals.
func (s *DiscountService) GetOrderDiscountsSummary(ctx context.Context, orderID uuid.UUID) (*models.OrderDiscountsSummary, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT od.id, od.order_id, od.discount_id, od.customer_discount_id,
		       od.type, od.name, od.value, od.amount, od.tax_reduction,
		       od.is_automatic, od.is_manual, od.is_comp, od.comp_reason,
		       od.applied_by, od.authorized_by, od.created_at,
		       sa.name, sb.name
		FROM order_discounts od
		LEFT JOIN staff sa ON sa.id = od.applied_by
		LEFT JOIN staff sb ON sb.id = od.authorized_by
		WHERE od.order_id = $1
		ORDER BY od.created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order discounts: %w", err)
	}
	defer rows.Close()

	entries := []models.SummaryEntry{}
	for rows.Next() {
		var entry models.SummaryEntry
		err := rows.Scan(
			&entry.ID, &entry.OrderID, &entry.DiscountID, &entry.CustomerDiscountID,
			&entry.Type, &entry.Name, &entry.Value, &entry.Amount, &entry.TaxReduction,
			&entry.IsAutomatic, &entry.IsManual, &entry.IsComp, &entry.CompReason,
			&entry.AppliedBy, &entry.AuthorizedBy, &entry.CreatedAt,
			&entry.AppliedByName, &entry.AuthorizedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order discount: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order discounts: %w", err)
	}

	return &models.OrderDiscountsSummary{
		OrderID:   orderID,
		Discounts: entries,
		Totals: models.OrderTotals{
			Subtotal:         order.Subtotal,
			DiscountAmount:   order.DiscountAmount,
			TaxAmount:        order.TaxAmount,
			TipAmount:        order.TipAmount,
			Total:            order.Total,
			PaidAmount:       order.PaidAmount,
			RemainingBalance: order.RemainingBalance,
		},
		GeneratedAt: time.Now(),
	}, nil
}

const orderColumns = `id, venue_id, customer_id, subtotal, discount_amount, tax_amount, tip_amount, paid_amount, total, remaining_balance, created_at, updated_at`

func scanOrder(row *sql.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID, &order.VenueID, &order.CustomerID,
		&order.Subtotal, &order.DiscountAmount, &order.TaxAmount,
		&order.TipAmount, &order.PaidAmount, &order.Total, &order.RemainingBalance,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("order not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

func (s *DiscountService) getOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	return scanOrder(row)
}

func (s *DiscountService) loadOrderLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, category_id, name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.CategoryID,
			&line.Name, &line.Quantity, &line.UnitPrice, &line.LineTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		index[line.ID] = len(lines)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	modRows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.order_item_id, m.modifier_id, m.modifier_group_id, m.price
		FROM order_item_modifiers m
		JOIN order_items i ON i.id = m.order_item_id
		WHERE i.order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order item modifiers: %w", err)
	}
	defer modRows.Close()

	for modRows.Next() {
		var m models.LineModifier
		if err := modRows.Scan(&m.ID, &m.OrderItemID, &m.ModifierID, &m.ModifierGroupID, &m.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item modifier: %w", err)
		}
		if i, ok := index[m.OrderItemID]; ok {
			lines[i].Modifiers = append(lines[i].Modifiers, m)
		}
	}
	return lines, modRows.Err()
}

func (s *DiscountService) loadAppliedDiscountIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT discount_id FROM order_discounts WHERE order_id = $1 AND discount_id IS NOT NULL`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied discounts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan applied discount: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertOrderDiscount(ctx context.Context, tx *sql.Tx, od *models.OrderDiscount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_discounts (id, order_id, discount_id, customer_discount_id, type, name, value, amount, tax_reduction, is_automatic, is_manual, is_comp, comp_reason, applied_by, authorized_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		od.ID, od.OrderID, od.DiscountID, od.CustomerDiscountID, od.Type, od.Name,
		od.Value, od.Amount, od.TaxReduction, od.IsAutomatic, od.IsManual, od.IsComp,
		od.CompReason, od.AppliedBy, od.AuthorizedBy, od.CreatedAt,
	)
	if err != nil {
		// Unique index on (order_id, discount_id) backs up the in-transaction
		// existence check against concurrent appliers.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperror.AlreadyApplied("discount is already applied to this order", err)
		}
		return fmt.Errorf("failed to insert order discount: %w", err)
	}
	return nil
}

// computeTotals rebuilds the derived totals after a discount delta. The tax
// delta is negative on apply (before-tax discounts shrink the taxable base)
// and positive on remove.
func computeTotals(order *models.Order, discountDelta, taxDelta float64) models.OrderTotals {
	discountAmount := round2(order.DiscountAmount + discountDelta)
	if discountAmount < 0 {
		discountAmount = 0
	}
	taxAmount := round2(order.TaxAmount + taxDelta)
	if taxAmount < 0 {
		taxAmount = 0
	}
	total := round2(order.Subtotal - discountAmount + taxAmount + order.TipAmount)
	if total < 0 {
		total = 0
	}
	remaining := round2(total - order.PaidAmount)
	if remaining < 0 {
		remaining = 0
	}
	return models.OrderTotals{
		Subtotal:         order.Subtotal,
		DiscountAmount:   discountAmount,
		TaxAmount:        taxAmount,
		TipAmount:        order.TipAmount,
		Total:            total,
		PaidAmount:       order.PaidAmount,
		RemainingBalance: remaining,
	}
}

func updateOrderTotals(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, totals models.OrderTotals) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET discount_amount = $2, tax_amount = $3, total = $4, remaining_balance = $5, updated_at = $6
		WHERE id = $1`,
		orderID, totals.DiscountAmount, totals.TaxAmount, totals.Total, totals.RemainingBalance, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}
	return nil
}

// incrementDiscountUses bumps the global usage counter, re-checking the cap
// under the row lock so two concurrent appliers cannot both take the last use.
func incrementDiscountUses(ctx context.Context, tx *sql.Tx, discountID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE discounts
		SET current_uses = current_uses + 1, updated_at = $2
		WHERE id = $1 AND (max_total_uses IS NULL OR current_uses < max_total_uses)`,
		discountID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment discount uses: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.Conflict("discount usage limit reached", nil)
	}
	return nil
}

func incrementAssignmentUses(ctx context.Context, tx *sql.Tx, assignmentID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE customer_discounts
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR usage_count < max_uses)`,
		assignmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment assignment uses: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.Conflict("customer discount usage limit reached", nil)
	}
	return nil
}

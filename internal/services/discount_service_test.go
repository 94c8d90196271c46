package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"pos-system/internal/apperror"
	"pos-system/internal/config"
	"pos-system/internal/database"
	"pos-system/internal/logger"
	"pos-system/internal/models"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "debug", Format: "json"})
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return &database.DB{DB: db}, mock
}

func newTestDiscountService(db *database.DB) *DiscountService {
	log := newTestLogger()
	eligibility := NewEligibilityService(db, log)
	return NewDiscountService(db, eligibility, log, &config.TaxConfig{AvgRate: testAvgTaxRate})
}

var orderColumnList = []string{
	"id", "venue_id", "customer_id", "subtotal", "discount_amount", "tax_amount",
	"tip_amount", "paid_amount", "total", "remaining_balance", "created_at", "updated_at",
}

func orderRow(orderID uuid.UUID, subtotal, discountAmount, taxAmount float64) *sqlmock.Rows {
	total := subtotal - discountAmount + taxAmount
	return sqlmock.NewRows(orderColumnList).
		AddRow(orderID, uuid.New(), nil, subtotal, discountAmount, taxAmount,
			0.0, 0.0, total, total, time.Now(), time.Now())
}

func TestDiscountService_ApplyDiscountToOrder_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()
	discountID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 0, 8))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(orderID, discountID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO order_discounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE discounts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calc := &models.CalculationResult{
		DiscountID:   &discountID,
		Name:         "Happy hour",
		Type:         models.DiscountTypePercentage,
		Value:        10,
		Amount:       10,
		TaxReduction: 0.80,
		IsAutomatic:  true,
	}

	result, err := service.ApplyDiscountToOrder(context.Background(), orderID, calc, nil, nil)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.OrderDiscount.Amount != 10 {
		t.Fatalf("expected recorded amount 10, got %.2f", result.OrderDiscount.Amount)
	}
	if result.Totals.DiscountAmount != 10 {
		t.Fatalf("expected discount total 10, got %.2f", result.Totals.DiscountAmount)
	}
	if result.Totals.TaxAmount != 7.20 {
		t.Fatalf("expected tax shrunk to 7.20, got %.2f", result.Totals.TaxAmount)
	}
	if result.Totals.Total != 97.20 {
		t.Fatalf("expected total 97.20, got %.2f", result.Totals.Total)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_ApplyDiscountToOrder_AlreadyApplied(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()
	discountID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 0, 8))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(orderID, discountID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	calc := &models.CalculationResult{DiscountID: &discountID, Amount: 10}
	_, err := service.ApplyDiscountToOrder(context.Background(), orderID, calc, nil, nil)
	if !apperror.Is(err, apperror.KindAlreadyApplied) {
		t.Fatalf("expected already_applied error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_ApplyDiscountToOrder_ApprovalRequired(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	discountID := uuid.New()

	calc := &models.CalculationResult{DiscountID: &discountID, Amount: 10, RequiresApproval: true}
	_, err := service.ApplyDiscountToOrder(context.Background(), uuid.New(), calc, nil, nil)
	if !apperror.Is(err, apperror.KindApprovalRequired) {
		t.Fatalf("expected approval_required error, got %v", err)
	}
}

func TestDiscountService_ApplyDiscountToOrder_ZeroAmount(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	discountID := uuid.New()

	calc := &models.CalculationResult{DiscountID: &discountID, Amount: 0}
	_, err := service.ApplyDiscountToOrder(context.Background(), uuid.New(), calc, nil, nil)
	if !apperror.Is(err, apperror.KindZeroBase) {
		t.Fatalf("expected zero_base error, got %v", err)
	}
}

func TestDiscountService_ApplyDiscountToOrder_UsageLimitReached(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()
	discountID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 0, 8))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO order_discounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// limit re-check under the lock refuses the increment
	mock.ExpectExec("UPDATE discounts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	calc := &models.CalculationResult{DiscountID: &discountID, Amount: 10}
	_, err := service.ApplyDiscountToOrder(context.Background(), orderID, calc, nil, nil)
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_RemoveDiscountFromOrder_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()
	orderDiscountID := uuid.New()
	discountID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 10, 7.20))
	mock.ExpectQuery("FROM order_discounts").
		WithArgs(orderDiscountID, orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "discount_id", "customer_discount_id", "amount", "tax_reduction"}).
			AddRow(orderDiscountID, orderID, discountID, nil, 10.0, 0.80))
	mock.ExpectExec("DELETE FROM order_discounts").
		WithArgs(orderDiscountID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE discounts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := service.RemoveDiscountFromOrder(context.Background(), orderID, orderDiscountID)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.RemovedID != orderDiscountID {
		t.Fatalf("expected removed id %s, got %s", orderDiscountID, result.RemovedID)
	}
	// Removal restores the pre-apply totals.
	if result.Totals.DiscountAmount != 0 {
		t.Fatalf("expected discount total back to 0, got %.2f", result.Totals.DiscountAmount)
	}
	if result.Totals.TaxAmount != 8 {
		t.Fatalf("expected tax back to 8, got %.2f", result.Totals.TaxAmount)
	}
	if result.Totals.Total != 108 {
		t.Fatalf("expected total back to 108, got %.2f", result.Totals.Total)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_RemoveDiscountFromOrder_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 0, 8))
	mock.ExpectQuery("FROM order_discounts").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := service.RemoveDiscountFromOrder(context.Background(), orderID, uuid.New())
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestDiscountService_ApplyManualDiscount_Percentage(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 80, 0, 6.40))
	mock.ExpectExec("INSERT INTO order_discounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	staffID := uuid.New()
	result, err := service.ApplyManualDiscount(context.Background(), orderID, &models.ManualDiscountRequest{
		Type:      models.DiscountTypePercentage,
		Value:     25,
		AppliedBy: &staffID,
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.OrderDiscount.Amount != 20 {
		t.Fatalf("expected manual amount 20, got %.2f", result.OrderDiscount.Amount)
	}
	if !result.OrderDiscount.IsManual || result.OrderDiscount.DiscountID != nil {
		t.Fatalf("expected a manual record without catalog reference")
	}
	// Manual discounts never shrink the recorded tax.
	if result.Totals.TaxAmount != 6.40 {
		t.Fatalf("expected tax unchanged at 6.40, got %.2f", result.Totals.TaxAmount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_ApplyManualDiscount_PercentageUsesLiveSubtotal(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	// 20 already discounted; a manual 10% still works off the full subtotal.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 20, 0))
	mock.ExpectExec("INSERT INTO order_discounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := service.ApplyManualDiscount(context.Background(), orderID, &models.ManualDiscountRequest{
		Type:  models.DiscountTypePercentage,
		Value: 10,
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.OrderDiscount.Amount != 10 {
		t.Fatalf("expected 10%% of subtotal 100 = 10.00, got %.2f", result.OrderDiscount.Amount)
	}
	if result.Totals.DiscountAmount != 30 {
		t.Fatalf("expected combined discount 30, got %.2f", result.Totals.DiscountAmount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_ApplyManualDiscount_FixedCapsAtSubtotal(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 40, 15, 0))
	mock.ExpectExec("INSERT INTO order_discounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := service.ApplyManualDiscount(context.Background(), orderID, &models.ManualDiscountRequest{
		Type:  models.DiscountTypeFixedAmount,
		Value: 55,
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.OrderDiscount.Amount != 40 {
		t.Fatalf("expected fixed amount capped at subtotal 40, got %.2f", result.OrderDiscount.Amount)
	}
}

func TestDiscountService_ApplyManualDiscount_CompRequiresApproval(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)

	_, err := service.ApplyManualDiscount(context.Background(), uuid.New(), &models.ManualDiscountRequest{
		Type: models.DiscountTypeComp,
	})
	if !apperror.Is(err, apperror.KindApprovalRequired) {
		t.Fatalf("expected approval_required error, got %v", err)
	}
}

func TestDiscountService_ApplyManualDiscount_CompTakesRemainingBase(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 60, 10, 0))
	mock.ExpectExec("INSERT INTO order_discounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	manager := uuid.New()
	reason := "guest complaint"
	result, err := service.ApplyManualDiscount(context.Background(), orderID, &models.ManualDiscountRequest{
		Type:         models.DiscountTypeComp,
		AuthorizedBy: &manager,
		CompReason:   &reason,
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.OrderDiscount.Amount != 50 {
		t.Fatalf("expected comp of the remaining 50, got %.2f", result.OrderDiscount.Amount)
	}
	if result.Totals.Total != 0 {
		t.Fatalf("expected order fully comped, got total %.2f", result.Totals.Total)
	}
}

func TestDiscountService_ApplyManualDiscount_CompZeroBase(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	// Fully discounted already; only the comp path cares about the remainder.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 50, 50, 0))
	mock.ExpectRollback()

	manager := uuid.New()
	_, err := service.ApplyManualDiscount(context.Background(), orderID, &models.ManualDiscountRequest{
		Type:         models.DiscountTypeComp,
		AuthorizedBy: &manager,
	})
	if !apperror.Is(err, apperror.KindZeroBase) {
		t.Fatalf("expected zero_base error, got %v", err)
	}
}

func TestDiscountService_ApplyManualDiscount_ZeroPercentAllowedButZeroAmount(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id = (.+) FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 50, 0, 4))
	mock.ExpectRollback()

	// 0% is a valid percentage; it just resolves to nothing to apply.
	_, err := service.ApplyManualDiscount(context.Background(), orderID, &models.ManualDiscountRequest{
		Type:  models.DiscountTypePercentage,
		Value: 0,
	})
	if !apperror.Is(err, apperror.KindZeroBase) {
		t.Fatalf("expected zero_base error, got %v", err)
	}
}

func TestDiscountService_ApplyManualDiscount_InvalidValue(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)

	_, err := service.ApplyManualDiscount(context.Background(), uuid.New(), &models.ManualDiscountRequest{
		Type:  models.DiscountTypePercentage,
		Value: 150,
	})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDiscountService_GetOrderDiscountsSummary(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()
	discountID := uuid.New()
	staffName := "Alex"

	mock.ExpectQuery("FROM orders WHERE id").
		WithArgs(orderID).
		WillReturnRows(orderRow(orderID, 100, 10, 7.20))
	mock.ExpectQuery("FROM order_discounts od").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "discount_id", "customer_discount_id",
			"type", "name", "value", "amount", "tax_reduction",
			"is_automatic", "is_manual", "is_comp", "comp_reason",
			"applied_by", "authorized_by", "created_at", "applied_by_name", "authorized_by_name",
		}).AddRow(
			uuid.New(), orderID, discountID, nil,
			models.DiscountTypePercentage, "Happy hour", 10.0, 10.0, 0.80,
			true, false, false, nil,
			uuid.New(), nil, time.Now(), &staffName, nil,
		))

	summary, err := service.GetOrderDiscountsSummary(context.Background(), orderID)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(summary.Discounts) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(summary.Discounts))
	}
	entry := summary.Discounts[0]
	if entry.Name != "Happy hour" || entry.AppliedByName == nil || *entry.AppliedByName != "Alex" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if summary.Totals.DiscountAmount != 10 {
		t.Fatalf("expected totals carried from the order, got %+v", summary.Totals)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscountService_GetOrderDiscountsSummary_OrderNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)

	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnError(sql.ErrNoRows)

	_, err := service.GetOrderDiscountsSummary(context.Background(), uuid.New())
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestDiscountService_EvaluateAutomaticDiscounts(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := newTestDiscountService(db)
	orderID := uuid.New()
	venueID := uuid.New()
	lineID := uuid.New()

	mock.ExpectQuery("FROM orders WHERE id").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderColumnList).
			AddRow(orderID, venueID, nil, 100.0, 0.0, 8.0, 0.0, 0.0, 108.0, 108.0, time.Now(), time.Now()))
	mock.ExpectQuery("FROM order_items").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "category_id", "name", "quantity", "unit_price", "line_total"}).
			AddRow(lineID, orderID, uuid.New(), nil, "Burger", 2, 50.0, 100.0))
	mock.ExpectQuery("FROM order_item_modifiers").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_item_id", "modifier_id", "modifier_group_id", "price"}))
	mock.ExpectQuery("FROM order_discounts").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"discount_id"}))

	rows := discountRows()
	automatic := uuid.New()
	addDiscountRow(rows, automatic, venueID, "Happy hour", 10, true)
	addDiscountRow(rows, uuid.New(), venueID, "Staff only", 5, false)
	mock.ExpectQuery("FROM discounts").
		WithArgs(venueID).
		WillReturnRows(rows)

	results, err := service.EvaluateAutomaticDiscounts(context.Background(), orderID)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected only the automatic discount, got %d", len(results))
	}
	if *results[0].DiscountID != automatic || results[0].Amount != 10 {
		t.Fatalf("unexpected result: %+v", results[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestComputeTotals_ApplyThenRemoveRestores(t *testing.T) {
	order := &models.Order{
		Subtotal:       100,
		DiscountAmount: 0,
		TaxAmount:      8,
		TipAmount:      5,
		PaidAmount:     20,
	}

	applied := computeTotals(order, 12.34, -0.99)

	after := &models.Order{
		Subtotal:       order.Subtotal,
		DiscountAmount: applied.DiscountAmount,
		TaxAmount:      applied.TaxAmount,
		TipAmount:      order.TipAmount,
		PaidAmount:     order.PaidAmount,
	}
	restored := computeTotals(after, -12.34, 0.99)

	if restored.DiscountAmount != 0 || restored.TaxAmount != 8 {
		t.Fatalf("expected totals restored, got %+v", restored)
	}
	if restored.Total != 113 {
		t.Fatalf("expected total 113, got %.2f", restored.Total)
	}
	if restored.RemainingBalance != 93 {
		t.Fatalf("expected remaining 93, got %.2f", restored.RemainingBalance)
	}
}

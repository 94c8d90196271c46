package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pos-system/internal/config"
	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/redis"
)

// DiscountHandler serves the order-facing discount endpoints: evaluation,
// application, removal and the applied-discounts summary.
type DiscountHandler struct {
	engine         DiscountEngine
	eligibility    EligibilityProvider
	producer       EventProducer
	redisClient    RedisClient
	log            *logger.Logger
	summaryTTL     time.Duration
	eligibilityTTL time.Duration
}

// NewDiscountHandler creates a new discount handler.
func NewDiscountHandler(engine DiscountEngine, eligibility EligibilityProvider, producer EventProducer, redisClient RedisClient, log *logger.Logger, cfg *config.CacheConfig) *DiscountHandler {
	return &DiscountHandler{
		engine:         engine,
		eligibility:    eligibility,
		producer:       producer,
		redisClient:    redisClient,
		log:            log,
		summaryTTL:     time.Duration(cfg.SummaryTTLMinutes) * time.Minute,
		eligibilityTTL: time.Duration(cfg.EligibilityTTLSeconds) * time.Second,
	}
}

// ApplyDiscount applies a catalog discount to an order.
// POST /api/orders/{id}/discounts
func (h *DiscountHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DiscountID == uuid.Nil {
		writeErrorResponse(w, http.StatusBadRequest, "discount_id is required")
		return
	}

	result, err := h.engine.ApplyDiscount(r.Context(), orderID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to apply discount")
		return
	}

	h.afterOrderChange(r, orderID, result.Totals)
	if err := h.producer.PublishDiscountApplied(orderID, result.OrderDiscount.ID, result.OrderDiscount.DiscountID, result.OrderDiscount.Amount); err != nil {
		h.log.WithError(err).Error("Failed to publish discount applied event")
	}

	writeJSONResponse(w, http.StatusCreated, result)
}

// RemoveDiscount removes one applied discount from an order.
// DELETE /api/orders/{id}/discounts/{orderDiscountID}
func (h *DiscountHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, orderDiscountID, err := extractOrderDiscountIDs(r.URL.Path)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.RemoveDiscountFromOrder(r.Context(), orderID, orderDiscountID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to remove discount")
		return
	}

	h.afterOrderChange(r, orderID, result.Totals)
	if err := h.producer.PublishDiscountRemoved(orderID, result.RemovedID, result.Amount); err != nil {
		h.log.WithError(err).Error("Failed to publish discount removed event")
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// EvaluateDiscounts previews the automatic discounts an order qualifies for
// without changing anything.
// GET /api/orders/{id}/discounts/evaluate
func (h *DiscountHandler) EvaluateDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	results, err := h.engine.EvaluateAutomaticDiscounts(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to evaluate discounts")
		return
	}
	if results == nil {
		results = []*models.CalculationResult{}
	}

	writeJSONResponse(w, http.StatusOK, results)
}

// ApplyAutomaticDiscounts applies every automatic discount the order
// qualifies for.
// POST /api/orders/{id}/discounts/automatic
func (h *DiscountHandler) ApplyAutomaticDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req struct {
		AppliedBy *uuid.UUID `json:"applied_by,omitempty"`
	}
	if r.Body != nil {
		// Body is optional for the automatic pass.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.engine.ApplyAutomaticDiscounts(r.Context(), orderID, req.AppliedBy)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to apply automatic discounts")
		return
	}

	if result.Totals != nil {
		h.afterOrderChange(r, orderID, *result.Totals)
	}
	for _, od := range result.Applied {
		if err := h.producer.PublishDiscountApplied(orderID, od.ID, od.DiscountID, od.Amount); err != nil {
			h.log.WithError(err).Error("Failed to publish discount applied event")
		}
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// ApplyManualDiscount applies an ad-hoc staff discount or comp.
// POST /api/orders/{id}/discounts/manual
func (h *DiscountHandler) ApplyManualDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.ManualDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engine.ApplyManualDiscount(r.Context(), orderID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to apply manual discount")
		return
	}

	h.afterOrderChange(r, orderID, result.Totals)
	if err := h.producer.PublishDiscountApplied(orderID, result.OrderDiscount.ID, nil, result.OrderDiscount.Amount); err != nil {
		h.log.WithError(err).Error("Failed to publish discount applied event")
	}

	writeJSONResponse(w, http.StatusCreated, result)
}

// GetOrderDiscounts returns the applied discounts summary, cached briefly.
// GET /api/orders/{id}/discounts
func (h *DiscountHandler) GetOrderDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	cacheKey := redis.GenerateKey(redis.KeyPrefixSummary, orderID.String())
	var cached models.OrderDiscountsSummary
	if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
		h.log.WithField("order_id", orderID).Debug("Summary retrieved from cache")
		writeJSONResponse(w, http.StatusOK, &cached)
		return
	}

	summary, err := h.engine.GetOrderDiscountsSummary(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order discounts")
		return
	}

	if err := h.redisClient.Set(r.Context(), cacheKey, summary, h.summaryTTL); err != nil {
		h.log.WithError(err).Error("Failed to cache summary")
	}

	writeJSONResponse(w, http.StatusOK, summary)
}

// GetEligibleDiscounts lists the discounts a venue can offer right now.
// GET /api/venues/{id}/eligible-discounts?customer_id=&subtotal=
func (h *DiscountHandler) GetEligibleDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	venueID, err := extractUUIDFromPath(r.URL.Path, "/api/venues/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	query := r.URL.Query()
	var customerID *uuid.UUID
	if raw := query.Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid customer ID")
			return
		}
		customerID = &id
	}
	var subtotal *float64
	if raw := query.Get("subtotal"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid subtotal")
			return
		}
		subtotal = &v
	}

	cacheKey := eligibilityCacheKey(venueID, customerID, subtotal)
	var cached []*models.Discount
	if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
		writeJSONResponse(w, http.StatusOK, cached)
		return
	}

	discounts, err := h.eligibility.GetEligibleDiscounts(r.Context(), venueID, customerID, subtotal)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get eligible discounts")
		return
	}
	if discounts == nil {
		discounts = []*models.Discount{}
	}

	if err := h.redisClient.Set(r.Context(), cacheKey, discounts, h.eligibilityTTL); err != nil {
		h.log.WithError(err).Error("Failed to cache eligible discounts")
	}

	writeJSONResponse(w, http.StatusOK, discounts)
}

// GetCustomerDiscounts lists a customer's assigned discount offers.
// GET /api/customers/{id}/discounts
func (h *DiscountHandler) GetCustomerDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	customerID, err := extractUUIDFromPath(r.URL.Path, "/api/customers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid customer ID")
		return
	}

	offers, err := h.eligibility.GetCustomerDiscounts(r.Context(), customerID, nil)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get customer discounts")
		return
	}
	if offers == nil {
		offers = []*models.CustomerDiscountOffer{}
	}

	writeJSONResponse(w, http.StatusOK, offers)
}

// afterOrderChange invalidates the summary cache and publishes the new
// totals. Failures are logged; the mutation already committed.
func (h *DiscountHandler) afterOrderChange(r *http.Request, orderID uuid.UUID, totals models.OrderTotals) {
	cacheKey := redis.GenerateKey(redis.KeyPrefixSummary, orderID.String())
	if err := h.redisClient.Delete(r.Context(), cacheKey); err != nil {
		h.log.WithError(err).Error("Failed to invalidate summary cache")
	}
	if err := h.producer.PublishOrderTotalsUpdated(orderID, totals); err != nil {
		h.log.WithError(err).Error("Failed to publish order totals updated event")
	}
}

func eligibilityCacheKey(venueID uuid.UUID, customerID *uuid.UUID, subtotal *float64) string {
	customer := "-"
	if customerID != nil {
		customer = customerID.String()
	}
	sub := "-"
	if subtotal != nil {
		sub = strconv.FormatFloat(*subtotal, 'f', 2, 64)
	}
	return redis.GenerateKey(redis.KeyPrefixEligibility, fmt.Sprintf("%s:%s:%s", venueID, customer, sub))
}

// extractOrderDiscountIDs parses /api/orders/{orderID}/discounts/{id}.
func extractOrderDiscountIDs(path string) (uuid.UUID, uuid.UUID, error) {
	rest := strings.TrimPrefix(path, "/api/orders/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 || parts[1] != "discounts" {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid path format")
	}
	orderID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid order ID")
	}
	orderDiscountID, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid order discount ID")
	}
	return orderID, orderDiscountID, nil
}

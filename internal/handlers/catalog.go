package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"pos-system/internal/logger"
	"pos-system/internal/models"
)

// CatalogHandler serves the discount catalog CRUD and customer assignment
// endpoints.
type CatalogHandler struct {
	catalog CatalogManager
	log     *logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog CatalogManager, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: log}
}

// CreateDiscount creates a discount definition.
// POST /api/discounts
func (h *CatalogHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	discount, err := h.catalog.CreateDiscount(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create discount")
		return
	}

	writeJSONResponse(w, http.StatusCreated, discount)
}

// ListDiscounts lists a venue's discounts.
// GET /api/discounts?venue_id=&limit=&offset=
func (h *CatalogHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	venueID, err := uuid.Parse(query.Get("venue_id"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "venue_id is required")
		return
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}
	offset := 0
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid offset")
			return
		}
	}

	discounts, err := h.catalog.ListDiscounts(r.Context(), venueID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list discounts")
		return
	}
	if discounts == nil {
		discounts = []*models.Discount{}
	}

	writeJSONResponse(w, http.StatusOK, discounts)
}

// GetDiscount returns one discount by ID.
// GET /api/discounts/{id}
func (h *CatalogHandler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/discounts/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid discount ID")
		return
	}

	discount, err := h.catalog.GetDiscount(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get discount")
		return
	}

	writeJSONResponse(w, http.StatusOK, discount)
}

// UpdateDiscount updates a discount definition.
// PUT /api/discounts/{id}
func (h *CatalogHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/discounts/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid discount ID")
		return
	}

	var req models.UpdateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	discount, err := h.catalog.UpdateDiscount(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update discount")
		return
	}

	writeJSONResponse(w, http.StatusOK, discount)
}

// DeleteDiscount removes a discount from the catalog.
// DELETE /api/discounts/{id}
func (h *CatalogHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/discounts/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid discount ID")
		return
	}

	if err := h.catalog.DeleteDiscount(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete discount")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AssignCustomerDiscount assigns a discount to a customer.
// POST /api/customer-discounts
func (h *CatalogHandler) AssignCustomerDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.AssignCustomerDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	assignment, err := h.catalog.AssignCustomerDiscount(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to assign customer discount")
		return
	}

	writeJSONResponse(w, http.StatusCreated, assignment)
}

// RemoveCustomerDiscount deactivates a customer assignment.
// DELETE /api/customer-discounts/{id}
func (h *CatalogHandler) RemoveCustomerDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/customer-discounts/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	if err := h.catalog.RemoveCustomerDiscount(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to remove customer discount")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "removed"})
}

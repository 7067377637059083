/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's public and
 * dashboard endpoints: donation intake, withdrawal requests and reads, goal
 * management, and the internal adjustments endpoint.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - github.com/google/uuid: For parsing resource identifiers.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tipstream/ledger-service/internal/app"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/internal/store"
)

// Handler holds dependencies for the API handlers.
type Handler struct {
	service *app.Service
}

// NewHandler creates a new Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// respondWithError sends a JSON error message with a given status code.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response with a given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to marshal response\" error=%v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// handleServiceError maps application and store errors onto HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrDonationNotFound),
		errors.Is(err, store.ErrWithdrawalNotFound),
		errors.Is(err, store.ErrGoalNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrInvalidRequest):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrDisbursementFailed):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" error=%v", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// HealthCheck is a simple handler for liveness probes.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateDonation handles POST /donations. It creates a pending donation row
// and returns the merchant reference the payment page hands to the provider.
func (h *Handler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	donation, err := h.service.CreateDonation(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, donation)
}

// GetOverlaySettings handles GET /overlay/{handle}/settings. The overlay
// client polls this to evaluate presentation gates at presentation time.
func (h *Handler) GetOverlaySettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetAlertSettings(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// GetMyAccount handles GET /dashboard/account. It returns the authenticated
// creator's account record with the current balance.
func (h *Handler) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

// ListMyDonations handles GET /dashboard/donations.
func (h *Handler) ListMyDonations(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	donations, err := h.service.ListRecentDonations(r.Context(), accountID, limitParam(r, 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, donations)
}

// RequestWithdrawal handles POST /dashboard/withdrawals.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), accountID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, withdrawal)
}

// GetWithdrawal handles GET /dashboard/withdrawals/{withdrawalID}.
func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	withdrawalID, err := uuid.Parse(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}

	withdrawal, err := h.service.GetWithdrawal(r.Context(), accountID, withdrawalID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, withdrawal)
}

// ListWithdrawals handles GET /dashboard/withdrawals.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), accountID, limitParam(r, 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, withdrawals)
}

// StartGoal handles POST /dashboard/goals.
func (h *Handler) StartGoal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.StartGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	goal, err := h.service.StartGoal(r.Context(), accountID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, goal)
}

// GetActiveGoal handles GET /dashboard/goals/active.
func (h *Handler) GetActiveGoal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	goal, err := h.service.GetActiveGoal(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, goal)
}

// CloseGoal handles POST /dashboard/goals/{goalID}/close.
func (h *Handler) CloseGoal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	goalID, err := uuid.Parse(chi.URLParam(r, "goalID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	var req domain.CloseGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	goal, err := h.service.CloseGoal(r.Context(), accountID, goalID, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, goal)
}

// RecordAdjustment handles POST /internal/adjustments, the ops endpoint for
// manual ledger corrections.
func (h *Handler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	movement, err := h.service.RecordAdjustment(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, movement)
}

// limitParam reads an optional positive `limit` query parameter, falling back
// to the given default.
func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 100 {
		return def
	}
	return limit
}

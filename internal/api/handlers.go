/**
 * @description
 * This file contains the HTTP handlers for the balance-service's API
 * endpoints. Handlers parse requests, call the application service, and
 * translate outcomes and failures into the client-facing response shapes.
 * Upstream engine failures keep their original HTTP status; unparseable
 * engine responses surface as 500 "invalid response".
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: Service logic and models.
 * - pkg/workflowclient: Typed upstream errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/fondeo/balance-service/internal/app"
	"github.com/fondeo/balance-service/internal/domain"
	"github.com/fondeo/balance-service/pkg/workflowclient"
)

// BalanceHandlers holds the application service that handlers will use.
type BalanceHandlers struct {
	service *app.Service
}

// NewBalanceHandlers creates a new instance of BalanceHandlers.
func NewBalanceHandlers(service *app.Service) *BalanceHandlers {
	return &BalanceHandlers{service: service}
}

// balanceResponse is the wire shape of POST /balance.
type balanceResponse struct {
	Message    string `json:"message"`
	Email      string `json:"email"`
	Balance    string `json:"balance"`
	Source     string `json:"source"`
	WorkflowID string `json:"workflowId,omitempty"`
	Status     string `json:"status,omitempty"`
	CacheAge   *int   `json:"cacheAge,omitempty"`
}

// pollResponse is the wire shape of POST /balance/poll.
type pollResponse struct {
	Status     string  `json:"status"`
	Balance    string  `json:"balance"`
	Error      *string `json:"error"`
	RawResult  any     `json:"rawResult,omitempty"`
	RawOutputs any     `json:"rawOutputs,omitempty"`
}

// ResolveBalanceHandler handles POST /balance.
func (h *BalanceHandlers) ResolveBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := h.callerIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.service.ResolveBalance(r.Context(), userID, email)
	if err != nil {
		h.writeResolutionError(w, "resolve_balance", err)
		return
	}

	resp := balanceResponse{
		Message:    result.Message,
		Email:      result.Email,
		Balance:    result.Balance,
		Source:     result.Source,
		WorkflowID: result.WorkflowID,
		CacheAge:   result.CacheAgeSeconds,
	}
	if result.Status != "" {
		resp.Status = string(result.Status)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// PollWorkflowHandler handles POST /balance/poll.
func (h *BalanceHandlers) PollWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	_, email, ok := h.callerIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		WorkflowID string `json:"workflowId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.WorkflowID) == "" {
		http.Error(w, "workflowId is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.PollWorkflow(r.Context(), email, req.WorkflowID)
	if err != nil {
		h.writeResolutionError(w, "poll_workflow", err)
		return
	}

	h.writeJSON(w, http.StatusOK, pollResponse{
		Status:     string(result.Status),
		Balance:    result.Balance,
		Error:      result.Error,
		RawResult:  result.RawResult,
		RawOutputs: result.RawOutputs,
	})
}

// ListTransactionsHandler handles GET /transactions.
func (h *BalanceHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := h.callerIdentity(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, email)
	if err != nil {
		h.writeResolutionError(w, "list_transactions", err)
		return
	}
	if transactions == nil {
		transactions = []domain.NormalizedTransaction{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// ResolutionHistoryHandler handles GET /balance/history.
func (h *BalanceHandlers) ResolutionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	_, email, ok := h.callerIdentity(w, r)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := h.service.ResolutionHistory(r.Context(), email, limit)
	if err != nil {
		if errors.Is(err, app.ErrAuditDisabled) {
			http.Error(w, "Resolution history is not available", http.StatusServiceUnavailable)
			return
		}
		log.Printf("level=error component=api endpoint=resolution_history outcome=failed email=%s err=%v", email, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []domain.BalanceResolution{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"resolutions": history})
}

// callerIdentity pulls the authenticated user id and verified email out of the
// request context.
func (h *BalanceHandlers) callerIdentity(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return "", "", false
	}
	email, ok := GetVerifiedEmail(r.Context())
	if !ok {
		http.Error(w, "Could not get verified email from context", http.StatusInternalServerError)
		return "", "", false
	}
	return userID, email, true
}

// writeResolutionError maps service failures onto the error taxonomy:
// configuration faults and unparseable engine responses are server faults,
// upstream HTTP failures keep their original status code.
func (h *BalanceHandlers) writeResolutionError(w http.ResponseWriter, endpoint string, err error) {
	var upstream *workflowclient.UpstreamError
	switch {
	case errors.Is(err, app.ErrWorkflowNotConfigured):
		log.Printf("level=error component=api endpoint=%s outcome=failed reason=not_configured", endpoint)
		http.Error(w, "Balance resolution is not configured", http.StatusInternalServerError)
	case errors.As(err, &upstream):
		log.Printf("level=warn component=api endpoint=%s outcome=upstream_error status=%d", endpoint, upstream.StatusCode)
		http.Error(w, "Upstream workflow engine error", upstream.StatusCode)
	case errors.Is(err, workflowclient.ErrInvalidResponse):
		log.Printf("level=error component=api endpoint=%s outcome=failed reason=invalid_response err=%v", endpoint, err)
		http.Error(w, "Invalid response from workflow engine", http.StatusInternalServerError)
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *BalanceHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

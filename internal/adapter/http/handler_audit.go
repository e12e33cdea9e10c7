package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/usecase"
)

// AuditHandler handles HTTP requests for the governance ledger
type AuditHandler struct {
	audit *usecase.AuditUseCase
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *usecase.AuditUseCase) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// RegisterRoutes registers audit routes
func (h *AuditHandler) RegisterRoutes(router *mux.Router, auth *AuthMiddleware) {
	router.HandleFunc("/api/v1/audit", auth.RequireAuth(h.QueryAudit)).Methods("GET")
	router.HandleFunc("/api/v1/audit/stats", auth.RequireAuth(h.GetStats)).Methods("GET")
}

// QueryAudit lists audit entries matching the query filters
func (h *AuditHandler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	filter := domain.AuditFilter{
		Module:      r.URL.Query().Get("module"),
		ActorUserID: r.URL.Query().Get("actor_user_id"),
	}
	if op := r.URL.Query().Get("operation_type"); op != "" {
		filter.OperationType = domain.IntentType(op)
	}
	if risk := r.URL.Query().Get("risk_level"); risk != "" {
		filter.RiskLevel = domain.RiskLevel(risk)
	}
	if event := r.URL.Query().Get("event_type"); event != "" {
		filter.EventType = domain.AuditEventType(event)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from timestamp, expected RFC3339")
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to timestamp, expected RFC3339")
			return
		}
		filter.To = &t
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	entries, err := h.audit.Query(r.Context(), actor, filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "audit entries", map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// GetStats returns the aggregate governance summary
func (h *AuditHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	stats, err := h.audit.Stats(r.Context(), actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "governance stats", stats)
}

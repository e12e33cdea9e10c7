package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campusiq/campusiq/internal/usecase"
	"github.com/campusiq/campusiq/pkg/apperror"
)

// GovernanceHandler handles HTTP requests for the command pipeline
type GovernanceHandler struct {
	governance *usecase.GovernanceUseCase
}

// NewGovernanceHandler creates a new governance handler
func NewGovernanceHandler(governance *usecase.GovernanceUseCase) *GovernanceHandler {
	return &GovernanceHandler{governance: governance}
}

// RegisterRoutes registers governance routes
func (h *GovernanceHandler) RegisterRoutes(router *mux.Router, auth *AuthMiddleware, rateLimit *RateLimitMiddleware) {
	router.HandleFunc("/api/v1/plans", auth.RequireAuth(rateLimit.LimitSubmissions(h.SubmitCommand))).Methods("POST")
	router.HandleFunc("/api/v1/plans/pending", auth.RequireAuth(h.PendingApprovals)).Methods("GET")
	router.HandleFunc("/api/v1/plans/{id}", auth.RequireAuth(h.GetPlan)).Methods("GET")
	router.HandleFunc("/api/v1/plans/{id}/decision", auth.RequireAuth(h.DecidePlan)).Methods("POST")
	router.HandleFunc("/api/v1/plans/{id}/execute", auth.RequireAuth(h.ExecutePlan)).Methods("POST")
	router.HandleFunc("/api/v1/executions/{id}/rollback", auth.RequireAuth(h.RollbackExecution)).Methods("POST")
	router.HandleFunc("/api/v1/2fa/challenge", auth.RequireAuth(h.RequestSecondFactor)).Methods("POST")
}

// SubmitCommand runs a natural-language command through the pipeline
func (h *GovernanceHandler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req usecase.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Command == "" {
		respondError(w, http.StatusBadRequest, "command is required")
		return
	}

	result, err := h.governance.Submit(r.Context(), actor, req)
	if err != nil {
		// A failed execution still produced a plan and snapshots worth
		// returning alongside the error code.
		if result != nil {
			code, status := apperror.Classify(err)
			writeJSON(w, status, Envelope{Status: false, Message: err.Error(), Code: code, Data: result})
			return
		}
		respondDomainError(w, err)
		return
	}

	switch {
	case result.Clarification != nil:
		respondSuccess(w, http.StatusOK, "clarification required", result)
	case result.Permission != nil && !result.Permission.Allowed:
		writeJSON(w, http.StatusForbidden, Envelope{
			Status:  false,
			Message: "permission denied",
			Code:    string(result.Permission.Reason),
			Data:    result,
		})
	default:
		respondSuccess(w, http.StatusCreated, "plan created", result)
	}
}

// GetPlan retrieves a single plan
func (h *GovernanceHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]
	if planID == "" {
		respondError(w, http.StatusBadRequest, "plan id is required")
		return
	}

	plan, err := h.governance.GetPlan(r.Context(), planID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "plan retrieved", plan)
}

// DecidePlan applies a reviewer verdict to a gated plan
func (h *GovernanceHandler) DecidePlan(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req usecase.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.PlanID = mux.Vars(r)["id"]
	if req.Verdict == "" {
		respondError(w, http.StatusBadRequest, "verdict is required")
		return
	}

	result, err := h.governance.Decide(r.Context(), reviewer, req)
	if err != nil {
		if result != nil {
			code, status := apperror.Classify(err)
			writeJSON(w, status, Envelope{Status: false, Message: err.Error(), Code: code, Data: result})
			return
		}
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "decision applied", result)
}

// ExecutePlan runs an approved plan that did not execute inline
func (h *GovernanceHandler) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	execution, err := h.governance.Execute(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "plan executed", execution)
}

// RollbackExecution restores the before-state of an executed mutation
func (h *GovernanceHandler) RollbackExecution(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	execution, err := h.governance.Rollback(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "execution rolled back", execution)
}

// RequestSecondFactor issues a one-shot verification code delivered out of
// band; the API response never carries the code itself
func (h *GovernanceHandler) RequestSecondFactor(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.governance.RequestSecondFactor(r.Context(), actor); err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "verification code issued", nil)
}

// PendingApprovals lists plans awaiting senior approval
func (h *GovernanceHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	plans, err := h.governance.PendingApprovals(r.Context(), actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "pending approvals", map[string]interface{}{
		"plans": plans,
		"total": len(plans),
	})
}

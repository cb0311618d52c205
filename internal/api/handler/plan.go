package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/service"
)

type PlanHandler struct {
	svc *service.PlanService
}

func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

type planRequest struct {
	Name          string          `json:"name"`
	MinAmount     int64           `json:"min_amount_micros"`
	MaxAmount     int64           `json:"max_amount_micros"`
	ROI           decimal.Decimal `json:"roi_percent"`
	DurationHours int32           `json:"duration_hours"`
	Description   string          `json:"description"`
	IsActive      bool            `json:"is_active"`
	Features      []string        `json:"features"`
	Popularity    int32           `json:"popularity"`
}

func (p planRequest) cmd() service.PlanCmd {
	return service.PlanCmd{
		Name:          p.Name,
		MinAmount:     p.MinAmount,
		MaxAmount:     p.MaxAmount,
		ROI:           p.ROI,
		DurationHours: p.DurationHours,
		Description:   p.Description,
		IsActive:      p.IsActive,
		Features:      p.Features,
		Popularity:    p.Popularity,
	}
}

// List returns the plan catalog. Non-admin callers see active plans only.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	_, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	onlyActive := !isAdmin || r.URL.Query().Get("include_inactive") != "true"
	plans, err := h.svc.List(r.Context(), onlyActive)
	if err != nil {
		zap.L().Error("list plans failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "plan/list-failed", "Failed to list plans")
		return
	}

	RespondJSON(w, http.StatusOK, plans)
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-plan-id", "Invalid plan ID")
		return
	}

	plan, err := h.svc.Get(r.Context(), planID)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("get plan failed", zap.Error(err), zap.String("plan_id", planID.String()))
		RespondError(w, r, http.StatusInternalServerError, "plan/read-failed", "Failed to load plan")
		return
	}

	RespondJSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	plan, err := h.svc.Create(r.Context(), req.cmd())
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create plan failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "plan/create-failed", "Failed to create plan")
		return
	}

	RespondJSON(w, http.StatusCreated, plan)
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-plan-id", "Invalid plan ID")
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	plan, err := h.svc.Update(r.Context(), planID, req.cmd())
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("update plan failed", zap.Error(err), zap.String("plan_id", planID.String()))
		RespondError(w, r, http.StatusInternalServerError, "plan/update-failed", "Failed to update plan")
		return
	}

	RespondJSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-plan-id", "Invalid plan ID")
		return
	}

	if err := h.svc.Delete(r.Context(), planID); err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("delete plan failed", zap.Error(err), zap.String("plan_id", planID.String()))
		RespondError(w, r, http.StatusInternalServerError, "plan/delete-failed", "Failed to delete plan")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

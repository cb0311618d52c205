package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/service"
)

type InvestmentHandler struct {
	svc      *service.InvestmentService
	accounts *service.AccountService
	clock    clock.Clock
}

func NewInvestmentHandler(svc *service.InvestmentService, accounts *service.AccountService, clk clock.Clock) *InvestmentHandler {
	return &InvestmentHandler{svc: svc, accounts: accounts, clock: clk}
}

// investmentView adds the derived progress fields to the stored record.
type investmentView struct {
	models.Investment
	TotalReturn      int64   `json:"total_return_micros"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	ProgressPercent  float64 `json:"progress_percent"`
}

func (h *InvestmentHandler) view(inv models.Investment) investmentView {
	now := h.clock.Now()
	return investmentView{
		Investment:       inv,
		TotalReturn:      inv.TotalReturn(),
		RemainingSeconds: int64(inv.TimeRemaining(now).Seconds()),
		ProgressPercent:  inv.ProgressPercent(now),
	}
}

// Create opens a position against an active plan.
func (h *InvestmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		AccountID string  `json:"account_id"`
		PlanID    string  `json:"plan_id"`
		Amount    int64   `json:"amount_micros"`
		ParentID  *string `json:"parent_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account_id")
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-plan-id", "Invalid plan_id")
		return
	}
	var parentID *uuid.UUID
	if req.ParentID != nil {
		parsed, err := uuid.Parse(*req.ParentID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-parent-id", "Invalid parent_id")
			return
		}
		parentID = &parsed
	}

	if !h.ownsAccount(w, r, accountID, actorID, isAdmin) {
		return
	}

	inv, err := h.svc.Create(r.Context(), service.CreateInvestmentCmd{
		AccountID: accountID,
		PlanID:    planID,
		Amount:    req.Amount,
		ParentID:  parentID,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create investment failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "investment/create-failed", "Failed to create investment")
		return
	}

	RespondJSON(w, http.StatusCreated, h.view(*inv))
}

// Get returns one investment with derived progress, owner or admin only.
func (h *InvestmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	investmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-investment-id", "Invalid investment ID")
		return
	}

	inv, err := h.svc.Get(r.Context(), investmentID)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("get investment failed", zap.Error(err), zap.String("investment_id", investmentID.String()))
		RespondError(w, r, http.StatusInternalServerError, "investment/read-failed", "Failed to load investment")
		return
	}

	if !h.ownsAccount(w, r, inv.AccountID, actorID, isAdmin) {
		return
	}

	RespondJSON(w, http.StatusOK, h.view(*inv))
}

// ListByAccount returns the account's positions with derived progress.
func (h *InvestmentHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}
	if !h.ownsAccount(w, r, accountID, actorID, isAdmin) {
		return
	}

	limit, offset := listParams(r)
	investments, err := h.svc.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		zap.L().Error("list investments failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "investment/list-failed", "Failed to list investments")
		return
	}

	views := make([]investmentView, 0, len(investments))
	for _, inv := range investments {
		views = append(views, h.view(inv))
	}
	RespondJSON(w, http.StatusOK, views)
}

// Sweep triggers a maturity sweep outside the worker schedule. The
// conditional payout update makes an overlap with the worker harmless.
func (h *InvestmentHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	batch, _ := strconv.Atoi(r.URL.Query().Get("batch"))
	paid, err := h.svc.SweepMatured(r.Context(), int32(batch))
	if err != nil {
		zap.L().Error("manual sweep failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "investment/sweep-failed", "Failed to sweep matured investments")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"paid": paid})
}

func (h *InvestmentHandler) ownsAccount(w http.ResponseWriter, r *http.Request, accountID, actorID uuid.UUID, isAdmin bool) bool {
	account, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return false
		}
		zap.L().Error("account lookup failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to load account")
		return false
	}
	if !isAdmin && account.UserID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return false
	}
	return true
}

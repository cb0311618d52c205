package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/service"
)

type DepositHandler struct {
	svc      *service.DepositService
	accounts *service.AccountService
}

func NewDepositHandler(svc *service.DepositService, accounts *service.AccountService) *DepositHandler {
	return &DepositHandler{svc: svc, accounts: accounts}
}

// Submit creates a pending deposit request for the caller's account.
func (h *DepositHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
		Amount    int64  `json:"amount_micros"`
		Currency  string `json:"currency"`
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
	if !h.ownsAccount(w, r, accountID, actorID, isAdmin) {
		return
	}

	deposit, err := h.svc.Submit(r.Context(), service.SubmitDepositCmd{
		AccountID: accountID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("submit deposit failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "deposit/submit-failed", "Failed to submit deposit")
		return
	}

	RespondJSON(w, http.StatusCreated, deposit)
}

// Resolve applies an admin decision to a pending deposit.
func (h *DepositHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	depositID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-deposit-id", "Invalid deposit ID")
		return
	}

	var req struct {
		Decision string  `json:"decision"`
		Notes    *string `json:"notes,omitempty"`
		TxHash   *string `json:"tx_hash,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	deposit, err := h.svc.Resolve(r.Context(), service.ResolveDepositCmd{
		DepositID: depositID,
		AdminID:   adminID,
		Decision:  req.Decision,
		Notes:     req.Notes,
		TxHash:    req.TxHash,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("resolve deposit failed", zap.Error(err), zap.String("deposit_id", depositID.String()))
		RespondError(w, r, http.StatusInternalServerError, "deposit/resolve-failed", "Failed to resolve deposit")
		return
	}

	RespondJSON(w, http.StatusOK, deposit)
}

// ListByAccount returns the deposits of one account, owner or admin only.
func (h *DepositHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
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
	deposits, err := h.svc.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		zap.L().Error("list deposits failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "deposit/list-failed", "Failed to list deposits")
		return
	}

	RespondJSON(w, http.StatusOK, deposits)
}

// ListPending returns the admin review queue, oldest first.
func (h *DepositHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	deposits, err := h.svc.ListPending(r.Context(), limit, offset)
	if err != nil {
		zap.L().Error("list pending deposits failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "deposit/list-failed", "Failed to list pending deposits")
		return
	}

	RespondJSON(w, http.StatusOK, deposits)
}

func (h *DepositHandler) ownsAccount(w http.ResponseWriter, r *http.Request, accountID, actorID uuid.UUID, isAdmin bool) bool {
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

func listParams(r *http.Request) (limit, offset int32) {
	l, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	o, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if o < 0 {
		o = 0
	}
	return int32(l), int32(o)
}

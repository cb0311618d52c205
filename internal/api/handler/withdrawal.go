package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/service"
)

type WithdrawalHandler struct {
	svc      *service.WithdrawalService
	accounts *service.AccountService
}

func NewWithdrawalHandler(svc *service.WithdrawalService, accounts *service.AccountService) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc, accounts: accounts}
}

// Submit creates a pending withdrawal and places the hold on the balance.
func (h *WithdrawalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		AccountID     string `json:"account_id"`
		Amount        int64  `json:"amount_micros"`
		Currency      string `json:"currency"`
		WalletAddress string `json:"wallet_address"`
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

	withdrawal, err := h.svc.Submit(r.Context(), service.SubmitWithdrawalCmd{
		AccountID:     accountID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("submit withdrawal failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/submit-failed", "Failed to submit withdrawal")
		return
	}

	RespondJSON(w, http.StatusCreated, withdrawal)
}

// Resolve applies an admin decision to a pending withdrawal.
func (h *WithdrawalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-withdrawal-id", "Invalid withdrawal ID")
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

	withdrawal, err := h.svc.Resolve(r.Context(), service.ResolveWithdrawalCmd{
		WithdrawalID: withdrawalID,
		AdminID:      adminID,
		Decision:     req.Decision,
		Notes:        req.Notes,
		TxHash:       req.TxHash,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("resolve withdrawal failed", zap.Error(err), zap.String("withdrawal_id", withdrawalID.String()))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/resolve-failed", "Failed to resolve withdrawal")
		return
	}

	RespondJSON(w, http.StatusOK, withdrawal)
}

// ListByAccount returns the withdrawals of one account, owner or admin only.
func (h *WithdrawalHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
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
	withdrawals, err := h.svc.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		zap.L().Error("list withdrawals failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/list-failed", "Failed to list withdrawals")
		return
	}

	RespondJSON(w, http.StatusOK, withdrawals)
}

// ListPending returns the admin review queue, oldest first.
func (h *WithdrawalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	withdrawals, err := h.svc.ListPending(r.Context(), limit, offset)
	if err != nil {
		zap.L().Error("list pending withdrawals failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/list-failed", "Failed to list pending withdrawals")
		return
	}

	RespondJSON(w, http.StatusOK, withdrawals)
}

func (h *WithdrawalHandler) ownsAccount(w http.ResponseWriter, r *http.Request, accountID, actorID uuid.UUID, isAdmin bool) bool {
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

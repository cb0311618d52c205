package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

// WithdrawalService reserves funds at submission time and releases or
// refunds them on admin resolution. The hold at submission is what
// prevents a concurrent request from overdrawing the same balance.
type WithdrawalService struct {
	store     repository.Store
	ledger    *LedgerService
	audit     *AuditService
	clock     clock.Clock
	minAmount int64 // micros
}

func NewWithdrawalService(store repository.Store, ledger *LedgerService, clk clock.Clock, minAmountMicros int64) *WithdrawalService {
	if minAmountMicros <= 0 {
		minAmountMicros = 10 * domain.MicrosPerUnit
	}
	return &WithdrawalService{
		store:     store,
		ledger:    ledger,
		audit:     NewAuditService(),
		clock:     clk,
		minAmount: minAmountMicros,
	}
}

// SubmitWithdrawalCmd is the validated input for a withdrawal submission.
type SubmitWithdrawalCmd struct {
	AccountID     uuid.UUID
	Amount        int64 // micros
	Currency      string
	WalletAddress string
}

func (c *SubmitWithdrawalCmd) validate(minAmount int64) error {
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	c.WalletAddress = strings.TrimSpace(c.WalletAddress)
	if c.Amount <= 0 {
		return fmt.Errorf("withdrawal amount must be positive: %w", models.ErrValidation)
	}
	if c.Amount < minAmount {
		return fmt.Errorf("withdrawal amount below minimum of %d micros: %w", minAmount, models.ErrAmountOutOfRange)
	}
	if !domain.SupportedCurrency(c.Currency) {
		return fmt.Errorf("unsupported currency %q: %w", c.Currency, models.ErrValidation)
	}
	if c.WalletAddress == "" {
		return fmt.Errorf("destination wallet address is required: %w", models.ErrValidation)
	}
	return nil
}

// Submit debits the balance immediately (the hold), creates the pending
// request and a pending ledger entry whose snapshots reflect the debit.
// Insufficient balance aborts the whole transaction: no request, no
// entry, no debit.
func (s *WithdrawalService) Submit(ctx context.Context, cmd SubmitWithdrawalCmd) (*models.WithdrawalRequest, error) {
	if err := cmd.validate(s.minAmount); err != nil {
		return nil, err
	}

	req := &models.WithdrawalRequest{
		ID:            uuid.New(),
		AccountID:     cmd.AccountID,
		Amount:        cmd.Amount,
		Currency:      cmd.Currency,
		WalletAddress: cmd.WalletAddress,
		Status:        domain.RequestStatusPending,
		CreatedAt:     s.clock.Now(),
	}

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		before, after, err := s.ledger.ApplyBalanceChange(ctx, q, cmd.AccountID, -cmd.Amount)
		if err != nil {
			return err
		}
		if err := q.CreateWithdrawalRequest(ctx, req); err != nil {
			return err
		}
		_, err = s.ledger.RecordEntry(ctx, q, RecordEntryParams{
			AccountID:     cmd.AccountID,
			Kind:          domain.EntryKindWithdrawal,
			Amount:        cmd.Amount,
			Status:        domain.EntryStatusPending,
			Description:   fmt.Sprintf("Withdrawal of %s to %s", domain.NewMoney(cmd.Amount, cmd.Currency), cmd.WalletAddress),
			ReferenceID:   req.ID,
			ReferenceKind: domain.RefKindWithdrawal,
			BalanceBefore: before,
			BalanceAfter:  after,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveWithdrawalCmd is an admin decision on a pending withdrawal.
type ResolveWithdrawalCmd struct {
	WithdrawalID uuid.UUID
	AdminID      uuid.UUID
	Decision     string // confirmed or rejected
	Notes        *string
	TxHash       *string
}

// Resolve applies the admin decision exactly once. Confirmation needs no
// further balance change (the hold already debited it) and completes the
// entry. Rejection refunds the hold and fails the entry, snapshots
// reconciled around the refund.
func (s *WithdrawalService) Resolve(ctx context.Context, cmd ResolveWithdrawalCmd) (*models.WithdrawalRequest, error) {
	decision := normalizeState(cmd.Decision)
	if decision != domain.DecisionConfirmed && decision != domain.DecisionRejected {
		return nil, fmt.Errorf("decision must be confirmed or rejected: %w", models.ErrValidation)
	}

	var resolved *models.WithdrawalRequest
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		req, err := q.GetWithdrawalRequestForUpdate(ctx, cmd.WithdrawalID)
		if err != nil {
			return fmt.Errorf("load withdrawal request: %w", err)
		}
		if !canTransition(requestTransitions, req.Status, decision) {
			return fmt.Errorf("withdrawal %s is %s: %w", req.ID, req.Status, models.ErrAlreadyProcessed)
		}

		entry, err := q.GetLedgerEntryByReference(ctx, req.ID, domain.RefKindWithdrawal)
		if err != nil {
			return fmt.Errorf("load withdrawal ledger entry: %w", err)
		}

		var before, after int64
		entryStatus := domain.EntryStatusCompleted
		if decision == domain.DecisionRejected {
			// Refund the hold; keep the original pre-debit snapshot so a
			// failed entry reads as "no net movement".
			_, refundAfter, err := s.ledger.ApplyBalanceChange(ctx, q, req.AccountID, req.Amount)
			if err != nil {
				return err
			}
			before, after = entry.BalanceBefore, refundAfter
			entryStatus = domain.EntryStatusFailed
		} else {
			before, after = entry.BalanceBefore, entry.BalanceAfter
		}

		now := s.clock.Now()
		rows, err := q.ResolveWithdrawalRequest(ctx, repository.ResolveRequestParams{
			ID:          req.ID,
			Status:      decision,
			ProcessedBy: cmd.AdminID,
			ProcessedAt: now,
			AdminNotes:  cmd.Notes,
			TxHash:      cmd.TxHash,
		})
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "resolve withdrawal request"); err != nil {
			return err
		}

		if err := s.ledger.resolveEntry(ctx, q, req.ID, domain.RefKindWithdrawal, entryStatus, before, after); err != nil {
			return err
		}

		metadata, err := resolutionMetadata(cmd.Notes, cmd.TxHash)
		if err != nil {
			return err
		}
		adminID := cmd.AdminID
		if err := s.audit.Write(ctx, q, "withdrawal_request", req.ID, &adminID, "withdrawal_"+decision, req.Status, decision, metadata); err != nil {
			return err
		}

		req.Status = decision
		req.ProcessedBy = &adminID
		req.ProcessedAt = &now
		req.AdminNotes = cmd.Notes
		req.TxHash = cmd.TxHash
		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// ListByAccount returns the account's withdrawal history, newest first.
func (s *WithdrawalService) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.WithdrawalRequest, error) {
	return s.store.Queries().ListWithdrawalsByAccount(ctx, accountID, clampLimit(limit), offset)
}

// ListPending returns pending withdrawals for the admin queue, oldest first.
func (s *WithdrawalService) ListPending(ctx context.Context, limit, offset int32) ([]models.WithdrawalRequest, error) {
	return s.store.Queries().ListWithdrawalsByStatus(ctx, domain.RequestStatusPending, clampLimit(limit), offset)
}

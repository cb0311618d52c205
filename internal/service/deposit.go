package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

// DepositService turns a funding request into a balance credit. Money
// only moves at admin confirmation time: submission records intent while
// the user sends funds to the system wallet on-chain.
type DepositService struct {
	store  repository.Store
	ledger *LedgerService
	audit  *AuditService
	clock  clock.Clock
}

func NewDepositService(store repository.Store, ledger *LedgerService, clk clock.Clock) *DepositService {
	return &DepositService{
		store:  store,
		ledger: ledger,
		audit:  NewAuditService(),
		clock:  clk,
	}
}

// minimum deposit: 1 whole unit of the chosen currency
const minDepositMicros = domain.MicrosPerUnit

// SubmitDepositCmd is the validated input for a deposit submission.
type SubmitDepositCmd struct {
	AccountID uuid.UUID
	Amount    int64 // micros
	Currency  string
}

func (c *SubmitDepositCmd) validate() error {
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Amount < minDepositMicros {
		return fmt.Errorf("deposit amount must be at least 1 %s: %w", c.Currency, models.ErrValidation)
	}
	if !domain.SupportedCurrency(c.Currency) {
		return fmt.Errorf("unsupported currency %q: %w", c.Currency, models.ErrValidation)
	}
	return nil
}

// Submit creates a pending DepositRequest plus its pending ledger entry.
// No balance change happens here; the entry's snapshots both read the
// current balance.
func (s *DepositService) Submit(ctx context.Context, cmd SubmitDepositCmd) (*models.DepositRequest, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	wallet, _ := domain.SystemWalletAddress(cmd.Currency)

	req := &models.DepositRequest{
		ID:            uuid.New(),
		AccountID:     cmd.AccountID,
		Amount:        cmd.Amount,
		Currency:      cmd.Currency,
		WalletAddress: wallet,
		Status:        domain.RequestStatusPending,
		CreatedAt:     s.clock.Now(),
	}

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		account, err := q.GetAccount(ctx, cmd.AccountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if err := q.CreateDepositRequest(ctx, req); err != nil {
			return err
		}
		_, err = s.ledger.RecordEntry(ctx, q, RecordEntryParams{
			AccountID:     cmd.AccountID,
			Kind:          domain.EntryKindDeposit,
			Amount:        cmd.Amount,
			Status:        domain.EntryStatusPending,
			Description:   fmt.Sprintf("Deposit of %s", domain.NewMoney(cmd.Amount, cmd.Currency)),
			ReferenceID:   req.ID,
			ReferenceKind: domain.RefKindDeposit,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveDepositCmd is an admin decision on a pending deposit.
type ResolveDepositCmd struct {
	DepositID uuid.UUID
	AdminID   uuid.UUID
	Decision  string // confirmed or rejected
	Notes     *string
	TxHash    *string
}

// Resolve applies the admin decision exactly once. Confirmation credits
// the account and completes the ledger entry with reconciled snapshots;
// rejection leaves the balance untouched and fails the entry. Everything
// happens in one transaction: a failure anywhere leaves the request
// pending with no partial credit.
func (s *DepositService) Resolve(ctx context.Context, cmd ResolveDepositCmd) (*models.DepositRequest, error) {
	decision := normalizeState(cmd.Decision)
	if decision != domain.DecisionConfirmed && decision != domain.DecisionRejected {
		return nil, fmt.Errorf("decision must be confirmed or rejected: %w", models.ErrValidation)
	}

	var resolved *models.DepositRequest
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		req, err := q.GetDepositRequestForUpdate(ctx, cmd.DepositID)
		if err != nil {
			return fmt.Errorf("load deposit request: %w", err)
		}
		if !canTransition(requestTransitions, req.Status, decision) {
			return fmt.Errorf("deposit %s is %s: %w", req.ID, req.Status, models.ErrAlreadyProcessed)
		}

		var before, after int64
		entryStatus := domain.EntryStatusFailed
		if decision == domain.DecisionConfirmed {
			before, after, err = s.ledger.ApplyBalanceChange(ctx, q, req.AccountID, req.Amount)
			if err != nil {
				return err
			}
			entryStatus = domain.EntryStatusCompleted
		} else {
			account, err := q.GetAccount(ctx, req.AccountID)
			if err != nil {
				return fmt.Errorf("load account: %w", err)
			}
			before, after = account.Balance, account.Balance
		}

		now := s.clock.Now()
		rows, err := q.ResolveDepositRequest(ctx, repository.ResolveRequestParams{
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
		if err := requireExactlyOne(rows, "resolve deposit request"); err != nil {
			return err
		}

		if err := s.ledger.resolveEntry(ctx, q, req.ID, domain.RefKindDeposit, entryStatus, before, after); err != nil {
			return err
		}

		metadata, err := resolutionMetadata(cmd.Notes, cmd.TxHash)
		if err != nil {
			return err
		}
		adminID := cmd.AdminID
		if err := s.audit.Write(ctx, q, "deposit_request", req.ID, &adminID, "deposit_"+decision, req.Status, decision, metadata); err != nil {
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

// ListByAccount returns the account's deposit history, newest first.
func (s *DepositService) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.DepositRequest, error) {
	return s.store.Queries().ListDepositsByAccount(ctx, accountID, clampLimit(limit), offset)
}

// ListPending returns pending deposits for the admin queue, oldest first.
func (s *DepositService) ListPending(ctx context.Context, limit, offset int32) ([]models.DepositRequest, error) {
	return s.store.Queries().ListDepositsByStatus(ctx, domain.RequestStatusPending, clampLimit(limit), offset)
}

func resolutionMetadata(notes, txHash *string) ([]byte, error) {
	payload := map[string]string{}
	if notes != nil {
		payload["notes"] = *notes
	}
	if txHash != nil {
		payload["tx_hash"] = *txHash
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal resolution metadata: %w", err)
	}
	return data, nil
}

func clampLimit(limit int32) int32 {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

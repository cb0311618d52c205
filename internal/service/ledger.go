package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

// LedgerService owns the balance-mutation primitive and ledger entry
// bookkeeping. Every workflow that moves money goes through
// ApplyBalanceChange inside the workflow's transaction; the account row
// lock taken there is what serializes concurrent mutations of one
// account.
type LedgerService struct {
	store repository.Store
	clock clock.Clock
}

func NewLedgerService(store repository.Store, clk clock.Clock) *LedgerService {
	return &LedgerService{store: store, clock: clk}
}

// ApplyBalanceChange mutates the account balance by delta under the
// account's row lock. It fails with models.ErrInsufficientFunds when the
// result would be negative, leaving the balance untouched. Returns the
// before/after pair for ledger entry snapshots.
//
// Must be called with a transactional query set: the caller's RunInTx is
// the atomic boundary tying the balance change to the entry and the
// originating entity.
func (s *LedgerService) ApplyBalanceChange(ctx context.Context, q repository.Queries, accountID uuid.UUID, delta int64) (before, after int64, err error) {
	account, err := q.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return 0, 0, fmt.Errorf("lock account %s: %w", accountID, err)
	}

	before = account.Balance
	after = before + delta
	if after < 0 {
		return 0, 0, fmt.Errorf("balance %d, change %d: %w", before, delta, models.ErrInsufficientFunds)
	}

	rows, err := q.UpdateAccountBalance(ctx, accountID, after)
	if err != nil {
		return 0, 0, err
	}
	if err := requireExactlyOne(rows, "update account balance"); err != nil {
		return 0, 0, err
	}
	return before, after, nil
}

// RecordEntryParams describes one ledger entry to append.
type RecordEntryParams struct {
	AccountID     uuid.UUID
	Kind          string
	Amount        int64
	Status        string
	Description   string
	ReferenceID   uuid.UUID
	ReferenceKind string
	BalanceBefore int64
	BalanceAfter  int64
}

// RecordEntry appends a ledger entry. For pending entries the snapshots
// reflect the balance at submission time; the resolving workflow step
// overwrites them via resolveEntry.
func (s *LedgerService) RecordEntry(ctx context.Context, q repository.Queries, arg RecordEntryParams) (*models.LedgerEntry, error) {
	refID := arg.ReferenceID
	entry := &models.LedgerEntry{
		ID:            uuid.New(),
		AccountID:     arg.AccountID,
		Kind:          arg.Kind,
		Amount:        arg.Amount,
		Status:        arg.Status,
		Description:   arg.Description,
		ReferenceID:   &refID,
		ReferenceKind: arg.ReferenceKind,
		BalanceBefore: arg.BalanceBefore,
		BalanceAfter:  arg.BalanceAfter,
		CreatedAt:     s.clock.Now(),
	}
	if err := q.CreateLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// resolveEntry moves the pending entry tied to (referenceID,
// referenceKind) into nextStatus exactly once, reconciling its balance
// snapshots.
func (s *LedgerService) resolveEntry(ctx context.Context, q repository.Queries, referenceID uuid.UUID, referenceKind, nextStatus string, before, after int64) error {
	entry, err := q.GetLedgerEntryByReference(ctx, referenceID, referenceKind)
	if err != nil {
		return fmt.Errorf("load ledger entry for %s %s: %w", referenceKind, referenceID, err)
	}
	if !canTransition(entryTransitions, entry.Status, nextStatus) {
		return fmt.Errorf("ledger entry %s: invalid transition %s -> %s", entry.ID, entry.Status, nextStatus)
	}
	rows, err := q.ResolveLedgerEntry(ctx, repository.ResolveLedgerEntryParams{
		ID:            entry.ID,
		Status:        nextStatus,
		BalanceBefore: before,
		BalanceAfter:  after,
	})
	if err != nil {
		return err
	}
	return requireExactlyOne(rows, "resolve ledger entry")
}

// LedgerPage is one page of an account's transaction history.
type LedgerPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	TotalCount int64                `json:"total_count"`
	Page       int32                `json:"page"`
	PageSize   int32                `json:"page_size"`
}

// ListEntries returns the account's history, newest first, optionally
// filtered by kind and status.
func (s *LedgerService) ListEntries(ctx context.Context, accountID uuid.UUID, kind, status string, page, pageSize int32) (*LedgerPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}

	arg := repository.ListLedgerEntriesParams{
		AccountID: accountID,
		Kind:      kind,
		Status:    status,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}

	queries := s.store.Queries()
	entries, err := queries.ListLedgerEntries(ctx, arg)
	if err != nil {
		return nil, err
	}
	total, err := queries.CountLedgerEntries(ctx, arg)
	if err != nil {
		return nil, err
	}
	return &LedgerPage{
		Entries:    entries,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

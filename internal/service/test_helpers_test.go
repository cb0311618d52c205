package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

// testEnv wires the full service stack over the in-memory store with a
// fake clock, so workflow behavior is tested deterministically.
type testEnv struct {
	store       *repository.MemoryStore
	clk         *clock.Fake
	ledger      *LedgerService
	accounts    *AccountService
	deposits    *DepositService
	withdrawals *WithdrawalService
	investments *InvestmentService
	plans       *PlanService
	recon       *ReconciliationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := NewLedgerService(store, clk)
	return &testEnv{
		store:       store,
		clk:         clk,
		ledger:      ledger,
		accounts:    NewAccountService(store, clk),
		deposits:    NewDepositService(store, ledger, clk),
		withdrawals: NewWithdrawalService(store, ledger, clk, domain.UnitsToMicros(10)),
		investments: NewInvestmentService(store, ledger, clk),
		plans:       NewPlanService(store, clk),
		recon:       NewReconciliationService(store),
	}
}

func (e *testEnv) newAccount(t *testing.T) *models.Account {
	t.Helper()
	account, err := e.accounts.Create(context.Background(), uuid.New())
	require.NoError(t, err)
	return account
}

// fundAccount credits the account through a full confirmed deposit, so
// the ledger stays consistent for conservation checks.
func (e *testEnv) fundAccount(t *testing.T, accountID uuid.UUID, amountMicros int64) {
	t.Helper()
	dep, err := e.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: accountID,
		Amount:    amountMicros,
		Currency:  "USDT",
	})
	require.NoError(t, err)

	_, err = e.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   uuid.New(),
		Decision:  domain.DecisionConfirmed,
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, accountID uuid.UUID) int64 {
	t.Helper()
	account, err := e.store.Queries().GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (e *testEnv) entryByReference(t *testing.T, refID uuid.UUID, refKind string) *models.LedgerEntry {
	t.Helper()
	entry, err := e.store.Queries().GetLedgerEntryByReference(context.Background(), refID, refKind)
	require.NoError(t, err)
	return entry
}

// requireConserved asserts that no account's balance has drifted from
// its ledger net.
func (e *testEnv) requireConserved(t *testing.T) {
	t.Helper()
	drift, err := e.recon.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, drift, "balances must reconcile with the ledger")
}

func (e *testEnv) newPlan(t *testing.T, roi string, durationHours int32) *models.InvestmentPlan {
	t.Helper()
	plan, err := e.plans.Create(context.Background(), PlanCmd{
		Name:          "Starter",
		MinAmount:     domain.UnitsToMicros(100),
		MaxAmount:     domain.UnitsToMicros(10_000),
		ROI:           decimal.RequireFromString(roi),
		DurationHours: durationHours,
		Description:   "Entry-level plan",
		IsActive:      true,
		Features:      []string{"daily compounding view"},
		Popularity:    1,
	})
	require.NoError(t, err)
	return plan
}

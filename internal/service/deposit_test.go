package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/models"
)

func TestSubmitDepositCreatesPendingRequestAndEntry(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t)

	dep, err := env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.UnitsToMicros(500),
		Currency:  "btc",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, dep.Status)
	assert.Equal(t, "BTC", dep.Currency)
	wallet, ok := domain.SystemWalletAddress("BTC")
	require.True(t, ok)
	assert.Equal(t, wallet, dep.WalletAddress)

	// No credit until an admin confirms.
	assert.Equal(t, int64(0), env.balance(t, account.ID))

	entry := env.entryByReference(t, dep.ID, domain.RefKindDeposit)
	assert.Equal(t, domain.EntryKindDeposit, entry.Kind)
	assert.Equal(t, domain.EntryStatusPending, entry.Status)
	assert.Equal(t, int64(0), entry.BalanceBefore)
	assert.Equal(t, int64(0), entry.BalanceAfter)
}

func TestConfirmDepositCreditsBalanceOnce(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t)

	dep, err := env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.UnitsToMicros(1000),
		Currency:  "USDT",
	})
	require.NoError(t, err)

	txHash := "0xabc123"
	resolved, err := env.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   uuid.New(),
		Decision:  domain.DecisionConfirmed,
		TxHash:    &txHash,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusConfirmed, resolved.Status)
	require.NotNil(t, resolved.ProcessedAt)
	assert.Equal(t, domain.UnitsToMicros(1000), env.balance(t, account.ID))

	entry := env.entryByReference(t, dep.ID, domain.RefKindDeposit)
	assert.Equal(t, domain.EntryStatusCompleted, entry.Status)
	assert.Equal(t, int64(0), entry.BalanceBefore)
	assert.Equal(t, domain.UnitsToMicros(1000), entry.BalanceAfter)

	// A second decision on the same request must not double-credit.
	_, err = env.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   uuid.New(),
		Decision:  domain.DecisionConfirmed,
	})
	require.ErrorIs(t, err, models.ErrAlreadyProcessed)
	assert.Equal(t, domain.UnitsToMicros(1000), env.balance(t, account.ID))

	env.requireConserved(t)
}

func TestRejectDepositLeavesBalanceUntouched(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t)

	dep, err := env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.UnitsToMicros(250),
		Currency:  "ETH",
	})
	require.NoError(t, err)

	notes := "no matching chain transaction"
	resolved, err := env.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   uuid.New(),
		Decision:  domain.DecisionRejected,
		Notes:     &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusRejected, resolved.Status)
	assert.Equal(t, int64(0), env.balance(t, account.ID))

	entry := env.entryByReference(t, dep.ID, domain.RefKindDeposit)
	assert.Equal(t, domain.EntryStatusFailed, entry.Status)

	// Rejection is terminal too.
	_, err = env.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   uuid.New(),
		Decision:  domain.DecisionConfirmed,
	})
	require.ErrorIs(t, err, models.ErrAlreadyProcessed)

	env.requireConserved(t)
}

func TestSubmitDepositValidation(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t)

	_, err := env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.UnitsToMicros(100),
		Currency:  "DOGE",
	})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.MicrosPerUnit - 1,
		Currency:  "BTC",
	})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: uuid.New(),
		Amount:    domain.UnitsToMicros(100),
		Currency:  "BTC",
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolveDepositRequiresKnownDecision(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t)

	dep, err := env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.UnitsToMicros(100),
		Currency:  "BTC",
	})
	require.NoError(t, err)

	_, err = env.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   uuid.New(),
		Decision:  "approved",
	})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestResolveDepositWritesAudit(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t)

	dep, err := env.deposits.Submit(context.Background(), SubmitDepositCmd{
		AccountID: account.ID,
		Amount:    domain.UnitsToMicros(100),
		Currency:  "BTC",
	})
	require.NoError(t, err)

	adminID := uuid.New()
	_, err = env.deposits.Resolve(context.Background(), ResolveDepositCmd{
		DepositID: dep.ID,
		AdminID:   adminID,
		Decision:  domain.DecisionConfirmed,
	})
	require.NoError(t, err)

	log := env.store.AuditLog()
	require.Len(t, log, 1)
	assert.Equal(t, "deposit_request", log[0].EntityType)
	assert.Equal(t, dep.ID, log[0].EntityID)
	require.NotNil(t, log[0].ActorID)
	assert.Equal(t, adminID, *log[0].ActorID)
	assert.Equal(t, "deposit_confirmed", log[0].Action)
	assert.Equal(t, domain.RequestStatusPending, log[0].PrevState)
	assert.Equal(t, domain.RequestStatusConfirmed, log[0].NextState)
}

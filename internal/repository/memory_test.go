package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidolu/cryptovest/internal/models"
)

func newTestAccount(t *testing.T, q Queries, balance int64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, q.CreateAccount(context.Background(), account))
	return account
}

func TestMemoryTxRollbackRestoresState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := newTestAccount(t, store.Queries(), 100)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(q Queries) error {
		if _, err := q.UpdateAccountBalance(ctx, account.ID, 999); err != nil {
			return err
		}
		if err := q.CreateLedgerEntry(ctx, &models.LedgerEntry{
			ID:        uuid.New(),
			AccountID: account.ID,
			Kind:      "deposit",
			Amount:    899,
			Status:    "completed",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Queries().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)

	entries, err := store.Queries().ListLedgerEntries(ctx, ListLedgerEntriesParams{AccountID: account.ID, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveDepositRequestIsConditional(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	q := store.Queries()
	account := newTestAccount(t, q, 0)

	req := &models.DepositRequest{
		ID:        uuid.New(),
		AccountID: account.ID,
		Amount:    100,
		Currency:  "USDT",
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, q.CreateDepositRequest(ctx, req))

	admin := uuid.New()
	rows, err := q.ResolveDepositRequest(ctx, ResolveRequestParams{
		ID: req.ID, Status: "confirmed", ProcessedBy: admin, ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// The guard only matches pending rows, so a second resolve is a no-op.
	rows, err = q.ResolveDepositRequest(ctx, ResolveRequestParams{
		ID: req.ID, Status: "rejected", ProcessedBy: admin, ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	got, err := q.GetDepositRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)
}

func TestMarkInvestmentPaidOnlyOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	q := store.Queries()
	account := newTestAccount(t, q, 0)

	now := time.Now().UTC()
	inv := &models.Investment{
		ID:        uuid.New(),
		AccountID: account.ID,
		PlanID:    uuid.New(),
		Amount:    500,
		Status:    "active",
		StartDate: now.Add(-48 * time.Hour),
		EndDate:   now.Add(-time.Hour),
	}
	require.NoError(t, q.CreateInvestment(ctx, inv))

	matured, err := q.ListMaturedInvestments(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, matured, 1)

	rows, err := q.MarkInvestmentPaid(ctx, inv.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = q.MarkInvestmentPaid(ctx, inv.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	matured, err = q.ListMaturedInvestments(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, matured)

	got, err := q.GetInvestment(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.True(t, got.IsProfitPaid)
}

func TestListBalanceDrift(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	q := store.Queries()

	clean := newTestAccount(t, q, 100)
	require.NoError(t, q.CreateLedgerEntry(ctx, &models.LedgerEntry{
		ID: uuid.New(), AccountID: clean.ID, Kind: "deposit", Amount: 100, Status: "completed",
	}))

	drifted := newTestAccount(t, q, 100)
	require.NoError(t, q.CreateLedgerEntry(ctx, &models.LedgerEntry{
		ID: uuid.New(), AccountID: drifted.ID, Kind: "deposit", Amount: 40, Status: "completed",
	}))

	// Pending entries do not count toward the ledger net.
	require.NoError(t, q.CreateLedgerEntry(ctx, &models.LedgerEntry{
		ID: uuid.New(), AccountID: drifted.ID, Kind: "deposit", Amount: 60, Status: "pending",
	}))

	drift, err := q.ListBalanceDrift(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, drifted.ID, drift[0].AccountID)
	assert.Equal(t, int64(100), drift[0].Balance)
	assert.Equal(t, int64(40), drift[0].LedgerNet)
}

func TestIdempotencyReserveAndFinalize(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	q := store.Queries()

	reserved, err := q.ReserveIdempotencyKey(ctx, ReserveIdempotencyKeyParams{
		Key: "k1", RequestHash: "h1", Method: "POST", Path: "/v1/deposits",
	})
	require.NoError(t, err)
	assert.True(t, reserved)

	// A second reserve of the same key loses the race.
	reserved, err = q.ReserveIdempotencyKey(ctx, ReserveIdempotencyKeyParams{
		Key: "k1", RequestHash: "h1", Method: "POST", Path: "/v1/deposits",
	})
	require.NoError(t, err)
	assert.False(t, reserved)

	rec, err := q.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, rec.InProgress)

	final, err := q.FinalizeIdempotencyKey(ctx, FinalizeIdempotencyKeyParams{
		Key: "k1", RequestHash: "h1", ResponseStatus: 201,
		ResponseBody: []byte(`{"ok":true}`), ContentType: "application/json",
	})
	require.NoError(t, err)
	assert.False(t, final.InProgress)
	assert.Equal(t, int32(201), final.ResponseStatus)

	_, err = q.GetIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLedgerEntryPaginationAndFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	q := store.Queries()
	account := newTestAccount(t, q, 0)

	base := time.Now().UTC()
	kinds := []string{"deposit", "withdrawal", "deposit", "profit", "deposit"}
	for i, kind := range kinds {
		require.NoError(t, q.CreateLedgerEntry(ctx, &models.LedgerEntry{
			ID:        uuid.New(),
			AccountID: account.ID,
			Kind:      kind,
			Amount:    int64(i + 1),
			Status:    "completed",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	deposits, err := q.ListLedgerEntries(ctx, ListLedgerEntriesParams{AccountID: account.ID, Kind: "deposit", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, deposits, 3)

	count, err := q.CountLedgerEntries(ctx, ListLedgerEntriesParams{AccountID: account.ID, Kind: "deposit"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Newest first, two per page.
	page1, err := q.ListLedgerEntries(ctx, ListLedgerEntriesParams{AccountID: account.ID, Limit: 2, Offset: 0})
	require.NoError(t, err)
	page2, err := q.ListLedgerEntries(ctx, ListLedgerEntriesParams{AccountID: account.ID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.Equal(t, int64(5), page1[0].Amount)
	assert.Equal(t, int64(3), page2[0].Amount)
}

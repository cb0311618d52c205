package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/db"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/repository"
	"github.com/davidolu/cryptovest/internal/testutil/dblock"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

func connectServiceTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	release := dblock.Acquire()
	t.Cleanup(release)

	pool, err := db.Connect(context.Background(), os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(context.Background(), string(schema))
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE audit_log, ledger_entries, deposit_requests, withdrawal_requests, investments, investment_plans, accounts, users, idempotency_keys CASCADE")
	require.NoError(t, err)

	return pool
}

// TestSweepSettlesMaturedInvestmentOnPostgres runs the full invest and
// sweep cycle against the real schema. The payout writes a second ledger
// entry for the same investment, so this covers the entry-per-reference
// uniqueness alongside the conditional settle.
func TestSweepSettlesMaturedInvestmentOnPostgres(t *testing.T) {
	pool := connectServiceTestDB(t)
	ctx := context.Background()

	userID := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
		userID, "inv_"+userID.String()[:8], "inv_"+userID.String()[:8]+"@example.com")
	require.NoError(t, err)

	store := repository.NewPostgresStore(pool)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := NewLedgerService(store, clk)
	accounts := NewAccountService(store, clk)
	deposits := NewDepositService(store, ledger, clk)
	plans := NewPlanService(store, clk)
	investments := NewInvestmentService(store, ledger, clk)

	account, err := accounts.Create(ctx, userID)
	require.NoError(t, err)

	dep, err := deposits.Submit(ctx, SubmitDepositCmd{
		AccountID: account.ID, Amount: domain.UnitsToMicros(1000), Currency: "USDT",
	})
	require.NoError(t, err)
	_, err = deposits.Resolve(ctx, ResolveDepositCmd{
		DepositID: dep.ID, AdminID: uuid.New(), Decision: domain.DecisionConfirmed,
	})
	require.NoError(t, err)

	plan, err := plans.Create(ctx, PlanCmd{
		Name:          "Starter",
		MinAmount:     domain.UnitsToMicros(100),
		MaxAmount:     domain.UnitsToMicros(10000),
		ROI:           decimal.RequireFromString("12.5"),
		DurationHours: 24,
		IsActive:      true,
	})
	require.NoError(t, err)

	inv, err := investments.Create(ctx, CreateInvestmentCmd{
		AccountID: account.ID, PlanID: plan.ID, Amount: domain.UnitsToMicros(400),
	})
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	paid, err := investments.SweepMatured(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, paid)

	// 1000 - 400 principal + 450 payout.
	got, err := store.Queries().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitsToMicros(1050), got.Balance)

	settled, err := investments.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusCompleted, settled.Status)
	assert.True(t, settled.IsProfitPaid)

	// Both entries for the investment persisted under distinct kinds.
	principal, err := store.Queries().GetLedgerEntryByReference(ctx, inv.ID, domain.RefKindInvestment)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindInvestment, principal.Kind)

	profit, err := store.Queries().GetLedgerEntryByReference(ctx, inv.ID, domain.RefKindInvestmentProfit)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindProfit, profit.Kind)
	assert.Equal(t, domain.UnitsToMicros(450), profit.Amount)

	paid, err = investments.SweepMatured(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, paid)
}

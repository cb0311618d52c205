package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidolu/cryptovest/internal/db"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/testutil/dblock"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

func connectTestDB(t *testing.T) *pgxpool.Pool {
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

	return pool
}

// seedUser satisfies the accounts -> users foreign key.
func seedUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
		id, "user_"+id.String()[:8], "user_"+id.String()[:8]+"@example.com")
	require.NoError(t, err)
	return id
}

func TestPostgresAccountRoundTrip(t *testing.T) {
	pool := connectTestDB(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	account := &models.Account{
		ID:        uuid.New(),
		UserID:    seedUser(t, pool),
		Balance:   0,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Queries().CreateAccount(ctx, account))

	got, err := store.Queries().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, account.UserID, got.UserID)
	assert.Equal(t, int64(0), got.Balance)

	byUser, err := store.Queries().GetAccountByUserID(ctx, account.UserID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, byUser.ID)

	_, err = store.Queries().GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresTxRollback(t *testing.T) {
	pool := connectTestDB(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	account := &models.Account{ID: uuid.New(), UserID: seedUser(t, pool), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Queries().CreateAccount(ctx, account))

	err := store.RunInTx(ctx, func(q Queries) error {
		if _, err := q.UpdateAccountBalance(ctx, account.ID, 500); err != nil {
			return err
		}
		return context.Canceled
	})
	require.Error(t, err)

	got, err := store.Queries().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
}

func TestPostgresConditionalResolve(t *testing.T) {
	pool := connectTestDB(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	account := &models.Account{ID: uuid.New(), UserID: seedUser(t, pool), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Queries().CreateAccount(ctx, account))

	req := &models.DepositRequest{
		ID:        uuid.New(),
		AccountID: account.ID,
		Amount:    100,
		Currency:  "USDT",
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Queries().CreateDepositRequest(ctx, req))

	rows, err := store.Queries().ResolveDepositRequest(ctx, ResolveRequestParams{
		ID: req.ID, Status: "confirmed", ProcessedBy: uuid.New(), ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = store.Queries().ResolveDepositRequest(ctx, ResolveRequestParams{
		ID: req.ID, Status: "rejected", ProcessedBy: uuid.New(), ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidolu/cryptovest/internal/models"
)

// Store provides access to the query set and transaction scoping. Both the
// Postgres store and the in-memory store satisfy it; services depend on
// this interface only.
type Store interface {
	Queries() Queries
	// RunInTx executes fn as a single atomic unit: every query issued
	// through q commits together or not at all.
	RunInTx(ctx context.Context, fn func(q Queries) error) error
}

// Queries is the data access contract required by the workflow services.
// Methods that resolve a pending entity do so conditionally and report
// rows affected, so callers can detect lost races.
type Queries interface {
	// Accounts
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	// GetAccountForUpdate locks the account row for the duration of the
	// enclosing transaction, serializing concurrent balance mutations.
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error)

	// Ledger entries
	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetLedgerEntryByReference(ctx context.Context, referenceID uuid.UUID, referenceKind string) (*models.LedgerEntry, error)
	ResolveLedgerEntry(ctx context.Context, arg ResolveLedgerEntryParams) (int64, error)
	ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]models.LedgerEntry, error)
	CountLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) (int64, error)

	// Deposit requests
	CreateDepositRequest(ctx context.Context, req *models.DepositRequest) error
	GetDepositRequest(ctx context.Context, id uuid.UUID) (*models.DepositRequest, error)
	GetDepositRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.DepositRequest, error)
	ResolveDepositRequest(ctx context.Context, arg ResolveRequestParams) (int64, error)
	ListDepositsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.DepositRequest, error)
	ListDepositsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.DepositRequest, error)

	// Withdrawal requests
	CreateWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error
	GetWithdrawalRequest(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetWithdrawalRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	ResolveWithdrawalRequest(ctx context.Context, arg ResolveRequestParams) (int64, error)
	ListWithdrawalsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.WithdrawalRequest, error)
	ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.WithdrawalRequest, error)

	// Investment plans
	CreatePlan(ctx context.Context, plan *models.InvestmentPlan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*models.InvestmentPlan, error)
	ListPlans(ctx context.Context, onlyActive bool) ([]models.InvestmentPlan, error)
	UpdatePlan(ctx context.Context, plan *models.InvestmentPlan) (int64, error)
	DeletePlan(ctx context.Context, id uuid.UUID) (int64, error)
	CountInvestmentsByPlan(ctx context.Context, planID uuid.UUID) (int64, error)

	// Investments
	CreateInvestment(ctx context.Context, inv *models.Investment) error
	GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error)
	ListInvestmentsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.Investment, error)
	// ListMaturedInvestments returns active, unpaid investments whose end
	// date has passed. Candidates are advisory: the conditional
	// MarkInvestmentPaid is what guarantees exactly-once payout.
	ListMaturedInvestments(ctx context.Context, now time.Time, limit int32) ([]models.Investment, error)
	// MarkInvestmentPaid flips status to completed and is_profit_paid to
	// true only if the investment is still active and unpaid. Returns the
	// number of rows changed; zero means another sweep already paid it.
	MarkInvestmentPaid(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)

	// Audit trail
	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error

	// Reconciliation
	ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error)

	// Idempotency keys
	GetIdempotencyKey(ctx context.Context, key string) (*IdempotencyRecord, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (bool, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (*IdempotencyRecord, error)
}

type ResolveLedgerEntryParams struct {
	ID            uuid.UUID
	Status        string
	BalanceBefore int64
	BalanceAfter  int64
}

type ListLedgerEntriesParams struct {
	AccountID uuid.UUID
	Kind      string // empty = all kinds
	Status    string // empty = all statuses
	Limit     int32
	Offset    int32
}

type ResolveRequestParams struct {
	ID          uuid.UUID
	Status      string
	ProcessedBy uuid.UUID
	ProcessedAt time.Time
	AdminNotes  *string
	TxHash      *string
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  string
	NextState  string
	Metadata   []byte
}

// BalanceDrift reports an account whose stored balance disagrees with the
// net of its ledger entries.
type BalanceDrift struct {
	AccountID uuid.UUID
	Balance   int64
	LedgerNet int64
}

type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
}

type ReserveIdempotencyKeyParams struct {
	Key         string
	RequestHash string
	Method      string
	Path        string
}

type FinalizeIdempotencyKeyParams struct {
	Key            string
	RequestHash    string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
}

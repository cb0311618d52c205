package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidolu/cryptovest/internal/domain"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Account holds a user's financial state. Balance is mutated only through
// the ledger service and never goes below zero.
type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance_micros"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is the immutable record of one balance change. Amount, kind
// and account never change after creation; only status and the
// before/after snapshots are reconciled when a pending entry resolves.
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Kind          string     `json:"kind"`   // deposit, investment, profit, withdrawal
	Amount        int64      `json:"amount_micros"`
	Status        string     `json:"status"` // pending, completed, failed
	Description   string     `json:"description"`
	ReferenceID   *uuid.UUID `json:"reference_id,omitempty"`
	ReferenceKind string     `json:"reference_kind,omitempty"`
	BalanceBefore int64      `json:"balance_before_micros"`
	BalanceAfter  int64      `json:"balance_after_micros"`
	CreatedAt     time.Time  `json:"created_at"`
}

type DepositRequest struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Amount        int64      `json:"amount_micros"`
	Currency      string     `json:"currency"`
	WalletAddress string     `json:"wallet_address"` // system-owned, per currency
	Status        string     `json:"status"`
	TxHash        *string    `json:"tx_hash,omitempty"`
	AdminNotes    *string    `json:"admin_notes,omitempty"`
	ProcessedBy   *uuid.UUID `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type WithdrawalRequest struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Amount        int64      `json:"amount_micros"`
	Currency      string     `json:"currency"`
	WalletAddress string     `json:"wallet_address"` // user destination
	Status        string     `json:"status"`
	TxHash        *string    `json:"tx_hash,omitempty"`
	AdminNotes    *string    `json:"admin_notes,omitempty"`
	ProcessedBy   *uuid.UUID `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type InvestmentPlan struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	MinAmount     int64           `json:"min_amount_micros"`
	MaxAmount     int64           `json:"max_amount_micros"`
	ROI           decimal.Decimal `json:"roi_percent"`
	DurationHours int32           `json:"duration_hours"`
	Description   string          `json:"description"`
	IsActive      bool            `json:"is_active"`
	Features      []string        `json:"features"`
	Popularity    int32           `json:"popularity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Investment snapshots the plan's ROI and duration at creation time so
// later plan edits never drift an open position. ProfitAmount is
// persisted for the same reason: the sweep pays out exactly what was
// promised, without recomputation.
type Investment struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	PlanID       uuid.UUID       `json:"plan_id"`
	PlanName     string          `json:"plan_name"`
	Amount       int64           `json:"amount_micros"`
	ROI          decimal.Decimal `json:"roi_percent"`
	ProfitAmount int64           `json:"profit_amount_micros"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       string          `json:"status"`
	IsProfitPaid bool            `json:"is_profit_paid"`
	Reinvested   bool            `json:"reinvested"`
	ParentID     *uuid.UUID      `json:"parent_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TotalReturn is principal plus the snapshotted profit.
func (i *Investment) TotalReturn() int64 {
	return i.Amount + i.ProfitAmount
}

// TimeRemaining reports how long until maturity, zero once matured or closed.
func (i *Investment) TimeRemaining(now time.Time) time.Duration {
	if i.Status != domain.InvestmentStatusActive {
		return 0
	}
	if remaining := i.EndDate.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// ProgressPercent reports elapsed progress through the term, clamped to [0,100].
func (i *Investment) ProgressPercent(now time.Time) float64 {
	total := i.EndDate.Sub(i.StartDate)
	if total <= 0 {
		return 100
	}
	pct := float64(now.Sub(i.StartDate)) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

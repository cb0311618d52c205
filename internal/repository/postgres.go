package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidolu/cryptovest/internal/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// query set run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production Store backed by a pgx connection pool.
type PostgresStore struct {
	db      *pgxpool.Pool
	queries *pgQueries
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:      db,
		queries: &pgQueries{db: db},
	}
}

func (s *PostgresStore) Queries() Queries {
	return s.queries
}

const (
	txMaxAttempts = 3
	txBackoffBase = 50 * time.Millisecond
)

// RunInTx executes fn within a database transaction. Serialization
// failures and deadlocks are retried with backoff; when retries are
// exhausted the error surfaces as models.ErrConcurrencyConflict.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	var lastErr error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		lastErr = s.runOnce(ctx, fn)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txBackoffBase * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", models.ErrConcurrencyConflict, lastErr)
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgQueries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// pgQueries implements Queries over a pool or transaction.
type pgQueries struct {
	db DBTX
}

// ---- accounts ----

func (q *pgQueries) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, user_id, balance_micros, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, account.ID, account.UserID, account.Balance).Scan(&account.CreatedAt); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

const accountColumns = `id, user_id, balance_micros, created_at`

func (q *pgQueries) scanAccount(row pgx.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.UserID, &account.Balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func (q *pgQueries) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (q *pgQueries) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return q.scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID))
}

func (q *pgQueries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgQueries) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET balance_micros = $1 WHERE id = $2`, balance, id)
	if err != nil {
		return 0, fmt.Errorf("update account balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- ledger entries ----

func (q *pgQueries) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
			(id, account_id, kind, amount_micros, status, description, reference_id, reference_kind, balance_before_micros, balance_after_micros, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query,
		entry.ID, entry.AccountID, entry.Kind, entry.Amount, entry.Status,
		entry.Description, entry.ReferenceID, entry.ReferenceKind,
		entry.BalanceBefore, entry.BalanceAfter,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}
	return nil
}

const ledgerColumns = `id, account_id, kind, amount_micros, status, description, reference_id, reference_kind, balance_before_micros, balance_after_micros, created_at`

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	err := row.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Status,
		&e.Description, &e.ReferenceID, &e.ReferenceKind,
		&e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}

func (q *pgQueries) GetLedgerEntryByReference(ctx context.Context, referenceID uuid.UUID, referenceKind string) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE reference_id = $1 AND reference_kind = $2`
	return scanLedgerEntry(q.db.QueryRow(ctx, query, referenceID, referenceKind))
}

func (q *pgQueries) ResolveLedgerEntry(ctx context.Context, arg ResolveLedgerEntryParams) (int64, error) {
	query := `
		UPDATE ledger_entries
		SET status = $1, balance_before_micros = $2, balance_after_micros = $3
		WHERE id = $4 AND status = 'pending'
	`
	tag, err := q.db.Exec(ctx, query, arg.Status, arg.BalanceBefore, arg.BalanceAfter, arg.ID)
	if err != nil {
		return 0, fmt.Errorf("resolve ledger entry: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *pgQueries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE account_id = $1
		  AND ($2 = '' OR kind = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := q.db.Query(ctx, query, arg.AccountID, arg.Kind, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (q *pgQueries) CountLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ledger_entries
		WHERE account_id = $1
		  AND ($2 = '' OR kind = $2)
		  AND ($3 = '' OR status = $3)
	`
	var count int64
	if err := q.db.QueryRow(ctx, query, arg.AccountID, arg.Kind, arg.Status).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return count, nil
}

// ---- deposit requests ----

func (q *pgQueries) CreateDepositRequest(ctx context.Context, req *models.DepositRequest) error {
	query := `
		INSERT INTO deposit_requests (id, account_id, amount_micros, currency, wallet_address, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, req.ID, req.AccountID, req.Amount, req.Currency, req.WalletAddress, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("create deposit request: %w", err)
	}
	return nil
}

const depositColumns = `id, account_id, amount_micros, currency, wallet_address, status, tx_hash, admin_notes, processed_by, processed_at, created_at`

func scanDeposit(row pgx.Row) (*models.DepositRequest, error) {
	d := &models.DepositRequest{}
	err := row.Scan(&d.ID, &d.AccountID, &d.Amount, &d.Currency, &d.WalletAddress,
		&d.Status, &d.TxHash, &d.AdminNotes, &d.ProcessedBy, &d.ProcessedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan deposit request: %w", err)
	}
	return d, nil
}

func (q *pgQueries) GetDepositRequest(ctx context.Context, id uuid.UUID) (*models.DepositRequest, error) {
	return scanDeposit(q.db.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposit_requests WHERE id = $1`, id))
}

func (q *pgQueries) GetDepositRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.DepositRequest, error) {
	return scanDeposit(q.db.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposit_requests WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgQueries) ResolveDepositRequest(ctx context.Context, arg ResolveRequestParams) (int64, error) {
	query := `
		UPDATE deposit_requests
		SET status = $1, processed_by = $2, processed_at = $3, admin_notes = $4, tx_hash = $5
		WHERE id = $6 AND status = 'pending'
	`
	tag, err := q.db.Exec(ctx, query, arg.Status, arg.ProcessedBy, arg.ProcessedAt, arg.AdminNotes, arg.TxHash, arg.ID)
	if err != nil {
		return 0, fmt.Errorf("resolve deposit request: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *pgQueries) listDeposits(ctx context.Context, query string, args ...any) ([]models.DepositRequest, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposit requests: %w", err)
	}
	defer rows.Close()

	var deposits []models.DepositRequest
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *d)
	}
	return deposits, rows.Err()
}

func (q *pgQueries) ListDepositsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.DepositRequest, error) {
	query := `SELECT ` + depositColumns + ` FROM deposit_requests WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return q.listDeposits(ctx, query, accountID, limit, offset)
}

func (q *pgQueries) ListDepositsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.DepositRequest, error) {
	query := `SELECT ` + depositColumns + ` FROM deposit_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	return q.listDeposits(ctx, query, status, limit, offset)
}

// ---- withdrawal requests ----

func (q *pgQueries) CreateWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (id, account_id, amount_micros, currency, wallet_address, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, req.ID, req.AccountID, req.Amount, req.Currency, req.WalletAddress, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("create withdrawal request: %w", err)
	}
	return nil
}

const withdrawalColumns = `id, account_id, amount_micros, currency, wallet_address, status, tx_hash, admin_notes, processed_by, processed_at, created_at`

func scanWithdrawal(row pgx.Row) (*models.WithdrawalRequest, error) {
	w := &models.WithdrawalRequest{}
	err := row.Scan(&w.ID, &w.AccountID, &w.Amount, &w.Currency, &w.WalletAddress,
		&w.Status, &w.TxHash, &w.AdminNotes, &w.ProcessedBy, &w.ProcessedAt, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan withdrawal request: %w", err)
	}
	return w, nil
}

func (q *pgQueries) GetWithdrawalRequest(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
}

func (q *pgQueries) GetWithdrawalRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgQueries) ResolveWithdrawalRequest(ctx context.Context, arg ResolveRequestParams) (int64, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, processed_by = $2, processed_at = $3, admin_notes = $4, tx_hash = $5
		WHERE id = $6 AND status = 'pending'
	`
	tag, err := q.db.Exec(ctx, query, arg.Status, arg.ProcessedBy, arg.ProcessedAt, arg.AdminNotes, arg.TxHash, arg.ID)
	if err != nil {
		return 0, fmt.Errorf("resolve withdrawal request: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *pgQueries) listWithdrawals(ctx context.Context, query string, args ...any) ([]models.WithdrawalRequest, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, *w)
	}
	return withdrawals, rows.Err()
}

func (q *pgQueries) ListWithdrawalsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return q.listWithdrawals(ctx, query, accountID, limit, offset)
}

func (q *pgQueries) ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	return q.listWithdrawals(ctx, query, status, limit, offset)
}

// ---- investment plans ----

func (q *pgQueries) CreatePlan(ctx context.Context, plan *models.InvestmentPlan) error {
	query := `
		INSERT INTO investment_plans
			(id, name, min_amount_micros, max_amount_micros, roi_percent, duration_hours, description, is_active, features, popularity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRow(ctx, query,
		plan.ID, plan.Name, plan.MinAmount, plan.MaxAmount, plan.ROI,
		plan.DurationHours, plan.Description, plan.IsActive, plan.Features, plan.Popularity,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create investment plan: %w", err)
	}
	return nil
}

const planColumns = `id, name, min_amount_micros, max_amount_micros, roi_percent, duration_hours, description, is_active, features, popularity, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.InvestmentPlan, error) {
	p := &models.InvestmentPlan{}
	err := row.Scan(&p.ID, &p.Name, &p.MinAmount, &p.MaxAmount, &p.ROI,
		&p.DurationHours, &p.Description, &p.IsActive, &p.Features, &p.Popularity,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan investment plan: %w", err)
	}
	return p, nil
}

func (q *pgQueries) GetPlan(ctx context.Context, id uuid.UUID) (*models.InvestmentPlan, error) {
	return scanPlan(q.db.QueryRow(ctx, `SELECT `+planColumns+` FROM investment_plans WHERE id = $1`, id))
}

func (q *pgQueries) ListPlans(ctx context.Context, onlyActive bool) ([]models.InvestmentPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM investment_plans
		WHERE ($1 = FALSE OR is_active = TRUE)
		ORDER BY popularity DESC, name ASC
	`
	rows, err := q.db.Query(ctx, query, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("list investment plans: %w", err)
	}
	defer rows.Close()

	var plans []models.InvestmentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (q *pgQueries) UpdatePlan(ctx context.Context, plan *models.InvestmentPlan) (int64, error) {
	query := `
		UPDATE investment_plans
		SET name = $1, min_amount_micros = $2, max_amount_micros = $3, roi_percent = $4,
		    duration_hours = $5, description = $6, is_active = $7, features = $8,
		    popularity = $9, updated_at = NOW()
		WHERE id = $10
	`
	tag, err := q.db.Exec(ctx, query,
		plan.Name, plan.MinAmount, plan.MaxAmount, plan.ROI,
		plan.DurationHours, plan.Description, plan.IsActive, plan.Features,
		plan.Popularity, plan.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("update investment plan: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *pgQueries) DeletePlan(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM investment_plans WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete investment plan: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *pgQueries) CountInvestmentsByPlan(ctx context.Context, planID uuid.UUID) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM investments WHERE plan_id = $1`, planID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count investments by plan: %w", err)
	}
	return count, nil
}

// ---- investments ----

func (q *pgQueries) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	query := `
		INSERT INTO investments
			(id, account_id, plan_id, plan_name, amount_micros, roi_percent, profit_amount_micros,
			 start_date, end_date, status, is_profit_paid, reinvested, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRow(ctx, query,
		inv.ID, inv.AccountID, inv.PlanID, inv.PlanName, inv.Amount, inv.ROI, inv.ProfitAmount,
		inv.StartDate, inv.EndDate, inv.Status, inv.IsProfitPaid, inv.Reinvested, inv.ParentID,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create investment: %w", err)
	}
	return nil
}

const investmentColumns = `id, account_id, plan_id, plan_name, amount_micros, roi_percent, profit_amount_micros, start_date, end_date, status, is_profit_paid, reinvested, parent_id, created_at, updated_at`

func scanInvestment(row pgx.Row) (*models.Investment, error) {
	inv := &models.Investment{}
	err := row.Scan(&inv.ID, &inv.AccountID, &inv.PlanID, &inv.PlanName,
		&inv.Amount, &inv.ROI, &inv.ProfitAmount,
		&inv.StartDate, &inv.EndDate, &inv.Status, &inv.IsProfitPaid,
		&inv.Reinvested, &inv.ParentID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan investment: %w", err)
	}
	return inv, nil
}

func (q *pgQueries) GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	return scanInvestment(q.db.QueryRow(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id))
}

func (q *pgQueries) ListInvestmentsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func (q *pgQueries) ListMaturedInvestments(ctx context.Context, now time.Time, limit int32) ([]models.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE status = 'active' AND is_profit_paid = FALSE AND end_date <= $1
		ORDER BY end_date ASC
		LIMIT $2
	`
	rows, err := q.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list matured investments: %w", err)
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func collectInvestments(rows pgx.Rows) ([]models.Investment, error) {
	var investments []models.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		investments = append(investments, *inv)
	}
	return investments, rows.Err()
}

func (q *pgQueries) MarkInvestmentPaid(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE investments
		SET status = 'completed', is_profit_paid = TRUE, updated_at = $1
		WHERE id = $2 AND status = 'active' AND is_profit_paid = FALSE
	`
	tag, err := q.db.Exec(ctx, query, now, id)
	if err != nil {
		return 0, fmt.Errorf("mark investment paid: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- audit trail ----

func (q *pgQueries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	query := `
		INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := q.db.Exec(ctx, query, arg.EntityType, arg.EntityID, arg.ActorID, arg.Action,
		textParam(arg.PrevState), textParam(arg.NextState), arg.Metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ---- reconciliation ----

// ListBalanceDrift compares stored balances against the ledger net per
// account: completed deposit/profit entries add, completed
// investment/withdrawal entries subtract, and pending withdrawal entries
// subtract too because the hold is applied at submission.
func (q *pgQueries) ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	query := `
		SELECT a.id, a.balance_micros, COALESCE(SUM(
			CASE
				WHEN e.status = 'completed' AND e.kind IN ('deposit', 'profit') THEN e.amount_micros
				WHEN e.status = 'completed' AND e.kind IN ('investment', 'withdrawal') THEN -e.amount_micros
				WHEN e.status = 'pending' AND e.kind = 'withdrawal' THEN -e.amount_micros
				ELSE 0
			END
		), 0) AS ledger_net
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		GROUP BY a.id, a.balance_micros
		HAVING a.balance_micros <> COALESCE(SUM(
			CASE
				WHEN e.status = 'completed' AND e.kind IN ('deposit', 'profit') THEN e.amount_micros
				WHEN e.status = 'completed' AND e.kind IN ('investment', 'withdrawal') THEN -e.amount_micros
				WHEN e.status = 'pending' AND e.kind = 'withdrawal' THEN -e.amount_micros
				ELSE 0
			END
		), 0)
	`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list balance drift: %w", err)
	}
	defer rows.Close()

	var drifts []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Balance, &d.LedgerNet); err != nil {
			return nil, fmt.Errorf("scan balance drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// ---- idempotency keys ----

func (q *pgQueries) GetIdempotencyKey(ctx context.Context, key string) (*IdempotencyRecord, error) {
	query := `
		SELECT idempotency_key, request_hash, method, path, response_status, response_body, content_type, in_progress, created_at
		FROM idempotency_keys WHERE idempotency_key = $1
	`
	rec := &IdempotencyRecord{}
	err := q.db.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.RequestHash, &rec.Method, &rec.Path,
		&rec.ResponseStatus, &rec.ResponseBody, &rec.ContentType, &rec.InProgress, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return rec, nil
}

func (q *pgQueries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	tag, err := q.db.Exec(ctx, query, arg.Key, arg.RequestHash, arg.Method, arg.Path)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *pgQueries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (*IdempotencyRecord, error) {
	query := `
		UPDATE idempotency_keys
		SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE
		WHERE idempotency_key = $4 AND request_hash = $5
		RETURNING idempotency_key, request_hash, method, path, response_status, response_body, content_type, in_progress, created_at
	`
	rec := &IdempotencyRecord{}
	err := q.db.QueryRow(ctx, query, arg.ResponseStatus, arg.ResponseBody, arg.ContentType, arg.Key, arg.RequestHash).
		Scan(&rec.Key, &rec.RequestHash, &rec.Method, &rec.Path,
			&rec.ResponseStatus, &rec.ResponseBody, &rec.ContentType, &rec.InProgress, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	return rec, nil
}

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/models"
)

// MemoryStore is an in-memory Store used by unit tests and local
// development. Transactions are serialized by a store-wide mutex and made
// atomic by snapshotting all state before fn runs and restoring it if fn
// fails. Semantics match the Postgres store; only the contention
// granularity differs.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	accounts    map[uuid.UUID]models.Account
	entries     []models.LedgerEntry
	deposits    map[uuid.UUID]models.DepositRequest
	withdrawals map[uuid.UUID]models.WithdrawalRequest
	plans       map[uuid.UUID]models.InvestmentPlan
	investments map[uuid.UUID]models.Investment
	auditLog    []InsertAuditLogParams
	idemKeys    map[string]IdempotencyRecord
}

func newMemState() *memState {
	return &memState{
		accounts:    make(map[uuid.UUID]models.Account),
		deposits:    make(map[uuid.UUID]models.DepositRequest),
		withdrawals: make(map[uuid.UUID]models.WithdrawalRequest),
		plans:       make(map[uuid.UUID]models.InvestmentPlan),
		investments: make(map[uuid.UUID]models.Investment),
		idemKeys:    make(map[string]IdempotencyRecord),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.entries = append([]models.LedgerEntry(nil), s.entries...)
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.investments {
		c.investments[k] = v
	}
	c.auditLog = append([]InsertAuditLogParams(nil), s.auditLog...)
	for k, v := range s.idemKeys {
		c.idemKeys[k] = v
	}
	return c
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) Queries() Queries {
	return &memQueries{store: s, locked: false}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memQueries{store: s, locked: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type memQueries struct {
	store  *MemoryStore
	locked bool // true inside RunInTx: the store mutex is already held
}

func (q *memQueries) acquire() func() {
	if q.locked {
		return func() {}
	}
	q.store.mu.Lock()
	return q.store.mu.Unlock
}

// ---- accounts ----

func (q *memQueries) CreateAccount(ctx context.Context, account *models.Account) error {
	defer q.acquire()()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	q.store.state.accounts[account.ID] = *account
	return nil
}

func (q *memQueries) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	defer q.acquire()()
	account, ok := q.store.state.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &account, nil
}

func (q *memQueries) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	defer q.acquire()()
	for _, account := range q.store.state.accounts {
		if account.UserID == userID {
			a := account
			return &a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (q *memQueries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.GetAccount(ctx, id)
}

func (q *memQueries) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error) {
	defer q.acquire()()
	account, ok := q.store.state.accounts[id]
	if !ok {
		return 0, nil
	}
	account.Balance = balance
	q.store.state.accounts[id] = account
	return 1, nil
}

// ---- ledger entries ----

func (q *memQueries) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	defer q.acquire()()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	q.store.state.entries = append(q.store.state.entries, *entry)
	return nil
}

func (q *memQueries) GetLedgerEntryByReference(ctx context.Context, referenceID uuid.UUID, referenceKind string) (*models.LedgerEntry, error) {
	defer q.acquire()()
	for i := range q.store.state.entries {
		e := q.store.state.entries[i]
		if e.ReferenceID != nil && *e.ReferenceID == referenceID && e.ReferenceKind == referenceKind {
			return &e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (q *memQueries) ResolveLedgerEntry(ctx context.Context, arg ResolveLedgerEntryParams) (int64, error) {
	defer q.acquire()()
	for i := range q.store.state.entries {
		e := &q.store.state.entries[i]
		if e.ID == arg.ID && e.Status == domain.EntryStatusPending {
			e.Status = arg.Status
			e.BalanceBefore = arg.BalanceBefore
			e.BalanceAfter = arg.BalanceAfter
			return 1, nil
		}
	}
	return 0, nil
}

func (q *memQueries) matchEntries(arg ListLedgerEntriesParams) []models.LedgerEntry {
	var matched []models.LedgerEntry
	for _, e := range q.store.state.entries {
		if e.AccountID != arg.AccountID {
			continue
		}
		if arg.Kind != "" && e.Kind != arg.Kind {
			continue
		}
		if arg.Status != "" && e.Status != arg.Status {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

func (q *memQueries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]models.LedgerEntry, error) {
	defer q.acquire()()
	matched := q.matchEntries(arg)
	return paginate(matched, arg.Limit, arg.Offset), nil
}

func (q *memQueries) CountLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) (int64, error) {
	defer q.acquire()()
	return int64(len(q.matchEntries(arg))), nil
}

// ---- deposit requests ----

func (q *memQueries) CreateDepositRequest(ctx context.Context, req *models.DepositRequest) error {
	defer q.acquire()()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	q.store.state.deposits[req.ID] = *req
	return nil
}

func (q *memQueries) GetDepositRequest(ctx context.Context, id uuid.UUID) (*models.DepositRequest, error) {
	defer q.acquire()()
	d, ok := q.store.state.deposits[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (q *memQueries) GetDepositRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.DepositRequest, error) {
	return q.GetDepositRequest(ctx, id)
}

func (q *memQueries) ResolveDepositRequest(ctx context.Context, arg ResolveRequestParams) (int64, error) {
	defer q.acquire()()
	d, ok := q.store.state.deposits[arg.ID]
	if !ok || d.Status != domain.RequestStatusPending {
		return 0, nil
	}
	d.Status = arg.Status
	processedBy := arg.ProcessedBy
	processedAt := arg.ProcessedAt
	d.ProcessedBy = &processedBy
	d.ProcessedAt = &processedAt
	d.AdminNotes = arg.AdminNotes
	d.TxHash = arg.TxHash
	q.store.state.deposits[arg.ID] = d
	return 1, nil
}

func (q *memQueries) ListDepositsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.DepositRequest, error) {
	defer q.acquire()()
	var matched []models.DepositRequest
	for _, d := range q.store.state.deposits {
		if d.AccountID == accountID {
			matched = append(matched, d)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), nil
}

func (q *memQueries) ListDepositsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.DepositRequest, error) {
	defer q.acquire()()
	var matched []models.DepositRequest
	for _, d := range q.store.state.deposits {
		if d.Status == status {
			matched = append(matched, d)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), nil
}

// ---- withdrawal requests ----

func (q *memQueries) CreateWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error {
	defer q.acquire()()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	q.store.state.withdrawals[req.ID] = *req
	return nil
}

func (q *memQueries) GetWithdrawalRequest(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	defer q.acquire()()
	w, ok := q.store.state.withdrawals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &w, nil
}

func (q *memQueries) GetWithdrawalRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return q.GetWithdrawalRequest(ctx, id)
}

func (q *memQueries) ResolveWithdrawalRequest(ctx context.Context, arg ResolveRequestParams) (int64, error) {
	defer q.acquire()()
	w, ok := q.store.state.withdrawals[arg.ID]
	if !ok || w.Status != domain.RequestStatusPending {
		return 0, nil
	}
	w.Status = arg.Status
	processedBy := arg.ProcessedBy
	processedAt := arg.ProcessedAt
	w.ProcessedBy = &processedBy
	w.ProcessedAt = &processedAt
	w.AdminNotes = arg.AdminNotes
	w.TxHash = arg.TxHash
	q.store.state.withdrawals[arg.ID] = w
	return 1, nil
}

func (q *memQueries) ListWithdrawalsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.WithdrawalRequest, error) {
	defer q.acquire()()
	var matched []models.WithdrawalRequest
	for _, w := range q.store.state.withdrawals {
		if w.AccountID == accountID {
			matched = append(matched, w)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), nil
}

func (q *memQueries) ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.WithdrawalRequest, error) {
	defer q.acquire()()
	var matched []models.WithdrawalRequest
	for _, w := range q.store.state.withdrawals {
		if w.Status == status {
			matched = append(matched, w)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), nil
}

// ---- investment plans ----

func (q *memQueries) CreatePlan(ctx context.Context, plan *models.InvestmentPlan) error {
	defer q.acquire()()
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	q.store.state.plans[plan.ID] = *plan
	return nil
}

func (q *memQueries) GetPlan(ctx context.Context, id uuid.UUID) (*models.InvestmentPlan, error) {
	defer q.acquire()()
	p, ok := q.store.state.plans[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (q *memQueries) ListPlans(ctx context.Context, onlyActive bool) ([]models.InvestmentPlan, error) {
	defer q.acquire()()
	var plans []models.InvestmentPlan
	for _, p := range q.store.state.plans {
		if onlyActive && !p.IsActive {
			continue
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Popularity != plans[j].Popularity {
			return plans[i].Popularity > plans[j].Popularity
		}
		return strings.Compare(plans[i].Name, plans[j].Name) < 0
	})
	return plans, nil
}

func (q *memQueries) UpdatePlan(ctx context.Context, plan *models.InvestmentPlan) (int64, error) {
	defer q.acquire()()
	existing, ok := q.store.state.plans[plan.ID]
	if !ok {
		return 0, nil
	}
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = time.Now().UTC()
	q.store.state.plans[plan.ID] = *plan
	return 1, nil
}

func (q *memQueries) DeletePlan(ctx context.Context, id uuid.UUID) (int64, error) {
	defer q.acquire()()
	if _, ok := q.store.state.plans[id]; !ok {
		return 0, nil
	}
	delete(q.store.state.plans, id)
	return 1, nil
}

func (q *memQueries) CountInvestmentsByPlan(ctx context.Context, planID uuid.UUID) (int64, error) {
	defer q.acquire()()
	var count int64
	for _, inv := range q.store.state.investments {
		if inv.PlanID == planID {
			count++
		}
	}
	return count, nil
}

// ---- investments ----

func (q *memQueries) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	defer q.acquire()()
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	q.store.state.investments[inv.ID] = *inv
	return nil
}

func (q *memQueries) GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	defer q.acquire()()
	inv, ok := q.store.state.investments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &inv, nil
}

func (q *memQueries) ListInvestmentsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.Investment, error) {
	defer q.acquire()()
	var matched []models.Investment
	for _, inv := range q.store.state.investments {
		if inv.AccountID == accountID {
			matched = append(matched, inv)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), nil
}

func (q *memQueries) ListMaturedInvestments(ctx context.Context, now time.Time, limit int32) ([]models.Investment, error) {
	defer q.acquire()()
	var matched []models.Investment
	for _, inv := range q.store.state.investments {
		if inv.Status == domain.InvestmentStatusActive && !inv.IsProfitPaid && !inv.EndDate.After(now) {
			matched = append(matched, inv)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].EndDate.Before(matched[j].EndDate) })
	return paginate(matched, limit, 0), nil
}

func (q *memQueries) MarkInvestmentPaid(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	defer q.acquire()()
	inv, ok := q.store.state.investments[id]
	if !ok || inv.Status != domain.InvestmentStatusActive || inv.IsProfitPaid {
		return 0, nil
	}
	inv.Status = domain.InvestmentStatusCompleted
	inv.IsProfitPaid = true
	inv.UpdatedAt = now
	q.store.state.investments[id] = inv
	return 1, nil
}

// ---- audit trail ----

func (q *memQueries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	defer q.acquire()()
	q.store.state.auditLog = append(q.store.state.auditLog, arg)
	return nil
}

// AuditLog returns a copy of the recorded audit entries, for tests.
func (s *MemoryStore) AuditLog() []InsertAuditLogParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InsertAuditLogParams(nil), s.state.auditLog...)
}

// ---- reconciliation ----

func (q *memQueries) ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	defer q.acquire()()
	nets := make(map[uuid.UUID]int64, len(q.store.state.accounts))
	for _, e := range q.store.state.entries {
		switch {
		case e.Status == domain.EntryStatusCompleted && (e.Kind == domain.EntryKindDeposit || e.Kind == domain.EntryKindProfit):
			nets[e.AccountID] += e.Amount
		case e.Status == domain.EntryStatusCompleted && (e.Kind == domain.EntryKindInvestment || e.Kind == domain.EntryKindWithdrawal):
			nets[e.AccountID] -= e.Amount
		case e.Status == domain.EntryStatusPending && e.Kind == domain.EntryKindWithdrawal:
			nets[e.AccountID] -= e.Amount
		}
	}
	var drifts []BalanceDrift
	for id, account := range q.store.state.accounts {
		if account.Balance != nets[id] {
			drifts = append(drifts, BalanceDrift{AccountID: id, Balance: account.Balance, LedgerNet: nets[id]})
		}
	}
	return drifts, nil
}

// ---- idempotency keys ----

func (q *memQueries) GetIdempotencyKey(ctx context.Context, key string) (*IdempotencyRecord, error) {
	defer q.acquire()()
	rec, ok := q.store.state.idemKeys[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (q *memQueries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (bool, error) {
	defer q.acquire()()
	if _, ok := q.store.state.idemKeys[arg.Key]; ok {
		return false, nil
	}
	q.store.state.idemKeys[arg.Key] = IdempotencyRecord{
		Key:         arg.Key,
		RequestHash: arg.RequestHash,
		Method:      arg.Method,
		Path:        arg.Path,
		InProgress:  true,
		CreatedAt:   time.Now().UTC(),
	}
	return true, nil
}

func (q *memQueries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (*IdempotencyRecord, error) {
	defer q.acquire()()
	rec, ok := q.store.state.idemKeys[arg.Key]
	if !ok || rec.RequestHash != arg.RequestHash {
		return nil, models.ErrNotFound
	}
	rec.ResponseStatus = arg.ResponseStatus
	rec.ResponseBody = arg.ResponseBody
	rec.ContentType = arg.ContentType
	rec.InProgress = false
	q.store.state.idemKeys[arg.Key] = rec
	return &rec, nil
}

func paginate[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

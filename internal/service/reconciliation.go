package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/observability"
	"github.com/davidolu/cryptovest/internal/repository"
)

// ReconciliationService cross-checks every stored balance against the
// net of that account's ledger entries. Drift means an invariant was
// violated somewhere; it is reported, never auto-corrected.
type ReconciliationService struct {
	store repository.Store
}

func NewReconciliationService(store repository.Store) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run returns the accounts whose balance disagrees with their ledger.
// An empty slice means every account reconciles.
func (s *ReconciliationService) Run(ctx context.Context) ([]repository.BalanceDrift, error) {
	drift, err := s.store.Queries().ListBalanceDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("list balance drift: %w", err)
	}
	for _, d := range drift {
		zap.L().Error("account balance does not reconcile with ledger",
			zap.String("account_id", d.AccountID.String()),
			zap.Int64("balance_micros", d.Balance),
			zap.Int64("ledger_net_micros", d.LedgerNet),
			zap.Int64("drift_micros", d.Balance-d.LedgerNet))
	}
	observability.SetBalanceDrift(len(drift))
	return drift, nil
}

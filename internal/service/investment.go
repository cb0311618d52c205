package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/observability"
	"github.com/davidolu/cryptovest/internal/repository"
)

// InvestmentService opens positions against active plans and pays matured
// ones out. Plan terms (ROI, duration, the computed profit) are copied
// onto the investment at creation so that later plan edits cannot change
// what an open position returns.
type InvestmentService struct {
	store  repository.Store
	ledger *LedgerService
	audit  *AuditService
	clock  clock.Clock
}

func NewInvestmentService(store repository.Store, ledger *LedgerService, clk clock.Clock) *InvestmentService {
	return &InvestmentService{
		store:  store,
		ledger: ledger,
		audit:  NewAuditService(),
		clock:  clk,
	}
}

// CreateInvestmentCmd is the validated input for opening a position.
// ParentID marks a reinvestment of a completed position's proceeds.
type CreateInvestmentCmd struct {
	AccountID uuid.UUID
	PlanID    uuid.UUID
	Amount    int64 // micros
	ParentID  *uuid.UUID
}

// Create debits the principal, snapshots the plan terms and records a
// completed investment entry, all in one transaction. The debit and the
// entry abort together with the position on insufficient balance.
func (s *InvestmentService) Create(ctx context.Context, cmd CreateInvestmentCmd) (*models.Investment, error) {
	if cmd.Amount <= 0 {
		return nil, fmt.Errorf("investment amount must be positive: %w", models.ErrValidation)
	}

	var created *models.Investment
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		plan, err := q.GetPlan(ctx, cmd.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		if !plan.IsActive {
			return fmt.Errorf("plan %s is inactive: %w", plan.Name, models.ErrPlanInactive)
		}
		if cmd.Amount < plan.MinAmount || cmd.Amount > plan.MaxAmount {
			return fmt.Errorf("amount must be between %d and %d micros for plan %s: %w",
				plan.MinAmount, plan.MaxAmount, plan.Name, models.ErrAmountOutOfRange)
		}

		if cmd.ParentID != nil {
			parent, err := q.GetInvestment(ctx, *cmd.ParentID)
			if err != nil {
				return fmt.Errorf("load parent investment: %w", err)
			}
			if parent.AccountID != cmd.AccountID {
				return fmt.Errorf("parent investment belongs to another account: %w", models.ErrValidation)
			}
			if parent.Status != domain.InvestmentStatusCompleted {
				return fmt.Errorf("parent investment %s is %s, only completed positions can be reinvested: %w",
					parent.ID, parent.Status, models.ErrValidation)
			}
		}

		before, after, err := s.ledger.ApplyBalanceChange(ctx, q, cmd.AccountID, -cmd.Amount)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		inv := &models.Investment{
			ID:           uuid.New(),
			AccountID:    cmd.AccountID,
			PlanID:       plan.ID,
			PlanName:     plan.Name,
			Amount:       cmd.Amount,
			ROI:          plan.ROI,
			ProfitAmount: domain.ProfitMicros(cmd.Amount, plan.ROI),
			StartDate:    now,
			EndDate:      now.Add(time.Duration(plan.DurationHours) * time.Hour),
			Status:       domain.InvestmentStatusActive,
			Reinvested:   cmd.ParentID != nil,
			ParentID:     cmd.ParentID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := q.CreateInvestment(ctx, inv); err != nil {
			return err
		}

		_, err = s.ledger.RecordEntry(ctx, q, RecordEntryParams{
			AccountID:     cmd.AccountID,
			Kind:          domain.EntryKindInvestment,
			Amount:        cmd.Amount,
			Status:        domain.EntryStatusCompleted,
			Description:   fmt.Sprintf("Investment in %s plan", plan.Name),
			ReferenceID:   inv.ID,
			ReferenceKind: domain.RefKindInvestment,
			BalanceBefore: before,
			BalanceAfter:  after,
		})
		if err != nil {
			return err
		}

		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns a single investment.
func (s *InvestmentService) Get(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	return s.store.Queries().GetInvestment(ctx, id)
}

// ListByAccount returns the account's investments, newest first.
func (s *InvestmentService) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]models.Investment, error) {
	return s.store.Queries().ListInvestmentsByAccount(ctx, accountID, clampLimit(limit), offset)
}

// SweepMatured pays out every active investment whose term has elapsed
// and returns how many were paid. Each candidate is settled in its own
// transaction so one failure never blocks the rest of the batch, and the
// conditional MarkInvestmentPaid makes the payout exactly-once even when
// sweeps overlap.
func (s *InvestmentService) SweepMatured(ctx context.Context, batchSize int32) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	now := s.clock.Now()
	candidates, err := s.store.Queries().ListMaturedInvestments(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list matured investments: %w", err)
	}

	paid := 0
	for _, inv := range candidates {
		ok, err := s.payout(ctx, inv.ID)
		if err != nil {
			zap.L().Error("investment payout failed",
				zap.String("investment_id", inv.ID.String()),
				zap.String("account_id", inv.AccountID.String()),
				zap.Error(err))
			observability.IncrementSweepFailure()
			continue
		}
		if ok {
			paid++
		}
	}
	return paid, nil
}

// payout settles one matured investment. Returns false without error when
// another sweep got there first.
func (s *InvestmentService) payout(ctx context.Context, id uuid.UUID) (bool, error) {
	settled := false
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		inv, err := q.GetInvestment(ctx, id)
		if err != nil {
			return fmt.Errorf("load investment: %w", err)
		}

		now := s.clock.Now()
		rows, err := q.MarkInvestmentPaid(ctx, inv.ID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Already paid by a concurrent sweep.
			return nil
		}

		before, after, err := s.ledger.ApplyBalanceChange(ctx, q, inv.AccountID, inv.TotalReturn())
		if err != nil {
			return err
		}

		_, err = s.ledger.RecordEntry(ctx, q, RecordEntryParams{
			AccountID:     inv.AccountID,
			Kind:          domain.EntryKindProfit,
			Amount:        inv.TotalReturn(),
			Status:        domain.EntryStatusCompleted,
			Description:   fmt.Sprintf("Return on %s plan investment", inv.PlanName),
			ReferenceID:   inv.ID,
			ReferenceKind: domain.RefKindInvestmentProfit,
			BalanceBefore: before,
			BalanceAfter:  after,
		})
		if err != nil {
			return err
		}

		if err := s.audit.Write(ctx, q, "investment", inv.ID, nil, "investment_matured",
			domain.InvestmentStatusActive, domain.InvestmentStatusCompleted, nil); err != nil {
			return err
		}

		settled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

var (
	roiFloor   = decimal.Zero
	roiCeiling = decimal.NewFromInt(100)
)

// PlanService manages the investment plan catalog. Plans are templates
// only; open positions carry their own snapshot of the terms, so editing
// or deactivating a plan never touches existing investments.
type PlanService struct {
	store repository.Store
	clock clock.Clock
}

func NewPlanService(store repository.Store, clk clock.Clock) *PlanService {
	return &PlanService{store: store, clock: clk}
}

// PlanCmd is the validated input for creating or updating a plan.
type PlanCmd struct {
	Name          string
	MinAmount     int64 // micros
	MaxAmount     int64 // micros
	ROI           decimal.Decimal
	DurationHours int32
	Description   string
	IsActive      bool
	Features      []string
	Popularity    int32
}

func (c *PlanCmd) validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("plan name is required: %w", models.ErrValidation)
	}
	if c.MinAmount <= 0 {
		return fmt.Errorf("plan minimum amount must be positive: %w", models.ErrValidation)
	}
	if c.MaxAmount <= c.MinAmount {
		return fmt.Errorf("plan maximum amount must exceed the minimum: %w", models.ErrValidation)
	}
	if c.ROI.LessThan(roiFloor) || c.ROI.GreaterThan(roiCeiling) {
		return fmt.Errorf("plan roi must be between 0 and 100 percent: %w", models.ErrValidation)
	}
	if c.DurationHours < 1 {
		return fmt.Errorf("plan duration must be at least one hour: %w", models.ErrValidation)
	}
	return nil
}

func (s *PlanService) Create(ctx context.Context, cmd PlanCmd) (*models.InvestmentPlan, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	plan := &models.InvestmentPlan{
		ID:            uuid.New(),
		Name:          cmd.Name,
		MinAmount:     cmd.MinAmount,
		MaxAmount:     cmd.MaxAmount,
		ROI:           cmd.ROI,
		DurationHours: cmd.DurationHours,
		Description:   cmd.Description,
		IsActive:      cmd.IsActive,
		Features:      cmd.Features,
		Popularity:    cmd.Popularity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Queries().CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PlanService) Get(ctx context.Context, id uuid.UUID) (*models.InvestmentPlan, error) {
	return s.store.Queries().GetPlan(ctx, id)
}

// List returns the catalog. onlyActive hides deactivated plans, which is
// what user-facing listings want; admin listings pass false.
func (s *PlanService) List(ctx context.Context, onlyActive bool) ([]models.InvestmentPlan, error) {
	return s.store.Queries().ListPlans(ctx, onlyActive)
}

func (s *PlanService) Update(ctx context.Context, id uuid.UUID, cmd PlanCmd) (*models.InvestmentPlan, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	var updated *models.InvestmentPlan
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		plan, err := q.GetPlan(ctx, id)
		if err != nil {
			return err
		}
		plan.Name = cmd.Name
		plan.MinAmount = cmd.MinAmount
		plan.MaxAmount = cmd.MaxAmount
		plan.ROI = cmd.ROI
		plan.DurationHours = cmd.DurationHours
		plan.Description = cmd.Description
		plan.IsActive = cmd.IsActive
		plan.Features = cmd.Features
		plan.Popularity = cmd.Popularity
		plan.UpdatedAt = s.clock.Now()

		rows, err := q.UpdatePlan(ctx, plan)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "update plan"); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a plan that no investment has ever referenced. Plans
// with history must be deactivated instead, so past positions keep a
// resolvable plan id.
func (s *PlanService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		count, err := q.CountInvestmentsByPlan(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("plan has %d investments, deactivate it instead: %w", count, models.ErrPlanReferenced)
		}
		rows, err := q.DeletePlan(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

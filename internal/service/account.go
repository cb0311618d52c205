package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

// AccountService creates accounts and serves balance reads. All balance
// writes go through LedgerService.
type AccountService struct {
	store repository.Store
	clock clock.Clock
}

func NewAccountService(store repository.Store, clk clock.Clock) *AccountService {
	return &AccountService{store: store, clock: clk}
}

// Create opens a zero-balance account for a user.
func (s *AccountService) Create(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account := &models.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   0,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.Queries().CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.store.Queries().GetAccount(ctx, id)
}

func (s *AccountService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return s.store.Queries().GetAccountByUserID(ctx, userID)
}

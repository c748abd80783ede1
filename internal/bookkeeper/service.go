// Package bookkeeper holds the asset-transfer ledger and the ownership-token
// ledger the stop engine settles against. The engine treats both as external
// collaborators: it instructs transfers and mint/burn operations but owns
// none of the balances itself.
package bookkeeper

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInsufficientFunds is returned when a transfer would overdraw the
// sender's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Service moves asset custody between accounts.
type Service interface {
	// Transfer moves amount of asset from one account to another. It
	// either applies fully or returns an error with no balance change.
	Transfer(ctx context.Context, from, to uuid.UUID, asset string, amount decimal.Decimal) error

	// Balance returns the account's balance for asset.
	Balance(ctx context.Context, account uuid.UUID, asset string) (decimal.Decimal, error)
}

// InMemoryService is a mutex-guarded balance map implementing Service.
type InMemoryService struct {
	logger   *zap.SugaredLogger
	mu       sync.RWMutex
	balances map[uuid.UUID]map[string]decimal.Decimal
}

// NewInMemoryService creates an empty ledger.
func NewInMemoryService(logger *zap.Logger) *InMemoryService {
	return &InMemoryService{
		logger:   logger.Sugar().Named("bookkeeper"),
		balances: make(map[uuid.UUID]map[string]decimal.Decimal),
	}
}

// Deposit credits an account. Used to fund accounts in tests and the
// development server.
func (s *InMemoryService) Deposit(ctx context.Context, account uuid.UUID, asset string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(account, asset, amount)
}

func (s *InMemoryService) credit(account uuid.UUID, asset string, amount decimal.Decimal) {
	if s.balances[account] == nil {
		s.balances[account] = make(map[string]decimal.Decimal)
	}
	s.balances[account][asset] = s.balances[account][asset].Add(amount)
}

// Transfer implements Service.
func (s *InMemoryService) Transfer(ctx context.Context, from, to uuid.UUID, asset string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("negative transfer amount")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	have := s.balances[from][asset]
	if have.LessThan(amount) {
		return ErrInsufficientFunds
	}
	s.balances[from][asset] = have.Sub(amount)
	s.credit(to, asset, amount)

	s.logger.Debugw("transfer applied",
		"from", from, "to", to, "asset", asset, "amount", amount)
	return nil
}

// Balance implements Service.
func (s *InMemoryService) Balance(ctx context.Context, account uuid.UUID, asset string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account][asset], nil
}

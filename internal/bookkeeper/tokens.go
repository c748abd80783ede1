package bookkeeper

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInsufficientTokens is returned when a burn exceeds the holder's
// balance for an order id.
var ErrInsufficientTokens = errors.New("insufficient token balance")

// TokenLedger is the ownership-token collaborator. Each order is represented
// by a transferable claim keyed by order id; the engine mints a claim equal
// to the deposit at creation and requires the caller's balance to cover the
// deposit before cancel or claim. The ledger is an authorization record, not
// engine-owned state.
type TokenLedger interface {
	Mint(ctx context.Context, holder uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error
	Burn(ctx context.Context, holder uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, holder uuid.UUID, orderID uuid.UUID) (decimal.Decimal, error)
}

type tokenKey struct {
	holder  uuid.UUID
	orderID uuid.UUID
}

// InMemoryTokenLedger is a mutex-guarded TokenLedger.
type InMemoryTokenLedger struct {
	mu       sync.RWMutex
	balances map[tokenKey]decimal.Decimal
}

// NewInMemoryTokenLedger creates an empty token ledger.
func NewInMemoryTokenLedger() *InMemoryTokenLedger {
	return &InMemoryTokenLedger{balances: make(map[tokenKey]decimal.Decimal)}
}

// Mint credits holder with amount of the order's claim.
func (l *InMemoryTokenLedger) Mint(ctx context.Context, holder uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := tokenKey{holder: holder, orderID: orderID}
	l.balances[k] = l.balances[k].Add(amount)
	return nil
}

// Burn debits holder's claim on the order.
func (l *InMemoryTokenLedger) Burn(ctx context.Context, holder uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := tokenKey{holder: holder, orderID: orderID}
	have := l.balances[k]
	if have.LessThan(amount) {
		return ErrInsufficientTokens
	}
	rest := have.Sub(amount)
	if rest.IsZero() {
		delete(l.balances, k)
	} else {
		l.balances[k] = rest
	}
	return nil
}

// Transfer moves claim quantity between holders, preserving the order key.
// This is what makes stops batchable and tradable without engine involvement.
func (l *InMemoryTokenLedger) Transfer(ctx context.Context, from, to uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	fk := tokenKey{holder: from, orderID: orderID}
	have := l.balances[fk]
	if have.LessThan(amount) {
		return ErrInsufficientTokens
	}
	l.balances[fk] = have.Sub(amount)
	tk := tokenKey{holder: to, orderID: orderID}
	l.balances[tk] = l.balances[tk].Add(amount)
	return nil
}

// BalanceOf returns holder's claim quantity for the order.
func (l *InMemoryTokenLedger) BalanceOf(ctx context.Context, holder uuid.UUID, orderID uuid.UUID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[tokenKey{holder: holder, orderID: orderID}], nil
}

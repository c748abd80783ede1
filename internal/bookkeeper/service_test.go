package bookkeeper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTransferAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(zap.NewNop())
	alice, bob := uuid.New(), uuid.New()

	svc.Deposit(ctx, alice, "USDC", decimal.NewFromInt(100))

	require.NoError(t, svc.Transfer(ctx, alice, bob, "USDC", decimal.NewFromInt(40)))
	a, _ := svc.Balance(ctx, alice, "USDC")
	b, _ := svc.Balance(ctx, bob, "USDC")
	assert.True(t, a.Equal(decimal.NewFromInt(60)))
	assert.True(t, b.Equal(decimal.NewFromInt(40)))

	err := svc.Transfer(ctx, alice, bob, "USDC", decimal.NewFromInt(61))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	a, _ = svc.Balance(ctx, alice, "USDC")
	assert.True(t, a.Equal(decimal.NewFromInt(60)), "failed transfer must not move funds")
}

func TestTokenMintBurn(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryTokenLedger()
	holder := uuid.New()
	orderID := uuid.New()

	require.NoError(t, ledger.Mint(ctx, holder, orderID, decimal.NewFromInt(10)))
	bal, _ := ledger.BalanceOf(ctx, holder, orderID)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))

	err := ledger.Burn(ctx, holder, orderID, decimal.NewFromInt(11))
	require.ErrorIs(t, err, ErrInsufficientTokens)

	require.NoError(t, ledger.Burn(ctx, holder, orderID, decimal.NewFromInt(10)))
	bal, _ = ledger.BalanceOf(ctx, holder, orderID)
	assert.True(t, bal.IsZero())
}

func TestTokenTransferMovesClaim(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryTokenLedger()
	seller, buyer := uuid.New(), uuid.New()
	orderID := uuid.New()

	require.NoError(t, ledger.Mint(ctx, seller, orderID, decimal.NewFromInt(10)))
	require.NoError(t, ledger.Transfer(ctx, seller, buyer, orderID, decimal.NewFromInt(10)))

	s, _ := ledger.BalanceOf(ctx, seller, orderID)
	b, _ := ledger.BalanceOf(ctx, buyer, orderID)
	assert.True(t, s.IsZero())
	assert.True(t, b.Equal(decimal.NewFromInt(10)))
}

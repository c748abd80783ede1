package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/trailex/internal/bookkeeper"
	"github.com/Aidin1998/trailex/internal/engine/repository"
	"github.com/Aidin1998/trailex/internal/events"
	"github.com/Aidin1998/trailex/internal/venue"
)

// Exercises the full path against the simulated constant-product venue:
// external trades move the price, the venue pushes updates into the batch
// processor, and a deep enough drop executes the stop through two-phase
// settlement with real custody transfers.
func TestSimulatedVenueLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	assets := bookkeeper.NewInMemoryService(logger)
	tokens := bookkeeper.NewInMemoryTokenLedger()
	recorder := events.NewRecorder()

	v := venue.NewSimulated("WETH-USDC", "WETH", "USDC",
		decimal.NewFromInt(1_000_000), decimal.NewFromInt(1_000_000), logger)

	eng := New(logger, repository.NewInMemoryRepository(), assets, tokens, recorder, Config{})
	eng.RegisterVenue(v)
	require.NoError(t, eng.SetTrustedVenue(v.Key(), true))
	v.SetPriceListener(eng)

	owner := uuid.New()
	assets.Deposit(ctx, owner, "WETH", decimal.NewFromInt(100))
	assets.Deposit(ctx, v.Account(), "WETH", decimal.NewFromInt(1_000_000))
	assets.Deposit(ctx, v.Account(), "USDC", decimal.NewFromInt(1_000_000))

	// Equal reserves put the venue at tick 0.
	tick, err := v.CurrentTick(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), tick)

	id, err := eng.CreateStop(ctx, owner, v.Key(), "SELL_BASE", 500,
		decimal.NewFromInt(10), decimal.Zero)
	require.NoError(t, err)

	ownerWETH, err := assets.Balance(ctx, owner, "WETH")
	require.NoError(t, err)
	assert.True(t, ownerWETH.Equal(decimal.NewFromInt(90)), "deposit escrowed on creation")

	// Buying base raises the price; the watermark trails upward and the
	// order must not fire.
	_, err = v.Trade(ctx, "SELL_QUOTE", decimal.NewFromInt(10_000))
	require.NoError(t, err)

	details, err := eng.GetOrderDetails(ctx, id)
	require.NoError(t, err)
	assert.False(t, details.Triggered)
	assert.False(t, details.Executed)
	assert.Greater(t, details.TrailingWatermark, int64(0))
	watermark := details.TrailingWatermark

	// A heavy sell crashes the price far more than 500 ticks below the
	// watermark; the push from the venue executes the stop in-line.
	_, err = v.Trade(ctx, "SELL_BASE", decimal.NewFromInt(100_000))
	require.NoError(t, err)

	details, err = eng.GetOrderDetails(ctx, id)
	require.NoError(t, err)
	require.True(t, details.Executed)
	assert.True(t, details.Triggered)
	assert.True(t, details.OutputAmount.IsPositive())
	assert.Equal(t, 0, eng.ActiveOrderCount(v.Key()))

	crashTick, err := v.CurrentTick(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, crashTick, watermark-500)

	// Proceeds sit in custody until claimed.
	payout, err := eng.ClaimProceeds(ctx, owner, id)
	require.NoError(t, err)
	assert.True(t, payout.Equal(details.OutputAmount))

	ownerUSDC, err := assets.Balance(ctx, owner, "USDC")
	require.NoError(t, err)
	assert.True(t, ownerUSDC.Equal(payout))

	// Lifecycle events arrived in order for this order id.
	var types []string
	for _, e := range recorder.Events() {
		if e.OrderID == id {
			types = append(types, e.Type)
		}
	}
	assert.Equal(t, []string{
		events.TypeOrderCreated,
		events.TypeOrderTriggered,
		events.TypeOrderExecuted,
	}, types)
}

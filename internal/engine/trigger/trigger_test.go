package trigger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

func sellBaseOrder(watermark, margin int64) *model.Order {
	return &model.Order{
		ID:                uuid.New(),
		Owner:             uuid.New(),
		Direction:         model.DirectionSellBase,
		InputAmount:       decimal.NewFromInt(10),
		TrailingWatermark: watermark,
		ThresholdMargin:   margin,
	}
}

func TestSellBaseRisingNeverFires(t *testing.T) {
	o := sellBaseOrder(0, 500)
	for _, tick := range []int64{1, 50, 51, 400, 1000, 5000} {
		assert.False(t, ShouldExecute(o, tick), "tick %d", tick)
		assert.Equal(t, tick, o.TrailingWatermark)
	}
}

func TestSellBaseFiresAtExactMargin(t *testing.T) {
	o := sellBaseOrder(1000, 500)
	assert.False(t, ShouldExecute(o, 501), "reversal of 499 must not fire")
	assert.Equal(t, int64(1000), o.TrailingWatermark)

	assert.True(t, ShouldExecute(o, 500), "reversal of exactly 500 fires")
	assert.Equal(t, int64(1000), o.TrailingWatermark, "watermark untouched on fire")
}

func TestSellBaseOneTickShortDoesNotFire(t *testing.T) {
	o := sellBaseOrder(0, 500)
	assert.False(t, ShouldExecute(o, -499))
	assert.True(t, ShouldExecute(o, -500))
}

func TestSellQuoteMirror(t *testing.T) {
	o := sellBaseOrder(0, 300)
	o.Direction = model.DirectionSellQuote

	// Falling ticks are favorable and only move the watermark.
	for _, tick := range []int64{-10, -200, -1000} {
		assert.False(t, ShouldExecute(o, tick))
		assert.Equal(t, tick, o.TrailingWatermark)
	}

	assert.False(t, ShouldExecute(o, -701), "reversal of 299 must not fire")
	assert.True(t, ShouldExecute(o, -700), "reversal of exactly 300 fires")
}

func TestImproveAndFireAreMutuallyExclusive(t *testing.T) {
	// Equal tick neither improves nor fires for margin > 0.
	o := sellBaseOrder(100, 1)
	assert.False(t, ShouldExecute(o, 101) && o.TrailingWatermark == 100)
	assert.Equal(t, int64(101), o.TrailingWatermark)
	assert.False(t, ShouldExecute(o, 101))
}

func TestClearedAndExecutedShortCircuit(t *testing.T) {
	o := sellBaseOrder(1000, 1)
	o.Owner = uuid.Nil
	assert.False(t, ShouldExecute(o, 0))

	o = sellBaseOrder(1000, 1)
	o.Executed = true
	assert.False(t, ShouldExecute(o, 0))
	assert.Equal(t, int64(1000), o.TrailingWatermark, "short-circuit must not move the watermark")
}

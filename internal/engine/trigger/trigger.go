// Package trigger holds the trailing-watermark fire decision.
//
// The watermark is the most favorable tick observed since the order was
// created. It only moves in the favorable direction; once the venue price
// reverses by the order's threshold margin from the watermark, the order
// fires. A tick that improves the watermark can never fire in the same
// evaluation.
package trigger

import (
	"github.com/google/uuid"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

// ShouldExecute evaluates one order against the venue's current tick,
// advancing the trailing watermark if the tick is favorable. It returns true
// when the reversal from the watermark has reached the threshold margin.
//
// Cleared and already-executed orders never fire.
func ShouldExecute(o *model.Order, currentTick int64) bool {
	if o.Owner == uuid.Nil || o.Executed {
		return false
	}

	switch o.Direction {
	case model.DirectionSellBase:
		// Price is expected to rise while held; the risk is a fall.
		if currentTick > o.TrailingWatermark {
			o.TrailingWatermark = currentTick
			return false
		}
		return o.TrailingWatermark-currentTick >= o.ThresholdMargin

	case model.DirectionSellQuote:
		if currentTick < o.TrailingWatermark {
			o.TrailingWatermark = currentTick
			return false
		}
		return currentTick-o.TrailingWatermark >= o.ThresholdMargin
	}
	return false
}

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Aidin1998/trailex/internal/engine/model"
	"github.com/Aidin1998/trailex/internal/engine/trigger"
	"github.com/Aidin1998/trailex/internal/events"
	"github.com/Aidin1998/trailex/pkg/metrics"
)

// HandlePriceUpdate is the venue price-update callback driving the batch
// processor. Each call examines at most BatchSize orders, resuming at the
// venue's processing cursor, so per-update work is bounded regardless of
// backlog while no order is starved across consecutive updates.
//
// The step count is fixed from the pool size at entry; each step re-reads
// the current size because a fired-and-settled order is removed mid-pass.
// An executed order does not advance the cursor: swap-and-pop moves a
// not-yet-examined order into the freed slot.
func (e *Engine) HandlePriceUpdate(ctx context.Context, venueKey string, tick int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.venues[venueKey]
	if !ok || !e.trusted[venueKey] {
		return model.ErrUntrustedVenue
	}
	if !model.ValidTick(tick) {
		return model.ErrInvalidTick
	}
	px := e.pools[venueKey]
	if px == nil || px.Len() == 0 {
		return nil
	}

	started := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(started).Seconds())
		metrics.ActiveOrders.WithLabelValues(venueKey).Set(float64(px.Len()))
	}()

	steps := px.Len()
	if steps > e.batchSize {
		steps = e.batchSize
	}

	for i := 0; i < steps; i++ {
		if px.Len() == 0 {
			break
		}
		cur := px.Cursor()
		orderID := px.At(cur)

		o, err := e.repo.GetOrder(ctx, orderID)
		if err != nil {
			// A pooled id without a stored order is unreachable through
			// the lifecycle API; drop it rather than wedge the pool slot.
			e.logger.Errorw("pooled order missing from store, evicting",
				"order_id", orderID, "venue", venueKey, "error", err)
			px.Remove(orderID)
			px.SetCursor(cur)
			continue
		}

		before := o.TrailingWatermark
		fired := trigger.ShouldExecute(o, tick)
		if !fired {
			if o.TrailingWatermark != before {
				o.UpdatedAt = time.Now()
				if err := e.repo.UpdateOrder(ctx, o); err != nil {
					e.logger.Errorw("persist watermark failed",
						"order_id", orderID, "error", err)
				}
			}
			px.SetCursor(cur + 1)
			continue
		}

		metrics.TriggersFired.WithLabelValues(venueKey).Inc()
		if err := e.executeOrder(ctx, v, o); err != nil {
			// Failure isolation: report, leave the order in place as a
			// retry candidate, keep processing the batch.
			metrics.ExecutionsFailed.WithLabelValues(venueKey, failureReason(err)).Inc()
			e.emit(ctx, events.Event{
				Type:     events.TypeOrderExecutionFailed,
				OrderID:  orderID,
				Owner:    o.Owner,
				VenueKey: venueKey,
				Tick:     tick,
				Reason:   err.Error(),
			})
			e.logger.Errorw("stop execution failed, left for retry",
				"order_id", orderID, "venue", venueKey, "error", err)
			px.SetCursor(cur + 1)
			continue
		}
		// Success removed the order; the tail element now occupies cur.
		px.SetCursor(cur)
	}
	return nil
}

// failureReason buckets execution errors for the failure counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, model.ErrPartialFill):
		return "partial_fill"
	case errors.Is(err, model.ErrSettlementIncomplete):
		return "settlement_incomplete"
	default:
		return "other"
	}
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/trailex/internal/engine/model"
	"github.com/Aidin1998/trailex/internal/events"
	"github.com/Aidin1998/trailex/internal/venue"
	"github.com/Aidin1998/trailex/pkg/metrics"
)

// pendingSwap is the single swap outstanding against a venue. The venue's
// settlement callback must present the matching ticket; anything else is
// refused, so a rogue venue cannot settle a swap the engine never issued.
type pendingSwap struct {
	ticket       uuid.UUID
	venueKey     string
	venueAccount uuid.UUID
	direction    string
	amountIn     decimal.Decimal
	minOutput    decimal.Decimal
	inputAsset   string
	outputAsset  string

	settled bool
	output  decimal.Decimal
}

// executeOrder drives a fired order through settlement. The triggered mark
// is made durable and announced before the settlement attempt, so a failed
// attempt leaves a truthful triggered-but-unexecuted record and a manual
// retry skips re-evaluation. On success the order leaves its venue pool for
// good.
func (e *Engine) executeOrder(ctx context.Context, v venue.Venue, o *model.Order) error {
	if !o.Triggered {
		o.Triggered = true
		o.UpdatedAt = time.Now()
		if err := e.repo.UpdateOrder(ctx, o); err != nil {
			o.Triggered = false
			return fmt.Errorf("mark triggered: %w", err)
		}
		e.emit(ctx, events.Event{
			Type:     events.TypeOrderTriggered,
			OrderID:  o.ID,
			Owner:    o.Owner,
			VenueKey: o.VenueKey,
			Tick:     o.TrailingWatermark,
		})
	}

	received, err := e.settleSwapAgainst(ctx, v, o)
	if err != nil {
		return err
	}

	o.Executed = true
	o.OutputAmount = received
	o.UpdatedAt = time.Now()
	if err := e.repo.UpdateOrder(ctx, o); err != nil {
		// Assets already moved; surface loudly rather than risk a
		// double-execution on retry.
		e.logger.Errorw("CRITICAL: settled swap but order update failed",
			"order_id", o.ID, "output", received, "error", err)
		return fmt.Errorf("persist executed order: %w", err)
	}

	if px := e.pools[o.VenueKey]; px != nil {
		px.Remove(o.ID)
		metrics.ActiveOrders.WithLabelValues(o.VenueKey).Set(float64(px.Len()))
	}
	metrics.ExecutionsSucceeded.WithLabelValues(o.VenueKey).Inc()
	e.emit(ctx, events.Event{
		Type:     events.TypeOrderExecuted,
		OrderID:  o.ID,
		Owner:    o.Owner,
		VenueKey: o.VenueKey,
		Amount:   received,
	})
	e.logger.Infow("stop executed",
		"order_id", o.ID, "venue", o.VenueKey, "output", received)
	return nil
}

// settleSwapAgainst issues the swap request and waits for the venue's
// synchronous settlement callback. Risk is enforced after the fact via the
// order's minimum output, so the price limit is the extreme tick for the
// direction.
func (e *Engine) settleSwapAgainst(ctx context.Context, v venue.Venue, o *model.Order) (decimal.Decimal, error) {
	inputAsset, outputAsset := swapAssets(v, o.Direction)
	priceLimit := model.MinTick
	if o.Direction == model.DirectionSellQuote {
		priceLimit = model.MaxTick
	}

	ps := &pendingSwap{
		ticket:       uuid.New(),
		venueKey:     v.Key(),
		venueAccount: v.Account(),
		direction:    o.Direction,
		amountIn:     o.InputAmount,
		minOutput:    o.MinOutput,
		inputAsset:   inputAsset,
		outputAsset:  outputAsset,
	}
	e.pendingMu.Lock()
	e.pending = ps
	e.pendingMu.Unlock()
	defer func() {
		e.pendingMu.Lock()
		e.pending = nil
		e.pendingMu.Unlock()
	}()

	err := v.Swap(ctx, venue.SwapRequest{
		Ticket:         ps.ticket,
		Direction:      o.Direction,
		AmountIn:       o.InputAmount,
		PriceLimitTick: priceLimit,
	}, e)
	if err != nil {
		return decimal.Zero, fmt.Errorf("venue swap: %w", err)
	}
	if !ps.settled {
		return decimal.Zero, model.ErrSettlementIncomplete
	}
	return ps.output, nil
}

// SettleSwap finalizes the accounting for the outstanding swap. The venue
// invokes it synchronously inside Swap; it validates the ticket rather than
// trusting the call stack and refuses to run standalone. Returning an error
// obliges the venue to abort the swap, so no partial asset movement
// survives a rejected settlement.
func (e *Engine) SettleSwap(ctx context.Context, s venue.Settlement) error {
	e.pendingMu.Lock()
	ps := e.pending
	e.pendingMu.Unlock()
	if ps == nil || ps.ticket != s.Ticket || ps.venueKey != s.VenueKey || ps.settled {
		return model.ErrUnexpectedSettlement
	}

	var inputConsumed, outputReceived decimal.Decimal
	if ps.direction == model.DirectionSellBase {
		inputConsumed = s.DeltaBase
		outputReceived = s.DeltaQuote.Neg()
	} else {
		inputConsumed = s.DeltaQuote
		outputReceived = s.DeltaBase.Neg()
	}

	// All-or-nothing: consumed input must equal the order's deposit
	// exactly. A mismatch means a partial fill, which this design forbids.
	if !inputConsumed.Equal(ps.amountIn) {
		return model.ErrPartialFill
	}
	if outputReceived.LessThan(ps.minOutput) {
		return model.ErrSlippageExceeded
	}

	if err := e.assets.Transfer(ctx, e.account, ps.venueAccount, ps.inputAsset, inputConsumed); err != nil {
		return fmt.Errorf("settle input owed: %w", err)
	}
	if err := e.assets.Transfer(ctx, ps.venueAccount, e.account, ps.outputAsset, outputReceived); err != nil {
		if backErr := e.assets.Transfer(ctx, ps.venueAccount, e.account, ps.inputAsset, inputConsumed); backErr != nil {
			e.logger.Errorw("rollback of settled input failed",
				"venue", ps.venueKey, "amount", inputConsumed, "error", backErr)
		}
		return fmt.Errorf("pull swap output: %w", err)
	}

	ps.settled = true
	ps.output = outputReceived
	return nil
}

// Package venue defines the exchange-venue boundary the stop engine trades
// against: a price-tick query and a two-phase swap/settle protocol. The
// venue computes signed balance deltas for a requested swap and invokes the
// engine's settlement handler synchronously, inside the Swap call, with a
// typed ticket the handler validates before touching any state. An error
// returned from the handler aborts the venue-side swap entirely.
package venue

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SwapRequest asks a venue to swap the engine's exact input amount.
type SwapRequest struct {
	// Ticket identifies the outstanding swap; the venue must echo it in
	// the settlement callback.
	Ticket uuid.UUID

	// Direction is model.DirectionSellBase or model.DirectionSellQuote.
	Direction string

	// AmountIn is the exact input quantity; partial consumption is a
	// settlement error on the engine side.
	AmountIn decimal.Decimal

	// PriceLimitTick bounds how far the venue price may move while
	// filling. The engine passes the extreme tick for the direction and
	// enforces risk after the fact via the order's minimum output.
	PriceLimitTick int64
}

// Settlement carries the venue's signed balance deltas back to the engine.
// Positive deltas are amounts the engine owes the venue, negative deltas
// are amounts the venue owes the engine.
type Settlement struct {
	Ticket     uuid.UUID
	VenueKey   string
	DeltaBase  decimal.Decimal
	DeltaQuote decimal.Decimal
}

// SettlementHandler finalizes a swap's accounting. It is invoked by the
// venue synchronously during Swap and must refuse tickets it did not issue.
type SettlementHandler interface {
	SettleSwap(ctx context.Context, s Settlement) error
}

// PriceListener receives a venue's current tick after each trade on it.
type PriceListener interface {
	HandlePriceUpdate(ctx context.Context, venueKey string, tick int64) error
}

// Venue is one exchange pair the engine can watch and trade against.
type Venue interface {
	Key() string
	BaseAsset() string
	QuoteAsset() string

	// Account is the custody account settlement transfers move assets
	// against.
	Account() uuid.UUID

	CurrentTick(ctx context.Context) (int64, error)

	// Swap executes the requested swap and settles it through handler
	// before returning. If the handler rejects the settlement, the swap
	// must leave no trace on the venue.
	Swap(ctx context.Context, req SwapRequest, handler SettlementHandler) error
}

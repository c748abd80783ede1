package venue

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

// tickBase is the per-tick price ratio: price = tickBase^tick.
const tickBase = 1.0001

// Simulated is an in-process constant-product venue used by tests and the
// development server. Trades move the reserves and push a price update to
// the registered listener; engine-initiated swaps settle through the
// two-phase protocol and roll back fully when settlement is rejected.
type Simulated struct {
	key        string
	baseAsset  string
	quoteAsset string
	account    uuid.UUID
	logger     *zap.SugaredLogger

	mu           sync.Mutex
	reserveBase  decimal.Decimal
	reserveQuote decimal.Decimal
	listener     PriceListener
}

// NewSimulated creates a simulated venue with the given starting reserves.
func NewSimulated(key, baseAsset, quoteAsset string, reserveBase, reserveQuote decimal.Decimal, logger *zap.Logger) *Simulated {
	return &Simulated{
		key:          key,
		baseAsset:    baseAsset,
		quoteAsset:   quoteAsset,
		account:      uuid.New(),
		logger:       logger.Sugar().Named("venue").With("venue", key),
		reserveBase:  reserveBase,
		reserveQuote: reserveQuote,
	}
}

// SetPriceListener registers the engine as the consumer of price updates.
func (v *Simulated) SetPriceListener(l PriceListener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listener = l
}

func (v *Simulated) Key() string        { return v.key }
func (v *Simulated) BaseAsset() string  { return v.baseAsset }
func (v *Simulated) QuoteAsset() string { return v.quoteAsset }
func (v *Simulated) Account() uuid.UUID { return v.account }

// CurrentTick derives the tick from the reserve ratio.
func (v *Simulated) CurrentTick(ctx context.Context) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tickLocked(), nil
}

func (v *Simulated) tickLocked() int64 {
	price := v.reserveQuote.Div(v.reserveBase).InexactFloat64()
	return int64(math.Round(math.Log(price) / math.Log(tickBase)))
}

// quoteOut computes the constant-product output for an exact input.
func quoteOut(reserveIn, reserveOut, amountIn decimal.Decimal) decimal.Decimal {
	return reserveOut.Mul(amountIn).Div(reserveIn.Add(amountIn))
}

// Swap fills the engine's exact-input request and settles it through the
// handler before returning. A handler error restores the reserves.
func (v *Simulated) Swap(ctx context.Context, req SwapRequest, handler SettlementHandler) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !req.AmountIn.IsPositive() {
		return fmt.Errorf("simulated venue: non-positive swap input %s", req.AmountIn)
	}

	prevBase, prevQuote := v.reserveBase, v.reserveQuote
	s := Settlement{Ticket: req.Ticket, VenueKey: v.key}

	switch req.Direction {
	case model.DirectionSellBase:
		out := quoteOut(v.reserveBase, v.reserveQuote, req.AmountIn)
		v.reserveBase = v.reserveBase.Add(req.AmountIn)
		v.reserveQuote = v.reserveQuote.Sub(out)
		s.DeltaBase = req.AmountIn
		s.DeltaQuote = out.Neg()
		if v.tickLocked() < req.PriceLimitTick {
			v.reserveBase, v.reserveQuote = prevBase, prevQuote
			return fmt.Errorf("simulated venue: price limit %d crossed", req.PriceLimitTick)
		}
	case model.DirectionSellQuote:
		out := quoteOut(v.reserveQuote, v.reserveBase, req.AmountIn)
		v.reserveQuote = v.reserveQuote.Add(req.AmountIn)
		v.reserveBase = v.reserveBase.Sub(out)
		s.DeltaQuote = req.AmountIn
		s.DeltaBase = out.Neg()
		if v.tickLocked() > req.PriceLimitTick {
			v.reserveBase, v.reserveQuote = prevBase, prevQuote
			return fmt.Errorf("simulated venue: price limit %d crossed", req.PriceLimitTick)
		}
	default:
		return fmt.Errorf("simulated venue: unknown direction %q", req.Direction)
	}

	if err := handler.SettleSwap(ctx, s); err != nil {
		v.reserveBase, v.reserveQuote = prevBase, prevQuote
		return fmt.Errorf("settlement rejected: %w", err)
	}

	v.logger.Debugw("swap filled",
		"direction", req.Direction,
		"amount_in", req.AmountIn,
		"tick", v.tickLocked())
	return nil
}

// Trade is an externally driven swap: it moves the reserves and then pushes
// the new tick to the price listener, which is how the engine's batch
// processor gets invoked in a simulated deployment. Returns the output
// amount.
func (v *Simulated) Trade(ctx context.Context, direction string, amountIn decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	var out decimal.Decimal
	switch direction {
	case model.DirectionSellBase:
		out = quoteOut(v.reserveBase, v.reserveQuote, amountIn)
		v.reserveBase = v.reserveBase.Add(amountIn)
		v.reserveQuote = v.reserveQuote.Sub(out)
	case model.DirectionSellQuote:
		out = quoteOut(v.reserveQuote, v.reserveBase, amountIn)
		v.reserveQuote = v.reserveQuote.Add(amountIn)
		v.reserveBase = v.reserveBase.Sub(out)
	default:
		v.mu.Unlock()
		return decimal.Zero, fmt.Errorf("simulated venue: unknown direction %q", direction)
	}
	tick := v.tickLocked()
	listener := v.listener
	v.mu.Unlock()

	if listener != nil {
		if err := listener.HandlePriceUpdate(ctx, v.key, tick); err != nil {
			v.logger.Warnw("price listener rejected update", "tick", tick, "error", err)
		}
	}
	return out, nil
}

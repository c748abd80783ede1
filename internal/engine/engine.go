// Package engine implements the trailing stop order engine: order lifecycle,
// the trailing-watermark trigger, the bounded round-robin batch processor
// driven by venue price updates, and the atomic swap-and-settle execution
// path with per-order failure isolation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/trailex/internal/bookkeeper"
	"github.com/Aidin1998/trailex/internal/engine/model"
	"github.com/Aidin1998/trailex/internal/engine/pool"
	"github.com/Aidin1998/trailex/internal/engine/trigger"
	"github.com/Aidin1998/trailex/internal/events"
	"github.com/Aidin1998/trailex/internal/venue"
	"github.com/Aidin1998/trailex/pkg/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultBatchSize    = 25
	DefaultPoolCapacity = 10000
)

// Config tunes the engine.
type Config struct {
	// BatchSize bounds how many orders one price update may examine.
	BatchSize int
	// PoolCapacity caps active orders per venue. <= 0 means the default.
	PoolCapacity int
}

// Engine owns the order store and pool indexes exclusively; external
// callers drive transitions through the lifecycle methods and the venue
// price-update callback. One operation runs at a time under mu.
type Engine struct {
	logger *zap.SugaredLogger
	repo   model.Repository
	assets bookkeeper.Service
	tokens bookkeeper.TokenLedger
	events events.Publisher

	account      uuid.UUID
	batchSize    int
	poolCapacity int

	mu      sync.Mutex
	venues  map[string]venue.Venue
	trusted map[string]bool
	pools   map[string]*pool.Index

	// guard rejects reentrant fund-moving calls on the same order id
	// during a single nested call chain. It has its own lock because the
	// reentrant call arrives while mu is still held by the outer one.
	guardMu sync.Mutex
	guard   map[uuid.UUID]struct{}

	// pending is the single outstanding swap awaiting settlement; see
	// execute.go.
	pendingMu sync.Mutex
	pending   *pendingSwap
}

// New creates an engine with a fresh custody account.
func New(
	logger *zap.Logger,
	repo model.Repository,
	assets bookkeeper.Service,
	tokens bookkeeper.TokenLedger,
	publisher events.Publisher,
	cfg Config,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PoolCapacity <= 0 {
		cfg.PoolCapacity = DefaultPoolCapacity
	}
	return &Engine{
		logger:       logger.Sugar().Named("engine"),
		repo:         repo,
		assets:       assets,
		tokens:       tokens,
		events:       publisher,
		account:      uuid.New(),
		batchSize:    cfg.BatchSize,
		poolCapacity: cfg.PoolCapacity,
		venues:       make(map[string]venue.Venue),
		trusted:      make(map[string]bool),
		pools:        make(map[string]*pool.Index),
		guard:        make(map[uuid.UUID]struct{}),
	}
}

// Account is the engine's custody account; deposits and settlement
// transfers move against it.
func (e *Engine) Account() uuid.UUID { return e.account }

// RegisterVenue makes a venue known to the engine. Registration does not
// trust it; see SetTrustedVenue.
func (e *Engine) RegisterVenue(v venue.Venue) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.venues[v.Key()] = v
	if e.pools[v.Key()] == nil {
		e.pools[v.Key()] = pool.NewIndex(e.poolCapacity)
	}
	e.logger.Infow("venue registered", "venue", v.Key())
}

// SetTrustedVenue gates order creation and trigger evaluation for the venue.
// Administrative only.
func (e *Engine) SetTrustedVenue(venueKey string, trusted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.venues[venueKey]; !ok {
		return fmt.Errorf("venue %q not registered", venueKey)
	}
	e.trusted[venueKey] = trusted
	e.logger.Infow("venue trust updated", "venue", venueKey, "trusted", trusted)
	return nil
}

// RestoreActiveOrders rebuilds the per-venue pool indexes from the order
// store. Called once on startup, after venues are registered.
func (e *Engine) RestoreActiveOrders(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders, err := e.repo.GetActiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("load active orders: %w", err)
	}
	for _, o := range orders {
		px := e.pools[o.VenueKey]
		if px == nil {
			e.logger.Warnw("active order references unregistered venue",
				"order_id", o.ID, "venue", o.VenueKey)
			continue
		}
		if err := px.Add(o.ID); err != nil {
			return fmt.Errorf("restore order %s: %w", o.ID, err)
		}
	}
	for key, px := range e.pools {
		metrics.ActiveOrders.WithLabelValues(key).Set(float64(px.Len()))
	}
	e.logger.Infow("active orders restored", "count", len(orders))
	return nil
}

// CreateStop deposits amount of the direction's input asset and opens a
// trailing stop with the watermark anchored at the venue's current tick.
// Any failure aborts the whole operation with no partial state change.
func (e *Engine) CreateStop(
	ctx context.Context,
	owner uuid.UUID,
	venueKey, direction string,
	thresholdMargin int64,
	amount, minOutput decimal.Decimal,
) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !amount.IsPositive() {
		return uuid.Nil, model.ErrZeroAmount
	}
	if amount.GreaterThan(model.MaxInputAmount) {
		return uuid.Nil, model.ErrAmountTooLarge
	}
	if !model.ValidDirection(direction) {
		return uuid.Nil, model.ErrInvalidDirection
	}
	if thresholdMargin <= 0 || thresholdMargin > model.MaxThresholdTicks {
		return uuid.Nil, model.ErrInvalidMargin
	}
	v, ok := e.venues[venueKey]
	if !ok || !e.trusted[venueKey] {
		return uuid.Nil, model.ErrUntrustedVenue
	}
	tick, err := v.CurrentTick(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("query venue tick: %w", err)
	}
	if !model.ValidTick(tick) {
		return uuid.Nil, model.ErrInvalidTick
	}
	px := e.pools[venueKey]
	if px.Len() >= e.poolCapacity {
		return uuid.Nil, model.ErrPoolAtCapacity
	}

	now := time.Now()
	order := &model.Order{
		ID:                uuid.New(),
		Owner:             owner,
		VenueKey:          venueKey,
		Direction:         direction,
		InputAmount:       amount,
		MinOutput:         minOutput,
		TrailingWatermark: tick,
		ThresholdMargin:   thresholdMargin,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inputAsset, _ := swapAssets(v, direction)
	if err := e.assets.Transfer(ctx, owner, e.account, inputAsset, amount); err != nil {
		return uuid.Nil, fmt.Errorf("deposit transfer: %w", err)
	}
	if err := e.tokens.Mint(ctx, owner, order.ID, amount); err != nil {
		e.refund(ctx, owner, inputAsset, amount)
		return uuid.Nil, fmt.Errorf("mint ownership token: %w", err)
	}
	if err := e.repo.CreateOrder(ctx, order); err != nil {
		if burnErr := e.tokens.Burn(ctx, owner, order.ID, amount); burnErr != nil {
			e.logger.Errorw("rollback burn failed", "order_id", order.ID, "error", burnErr)
		}
		e.refund(ctx, owner, inputAsset, amount)
		return uuid.Nil, fmt.Errorf("store order: %w", err)
	}
	if err := px.Add(order.ID); err != nil {
		// Capacity was checked above; reaching here means the pool was
		// mutated behind the engine's back.
		return uuid.Nil, err
	}

	metrics.OrdersCreated.WithLabelValues(venueKey).Inc()
	metrics.ActiveOrders.WithLabelValues(venueKey).Set(float64(px.Len()))
	e.emit(ctx, events.Event{
		Type:     events.TypeOrderCreated,
		OrderID:  order.ID,
		Owner:    owner,
		VenueKey: venueKey,
		Amount:   amount,
		Tick:     tick,
	})
	e.logger.Infow("stop created",
		"order_id", order.ID,
		"venue", venueKey,
		"direction", direction,
		"amount", amount,
		"threshold_margin", thresholdMargin,
		"watermark", tick)
	return order.ID, nil
}

// CancelStop refunds the deposit of a not-yet-executed stop and clears it.
func (e *Engine) CancelStop(ctx context.Context, caller uuid.UUID, orderID uuid.UUID) error {
	if err := e.acquireGuard(orderID); err != nil {
		return err
	}
	defer e.releaseGuard(orderID)

	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Owner == uuid.Nil || o.Owner != caller {
		return model.ErrNotOwner
	}
	if o.Executed {
		return model.ErrAlreadyExecuted
	}
	bal, err := e.tokens.BalanceOf(ctx, caller, orderID)
	if err != nil {
		return fmt.Errorf("query token balance: %w", err)
	}
	if bal.LessThan(o.InputAmount) {
		return model.ErrInsufficientBacking
	}

	refund := o.InputAmount
	v := e.venues[o.VenueKey]
	if v == nil {
		return fmt.Errorf("venue %q not registered", o.VenueKey)
	}
	inputAsset, _ := swapAssets(v, o.Direction)

	px := e.pools[o.VenueKey]
	wasPooled := px != nil && px.Remove(orderID)

	cleared := o.Clone()
	cleared.Owner = uuid.Nil
	cleared.InputAmount = decimal.Zero
	cleared.UpdatedAt = time.Now()
	if err := e.repo.UpdateOrder(ctx, cleared); err != nil {
		if wasPooled {
			px.Add(orderID)
		}
		return fmt.Errorf("clear order: %w", err)
	}
	if err := e.tokens.Burn(ctx, caller, orderID, refund); err != nil {
		e.restoreOrder(ctx, o, px, wasPooled)
		return fmt.Errorf("burn ownership token: %w", err)
	}
	if err := e.assets.Transfer(ctx, e.account, caller, inputAsset, refund); err != nil {
		if mintErr := e.tokens.Mint(ctx, caller, orderID, refund); mintErr != nil {
			e.logger.Errorw("rollback mint failed", "order_id", orderID, "error", mintErr)
		}
		e.restoreOrder(ctx, o, px, wasPooled)
		return fmt.Errorf("refund transfer: %w", err)
	}

	metrics.OrdersCancelled.WithLabelValues(o.VenueKey).Inc()
	if px != nil {
		metrics.ActiveOrders.WithLabelValues(o.VenueKey).Set(float64(px.Len()))
	}
	e.emit(ctx, events.Event{
		Type:     events.TypeOrderCancelled,
		OrderID:  orderID,
		Owner:    caller,
		VenueKey: o.VenueKey,
		Amount:   refund,
	})
	e.logger.Infow("stop cancelled", "order_id", orderID, "refund", refund)
	return nil
}

// ClaimProceeds pays out the settled counter-asset of an executed stop and
// retires the order. Returns the amount paid.
func (e *Engine) ClaimProceeds(ctx context.Context, caller uuid.UUID, orderID uuid.UUID) (decimal.Decimal, error) {
	if err := e.acquireGuard(orderID); err != nil {
		return decimal.Zero, err
	}
	defer e.releaseGuard(orderID)

	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	// A retired record has owner and amounts zeroed; checking proceeds
	// first makes a repeat claim report exhausted proceeds, not not-owner.
	if o.Executed && !o.OutputAmount.IsPositive() {
		return decimal.Zero, model.ErrNoProceeds
	}
	if o.Owner == uuid.Nil || o.Owner != caller {
		return decimal.Zero, model.ErrNotOwner
	}
	if !o.Executed {
		return decimal.Zero, model.ErrNotExecuted
	}
	bal, err := e.tokens.BalanceOf(ctx, caller, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query token balance: %w", err)
	}
	if bal.LessThan(o.InputAmount) {
		return decimal.Zero, model.ErrInsufficientBacking
	}

	v := e.venues[o.VenueKey]
	if v == nil {
		return decimal.Zero, fmt.Errorf("venue %q not registered", o.VenueKey)
	}
	_, outputAsset := swapAssets(v, o.Direction)
	payout := o.OutputAmount
	backing := o.InputAmount

	cleared := o.Clone()
	cleared.Owner = uuid.Nil
	cleared.InputAmount = decimal.Zero
	cleared.OutputAmount = decimal.Zero
	cleared.UpdatedAt = time.Now()
	if err := e.repo.UpdateOrder(ctx, cleared); err != nil {
		return decimal.Zero, fmt.Errorf("clear order: %w", err)
	}
	if err := e.tokens.Burn(ctx, caller, orderID, backing); err != nil {
		e.restoreOrder(ctx, o, nil, false)
		return decimal.Zero, fmt.Errorf("burn ownership token: %w", err)
	}
	if err := e.assets.Transfer(ctx, e.account, caller, outputAsset, payout); err != nil {
		if mintErr := e.tokens.Mint(ctx, caller, orderID, backing); mintErr != nil {
			e.logger.Errorw("rollback mint failed", "order_id", orderID, "error", mintErr)
		}
		e.restoreOrder(ctx, o, nil, false)
		return decimal.Zero, fmt.Errorf("proceeds transfer: %w", err)
	}

	e.logger.Infow("proceeds claimed", "order_id", orderID, "payout", payout)
	return payout, nil
}

// ExecuteStop is the manual trigger path for orders the automatic batching
// skipped. Unlike the batch path it propagates settlement failures.
func (e *Engine) ExecuteStop(ctx context.Context, caller uuid.UUID, orderID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Owner == uuid.Nil || o.Owner != caller {
		return model.ErrNotOwner
	}
	if o.Executed {
		return model.ErrAlreadyExecuted
	}
	v, ok := e.venues[o.VenueKey]
	if !ok || !e.trusted[o.VenueKey] {
		return model.ErrUntrustedVenue
	}

	// An already-triggered order skips re-evaluation and retries
	// settlement directly.
	if !o.Triggered {
		tick, err := v.CurrentTick(ctx)
		if err != nil {
			return fmt.Errorf("query venue tick: %w", err)
		}
		if !model.ValidTick(tick) {
			return model.ErrInvalidTick
		}
		before := o.TrailingWatermark
		fired := trigger.ShouldExecute(o, tick)
		if !fired {
			if o.TrailingWatermark != before {
				o.UpdatedAt = time.Now()
				if err := e.repo.UpdateOrder(ctx, o); err != nil {
					return fmt.Errorf("persist watermark: %w", err)
				}
			}
			return model.ErrNotTriggered
		}
		metrics.TriggersFired.WithLabelValues(o.VenueKey).Inc()
	}

	return e.executeOrder(ctx, v, o)
}

// ActiveOrderCount returns the venue pool's current membership size.
func (e *Engine) ActiveOrderCount(venueKey string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	px := e.pools[venueKey]
	if px == nil {
		return 0
	}
	return px.Len()
}

// GetOrderDetails exposes the order's economic state to the management
// surface.
func (e *Engine) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (model.OrderDetails, error) {
	o, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return model.OrderDetails{}, err
	}
	return o.Details(), nil
}

// refund sends a deposit back during create rollback; a failure here is
// logged loudly because funds are stuck in custody until reconciled.
func (e *Engine) refund(ctx context.Context, owner uuid.UUID, asset string, amount decimal.Decimal) {
	if err := e.assets.Transfer(ctx, e.account, owner, asset, amount); err != nil {
		e.logger.Errorw("rollback refund failed",
			"owner", owner, "asset", asset, "amount", amount, "error", err)
	}
}

// restoreOrder undoes a cleared order record during cancel/claim rollback.
func (e *Engine) restoreOrder(ctx context.Context, original *model.Order, px *pool.Index, reAdd bool) {
	if err := e.repo.UpdateOrder(ctx, original); err != nil {
		e.logger.Errorw("rollback restore failed", "order_id", original.ID, "error", err)
	}
	if reAdd && px != nil {
		if err := px.Add(original.ID); err != nil {
			e.logger.Errorw("rollback pool re-add failed", "order_id", original.ID, "error", err)
		}
	}
}

func (e *Engine) acquireGuard(orderID uuid.UUID) error {
	e.guardMu.Lock()
	defer e.guardMu.Unlock()
	if _, held := e.guard[orderID]; held {
		return model.ErrReentrantCall
	}
	e.guard[orderID] = struct{}{}
	return nil
}

func (e *Engine) releaseGuard(orderID uuid.UUID) {
	e.guardMu.Lock()
	defer e.guardMu.Unlock()
	delete(e.guard, orderID)
}

func (e *Engine) emit(ctx context.Context, ev events.Event) {
	ev.Timestamp = time.Now()
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.Warnw("event publish failed",
			"type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}

// swapAssets resolves which venue asset is deposited and which is received
// for a direction.
func swapAssets(v venue.Venue, direction string) (input, output string) {
	if direction == model.DirectionSellBase {
		return v.BaseAsset(), v.QuoteAsset()
	}
	return v.QuoteAsset(), v.BaseAsset()
}

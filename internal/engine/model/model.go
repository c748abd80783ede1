package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order directions. A stop either sells the venue's base asset for quote
// or the quote asset for base; the direction is fixed at creation.
const (
	DirectionSellBase  = "SELL_BASE"
	DirectionSellQuote = "SELL_QUOTE"
)

// Tick bounds for any venue price. A venue reporting a tick outside this
// range is rejected at order creation and ignored by the batch processor.
const (
	MinTick int64 = -887272
	MaxTick int64 = 887272

	// MaxThresholdTicks bounds the trailing margin a stop may be created with.
	MaxThresholdTicks int64 = MaxTick
)

// MaxInputAmount caps a single deposit. Amounts above it are rejected at
// creation so downstream accounting never overflows the numeric column.
var MaxInputAmount = decimal.RequireFromString("79228162514264337593543950335")

// Order is the economic state of one trailing stop.
//
// Exactly one of {active-pending, cancelled, executed, claimed} holds at any
// time, encoded by the (Owner, InputAmount, Executed, OutputAmount) tuple:
//
//	active-pending: Owner set, InputAmount > 0, !Executed
//	cancelled:      Owner == uuid.Nil, InputAmount == 0, !Executed
//	executed:       Owner set, Executed, OutputAmount > 0
//	claimed:        Owner == uuid.Nil, InputAmount == 0, Executed, OutputAmount == 0
//
// InputAmount > 0 with Owner == uuid.Nil never persists outside a single
// cancel or claim transition.
type Order struct {
	ID       uuid.UUID `json:"id"`
	Owner    uuid.UUID `json:"owner"`
	VenueKey string    `json:"venue_key"`

	Direction    string          `json:"direction"`
	InputAmount  decimal.Decimal `json:"input_amount"`
	OutputAmount decimal.Decimal `json:"output_amount"`
	MinOutput    decimal.Decimal `json:"min_output"`

	Triggered bool `json:"triggered"`
	Executed  bool `json:"executed"`

	TrailingWatermark int64 `json:"trailing_watermark"`
	ThresholdMargin   int64 `json:"threshold_margin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the order still belongs in its venue's pool:
// not cancelled and not executed.
func (o *Order) Active() bool {
	return o.Owner != uuid.Nil && o.InputAmount.IsPositive() && !o.Executed
}

// ValidDirection reports whether d is a known order direction.
func ValidDirection(d string) bool {
	return d == DirectionSellBase || d == DirectionSellQuote
}

// ValidTick reports whether t lies in the representable tick range.
func ValidTick(t int64) bool {
	return t >= MinTick && t <= MaxTick
}

// OrderDetails is the read-only view returned by the management surface.
type OrderDetails struct {
	ID                uuid.UUID       `json:"id"`
	Owner             uuid.UUID       `json:"owner"`
	VenueKey          string          `json:"venue_key"`
	Direction         string          `json:"direction"`
	InputAmount       decimal.Decimal `json:"input_amount"`
	OutputAmount      decimal.Decimal `json:"output_amount"`
	MinOutput         decimal.Decimal `json:"min_output"`
	Triggered         bool            `json:"triggered"`
	Executed          bool            `json:"executed"`
	TrailingWatermark int64           `json:"trailing_watermark"`
	ThresholdMargin   int64           `json:"threshold_margin"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Details snapshots the order for external consumers.
func (o *Order) Details() OrderDetails {
	return OrderDetails{
		ID:                o.ID,
		Owner:             o.Owner,
		VenueKey:          o.VenueKey,
		Direction:         o.Direction,
		InputAmount:       o.InputAmount,
		OutputAmount:      o.OutputAmount,
		MinOutput:         o.MinOutput,
		Triggered:         o.Triggered,
		Executed:          o.Executed,
		TrailingWatermark: o.TrailingWatermark,
		ThresholdMargin:   o.ThresholdMargin,
		CreatedAt:         o.CreatedAt,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the
// repository's record.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

package model

import "errors"

// Validation errors: rejected before any state change.
var (
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrAmountTooLarge   = errors.New("amount exceeds maximum representable deposit")
	ErrInvalidDirection = errors.New("unknown order direction")
	ErrInvalidMargin    = errors.New("threshold margin out of range")
	ErrUntrustedVenue   = errors.New("venue is not trusted")
	ErrInvalidTick      = errors.New("venue tick outside representable range")
	ErrPoolAtCapacity   = errors.New("venue order pool at capacity")
)

// Authorization errors: rejected with no state change.
var (
	ErrNotOwner            = errors.New("caller is not the order owner")
	ErrInsufficientBacking = errors.New("insufficient ownership token balance")
)

// State errors: rejected with no state change.
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrAlreadyExecuted = errors.New("order already executed")
	ErrNotExecuted     = errors.New("order not executed")
	ErrNotTriggered    = errors.New("order not triggered")
	ErrNoProceeds      = errors.New("no proceeds to claim")
	ErrReentrantCall   = errors.New("reentrant call on order")
)

// Execution failures: caught and reported per-order on the automatic batch
// path, propagated on the manual path.
var (
	ErrSlippageExceeded     = errors.New("swap output below minimum acceptable")
	ErrPartialFill          = errors.New("swap consumed input differs from order amount")
	ErrSettlementIncomplete = errors.New("venue returned without settling the swap")
	ErrUnexpectedSettlement = errors.New("settlement callback does not match outstanding swap")
)

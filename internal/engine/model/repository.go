package model

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the durable order store. Implementations must return
// ErrOrderNotFound for unknown ids and must not alias stored records with
// the pointers they hand out.
type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error

	// GetActiveOrders returns every order that still belongs in a venue
	// pool (not cancelled, not executed). Used to rebuild pool indexes on
	// startup.
	GetActiveOrders(ctx context.Context) ([]*Order, error)
}

// Package repository provides the durable order store implementations
// behind model.Repository: an in-memory map for tests and the development
// server, and a GORM-backed store for real deployments.
package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

// InMemoryRepository is a mutex-guarded map of orders. Stored records are
// cloned on the way in and out so callers never alias repository state.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*model.Order
}

// NewInMemoryRepository creates an empty store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{orders: make(map[uuid.UUID]*model.Order)}
}

// CreateOrder stores a new order.
func (r *InMemoryRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order.Clone()
	return nil
}

// GetOrder returns a copy of the order or model.ErrOrderNotFound.
func (r *InMemoryRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// UpdateOrder overwrites the stored record.
func (r *InMemoryRepository) UpdateOrder(ctx context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return model.ErrOrderNotFound
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

// GetActiveOrders returns every order still belonging in a venue pool.
func (r *InMemoryRepository) GetActiveOrders(ctx context.Context) ([]*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.Active() {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

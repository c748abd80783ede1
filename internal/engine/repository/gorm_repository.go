package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

// OrderRow is the database representation of an order.
type OrderRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Owner    uuid.UUID `gorm:"type:uuid;index"`
	VenueKey string    `gorm:"size:64;index"`

	Direction    string          `gorm:"size:16"`
	InputAmount  decimal.Decimal `gorm:"type:numeric(38,18)"`
	OutputAmount decimal.Decimal `gorm:"type:numeric(38,18)"`
	MinOutput    decimal.Decimal `gorm:"type:numeric(38,18)"`

	Triggered bool
	Executed  bool `gorm:"index"`

	TrailingWatermark int64
	ThresholdMargin   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable across gorm naming strategies.
func (OrderRow) TableName() string { return "stop_orders" }

// GormRepository implements model.Repository on a relational store.
type GormRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRepository migrates the schema and returns the repository.
func NewGormRepository(db *gorm.DB, logger *zap.Logger) (*GormRepository, error) {
	if err := db.AutoMigrate(&OrderRow{}); err != nil {
		return nil, fmt.Errorf("migrate stop_orders: %w", err)
	}
	return &GormRepository{db: db, logger: logger}, nil
}

func toRow(o *model.Order) *OrderRow {
	return &OrderRow{
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
		UpdatedAt:         o.UpdatedAt,
	}
}

func fromRow(r *OrderRow) *model.Order {
	return &model.Order{
		ID:                r.ID,
		Owner:             r.Owner,
		VenueKey:          r.VenueKey,
		Direction:         r.Direction,
		InputAmount:       r.InputAmount,
		OutputAmount:      r.OutputAmount,
		MinOutput:         r.MinOutput,
		Triggered:         r.Triggered,
		Executed:          r.Executed,
		TrailingWatermark: r.TrailingWatermark,
		ThresholdMargin:   r.ThresholdMargin,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// CreateOrder inserts a new order row.
func (r *GormRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(toRow(order)).Error; err != nil {
		r.logger.Error("failed to create order",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetOrder loads one order by id.
func (r *GormRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	var row OrderRow
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return fromRow(&row), nil
}

// UpdateOrder persists the full order state.
func (r *GormRepository) UpdateOrder(ctx context.Context, order *model.Order) error {
	res := r.db.WithContext(ctx).
		Model(&OrderRow{}).
		Where("id = ?", order.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(toRow(order))
	if res.Error != nil {
		return fmt.Errorf("update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// GetActiveOrders returns orders still belonging in a venue pool.
func (r *GormRepository) GetActiveOrders(ctx context.Context) ([]*model.Order, error) {
	var rows []OrderRow
	if err := r.db.WithContext(ctx).
		Where("executed = ? AND input_amount > 0 AND owner <> ?", false, uuid.Nil).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get active orders: %w", err)
	}
	orders := make([]*model.Order, len(rows))
	for i := range rows {
		orders[i] = fromRow(&rows[i])
	}
	return orders, nil
}

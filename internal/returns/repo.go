package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// Repository provides the read side of the return workflow. All writes go
// through the transition service so history stays consistent.
type Repository interface {
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListItemsByStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) ([]models.OrderItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a returns repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItemsByStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

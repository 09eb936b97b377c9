package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// Repository defines persistence operations for the shipping saga.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrCreateProgress(ctx context.Context, orderID uuid.UUID) (*models.ShippingProgress, error)
	UpdateProgress(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	ListOrderedItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipping repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// locked applies a row lock on dialects that support it. SQLite (tests)
// serializes writers on its own and rejects FOR UPDATE.
func (r *repository) locked(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return db
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.locked(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOrCreateProgress returns the saga row for the order, creating the
// all-false row on first use. Callers hold the order lock, so two workers
// never race the create.
func (r *repository) FindOrCreateProgress(ctx context.Context, orderID uuid.UUID) (*models.ShippingProgress, error) {
	var progress models.ShippingProgress
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	progress = models.ShippingProgress{OrderID: orderID}
	if err := r.db.WithContext(ctx).Create(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *repository) UpdateProgress(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ShippingProgress{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) ListOrderedItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.OrderItemStatusOrdered).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

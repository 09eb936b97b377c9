package transitions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// Repository defines persistence operations for items and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	CreateItem(ctx context.Context, item *models.OrderItem) error
	AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	ListHistory(ctx context.Context, itemID uuid.UUID) ([]models.StatusHistoryEntry, error)
	ListItemsByStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) ([]models.OrderItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transitions repository bound to the provided DB.
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

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.locked(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.locked(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, itemID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("changed_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListItemsByStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

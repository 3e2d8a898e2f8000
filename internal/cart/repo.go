package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
)

// Repository manages a buyer's saved cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// DeleteByBuyer removes every line of the buyer's cart.
func (r *Repository) DeleteByBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

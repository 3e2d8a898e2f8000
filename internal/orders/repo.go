package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

// ErrDuplicateGatewayOrder reports that an order already exists for a gateway order id.
var ErrDuplicateGatewayOrder = errors.New("order already committed for gateway order")

// Repository persists orders, sub orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateSubOrders(ctx context.Context, subOrders []models.SubOrder) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	FindSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateSubOrders(ctx context.Context, ids []uuid.UUID, updates map[string]any) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		if order.GatewayOrderID != nil && db.IsUniqueViolation(err, "gateway_order_id") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrDuplicateGatewayOrder, "order already exists for payment")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) CreateSubOrders(ctx context.Context, subOrders []models.SubOrder) error {
	if len(subOrders) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&subOrders).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sub orders")
	}
	return nil
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line items")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOrder(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.findOrder(r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID))
}

func (r *repository) findOrder(q *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := q.
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("SubOrders.Items").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *repository) FindSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	var sub models.SubOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order")
	}
	return &sub, nil
}

func (r *repository) ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	var subs []models.SubOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sub orders")
	}
	return subs, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return nil
}

func (r *repository) UpdateSubOrders(ctx context.Context, ids []uuid.UUID, updates map[string]any) (int64, error) {
	if len(ids) == 0 || len(updates) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.SubOrder{}).Where("id IN ?", ids).Updates(updates)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update sub orders")
	}
	return res.RowsAffected, nil
}

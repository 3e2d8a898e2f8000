package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

// Repository persists payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentAttempt, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.PaymentAttemptStatus, updates map[string]any) (bool, error)
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment attempt")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentAttempt, error) {
	return r.first(r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID))
}

func (r *repository) first(q *gorm.DB) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := q.First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	return &attempt, nil
}

// Transition moves the attempt only if it is still in from. It reports false when
// another writer got there first.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.PaymentAttemptStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update payment attempt")
	}
	return res.RowsAffected == 1, nil
}

// ListOpenBefore returns online attempts created before cutoff that never reached
// a final status, oldest first.
func (r *repository) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []enums.PaymentAttemptStatus{
			enums.PaymentAttemptInitiated,
			enums.PaymentAttemptGatewayOrderCreated,
			enums.PaymentAttemptAwaitingUserAction,
		}, cutoff).
		Where("method = ?", enums.PaymentMethodOnline).
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open payment attempts")
	}
	return attempts, nil
}

package escrow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

var terminalStatuses = []enums.EscrowStatus{
	enums.EscrowStatusReleased,
	enums.EscrowStatusRefunded,
	enums.EscrowStatusCancelled,
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Repository persists escrow records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, records []models.EscrowRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error)
	FindBySubOrderID(ctx context.Context, subOrderID uuid.UUID) (*models.EscrowRecord, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.EscrowRecord, error)
	// CompareAndSwap applies updates only when status and version still match.
	CompareAndSwap(ctx context.Context, id uuid.UUID, status enums.EscrowStatus, version int, updates map[string]any) (bool, error)
	MarkPaymentCollected(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)
	ListHeldBefore(ctx context.Context, activatedBefore time.Time, limit int) ([]models.EscrowRecord, error)
	List(ctx context.Context, filter Filter) ([]models.EscrowRecord, error)
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

func (r *repository) CreateBatch(ctx context.Context, records []models.EscrowRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.first(q)
}

func (r *repository) FindBySubOrderID(ctx context.Context, subOrderID uuid.UUID) (*models.EscrowRecord, error) {
	return r.first(r.db.WithContext(ctx).Where("sub_order_id = ?", subOrderID))
}

func (r *repository) first(q *gorm.DB) (*models.EscrowRecord, error) {
	var rec models.EscrowRecord
	if err := q.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow record")
	}
	return &rec, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.EscrowRecord, error) {
	var records []models.EscrowRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list escrow records")
	}
	return records, nil
}

func (r *repository) CompareAndSwap(ctx context.Context, id uuid.UUID, status enums.EscrowStatus, version int, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("id = ? AND status = ? AND version = ?", id, status, version).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update escrow record")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkPaymentCollected(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("order_id = ? AND payment_collected_at IS NULL", orderID).
		Where("status NOT IN ?", terminalStatuses).
		Updates(map[string]any{
			"payment_collected_at": at,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark payment collected")
	}
	return res.RowsAffected, nil
}

func (r *repository) ListHeldBefore(ctx context.Context, activatedBefore time.Time, limit int) ([]models.EscrowRecord, error) {
	var records []models.EscrowRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND escrow_activated_at <= ?", enums.EscrowStatusEscrow, activatedBefore).
		Where("(payment_method <> ? OR payment_collected_at IS NOT NULL)", enums.PaymentMethodCOD).
		Order("escrow_activated_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list held escrow records")
	}
	return records, nil
}

// List returns up to limit+1 rows, newest first, so the caller can detect a next page.
func (r *repository) List(ctx context.Context, filter Filter) ([]models.EscrowRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.EscrowRecord{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.OrderID != nil {
		q = q.Where("order_id = ?", *filter.OrderID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		q = q.Where(`(LOWER(order_number) LIKE ? ESCAPE '\' OR LOWER(seller_name) LIKE ? ESCAPE '\')`, like, like)
	}

	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var records []models.EscrowRecord
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list escrow records")
	}
	return records, nil
}

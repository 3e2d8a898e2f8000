package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/internal/ledger"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
	"github.com/angelmondragon/settlement-engine/pkg/redislock"
)

const (
	defaultLockTTL  = 15 * time.Second
	defaultLockWait = 5 * time.Second
	lockScope       = "escrow"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the settlement lifecycle of escrow records.
type Service interface {
	Initialize(ctx context.Context, tx *gorm.DB, order *models.Order, subOrders []models.SubOrder) ([]models.EscrowRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error)
	List(ctx context.Context, filter Filter) (pagination.Page[models.EscrowRecord], error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.EscrowRecord, error)
	RequestApproval(ctx context.Context, id uuid.UUID, actor Actor) (*models.EscrowRecord, error)
	Release(ctx context.Context, id uuid.UUID, actor Actor, input ReleaseInput) (*models.EscrowRecord, error)
	Refund(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.EscrowRecord, error)
	Dispute(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.EscrowRecord, error)
	Resolve(ctx context.Context, id uuid.UUID, actor Actor, resolution Resolution, note string) (*models.EscrowRecord, error)
	Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.EscrowRecord, error)
	MarkPaymentCollected(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error)
	SweepDue(ctx context.Context, now time.Time, limit int) (int, error)
	Trigger() ApprovalTrigger
}

// ServiceParams wires the escrow service. Locks is optional; without it the
// compare-and-swap alone serializes writers.
type ServiceParams struct {
	DB         txRunner
	Repo       Repository
	Ledger     ledger.Service
	Outbox     outboxPublisher
	Commission CommissionPolicy
	Trigger    ApprovalTrigger
	Locks      redis.LockStore
	LockTTL    time.Duration
	LockWait   time.Duration
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	db         txRunner
	repo       Repository
	ledger     ledger.Service
	outbox     outboxPublisher
	commission CommissionPolicy
	trigger    ApprovalTrigger
	locks      redis.LockStore
	lockTTL    time.Duration
	lockWait   time.Duration
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Commission == nil {
		return nil, fmt.Errorf("commission policy required")
	}
	if params.Trigger == nil {
		params.Trigger = FulfillmentTrigger{}
	}
	if params.LockTTL <= 0 {
		params.LockTTL = defaultLockTTL
	}
	if params.LockWait <= 0 {
		params.LockWait = defaultLockWait
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		db:         params.DB,
		repo:       params.Repo,
		ledger:     params.Ledger,
		outbox:     params.Outbox,
		commission: params.Commission,
		trigger:    params.Trigger,
		locks:      params.Locks,
		lockTTL:    params.LockTTL,
		lockWait:   params.LockWait,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        params.Now,
	}, nil
}

func (s *service) Trigger() ApprovalTrigger {
	return s.trigger
}

// Initialize creates one record per sub order inside the caller's transaction.
// Commission is frozen here and never recomputed.
func (s *service) Initialize(ctx context.Context, tx *gorm.DB, order *models.Order, subOrders []models.SubOrder) ([]models.EscrowRecord, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(subOrders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub orders required")
	}

	now := s.now().UTC()
	var collectedAt *time.Time
	if order.PaymentStatus == enums.PaymentStatusPaid {
		collectedAt = &now
	}

	records := make([]models.EscrowRecord, 0, len(subOrders))
	for _, sub := range subOrders {
		rate := s.commission.Rate(sub.SellerTier)
		commission, seller := Split(sub.TotalAmount, rate)
		records = append(records, models.EscrowRecord{
			SubOrderID:         sub.ID,
			OrderID:            order.ID,
			OrderNumber:        order.OrderNumber,
			SellerID:           sub.SellerID,
			SellerName:         sub.SellerName,
			SellerEmail:        sub.SellerEmail,
			PaymentMethod:      order.PaymentMethod,
			TotalAmount:        money.Round(sub.TotalAmount),
			CommissionRate:     rate,
			CommissionAmount:   commission,
			SellerAmount:       seller,
			Status:             enums.EscrowStatusEscrow,
			Version:            1,
			EscrowActivatedAt:  now,
			PaymentCollectedAt: collectedAt,
		})
	}
	if err := s.repo.WithTx(tx).CreateBatch(ctx, records); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create escrow records")
	}

	entries := make([]ledger.RecordInput, 0, len(records)*2)
	for _, rec := range records {
		entries = append(entries,
			ledger.ForEscrow(rec, enums.LedgerEventEscrowHeld, rec.TotalAmount, nil),
			ledger.ForEscrow(rec, enums.LedgerEventCommissionAccrued, rec.CommissionAmount, nil),
		)
	}
	if _, err := s.ledger.WithTx(tx).Record(ctx, entries...); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record escrow ledger")
	}
	return records, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.EscrowRecord, error) {
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) List(ctx context.Context, filter Filter) (pagination.Page[models.EscrowRecord], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return pagination.Page[models.EscrowRecord]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid escrow status")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return pagination.Page[models.EscrowRecord]{}, pkgerrors.New(pkgerrors.CodeValidation, "date range is inverted")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Page[models.EscrowRecord]{}, err
	}
	return pagination.Paginate(rows, filter.Limit, func(rec models.EscrowRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rec.CreatedAt, ID: rec.ID}
	}), nil
}

func (s *service) RequestApproval(ctx context.Context, id uuid.UUID, actor Actor) (*models.EscrowRecord, error) {
	return s.apply(ctx, id, EventRequestApproval, actor, func(rec *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error) {
		if !PaymentSettled(*rec) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cash on delivery payment has not been collected")
		}
		updates["approval_requested_at"] = now
		return nil, nil
	})
}

func (s *service) Release(ctx context.Context, id uuid.UUID, actor Actor, input ReleaseInput) (*models.EscrowRecord, error) {
	if err := input.validate(); err != nil {
		s.metrics.IncTransition(string(EventRelease), "rejected")
		return nil, err
	}
	txnID := strings.TrimSpace(input.TransactionID)
	return s.apply(ctx, id, EventRelease, actor, func(rec *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error) {
		updates["admin_approved_at"] = now
		updates["released_at"] = now
		updates["payout_method"] = input.PaymentMethod
		updates["payout_transaction_id"] = txnID
		updates["approved_by"] = actor.ID
		if note := strings.TrimSpace(input.Note); note != "" {
			updates["admin_note"] = note
		}
		entry := ledger.ForEscrow(*rec, enums.LedgerEventPayoutReleased, rec.SellerAmount, actor.ID)
		entry.Metadata = map[string]string{"transaction_id": txnID, "payout_method": string(input.PaymentMethod)}
		return []ledger.RecordInput{entry}, nil
	})
}

func (s *service) Refund(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.EscrowRecord, error) {
	return s.apply(ctx, id, EventRefund, actor, s.refundMutation(actor, reason))
}

func (s *service) Dispute(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.EscrowRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason is required")
	}
	return s.apply(ctx, id, EventDispute, actor, func(_ *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error) {
		updates["disputed_at"] = now
		updates["dispute_reason"] = reason
		return nil, nil
	})
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID, actor Actor, resolution Resolution, note string) (*models.EscrowRecord, error) {
	switch resolution {
	case ResolutionSeller:
		note = strings.TrimSpace(note)
		return s.apply(ctx, id, EventResolveForSeller, actor, func(_ *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error) {
			updates["approval_requested_at"] = now
			if note != "" {
				updates["admin_note"] = note
			}
			return nil, nil
		})
	case ResolutionBuyer:
		return s.apply(ctx, id, EventResolveForBuyer, actor, s.refundMutation(actor, note))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution must be seller or buyer")
	}
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.EscrowRecord, error) {
	reason = strings.TrimSpace(reason)
	return s.apply(ctx, id, EventCancel, actor, func(rec *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error) {
		updates["cancelled_at"] = now
		if reason != "" {
			updates["admin_note"] = reason
		}
		return []ledger.RecordInput{ledger.ForEscrow(*rec, enums.LedgerEventEscrowCancelled, rec.TotalAmount, actor.ID)}, nil
	})
}

func (s *service) refundMutation(actor Actor, reason string) mutation {
	reason = strings.TrimSpace(reason)
	return func(rec *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error) {
		updates["refunded_at"] = now
		if reason != "" {
			updates["refund_reason"] = reason
		}
		return []ledger.RecordInput{ledger.ForEscrow(*rec, enums.LedgerEventEscrowRefunded, rec.TotalAmount, actor.ID)}, nil
	}
}

func (s *service) MarkPaymentCollected(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error) {
	return s.repo.WithTx(tx).MarkPaymentCollected(ctx, orderID, at.UTC())
}

// SweepDue requests approval for every held record the trigger reports as due.
// Failures on individual records do not stop the sweep.
func (s *service) SweepDue(ctx context.Context, now time.Time, limit int) (int, error) {
	hold, ok := s.trigger.(HoldPeriodTrigger)
	if !ok {
		return 0, nil
	}
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	candidates, err := s.repo.ListHeldBefore(ctx, now.Add(-hold.Hold), limit)
	if err != nil {
		return 0, err
	}

	moved := 0
	var errs error
	for _, rec := range candidates {
		if !s.trigger.Due(rec, now) {
			continue
		}
		if _, err := s.RequestApproval(ctx, rec.ID, Actor{Role: enums.RoleService}); err != nil {
			var invalid *InvalidTransitionError
			if errors.As(err, &invalid) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("escrow %s: %w", rec.ID, err))
			continue
		}
		moved++
	}
	return moved, errs
}

// mutation fills updates for a transition and returns the ledger entries it books.
type mutation func(rec *models.EscrowRecord, now time.Time, updates map[string]any) ([]ledger.RecordInput, error)

func (s *service) apply(ctx context.Context, id uuid.UUID, event Event, actor Actor, mutate mutation) (*models.EscrowRecord, error) {
	ctx = s.logg.WithEscrowID(ctx, id.String())
	ctx = s.logg.WithField(ctx, "escrow_event", string(event))

	release, err := s.lock(ctx, id, event)
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			s.metrics.IncTransition(string(event), "rejected")
			return nil, err
		}
		s.metrics.IncTransition(string(event), "error")
		return nil, err
	}
	defer release()

	var result *models.EscrowRecord
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rec, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from := rec.Status
		to, err := Next(from, event)
		if err != nil {
			return stateConflict(err)
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":  to,
			"version": rec.Version + 1,
		}
		entries, err := mutate(rec, now, updates)
		if err != nil {
			return err
		}
		swapped, err := repo.CompareAndSwap(ctx, rec.ID, from, rec.Version, updates)
		if err != nil {
			return err
		}
		if !swapped {
			current, err := repo.FindByID(ctx, id)
			if err != nil {
				return err
			}
			return stateConflict(&InvalidTransitionError{From: current.Status, Event: event})
		}

		if len(entries) > 0 {
			if _, err := s.ledger.WithTx(tx).Record(ctx, entries...); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record escrow ledger")
			}
		}

		updated, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.emitTransition(ctx, tx, updated, from, event, actor, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit escrow transition")
		}
		result = updated
		return nil
	})
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			s.metrics.IncTransition(string(event), "rejected")
			s.logg.Warn(ctx, "escrow transition rejected")
		} else {
			s.metrics.IncTransition(string(event), "error")
		}
		return nil, err
	}

	s.metrics.IncTransition(string(event), "applied")
	s.logg.Info(s.logg.WithField(ctx, "escrow_status", string(result.Status)), "escrow transition applied")
	return result, nil
}

// lock serializes writers on one record. A writer that cannot get the lock
// re-reads the record and loses with InvalidTransitionError once the holder
// has moved it out of reach of event.
func (s *service) lock(ctx context.Context, id uuid.UUID, event Event) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	lock, err := redislock.Obtain(ctx, s.locks, s.locks.LockKey(lockScope, id.String()), s.lockTTL, s.lockWait)
	if err != nil {
		if errors.Is(err, redislock.ErrNotAcquired) {
			current, findErr := s.repo.FindByID(ctx, id)
			if findErr != nil {
				return nil, findErr
			}
			if _, nextErr := Next(current.Status, event); nextErr != nil {
				return nil, stateConflict(nextErr)
			}
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "escrow record is being updated, retry shortly")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire escrow lock")
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release escrow lock", err)
		}
	}, nil
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, rec *models.EscrowRecord, from enums.EscrowStatus, event Event, actor Actor, at time.Time) error {
	var ref *outbox.ActorRef
	if actor.ID != nil {
		ref = &outbox.ActorRef{UserID: *actor.ID, Role: string(actor.Role)}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventEscrowTransitioned,
		AggregateType: enums.AggregateEscrowRecord,
		AggregateID:   rec.ID,
		Actor:         ref,
		Data: payloads.EscrowTransitionedEvent{
			EscrowID:            rec.ID,
			OrderID:             rec.OrderID,
			SubOrderID:          rec.SubOrderID,
			SellerID:            rec.SellerID,
			From:                from,
			To:                  rec.Status,
			Event:               string(event),
			SellerAmount:        rec.SellerAmount.StringFixed(money.Scale),
			PayoutTransactionID: rec.PayoutTransactionID,
			OccurredAt:          at,
		},
		OccurredAt: at,
	})
}

func stateConflict(err error) error {
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, invalid, "action no longer available").
		WithDetails(map[string]any{"status": invalid.From, "event": invalid.Event})
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service commits orders and applies the external signals that drive settlement.
type Service interface {
	Place(ctx context.Context, tx *gorm.DB, input PlaceInput) (*Placement, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, subOrderID uuid.UUID, actor escrow.Actor) (*SignalResult, error)
	ConfirmCODCollected(ctx context.Context, orderID uuid.UUID, actor escrow.Actor) (*SignalResult, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor escrow.Actor, reason string) (*SignalResult, error)
}

type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Escrow escrow.Service
	Outbox outbox.Publisher
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	db     txRunner
	escrow escrow.Service
	outbox outbox.Publisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:   params.Repo,
		db:     params.DB,
		escrow: params.Escrow,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    params.Now,
	}, nil
}

// Place writes the order graph, opens escrow for every sub order and queues
// order_created, all inside tx.
func (s *service) Place(ctx context.Context, tx *gorm.DB, input PlaceInput) (*Placement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment status required")
	}
	now := s.now().UTC()
	order, subs, err := Build(input.Session, input, now)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := repo.CreateSubOrders(ctx, subs); err != nil {
		return nil, err
	}
	var items []models.OrderLineItem
	for _, sub := range subs {
		items = append(items, sub.Items...)
	}
	if err := repo.CreateLineItems(ctx, items); err != nil {
		return nil, err
	}

	records, err := s.escrow.Initialize(ctx, tx, order, subs)
	if err != nil {
		return nil, err
	}

	event := payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		BuyerID:       order.BuyerID,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount.StringFixed(money.Scale),
	}
	for _, sub := range subs {
		event.SubOrderIDs = append(event.SubOrderIDs, sub.ID)
	}
	for _, rec := range records {
		event.EscrowIDs = append(event.EscrowIDs, rec.ID)
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: string(enums.RoleBuyer)},
		Data:          event,
		OccurredAt:    now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}

	order.SubOrders = subs
	return &Placement{Order: order, SubOrders: subs, Escrow: records}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
}

// ConfirmDelivery records delivery of one sub order. Under the fulfillment trigger
// it also asks for approval of the sub order's escrow once payment is settled.
// Repeating the signal is harmless.
func (s *service) ConfirmDelivery(ctx context.Context, subOrderID uuid.UUID, actor escrow.Actor) (*SignalResult, error) {
	if subOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub order id required")
	}
	var order *models.Order
	var sub *models.SubOrder
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		sub, err = repo.FindSubOrder(ctx, subOrderID)
		if err != nil {
			return err
		}
		switch sub.Status {
		case enums.SubOrderStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sub order was cancelled")
		case enums.SubOrderStatusDelivered:
		default:
			now := s.now().UTC()
			if _, err := repo.UpdateSubOrders(ctx, []uuid.UUID{sub.ID}, map[string]any{
				"status":       enums.SubOrderStatusDelivered,
				"delivered_at": now,
			}); err != nil {
				return err
			}
			if err := s.closeOrderIfDelivered(ctx, repo, sub.OrderID, now); err != nil {
				return err
			}
		}
		order, err = repo.FindByID(ctx, sub.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	result := newSignalResult(order)
	if !s.escrow.Trigger().OnDelivery() {
		s.logg.Info(ctx, "delivery recorded")
		return result, nil
	}
	if err := s.requestApproval(ctx, order.ID, map[uuid.UUID]bool{sub.ID: true}, actor, result); err != nil {
		return result, err
	}
	s.logg.Info(ctx, "delivery recorded")
	return result, nil
}

func (s *service) closeOrderIfDelivered(ctx context.Context, repo Repository, orderID uuid.UUID, at time.Time) error {
	subs, err := repo.ListSubOrders(ctx, orderID)
	if err != nil {
		return err
	}
	delivered := 0
	for _, sub := range subs {
		switch sub.Status {
		case enums.SubOrderStatusDelivered:
			delivered++
		case enums.SubOrderStatusCancelled:
		default:
			return nil
		}
	}
	if delivered == 0 {
		return nil
	}
	return repo.UpdateOrder(ctx, orderID, map[string]any{
		"status":       enums.OrderStatusDelivered,
		"delivered_at": at,
	})
}

// ConfirmCODCollected marks a cash on delivery order paid and unblocks its escrow.
// Sub orders already delivered move to approval right away under the fulfillment trigger.
func (s *service) ConfirmCODCollected(ctx context.Context, orderID uuid.UUID, actor escrow.Actor) (*SignalResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentMethod != enums.PaymentMethodCOD {
			return pkgerrors.New(pkgerrors.CodeValidation, "order was not placed as cash on delivery")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was cancelled")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}

		now := s.now().UTC()
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        now,
		}); err != nil {
			return err
		}
		if _, err := s.escrow.MarkPaymentCollected(ctx, tx, order.ID, now); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaidAt = &now
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCODPaymentCollected,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.CODPaymentCollectedEvent{
				OrderID:     order.ID,
				Amount:      order.TotalAmount.StringFixed(money.Scale),
				CollectedAt: now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	result := newSignalResult(order)
	if s.escrow.Trigger().OnDelivery() {
		delivered := map[uuid.UUID]bool{}
		for _, sub := range order.SubOrders {
			if sub.Status == enums.SubOrderStatusDelivered {
				delivered[sub.ID] = true
			}
		}
		if err := s.requestApproval(ctx, order.ID, delivered, actor, result); err != nil {
			return result, err
		}
	}
	s.logg.Info(ctx, "cash on delivery payment recorded")
	return result, nil
}

// requestApproval moves the held escrow of the given sub orders to approval.
// Records that are not held or still wait for payment are reported as skipped.
func (s *service) requestApproval(ctx context.Context, orderID uuid.UUID, subOrders map[uuid.UUID]bool, actor escrow.Actor, result *SignalResult) error {
	if len(subOrders) == 0 {
		return nil
	}
	records, err := s.escrow.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if !subOrders[rec.SubOrderID] {
			continue
		}
		if rec.Status != enums.EscrowStatusEscrow || !escrow.PaymentSettled(rec) {
			result.Skipped = append(result.Skipped, rec.ID)
			continue
		}
		if _, err := s.escrow.RequestApproval(ctx, rec.ID, actor); err != nil {
			var invalid *escrow.InvalidTransitionError
			if errors.As(err, &invalid) {
				result.Skipped = append(result.Skipped, rec.ID)
				continue
			}
			return err
		}
		result.ApprovalRequested = append(result.ApprovalRequested, rec.ID)
	}
	return nil
}

// CancelOrder cancels every escrow of the order that is still held and whose sub
// order has not been delivered. The order itself is cancelled once no sub order
// remains active.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor escrow.Actor, reason string) (*SignalResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result := newSignalResult(order)
	if order.Status == enums.OrderStatusCancelled {
		return result, nil
	}

	subs, err := s.repo.ListSubOrders(ctx, orderID)
	if err != nil {
		return nil, err
	}
	fulfilled := make(map[uuid.UUID]bool, len(subs))
	for _, sub := range subs {
		if sub.Status == enums.SubOrderStatusDelivered || sub.DeliveredAt != nil {
			fulfilled[sub.ID] = true
		}
	}

	records, err := s.escrow.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	cancelledSubs := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		// Delivered goods leave through refund, never cancellation.
		if fulfilled[rec.SubOrderID] {
			result.Skipped = append(result.Skipped, rec.ID)
			continue
		}
		switch rec.Status {
		case enums.EscrowStatusCancelled:
			cancelledSubs = append(cancelledSubs, rec.SubOrderID)
			continue
		case enums.EscrowStatusEscrow:
		default:
			result.Skipped = append(result.Skipped, rec.ID)
			continue
		}
		if _, err := s.escrow.Cancel(ctx, rec.ID, actor, reason); err != nil {
			var invalid *escrow.InvalidTransitionError
			if errors.As(err, &invalid) {
				result.Skipped = append(result.Skipped, rec.ID)
				continue
			}
			return nil, err
		}
		cancelledSubs = append(cancelledSubs, rec.SubOrderID)
		result.Cancelled = append(result.Cancelled, rec.ID)
	}
	if len(cancelledSubs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"order_status": order.Status})
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		if _, err := repo.UpdateSubOrders(ctx, cancelledSubs, map[string]any{
			"status":       enums.SubOrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		subs, err := repo.ListSubOrders(ctx, orderID)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.Status != enums.SubOrderStatusCancelled {
				return nil
			}
		}
		if err := repo.UpdateOrder(ctx, orderID, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		result.OrderStatus = enums.OrderStatusCancelled
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actorRef(actor),
			Data: payloads.OrderCancelledEvent{
				OrderID:     orderID,
				BuyerID:     order.BuyerID,
				CancelledAt: now,
				Reason:      reason,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "cancelled_escrows", len(result.Cancelled)), "order cancellation applied")
	return result, nil
}

func newSignalResult(order *models.Order) *SignalResult {
	return &SignalResult{
		OrderID:       order.ID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
	}
}

func actorRef(actor escrow.Actor) *outbox.ActorRef {
	if actor.ID == nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *actor.ID, Role: string(actor.Role)}
}

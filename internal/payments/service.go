package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/notifications"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/internal/shipping"
	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/gateway"
	"github.com/angelmondragon/settlement-engine/pkg/invoicing"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
)

const (
	defaultCurrency = "INR"
	defaultGuardTTL = 24 * time.Hour
	guardScope      = "payment-verify"
	expiredReason   = "payment window expired"
	defaultExpiry   = 200
)

// ErrPaymentNotCompleted is returned when the buyer's payment failed or was
// abandoned. Checkout can be retried from scratch.
var ErrPaymentNotCompleted = errors.New("payment was not completed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type totalsCalculator interface {
	Calculate(ctx context.Context, req totals.Request) (totals.Totals, error)
}

type gatewayClient interface {
	KeyID() string
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	Verify(ctx context.Context, gatewayOrderID, paymentID, signature string) (bool, error)
}

type invoiceRenderer interface {
	Render(ctx context.Context, invoice invoicing.Invoice) (*invoicing.Artifact, error)
}

type cartClearer interface {
	Clear(ctx context.Context, buyerID uuid.UUID) error
}

// Service turns a priced checkout session into a committed order.
type Service interface {
	Begin(ctx context.Context, session checkout.Session) (*BeginResult, error)
	Complete(ctx context.Context, result GatewayResult) (*CaptureResult, error)
	PlaceCOD(ctx context.Context, session checkout.Session) (*CaptureResult, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ServiceParams wires the orchestrator. Guard, Cart, Invoices and Notifier are optional.
type ServiceParams struct {
	DB         txRunner
	Repo       Repository
	Orders     orders.Service
	Calculator totalsCalculator
	Gateway    gatewayClient
	Guard      redis.IdempotencyStore
	GuardTTL   time.Duration
	Cart       cartClearer
	Invoices   invoiceRenderer
	Notifier   notifications.Dispatcher
	Currency   string
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	db         txRunner
	repo       Repository
	orders     orders.Service
	calculator totalsCalculator
	gateway    gatewayClient
	guard      redis.IdempotencyStore
	guardTTL   time.Duration
	cart       cartClearer
	invoices   invoiceRenderer
	notifier   notifications.Dispatcher
	currency   string
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payment attempt repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("totals calculator required")
	}
	if params.GuardTTL <= 0 {
		params.GuardTTL = defaultGuardTTL
	}
	if strings.TrimSpace(params.Currency) == "" {
		params.Currency = defaultCurrency
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
		orders:     params.Orders,
		calculator: params.Calculator,
		gateway:    params.Gateway,
		guard:      params.Guard,
		guardTTL:   params.GuardTTL,
		cart:       params.Cart,
		invoices:   params.Invoices,
		notifier:   params.Notifier,
		currency:   params.Currency,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        params.Now,
	}, nil
}

// Begin prices the session on the server, opens a gateway order for exactly that
// total and records the attempt with the frozen session.
func (s *service) Begin(ctx context.Context, session checkout.Session) (*BeginResult, error) {
	method := string(enums.PaymentMethodOnline)
	if session.PaymentMethod != enums.PaymentMethodOnline {
		s.metrics.IncCheckout(method, "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is not an online payment")
	}
	if s.gateway == nil {
		s.metrics.IncCheckout(method, "error")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}

	priced, err := s.price(ctx, session)
	if err != nil {
		s.metrics.IncCheckout(method, "rejected")
		return nil, err
	}
	session.Totals = priced
	amountMinor := money.ToMinorUnits(priced.TotalAmount)
	if amountMinor <= 0 {
		s.metrics.IncCheckout(method, "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive for online payment")
	}

	raw, err := session.Marshal()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "freeze checkout session")
	}
	attempt := &models.PaymentAttempt{
		ID:       uuid.New(),
		BuyerID:  session.BuyerID,
		Method:   enums.PaymentMethodOnline,
		Status:   enums.PaymentAttemptInitiated,
		Amount:   priced.TotalAmount,
		Currency: s.currency,
		Session:  raw,
	}
	attempt.Receipt = receiptFor(attempt.ID)
	ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())
	if err := s.repo.Create(ctx, attempt); err != nil {
		s.metrics.IncCheckout(method, "error")
		return nil, err
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Receipt:     attempt.Receipt,
		Notes:       map[string]string{"attempt_id": attempt.ID.String(), "buyer_id": session.BuyerID.String()},
	})
	if err != nil {
		s.metrics.IncCheckout(method, "gateway_error")
		s.logg.Error(ctx, "gateway order creation failed", err)
		if ferr := s.fail(ctx, attempt.ID, enums.PaymentAttemptInitiated, enums.PaymentAttemptFailed, "gateway order creation failed", nil); ferr != nil {
			s.logg.Error(ctx, "failed to record gateway failure", ferr)
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeDependency {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable, please retry")
	}

	if err := s.move(ctx, s.repo, attempt.ID, enums.PaymentAttemptInitiated, enums.PaymentAttemptGatewayOrderCreated, map[string]any{
		"gateway_order_id": gwOrder.ID,
	}); err != nil {
		return nil, err
	}
	if err := s.move(ctx, s.repo, attempt.ID, enums.PaymentAttemptGatewayOrderCreated, enums.PaymentAttemptAwaitingUserAction, nil); err != nil {
		return nil, err
	}

	s.metrics.IncCheckout(method, "awaiting_payment")
	s.logg.Info(s.logg.WithField(ctx, "gateway_order_id", gwOrder.ID), "payment attempt awaiting buyer")
	return &BeginResult{
		AttemptID:      attempt.ID,
		GatewayOrderID: gwOrder.ID,
		KeyID:          s.gateway.KeyID(),
		AmountMinor:    amountMinor,
		Currency:       s.currency,
		Totals:         priced,
	}, nil
}

// Complete is the single commit point of an online payment.
func (s *service) Complete(ctx context.Context, result GatewayResult) (*CaptureResult, error) {
	switch r := result.(type) {
	case Verified:
		return s.completeVerified(ctx, r)
	case Failed:
		return nil, s.abandon(ctx, r.BuyerID, r.AttemptID, enums.PaymentAttemptFailed, r.Reason, optional(r.GatewayPaymentID))
	case Cancelled:
		return nil, s.abandon(ctx, r.BuyerID, r.AttemptID, enums.PaymentAttemptCancelled, r.Reason, nil)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment result")
	}
}

func (s *service) completeVerified(ctx context.Context, r Verified) (*CaptureResult, error) {
	gwOrderID := strings.TrimSpace(r.GatewayOrderID)
	paymentID := strings.TrimSpace(r.GatewayPaymentID)
	if gwOrderID == "" || paymentID == "" || strings.TrimSpace(r.Signature) == "" {
		s.metrics.IncCapture("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature are required")
	}
	ctx = s.logg.WithField(ctx, "gateway_order_id", gwOrderID)

	if existing, err := s.existingOrder(ctx, gwOrderID, r.BuyerID); existing != nil || err != nil {
		return existing, err
	}

	release, err := s.acquireGuard(ctx, gwOrderID)
	if err != nil {
		return nil, err
	}
	committedOK := false
	defer func() {
		if !committedOK {
			release()
		}
	}()

	attempt, err := s.repo.FindByGatewayOrderID(ctx, gwOrderID)
	if err != nil {
		s.metrics.IncCapture("rejected")
		return nil, err
	}
	ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())
	if err := checkOwner(attempt, r.BuyerID); err != nil {
		return nil, err
	}
	switch attempt.Status {
	case enums.PaymentAttemptAwaitingUserAction:
	case enums.PaymentAttemptVerified:
		if existing, err := s.existingOrder(ctx, gwOrderID, r.BuyerID); existing != nil || err != nil {
			return existing, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "verified payment attempt has no order")
	default:
		s.metrics.IncCapture("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment attempt is no longer awaiting payment").
			WithDetails(map[string]any{"status": attempt.Status})
	}

	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	ok, err := s.gateway.Verify(ctx, gwOrderID, paymentID, r.Signature)
	if err != nil {
		s.metrics.IncCapture("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment signature")
	}
	if !ok {
		s.metrics.IncCapture("signature_mismatch")
		if ferr := s.fail(ctx, attempt.ID, attempt.Status, enums.PaymentAttemptFailed, "signature verification failed", &paymentID); ferr != nil {
			s.logg.Error(ctx, "failed to record signature failure", ferr)
		}
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "payment could not be verified")
	}

	session, err := checkout.UnmarshalSession(attempt.Session)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load frozen checkout session")
	}
	if err := checkAmount(session, attempt); err != nil {
		s.metrics.IncCapture("amount_mismatch")
		if ferr := s.fail(ctx, attempt.ID, attempt.Status, enums.PaymentAttemptFailed, "amount mismatch", &paymentID); ferr != nil {
			s.logg.Error(ctx, "failed to record amount mismatch", ferr)
		}
		return nil, err
	}

	var placed *orders.Placement
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		placed, err = s.orders.Place(ctx, tx, orders.PlaceInput{
			Session:          session,
			PaymentStatus:    enums.PaymentStatusPaid,
			Currency:         attempt.Currency,
			AttemptID:        &attempt.ID,
			GatewayOrderID:   &gwOrderID,
			GatewayPaymentID: &paymentID,
		})
		if err != nil {
			return err
		}
		return s.move(ctx, s.repo.WithTx(tx), attempt.ID, enums.PaymentAttemptAwaitingUserAction, enums.PaymentAttemptVerified, map[string]any{
			"order_id":           placed.Order.ID,
			"gateway_payment_id": paymentID,
			"completed_at":       s.now().UTC(),
		})
	})
	if err != nil {
		if errors.Is(err, orders.ErrDuplicateGatewayOrder) {
			if existing, lookupErr := s.existingOrder(ctx, gwOrderID, r.BuyerID); existing != nil || lookupErr != nil {
				return existing, lookupErr
			}
		}
		s.metrics.IncCapture("error")
		return nil, err
	}
	committedOK = true

	ctx = s.logg.WithOrderID(ctx, placed.Order.ID.String())
	s.metrics.IncCapture("committed")
	s.logg.Info(ctx, "online payment committed")
	return &CaptureResult{
		Order:    placed.Order,
		Warnings: s.afterCommit(ctx, placed.Order, session),
	}, nil
}

// PlaceCOD commits a cash on delivery order right away with payment pending.
func (s *service) PlaceCOD(ctx context.Context, session checkout.Session) (*CaptureResult, error) {
	method := string(enums.PaymentMethodCOD)
	if session.PaymentMethod != enums.PaymentMethodCOD {
		s.metrics.IncCheckout(method, "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is not a cash on delivery order")
	}
	priced, err := s.price(ctx, session)
	if err != nil {
		s.metrics.IncCheckout(method, "rejected")
		return nil, err
	}
	session.Totals = priced

	raw, err := session.Marshal()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "freeze checkout session")
	}
	attempt := &models.PaymentAttempt{
		ID:       uuid.New(),
		BuyerID:  session.BuyerID,
		Method:   enums.PaymentMethodCOD,
		Status:   enums.PaymentAttemptInitiated,
		Amount:   priced.TotalAmount,
		Currency: s.currency,
		Session:  raw,
	}
	attempt.Receipt = receiptFor(attempt.ID)
	ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())

	var placed *orders.Placement
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, attempt); err != nil {
			return err
		}
		var err error
		placed, err = s.orders.Place(ctx, tx, orders.PlaceInput{
			Session:       session,
			PaymentStatus: enums.PaymentStatusPending,
			Currency:      s.currency,
			AttemptID:     &attempt.ID,
		})
		if err != nil {
			return err
		}
		return s.move(ctx, repo, attempt.ID, enums.PaymentAttemptInitiated, enums.PaymentAttemptCommitted, map[string]any{
			"order_id":     placed.Order.ID,
			"completed_at": s.now().UTC(),
		})
	})
	if err != nil {
		s.metrics.IncCheckout(method, "error")
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, placed.Order.ID.String())
	s.metrics.IncCheckout(method, "committed")
	s.logg.Info(ctx, "cash on delivery order placed")
	return &CaptureResult{
		Order:    placed.Order,
		Warnings: s.afterCommit(ctx, placed.Order, session),
	}, nil
}

// abandon records a failed or cancelled attempt. Repeating the same outcome is a no-op.
func (s *service) abandon(ctx context.Context, buyerID, attemptID uuid.UUID, to enums.PaymentAttemptStatus, reason string, paymentID *string) error {
	if attemptID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment attempt id required")
	}
	ctx = s.logg.WithAttemptID(ctx, attemptID.String())
	attempt, err := s.repo.FindByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if err := checkOwner(attempt, buyerID); err != nil {
		return err
	}

	switch {
	case attempt.Status == to:
	case attempt.Status == enums.PaymentAttemptVerified || attempt.Status == enums.PaymentAttemptCommitted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already completed").
			WithDetails(map[string]any{"status": attempt.Status})
	case attempt.Status.IsFinal():
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment attempt already closed").
			WithDetails(map[string]any{"status": attempt.Status})
	default:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = string(to)
		}
		if err := s.fail(ctx, attempt.ID, attempt.Status, to, reason, paymentID); err != nil {
			return err
		}
	}

	s.metrics.IncCapture(string(to))
	s.logg.Warn(ctx, "payment attempt not completed")
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrPaymentNotCompleted, "payment was not completed, please try again").
		WithDetails(map[string]any{"attempt_id": attempt.ID.String(), "status": to})
}

// ExpireStale closes online attempts the buyer never finished. Attempts still
// waiting on the buyer are cancelled, earlier ones are failed. An attempt that
// completes concurrently is left alone.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultExpiry
	}
	stale, err := s.repo.ListOpenBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	var errs error
	expired := 0
	for _, attempt := range stale {
		to := enums.PaymentAttemptFailed
		if attempt.Status == enums.PaymentAttemptAwaitingUserAction {
			to = enums.PaymentAttemptCancelled
		}
		err := s.fail(s.logg.WithAttemptID(ctx, attempt.ID.String()), attempt.ID, attempt.Status, to, expiredReason, nil)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("attempt %s: %w", attempt.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) fail(ctx context.Context, attemptID uuid.UUID, from, to enums.PaymentAttemptStatus, reason string, paymentID *string) error {
	updates := map[string]any{
		"failure_reason": reason,
		"completed_at":   s.now().UTC(),
	}
	if paymentID != nil {
		updates["gateway_payment_id"] = *paymentID
	}
	return s.move(ctx, s.repo, attemptID, from, to, updates)
}

func (s *service) move(ctx context.Context, repo Repository, attemptID uuid.UUID, from, to enums.PaymentAttemptStatus, updates map[string]any) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}
	ok, err := repo.Transition(ctx, attemptID, from, to, updates)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment attempt changed concurrently").
			WithDetails(map[string]any{"expected": from, "target": to})
	}
	return nil
}

// existingOrder returns the replayed result when the gateway order was already committed.
func (s *service) existingOrder(ctx context.Context, gwOrderID string, buyerID uuid.UUID) (*CaptureResult, error) {
	order, err := s.orders.FindByGatewayOrderID(ctx, gwOrderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if buyerID != uuid.Nil && order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another buyer")
	}
	s.metrics.IncCapture("replayed")
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment already committed")
	return &CaptureResult{Order: order, Replayed: true}, nil
}

// acquireGuard keeps two verifications of one gateway order from committing at once.
func (s *service) acquireGuard(ctx context.Context, gwOrderID string) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}
	key := s.guard.IdempotencyKey(guardScope, gwOrderID)
	ok, err := s.guard.SetNX(ctx, key, s.now().UTC().Format(time.RFC3339Nano), s.guardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payment verification guard")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment verification already in progress")
	}
	return func() {
		if err := s.guard.Del(context.WithoutCancel(ctx), key); err != nil {
			s.logg.Error(ctx, "failed to release payment verification guard", err)
		}
	}, nil
}

func (s *service) price(ctx context.Context, session checkout.Session) (totals.Totals, error) {
	if session.BuyerID == uuid.Nil {
		return totals.Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.calculator.Calculate(ctx, session.TotalsRequest())
}

// checkAmount re-derives the frozen totals and compares them with what the
// attempt charged.
func checkAmount(session checkout.Session, attempt *models.PaymentAttempt) error {
	recomputed, err := recompute(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "frozen session cannot be priced")
	}
	charged := money.ToMinorUnits(attempt.Amount)
	if money.ToMinorUnits(recomputed.TotalAmount) != charged || money.ToMinorUnits(session.Totals.TotalAmount) != charged {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "payment amount does not match order total").
			WithDetails(map[string]any{
				"charged":    attempt.Amount.StringFixed(money.Scale),
				"recomputed": recomputed.TotalAmount.StringFixed(money.Scale),
			})
	}
	return nil
}

// recompute prices a frozen session again with the shipping and discount it was
// quoted with.
func recompute(session checkout.Session) (totals.Totals, error) {
	t := session.Totals
	if len(t.Groups) != len(session.Groups) {
		return totals.Totals{}, fmt.Errorf("session has %d seller groups but %d priced groups", len(session.Groups), len(t.Groups))
	}
	in := totals.Input{
		Discount:   t.Discount,
		CouponCode: t.CouponCode,
		BuyerState: session.ShippingAddress.State,
		Rate:       t.GST.Rate,
	}
	for i, g := range session.Groups {
		priced := t.Groups[i]
		in.Groups = append(in.Groups, totals.GroupInput{
			SellerID:    g.Seller.ID,
			SellerState: g.Seller.State,
			Items:       g.Items,
			Shipping: shipping.Quote{
				Cost:    priced.ShippingCost,
				Pending: priced.ShippingPending,
				Window:  priced.DeliveryWindow,
			},
		})
	}
	return totals.Compute(in)
}

func checkOwner(attempt *models.PaymentAttempt, buyerID uuid.UUID) error {
	if buyerID != uuid.Nil && attempt.BuyerID != buyerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment attempt belongs to another buyer")
	}
	return nil
}

func receiptFor(attemptID uuid.UUID) string {
	return "rcpt_" + strings.ReplaceAll(attemptID.String(), "-", "")[:20]
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

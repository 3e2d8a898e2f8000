package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/ledger"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/internal/shipping"
	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/gateway"
	"github.com/angelmondragon/settlement-engine/pkg/invoicing"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

const gatewaySecret = "test_secret"

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type stubCalculator struct {
	calculateFn func(ctx context.Context, req totals.Request) (totals.Totals, error)
}

func (s stubCalculator) Calculate(ctx context.Context, req totals.Request) (totals.Totals, error) {
	return s.calculateFn(ctx, req)
}

// tenPercentOff prices every group with 50 shipping and a 10% order discount.
func tenPercentOff() stubCalculator {
	return stubCalculator{calculateFn: func(_ context.Context, req totals.Request) (totals.Totals, error) {
		in := totals.Input{BuyerState: req.BuyerState, Rate: dec("18"), CouponCode: "SAVE10"}
		subtotal := decimal.Zero
		for _, g := range req.Groups {
			for _, item := range g.Items {
				subtotal = subtotal.Add(item.LineTotal())
			}
			in.Groups = append(in.Groups, totals.GroupInput{
				SellerID:    g.SellerID,
				SellerState: g.SellerState,
				Items:       g.Items,
				Shipping:    shipping.Quote{Cost: dec("50")},
			})
		}
		in.Discount = subtotal.Div(decimal.NewFromInt(10))
		return totals.Compute(in)
	}}
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.CreateOrderRequest
	createFn func(req gateway.CreateOrderRequest) (*gateway.Order, error)
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	g.mu.Unlock()
	if g.createFn != nil {
		return g.createFn(req)
	}
	return &gateway.Order{ID: fmt.Sprintf("order_T%03d", n), AmountMinor: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) Verify(_ context.Context, gatewayOrderID, paymentID, signature string) (bool, error) {
	return gateway.Sign(gatewaySecret, gatewayOrderID, paymentID) == signature, nil
}

type memoryGuard struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryGuard) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryGuard) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryGuard) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryGuard) IdempotencyKey(scope, id string) string { return "stl:idem:" + scope + ":" + id }

type spyCart struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *spyCart) Clear(context.Context, uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

type spyInvoices struct {
	calls int
	err   error
}

func (s *spyInvoices) Render(_ context.Context, invoice invoicing.Invoice) (*invoicing.Artifact, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &invoicing.Artifact{FileName: "invoice-" + invoice.OrderNumber + ".pdf", ContentType: "application/pdf", Content: []byte("%PDF")}, nil
}

type spyNotifier struct {
	calls       int
	attachments []*invoicing.Artifact
	err         error
}

func (s *spyNotifier) OrderConfirmation(_ context.Context, _ *models.Order, invoice *invoicing.Artifact) error {
	s.calls++
	s.attachments = append(s.attachments, invoice)
	return s.err
}

type harness struct {
	client   *db.Client
	gateway  *fakeGateway
	cart     *spyCart
	invoices *spyInvoices
	notifier *spyNotifier
	svc      Service
}

func newHarness(t *testing.T, guard *memoryGuard) *harness {
	t.Helper()
	client := dbtest.Open(t)
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	require.NoError(t, err)
	escrowSvc, err := escrow.NewService(escrow.ServiceParams{
		DB:         client,
		Repo:       escrow.NewRepository(client.DB()),
		Ledger:     ledgerSvc,
		Outbox:     publisher,
		Commission: escrow.FlatCommission{Percent: dec("10")},
	})
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(client.DB()),
		DB:     client,
		Escrow: escrowSvc,
		Outbox: publisher,
	})
	require.NoError(t, err)

	h := &harness{
		client:   client,
		gateway:  &fakeGateway{},
		cart:     &spyCart{},
		invoices: &spyInvoices{},
		notifier: &spyNotifier{},
	}
	params := ServiceParams{
		DB:         client,
		Repo:       NewRepository(client.DB()),
		Orders:     orderSvc,
		Calculator: tenPercentOff(),
		Gateway:    h.gateway,
		Cart:       h.cart,
		Invoices:   h.invoices,
		Notifier:   h.notifier,
	}
	if guard != nil {
		params.Guard = guard
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	return h
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(model).Count(&n).Error)
	return n
}

func (h *harness) attempt(t *testing.T, id uuid.UUID) models.PaymentAttempt {
	t.Helper()
	var attempt models.PaymentAttempt
	require.NoError(t, h.client.DB().First(&attempt, "id = ?", id).Error)
	return attempt
}

func sessionFixture(method enums.PaymentMethod) checkout.Session {
	seller := checkout.Seller{ID: uuid.New(), Name: "Kaveri Crafts", Email: "orders@kaveri.in", State: "Karnataka"}
	return checkout.Session{
		BuyerID:         uuid.New(),
		Contact:         types.ContactSnapshot{Name: "Anil", Email: "anil@example.in", Mobile: "9900011122"},
		ShippingAddress: types.Address{Name: "Anil", Line1: "7 Church Street", City: "Bengaluru", State: "karnataka ", PostalCode: "560001", Country: "IN"},
		Flow:            enums.CheckoutFlowCart,
		PaymentMethod:   method,
		CouponCode:      "SAVE10",
		Groups: []checkout.SellerGroup{{
			Seller: seller,
			Items: []totals.LineItem{
				{ProductID: uuid.New(), Name: "Brass lamp", Quantity: 2, UnitPrice: dec("300")},
				{ProductID: uuid.New(), Name: "Silk runner", Quantity: 1, UnitPrice: dec("400")},
			},
		}},
	}
}

func verified(session checkout.Session, begun *BeginResult) Verified {
	paymentID := "pay_" + begun.GatewayOrderID
	return Verified{
		BuyerID:          session.BuyerID,
		GatewayOrderID:   begun.GatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        gateway.Sign(gatewaySecret, begun.GatewayOrderID, paymentID),
	}
}

func TestAttemptTransitionTable(t *testing.T) {
	cases := []struct {
		from, to enums.PaymentAttemptStatus
		ok       bool
	}{
		{enums.PaymentAttemptInitiated, enums.PaymentAttemptGatewayOrderCreated, true},
		{enums.PaymentAttemptInitiated, enums.PaymentAttemptCommitted, true},
		{enums.PaymentAttemptGatewayOrderCreated, enums.PaymentAttemptAwaitingUserAction, true},
		{enums.PaymentAttemptAwaitingUserAction, enums.PaymentAttemptVerified, true},
		{enums.PaymentAttemptAwaitingUserAction, enums.PaymentAttemptCancelled, true},
		{enums.PaymentAttemptInitiated, enums.PaymentAttemptVerified, false},
		{enums.PaymentAttemptGatewayOrderCreated, enums.PaymentAttemptVerified, false},
		{enums.PaymentAttemptVerified, enums.PaymentAttemptFailed, false},
		{enums.PaymentAttemptCancelled, enums.PaymentAttemptVerified, false},
		{enums.PaymentAttemptCommitted, enums.PaymentAttemptCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	err := checkTransition(enums.PaymentAttemptVerified, enums.PaymentAttemptFailed)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestBeginChargesServerComputedTotal(t *testing.T) {
	h := newHarness(t, nil)
	session := sessionFixture(enums.PaymentMethodOnline)
	session.Totals = totals.Totals{TotalAmount: dec("1")}

	begun, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)

	assert.True(t, begun.Totals.TotalAmount.Equal(dec("1112")))
	assert.Equal(t, int64(111200), begun.AmountMinor)
	assert.Equal(t, "rzp_test_key", begun.KeyID)
	require.Len(t, h.gateway.requests, 1)
	assert.Equal(t, int64(111200), h.gateway.requests[0].AmountMinor)
	assert.Equal(t, "INR", h.gateway.requests[0].Currency)

	attempt := h.attempt(t, begun.AttemptID)
	assert.Equal(t, enums.PaymentAttemptAwaitingUserAction, attempt.Status)
	require.NotNil(t, attempt.GatewayOrderID)
	assert.Equal(t, begun.GatewayOrderID, *attempt.GatewayOrderID)
	frozen, err := checkout.UnmarshalSession(attempt.Session)
	require.NoError(t, err)
	assert.True(t, frozen.Totals.TotalAmount.Equal(dec("1112")))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestBeginGatewayOutageFailsAttempt(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.createFn = func(gateway.CreateOrderRequest) (*gateway.Order, error) {
		return nil, errors.New("dial tcp: i/o timeout")
	}

	_, err := h.svc.Begin(context.Background(), sessionFixture(enums.PaymentMethodOnline))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.MetadataFor(pkgerrors.CodeDependency).Retryable)

	var attempt models.PaymentAttempt
	require.NoError(t, h.client.DB().First(&attempt).Error)
	assert.Equal(t, enums.PaymentAttemptFailed, attempt.Status)
	require.NotNil(t, attempt.FailureReason)
}

func TestBeginRejectsCODSession(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Begin(context.Background(), sessionFixture(enums.PaymentMethodCOD))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, h.gateway.requests)
}

func TestVerifiedPaymentCommitsOrderOnce(t *testing.T) {
	h := newHarness(t, &memoryGuard{})
	session := sessionFixture(enums.PaymentMethodOnline)
	begun, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)

	result, err := h.svc.Complete(context.Background(), verified(session, begun))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.False(t, result.Replayed)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, enums.PaymentStatusPaid, result.Order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, result.Order.Status)
	assert.True(t, result.Order.TotalAmount.Equal(dec("1112")))
	assert.True(t, result.Order.CGST.Equal(dec("81")))
	assert.True(t, result.Order.SGST.Equal(dec("81")))

	attempt := h.attempt(t, begun.AttemptID)
	assert.Equal(t, enums.PaymentAttemptVerified, attempt.Status)
	require.NotNil(t, attempt.OrderID)
	assert.Equal(t, result.Order.ID, *attempt.OrderID)

	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
	assert.Equal(t, int64(1), h.count(t, &models.SubOrder{}))
	assert.Equal(t, int64(2), h.count(t, &models.OrderLineItem{}))
	assert.Equal(t, int64(1), h.count(t, &models.EscrowRecord{}))
	assert.Equal(t, 1, h.cart.calls)
	assert.Equal(t, 1, h.invoices.calls)
	require.Equal(t, 1, h.notifier.calls)
	assert.NotNil(t, h.notifier.attachments[0])

	again, err := h.svc.Complete(context.Background(), verified(session, begun))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, result.Order.ID, again.Order.ID)
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
	assert.Equal(t, 1, h.cart.calls)
	assert.Equal(t, 1, h.notifier.calls)
}

func TestConcurrentVerificationCommitsSingleOrder(t *testing.T) {
	for _, withGuard := range []bool{true, false} {
		t.Run(fmt.Sprintf("guard=%v", withGuard), func(t *testing.T) {
			var guard *memoryGuard
			if withGuard {
				guard = &memoryGuard{}
			}
			h := newHarness(t, guard)
			session := sessionFixture(enums.PaymentMethodOnline)
			begun, err := h.svc.Begin(context.Background(), session)
			require.NoError(t, err)

			const callbacks = 6
			var wg sync.WaitGroup
			results := make([]*CaptureResult, callbacks)
			errs := make([]error, callbacks)
			for i := 0; i < callbacks; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = h.svc.Complete(context.Background(), verified(session, begun))
				}(i)
			}
			wg.Wait()

			fresh := 0
			var orderID uuid.UUID
			for i := range results {
				if errs[i] != nil {
					assert.True(t, pkgerrors.IsCode(errs[i], pkgerrors.CodeConflict), "unexpected error %v", errs[i])
					continue
				}
				if orderID == uuid.Nil {
					orderID = results[i].Order.ID
				}
				assert.Equal(t, orderID, results[i].Order.ID)
				if !results[i].Replayed {
					fresh++
				}
			}
			assert.Equal(t, 1, fresh)
			assert.Equal(t, int64(1), h.count(t, &models.Order{}))
			assert.Equal(t, int64(1), h.count(t, &models.EscrowRecord{}))
			assert.Equal(t, 1, h.notifier.calls)
		})
	}
}

func TestSignatureMismatchLeavesOnlyFailedAttempt(t *testing.T) {
	h := newHarness(t, &memoryGuard{})
	session := sessionFixture(enums.PaymentMethodOnline)
	begun, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)

	forged := verified(session, begun)
	forged.Signature = gateway.Sign("wrong_secret", begun.GatewayOrderID, forged.GatewayPaymentID)
	_, err = h.svc.Complete(context.Background(), forged)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIntegrity))

	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Zero(t, h.count(t, &models.SubOrder{}))
	assert.Zero(t, h.count(t, &models.EscrowRecord{}))
	attempt := h.attempt(t, begun.AttemptID)
	assert.Equal(t, enums.PaymentAttemptFailed, attempt.Status)
	assert.Equal(t, "signature verification failed", *attempt.FailureReason)
	assert.Zero(t, h.cart.calls)

	_, err = h.svc.Complete(context.Background(), verified(session, begun))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestTamperedAttemptAmountIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	session := sessionFixture(enums.PaymentMethodOnline)
	begun, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)
	require.NoError(t, h.client.DB().Model(&models.PaymentAttempt{}).Where("id = ?", begun.AttemptID).Update("amount", dec("1.00")).Error)

	_, err = h.svc.Complete(context.Background(), verified(session, begun))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIntegrity))
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Equal(t, enums.PaymentAttemptFailed, h.attempt(t, begun.AttemptID).Status)
}

func TestFailedAndCancelledAttemptsAreRecorded(t *testing.T) {
	h := newHarness(t, nil)
	session := sessionFixture(enums.PaymentMethodOnline)
	first, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)
	second, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)

	_, err = h.svc.Complete(context.Background(), Failed{BuyerID: session.BuyerID, AttemptID: first.AttemptID, GatewayPaymentID: "pay_declined", Reason: "card declined"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
	attempt := h.attempt(t, first.AttemptID)
	assert.Equal(t, enums.PaymentAttemptFailed, attempt.Status)
	assert.Equal(t, "card declined", *attempt.FailureReason)
	assert.Equal(t, "pay_declined", *attempt.GatewayPaymentID)

	_, err = h.svc.Complete(context.Background(), Cancelled{BuyerID: session.BuyerID, AttemptID: second.AttemptID})
	require.ErrorIs(t, err, ErrPaymentNotCompleted)
	_, err = h.svc.Complete(context.Background(), Cancelled{BuyerID: session.BuyerID, AttemptID: second.AttemptID})
	require.ErrorIs(t, err, ErrPaymentNotCompleted)
	assert.Equal(t, enums.PaymentAttemptCancelled, h.attempt(t, second.AttemptID).Status)

	_, err = h.svc.Complete(context.Background(), Failed{BuyerID: session.BuyerID, AttemptID: second.AttemptID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.Complete(context.Background(), verified(session, second))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestAnotherBuyerCannotCompleteAttempt(t *testing.T) {
	h := newHarness(t, nil)
	session := sessionFixture(enums.PaymentMethodOnline)
	begun, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)

	result := verified(session, begun)
	result.BuyerID = uuid.New()
	_, err = h.svc.Complete(context.Background(), result)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.Complete(context.Background(), Cancelled{BuyerID: uuid.New(), AttemptID: begun.AttemptID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, enums.PaymentAttemptAwaitingUserAction, h.attempt(t, begun.AttemptID).Status)
}

func TestSideEffectFailuresBecomeWarnings(t *testing.T) {
	h := newHarness(t, nil)
	h.cart.err = errors.New("cart store unavailable")
	h.invoices.err = pkgerrors.New(pkgerrors.CodeDependency, "invoice render failed")
	session := sessionFixture(enums.PaymentMethodOnline)
	begun, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)

	result, err := h.svc.Complete(context.Background(), verified(session, begun))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, stepCartClear, result.Warnings[0].Step)
	assert.Equal(t, stepInvoice, result.Warnings[1].Step)

	require.Equal(t, 1, h.notifier.calls)
	assert.Nil(t, h.notifier.attachments[0])
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
	assert.Equal(t, enums.PaymentAttemptVerified, h.attempt(t, begun.AttemptID).Status)
}

func TestPlaceCODCommitsPendingOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.err = errors.New("queue full")
	session := sessionFixture(enums.PaymentMethodCOD)
	session.Flow = enums.CheckoutFlowBuyNow

	result, err := h.svc.PlaceCOD(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, result.Order.Status)
	assert.Nil(t, result.Order.PaidAt)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, stepConfirmation, result.Warnings[0].Step)
	assert.Zero(t, h.cart.calls)
	assert.Empty(t, h.gateway.requests)

	var attempt models.PaymentAttempt
	require.NoError(t, h.client.DB().First(&attempt).Error)
	assert.Equal(t, enums.PaymentAttemptCommitted, attempt.Status)
	assert.Equal(t, result.Order.ID, *attempt.OrderID)

	var rec models.EscrowRecord
	require.NoError(t, h.client.DB().First(&rec, "order_id = ?", result.Order.ID).Error)
	assert.Equal(t, enums.EscrowStatusEscrow, rec.Status)
	assert.Nil(t, rec.PaymentCollectedAt)
	assert.Equal(t, enums.PaymentMethodCOD, rec.PaymentMethod)
}

func TestExpireStaleClosesAbandonedAttempts(t *testing.T) {
	h := newHarness(t, nil)
	session := sessionFixture(enums.PaymentMethodOnline)
	waiting, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)
	done, err := h.svc.Begin(context.Background(), session)
	require.NoError(t, err)
	_, err = h.svc.Complete(context.Background(), verified(session, done))
	require.NoError(t, err)

	cod, err := h.svc.PlaceCOD(context.Background(), sessionFixture(enums.PaymentMethodCOD))
	require.NoError(t, err)
	require.NotNil(t, cod.Order)

	expired, err := h.svc.ExpireStale(context.Background(), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	attempt := h.attempt(t, waiting.AttemptID)
	assert.Equal(t, enums.PaymentAttemptCancelled, attempt.Status)
	assert.Equal(t, "payment window expired", *attempt.FailureReason)
	assert.Equal(t, enums.PaymentAttemptVerified, h.attempt(t, done.AttemptID).Status)

	expired, err = h.svc.ExpireStale(context.Background(), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/api/middleware"
	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

type stubCheckout struct {
	quoteFn func(context.Context, checkout.QuoteInput) (*checkout.Session, error)
}

func (s stubCheckout) Quote(ctx context.Context, input checkout.QuoteInput) (*checkout.Session, error) {
	return s.quoteFn(ctx, input)
}

type stubPayments struct {
	beginFn    func(context.Context, checkout.Session) (*payments.BeginResult, error)
	completeFn func(context.Context, payments.GatewayResult) (*payments.CaptureResult, error)
	codFn      func(context.Context, checkout.Session) (*payments.CaptureResult, error)
}

func (s stubPayments) Begin(ctx context.Context, session checkout.Session) (*payments.BeginResult, error) {
	return s.beginFn(ctx, session)
}

func (s stubPayments) Complete(ctx context.Context, result payments.GatewayResult) (*payments.CaptureResult, error) {
	return s.completeFn(ctx, result)
}

func (s stubPayments) PlaceCOD(ctx context.Context, session checkout.Session) (*payments.CaptureResult, error) {
	return s.codFn(ctx, session)
}

func (stubPayments) ExpireStale(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

type stubEscrow struct {
	getFn     func(context.Context, uuid.UUID) (*models.EscrowRecord, error)
	listFn    func(context.Context, escrow.Filter) (pagination.Page[models.EscrowRecord], error)
	releaseFn func(context.Context, uuid.UUID, escrow.Actor, escrow.ReleaseInput) (*models.EscrowRecord, error)
	refundFn  func(context.Context, uuid.UUID, escrow.Actor, string) (*models.EscrowRecord, error)
	resolveFn func(context.Context, uuid.UUID, escrow.Actor, escrow.Resolution, string) (*models.EscrowRecord, error)
}

func (stubEscrow) Initialize(context.Context, *gorm.DB, *models.Order, []models.SubOrder) ([]models.EscrowRecord, error) {
	return nil, nil
}

func (s stubEscrow) Get(ctx context.Context, id uuid.UUID) (*models.EscrowRecord, error) {
	return s.getFn(ctx, id)
}

func (s stubEscrow) List(ctx context.Context, filter escrow.Filter) (pagination.Page[models.EscrowRecord], error) {
	return s.listFn(ctx, filter)
}

func (stubEscrow) ListByOrder(context.Context, uuid.UUID) ([]models.EscrowRecord, error) {
	return nil, nil
}

func (stubEscrow) RequestApproval(context.Context, uuid.UUID, escrow.Actor) (*models.EscrowRecord, error) {
	return nil, nil
}

func (s stubEscrow) Release(ctx context.Context, id uuid.UUID, actor escrow.Actor, input escrow.ReleaseInput) (*models.EscrowRecord, error) {
	return s.releaseFn(ctx, id, actor, input)
}

func (s stubEscrow) Refund(ctx context.Context, id uuid.UUID, actor escrow.Actor, reason string) (*models.EscrowRecord, error) {
	return s.refundFn(ctx, id, actor, reason)
}

func (stubEscrow) Dispute(context.Context, uuid.UUID, escrow.Actor, string) (*models.EscrowRecord, error) {
	return nil, nil
}

func (s stubEscrow) Resolve(ctx context.Context, id uuid.UUID, actor escrow.Actor, resolution escrow.Resolution, note string) (*models.EscrowRecord, error) {
	return s.resolveFn(ctx, id, actor, resolution, note)
}

func (stubEscrow) Cancel(context.Context, uuid.UUID, escrow.Actor, string) (*models.EscrowRecord, error) {
	return nil, nil
}

func (stubEscrow) MarkPaymentCollected(context.Context, *gorm.DB, uuid.UUID, time.Time) (int64, error) {
	return 0, nil
}

func (stubEscrow) SweepDue(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (stubEscrow) Trigger() escrow.ApprovalTrigger {
	return nil
}

type stubOrders struct {
	deliveryFn func(context.Context, uuid.UUID, escrow.Actor) (*orders.SignalResult, error)
	codFn      func(context.Context, uuid.UUID, escrow.Actor) (*orders.SignalResult, error)
	cancelFn   func(context.Context, uuid.UUID, escrow.Actor, string) (*orders.SignalResult, error)
}

func (stubOrders) Place(context.Context, *gorm.DB, orders.PlaceInput) (*orders.Placement, error) {
	return nil, nil
}

func (stubOrders) Get(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (stubOrders) FindByGatewayOrderID(context.Context, string) (*models.Order, error) {
	return nil, nil
}

func (s stubOrders) ConfirmDelivery(ctx context.Context, id uuid.UUID, actor escrow.Actor) (*orders.SignalResult, error) {
	return s.deliveryFn(ctx, id, actor)
}

func (s stubOrders) ConfirmCODCollected(ctx context.Context, id uuid.UUID, actor escrow.Actor) (*orders.SignalResult, error) {
	return s.codFn(ctx, id, actor)
}

func (s stubOrders) CancelOrder(ctx context.Context, id uuid.UUID, actor escrow.Actor, reason string) (*orders.SignalResult, error) {
	return s.cancelFn(ctx, id, actor, reason)
}

// serve routes a request through a one-route chi mux so path parameters resolve.
func serve(t *testing.T, method, pattern, target, body string, userID uuid.UUID, role enums.Role, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID.String(), string(role)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

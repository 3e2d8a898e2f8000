package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/auth"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type stubPayments struct {
	completeCalls int
}

func (s *stubPayments) Begin(context.Context, checkout.Session) (*payments.BeginResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubPayments) Complete(context.Context, payments.GatewayResult) (*payments.CaptureResult, error) {
	s.completeCalls++
	return &payments.CaptureResult{Order: &models.Order{ID: uuid.New(), OrderNumber: "ORD-1"}}, nil
}

func (s *stubPayments) PlaceCOD(context.Context, checkout.Session) (*payments.CaptureResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubPayments) ExpireStale(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "settlement-test", ExpirationMinutes: 30},
		RateLimit: config.RateLimitConfig{CheckoutPerSecond: 100, CheckoutBurst: 100},
	}
}

func newTestRouter(t *testing.T, paymentsSvc payments.Service, dbErr error) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewJobMetrics(reg).IncSuccess("escrow-approval-sweep")
	return NewRouter(RouterParams{
		Config:      cfg,
		DB:          stubPinger{err: dbErr},
		Redis:       stubPinger{},
		Idempotency: &memoryStore{data: map[string]string{}},
		Gatherer:    reg,
		Payments:    paymentsSvc,
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &stubPayments{}, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected live 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Settlement-Env") != "test" {
		t.Fatalf("expected env header")
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected ready 200 got %d", resp.Code)
	}

	failing, _ := newTestRouter(t, &stubPayments{}, fmt.Errorf("connection refused"))
	resp = httptest.NewRecorder()
	failing.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected ready 503 got %d", resp.Code)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	router, _ := newTestRouter(t, &stubPayments{}, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "settlement_job_success_total") {
		t.Fatalf("expected job metrics in exposition")
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, &stubPayments{}, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/checkout/quote", strings.NewReader(`{}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRoleGates(t *testing.T) {
	router, cfg := newTestRouter(t, &stubPayments{}, nil)

	tests := []struct {
		name   string
		method string
		path   string
		role   enums.Role
	}{
		{"admin on checkout", http.MethodPost, "/api/checkout/quote", enums.RoleAdmin},
		{"buyer on admin escrow", http.MethodGet, "/api/admin/escrow", enums.RoleBuyer},
		{"service on admin escrow", http.MethodGet, "/api/admin/escrow", enums.RoleService},
		{"buyer on internal signals", http.MethodPost, "/api/internal/orders/" + uuid.NewString() + "/cancel", enums.RoleBuyer},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
		req.Header.Set("Authorization", bearer(t, cfg, tt.role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 got %d", tt.name, resp.Code)
		}
	}
}

func TestVerifyRouteIsIdempotent(t *testing.T) {
	paymentsSvc := &stubPayments{}
	router, cfg := newTestRouter(t, paymentsSvc, nil)
	token := bearer(t, cfg, enums.RoleBuyer)
	body := `{"gateway_order_id":"order_gw_1","gateway_payment_id":"pay_1","signature":"sig"}`

	req := httptest.NewRequest(http.MethodPost, "/api/payments/verify", strings.NewReader(body))
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/verify", strings.NewReader(body))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "verify-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d: %s", i, resp.Code, resp.Body.String())
		}
		if i == 1 && resp.Header().Get("Idempotent-Replayed") != "true" {
			t.Fatalf("expected second call to replay")
		}
	}
	if paymentsSvc.completeCalls != 1 {
		t.Fatalf("expected one completion got %d", paymentsSvc.completeCalls)
	}
}

package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

const verifyBody = `{"gateway_order_id":"order_gw_1","gateway_payment_id":"pay_1","signature":"abc"}`

func TestPaymentVerifyStatusReflectsReplay(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	tests := []struct {
		name     string
		replayed bool
		want     int
	}{
		{"first commit", false, http.StatusCreated},
		{"replay", true, http.StatusOK},
	}
	for _, tt := range tests {
		svc := stubPayments{completeFn: func(_ context.Context, result payments.GatewayResult) (*payments.CaptureResult, error) {
			verified, ok := result.(payments.Verified)
			if !ok {
				t.Fatalf("%s: expected Verified result got %T", tt.name, result)
			}
			if verified.BuyerID != buyerID || verified.GatewayOrderID != "order_gw_1" || verified.Signature != "abc" {
				t.Fatalf("%s: unexpected verified payload %+v", tt.name, verified)
			}
			return &payments.CaptureResult{Order: &models.Order{ID: uuid.New()}, Replayed: tt.replayed}, nil
		}}
		resp := serve(t, http.MethodPost, "/payments/verify", "/payments/verify", verifyBody, buyerID, enums.RoleBuyer, PaymentVerify(svc, nil))
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, resp.Code)
		}
	}
}

func TestPaymentVerifyIntegrityFailure(t *testing.T) {
	t.Parallel()

	svc := stubPayments{completeFn: func(context.Context, payments.GatewayResult) (*payments.CaptureResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "signature mismatch")
	}}
	resp := serve(t, http.MethodPost, "/payments/verify", "/payments/verify", verifyBody, uuid.New(), enums.RoleBuyer, PaymentVerify(svc, nil))
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeIntegrity) {
		t.Fatalf("expected integrity code got %s", envelope.Error.Code)
	}
}

func TestPaymentCancelRecordsAttempt(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	attemptID := uuid.New()
	var got payments.GatewayResult
	svc := stubPayments{completeFn: func(_ context.Context, result payments.GatewayResult) (*payments.CaptureResult, error) {
		got = result
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, payments.ErrPaymentNotCompleted, "payment was not completed")
	}}

	resp := serve(t, http.MethodPost, "/payments/{attemptId}/cancel", "/payments/"+attemptID.String()+"/cancel", "", buyerID, enums.RoleBuyer, PaymentCancel(svc, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	cancelled, ok := got.(payments.Cancelled)
	if !ok {
		t.Fatalf("expected Cancelled result got %T", got)
	}
	if cancelled.AttemptID != attemptID || cancelled.BuyerID != buyerID {
		t.Fatalf("unexpected cancelled payload %+v", cancelled)
	}
}

func TestPaymentFailCarriesGatewayReason(t *testing.T) {
	t.Parallel()

	attemptID := uuid.New()
	var got payments.GatewayResult
	svc := stubPayments{completeFn: func(_ context.Context, result payments.GatewayResult) (*payments.CaptureResult, error) {
		got = result
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, payments.ErrPaymentNotCompleted, "payment was not completed")
	}}

	body := `{"gateway_payment_id":"pay_9","reason":"card declined"}`
	resp := serve(t, http.MethodPost, "/payments/{attemptId}/fail", "/payments/"+attemptID.String()+"/fail", body, uuid.New(), enums.RoleBuyer, PaymentFail(svc, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	failed, ok := got.(payments.Failed)
	if !ok {
		t.Fatalf("expected Failed result got %T", got)
	}
	if failed.AttemptID != attemptID || failed.GatewayPaymentID != "pay_9" || failed.Reason != "card declined" {
		t.Fatalf("unexpected failed payload %+v", failed)
	}
}

func TestPaymentCancelRejectsBadAttemptID(t *testing.T) {
	t.Parallel()

	svc := stubPayments{completeFn: func(context.Context, payments.GatewayResult) (*payments.CaptureResult, error) {
		return nil, errors.New("must not be called")
	}}
	resp := serve(t, http.MethodPost, "/payments/{attemptId}/cancel", "/payments/not-a-uuid/cancel", "", uuid.New(), enums.RoleBuyer, PaymentCancel(svc, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

package controllers

import (
	"net/http"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required,max=64"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=64"`
	Signature        string `json:"signature" validate:"required,max=256"`
}

// PaymentVerify commits the order for a payment the gateway reports as captured.
// Retries for an already committed payment return the same order.
func PaymentVerify(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Complete(r.Context(), payments.Verified{
			BuyerID:          buyerID,
			GatewayOrderID:   payload.GatewayOrderID,
			GatewayPaymentID: payload.GatewayPaymentID,
			Signature:        payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessWithWarnings(w, status, captureResponse{
			Order:    newOrderResponse(result.Order),
			Replayed: result.Replayed,
		}, warningMessages(result.Warnings))
	}
}

type abandonPaymentRequest struct {
	GatewayPaymentID string `json:"gateway_payment_id,omitempty" validate:"omitempty,max=64"`
	Reason           string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// PaymentCancel records that the buyer closed the payment window.
func PaymentCancel(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return abandonPayment(svc, logg, func(p abandonPaymentRequest, base payments.Cancelled) payments.GatewayResult {
		base.Reason = validators.SanitizeMultiline(p.Reason, 500)
		return base
	})
}

// PaymentFail records a failure the gateway reported to the client.
func PaymentFail(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return abandonPayment(svc, logg, func(p abandonPaymentRequest, base payments.Cancelled) payments.GatewayResult {
		return payments.Failed{
			BuyerID:          base.BuyerID,
			AttemptID:        base.AttemptID,
			GatewayPaymentID: validators.SanitizeString(p.GatewayPaymentID, 64),
			Reason:           validators.SanitizeMultiline(p.Reason, 500),
		}
	})
}

func abandonPayment(svc payments.Service, logg *logger.Logger, build func(abandonPaymentRequest, payments.Cancelled) payments.GatewayResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attemptID, err := validators.PathUUID(r, "attemptId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload abandonPaymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		// A recorded failure or cancellation still surfaces as ErrPaymentNotCompleted.
		if _, err := svc.Complete(r.Context(), build(payload, payments.Cancelled{BuyerID: buyerID, AttemptID: attemptID})); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"attempt_id": attemptID.String()})
	}
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

// SubOrderDelivered records delivery of one seller's shipment.
func SubOrderDelivered(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderSignal(logg, "subOrderId", func(r *http.Request, id uuid.UUID, actor escrow.Actor) (*orders.SignalResult, error) {
		return svc.ConfirmDelivery(r.Context(), id, actor)
	})
}

// OrderCODCollected records that cash on delivery was collected for the order.
func OrderCODCollected(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderSignal(logg, "orderId", func(r *http.Request, id uuid.UUID, actor escrow.Actor) (*orders.SignalResult, error) {
		return svc.ConfirmCODCollected(r.Context(), id, actor)
	})
}

// OrderCancel cancels the order and every escrow record still held for it.
func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderSignal(logg, "orderId", func(r *http.Request, id uuid.UUID, actor escrow.Actor) (*orders.SignalResult, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.CancelOrder(r.Context(), id, actor, reason)
	})
}

func orderSignal(logg *logger.Logger, param string, apply func(*http.Request, uuid.UUID, escrow.Actor) (*orders.SignalResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := apply(r, id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

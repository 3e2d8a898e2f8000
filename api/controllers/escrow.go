package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

type escrowListResponse struct {
	Items      []escrowResponse `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// AdminEscrowList returns escrow records filtered by status, seller, order, date range and search text.
func AdminEscrowList(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseEscrowFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := escrowListResponse{Items: make([]escrowResponse, 0, len(page.Items)), NextCursor: page.NextCursor}
		for i := range page.Items {
			resp.Items = append(resp.Items, newEscrowResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func parseEscrowFilter(r *http.Request) (escrow.Filter, error) {
	q := r.URL.Query()
	filter := escrow.Filter{Search: validators.SanitizeString(q.Get("q"), 100)}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseEscrowStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = status
	}
	var err error
	if filter.SellerID, err = validators.ParseQueryUUID(r, "seller_id"); err != nil {
		return filter, err
	}
	if filter.OrderID, err = validators.ParseQueryUUID(r, "order_id"); err != nil {
		return filter, err
	}
	if filter.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filter, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return filter, err
	}
	filter.Params = pagination.Params{Limit: limit, Cursor: strings.TrimSpace(q.Get("cursor"))}
	return filter, nil
}

// AdminEscrowDetail returns one escrow record.
func AdminEscrowDetail(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "escrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEscrowResponse(rec))
	}
}

type releaseRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=100"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=bank_transfer upi cheque other"`
	Note          string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// AdminEscrowApprove releases a payout after the administrator has transferred it.
func AdminEscrowApprove(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return escrowAction(logg, func(r *http.Request, id escrowTarget) (*models.EscrowRecord, error) {
		var payload releaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Release(r.Context(), id.escrowID, id.actor, escrow.ReleaseInput{
			TransactionID: payload.TransactionID,
			PaymentMethod: enums.PayoutMethod(payload.PaymentMethod),
			Note:          validators.SanitizeMultiline(payload.Note, 1000),
		})
	})
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func decodeReason(r *http.Request) (string, error) {
	var payload reasonRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return "", err
	}
	return validators.SanitizeMultiline(payload.Reason, 1000), nil
}

// AdminEscrowRefund returns the held amount to the buyer.
func AdminEscrowRefund(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return escrowAction(logg, func(r *http.Request, id escrowTarget) (*models.EscrowRecord, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.Refund(r.Context(), id.escrowID, id.actor, reason)
	})
}

// AdminEscrowCancel cancels a record still in escrow.
func AdminEscrowCancel(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return escrowAction(logg, func(r *http.Request, id escrowTarget) (*models.EscrowRecord, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.Cancel(r.Context(), id.escrowID, id.actor, reason)
	})
}

// AdminEscrowDispute freezes a record pending resolution.
func AdminEscrowDispute(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return escrowAction(logg, func(r *http.Request, id escrowTarget) (*models.EscrowRecord, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.Dispute(r.Context(), id.escrowID, id.actor, reason)
	})
}

type resolveRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=seller buyer"`
	Note       string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// AdminEscrowResolve settles a dispute for the seller or the buyer.
func AdminEscrowResolve(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return escrowAction(logg, func(r *http.Request, id escrowTarget) (*models.EscrowRecord, error) {
		var payload resolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Resolve(r.Context(), id.escrowID, id.actor, escrow.Resolution(payload.Resolution), validators.SanitizeMultiline(payload.Note, 1000))
	})
}

type escrowTarget struct {
	escrowID uuid.UUID
	actor    escrow.Actor
}

func escrowAction(logg *logger.Logger, apply func(r *http.Request, target escrowTarget) (*models.EscrowRecord, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "escrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithEscrowID(ctx, id.String())
		}
		rec, err := apply(r.WithContext(ctx), escrowTarget{escrowID: id, actor: actor})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEscrowResponse(rec))
	}
}

package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

func TestAdminEscrowListParsesFilter(t *testing.T) {
	t.Parallel()

	sellerID := uuid.New()
	var got escrow.Filter
	svc := stubEscrow{listFn: func(_ context.Context, filter escrow.Filter) (pagination.Page[models.EscrowRecord], error) {
		got = filter
		return pagination.Page[models.EscrowRecord]{
			Items:      []models.EscrowRecord{{ID: uuid.New(), Status: enums.EscrowStatusAdminApproval}},
			NextCursor: "next",
		}, nil
	}}

	target := "/admin/escrow?status=admin_approval&seller_id=" + sellerID.String() + "&from=2026-01-01&limit=10&q=ORD-1"
	resp := serve(t, http.MethodGet, "/admin/escrow", target, "", uuid.New(), enums.RoleAdmin, AdminEscrowList(svc, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Status != enums.EscrowStatusAdminApproval {
		t.Fatalf("expected status filter got %q", got.Status)
	}
	if got.SellerID == nil || *got.SellerID != sellerID {
		t.Fatalf("expected seller filter %s", sellerID)
	}
	if got.From == nil || got.To != nil {
		t.Fatalf("expected only a lower date bound")
	}
	if got.Limit != 10 || got.Search != "ORD-1" {
		t.Fatalf("unexpected paging/search %+v", got)
	}

	var envelope struct {
		Data escrowListResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestAdminEscrowListRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	svc := stubEscrow{listFn: func(context.Context, escrow.Filter) (pagination.Page[models.EscrowRecord], error) {
		t.Fatalf("list must not run")
		return pagination.Page[models.EscrowRecord]{}, nil
	}}
	resp := serve(t, http.MethodGet, "/admin/escrow", "/admin/escrow?status=paid", "", uuid.New(), enums.RoleAdmin, AdminEscrowList(svc, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminEscrowApprovePassesPayoutDetails(t *testing.T) {
	t.Parallel()

	adminID := uuid.New()
	escrowID := uuid.New()
	svc := stubEscrow{releaseFn: func(_ context.Context, id uuid.UUID, actor escrow.Actor, input escrow.ReleaseInput) (*models.EscrowRecord, error) {
		if id != escrowID {
			t.Fatalf("expected escrow %s got %s", escrowID, id)
		}
		if actor.ID == nil || *actor.ID != adminID || actor.Role != enums.RoleAdmin {
			t.Fatalf("unexpected actor %+v", actor)
		}
		if input.TransactionID != "UTR123" || input.PaymentMethod != enums.PayoutMethodUPI || input.Note != "paid" {
			t.Fatalf("unexpected release input %+v", input)
		}
		return &models.EscrowRecord{ID: id, Status: enums.EscrowStatusReleased}, nil
	}}

	body := `{"transaction_id":"UTR123","payment_method":"upi","note":"paid"}`
	resp := serve(t, http.MethodPost, "/admin/escrow/{escrowId}/approve", "/admin/escrow/"+escrowID.String()+"/approve", body, adminID, enums.RoleAdmin, AdminEscrowApprove(svc, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminEscrowApproveRequiresTransaction(t *testing.T) {
	t.Parallel()

	svc := stubEscrow{releaseFn: func(context.Context, uuid.UUID, escrow.Actor, escrow.ReleaseInput) (*models.EscrowRecord, error) {
		t.Fatalf("release must not run")
		return nil, nil
	}}
	for _, body := range []string{`{"payment_method":"upi"}`, `{"transaction_id":"UTR1","payment_method":"crypto"}`} {
		resp := serve(t, http.MethodPost, "/admin/escrow/{escrowId}/approve", "/admin/escrow/"+uuid.NewString()+"/approve", body, uuid.New(), enums.RoleAdmin, AdminEscrowApprove(svc, nil))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestAdminEscrowRefundStateConflict(t *testing.T) {
	t.Parallel()

	svc := stubEscrow{refundFn: func(_ context.Context, _ uuid.UUID, _ escrow.Actor, reason string) (*models.EscrowRecord, error) {
		if reason != "damaged goods" {
			t.Fatalf("unexpected reason %q", reason)
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "action no longer available")
	}}
	resp := serve(t, http.MethodPost, "/admin/escrow/{escrowId}/refund", "/admin/escrow/"+uuid.NewString()+"/refund", `{"reason":"damaged goods"}`, uuid.New(), enums.RoleAdmin, AdminEscrowRefund(svc, nil))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "action no longer available" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestAdminEscrowResolveMapsResolution(t *testing.T) {
	t.Parallel()

	var got escrow.Resolution
	svc := stubEscrow{resolveFn: func(_ context.Context, id uuid.UUID, _ escrow.Actor, resolution escrow.Resolution, _ string) (*models.EscrowRecord, error) {
		got = resolution
		return &models.EscrowRecord{ID: id, Status: enums.EscrowStatusRefunded}, nil
	}}
	target := "/admin/escrow/" + uuid.NewString() + "/resolve"
	resp := serve(t, http.MethodPost, "/admin/escrow/{escrowId}/resolve", target, `{"resolution":"buyer"}`, uuid.New(), enums.RoleAdmin, AdminEscrowResolve(svc, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got != escrow.ResolutionBuyer {
		t.Fatalf("expected buyer resolution got %q", got)
	}

	resp = serve(t, http.MethodPost, "/admin/escrow/{escrowId}/resolve", target, `{"resolution":"split"}`, uuid.New(), enums.RoleAdmin, AdminEscrowResolve(svc, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown resolution got %d", resp.Code)
	}
}

func TestAdminEscrowDetailNotFound(t *testing.T) {
	t.Parallel()

	svc := stubEscrow{getFn: func(context.Context, uuid.UUID) (*models.EscrowRecord, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow record not found")
	}}
	resp := serve(t, http.MethodGet, "/admin/escrow/{escrowId}", "/admin/escrow/"+uuid.NewString(), "", uuid.New(), enums.RoleAdmin, AdminEscrowDetail(svc, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error
}

func TestWriteErrorMapsCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    pkgerrors.Code
		message string
	}{
		{"state conflict keeps message", pkgerrors.New(pkgerrors.CodeStateConflict, "action no longer available"), http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict, "action no longer available"},
		{"integrity hides message", pkgerrors.New(pkgerrors.CodeIntegrity, "amount 100 != 120"), http.StatusPaymentRequired, pkgerrors.CodeIntegrity, pkgerrors.MetadataFor(pkgerrors.CodeIntegrity).PublicMessage},
		{"untyped becomes internal", errors.New("boom"), http.StatusInternalServerError, pkgerrors.CodeInternal, pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, tt.err)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.status, rec.Code)
		}
		apiErr := decodeError(t, rec)
		if apiErr.Code != string(tt.code) || apiErr.Message != tt.message {
			t.Fatalf("%s: unexpected payload %+v", tt.name, apiErr)
		}
	}
}

func TestWriteErrorSetsRetryAfterForDependencies(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestWriteSuccessWithWarnings(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessWithWarnings(rec, http.StatusCreated, map[string]string{"order_id": "o-1"}, []string{"invoice: renderer unavailable"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	var envelope struct {
		Data     map[string]string `json:"data"`
		Warnings []string          `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["order_id"] != "o-1" || len(envelope.Warnings) != 1 {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}

package helpers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type line struct {
	seller uuid.UUID
	name   string
}

func TestGroupBySellerKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()
	sellerA := uuid.New()
	sellerB := uuid.New()
	items := []line{{sellerB, "b1"}, {sellerA, "a1"}, {sellerB, "b2"}}

	order, grouped := GroupBySeller(items, func(l line) uuid.UUID { return l.seller })
	if len(order) != 2 || order[0] != sellerB || order[1] != sellerA {
		t.Fatalf("unexpected seller order %v", order)
	}
	if len(grouped[sellerB]) != 2 {
		t.Fatalf("expected 2 items for sellerB, got %d", len(grouped[sellerB]))
	}
	if grouped[sellerA][0].name != "a1" {
		t.Fatalf("unexpected item %v", grouped[sellerA][0])
	}
}

func TestMergeQuantities(t *testing.T) {
	t.Parallel()
	p1, p2 := uuid.New(), uuid.New()
	order, merged := MergeQuantities([]uuid.UUID{p1, p2, p1}, []int{1, 2, 3})
	if len(order) != 2 || order[0] != p1 {
		t.Fatalf("unexpected order %v", order)
	}
	if merged[p1] != 4 || merged[p2] != 2 {
		t.Fatalf("unexpected quantities %v", merged)
	}
}

func TestValidateBilling(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		billing *types.BillingSnapshot
		wantErr bool
	}{
		{name: "not requested", billing: nil},
		{name: "gst invoice off", billing: &types.BillingSnapshot{GSTInvoice: false}},
		{name: "valid", billing: &types.BillingSnapshot{GSTInvoice: true, GSTIN: "27abcde1234f1z5", BusinessName: "Kala Crafts LLP"}},
		{name: "short gstin", billing: &types.BillingSnapshot{GSTInvoice: true, GSTIN: "27ABCDE1234", BusinessName: "Kala"}, wantErr: true},
		{name: "missing business", billing: &types.BillingSnapshot{GSTInvoice: true, GSTIN: "27ABCDE1234F1Z5"}, wantErr: true},
	}
	for _, tc := range cases {
		err := ValidateBilling(tc.billing)
		if tc.wantErr != (err != nil) {
			t.Fatalf("%s: unexpected error state %v", tc.name, err)
		}
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation code, got %v", tc.name, err)
		}
	}
}

func TestValidateDeliveryAddress(t *testing.T) {
	t.Parallel()
	valid := types.Address{Line1: "12 MG Road", City: "Pune", State: "Maharashtra", PostalCode: "411001"}
	if err := ValidateDeliveryAddress(valid); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	missingState := valid
	missingState.State = "  "
	err := ValidateDeliveryAddress(missingState)
	if err == nil {
		t.Fatal("expected missing state error")
	}
	details, _ := pkgerrors.As(err).Details().(map[string]any)
	if missing, _ := details["missing"].([]string); len(missing) != 1 || missing[0] != "state" {
		t.Fatalf("unexpected details %v", details)
	}
	badPin := valid
	badPin.PostalCode = "04110"
	if err := ValidateDeliveryAddress(badPin); err == nil {
		t.Fatal("expected invalid postal code error")
	}
}

func TestValidateContact(t *testing.T) {
	t.Parallel()
	if err := ValidateContact(types.ContactSnapshot{Name: "Asha", Email: "asha@example.in", Mobile: "9876543210"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := ValidateContact(types.ContactSnapshot{Name: "Asha", Email: "not-an-email", Mobile: "9876543210"}); err == nil {
		t.Fatal("expected invalid email error")
	}
	if err := ValidateContact(types.ContactSnapshot{Email: "asha@example.in"}); err == nil {
		t.Fatal("expected incomplete contact error")
	}
}

func TestValidateFlow(t *testing.T) {
	t.Parallel()
	if err := ValidateFlow(enums.CheckoutFlowCart, enums.PaymentMethodCOD, 3); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := ValidateFlow(enums.CheckoutFlowBuyNow, enums.PaymentMethodOnline, 2); err == nil {
		t.Fatal("buy now with two lines must fail")
	}
	if err := ValidateFlow(enums.CheckoutFlowCart, enums.PaymentMethodOnline, 0); err == nil {
		t.Fatal("empty cart must fail")
	}
	if err := ValidateFlow("wishlist", enums.PaymentMethodOnline, 1); err == nil {
		t.Fatal("unknown flow must fail")
	}
	if err := ValidateFlow(enums.CheckoutFlowCart, "upi", 1); err == nil {
		t.Fatal("unknown method must fail")
	}
}

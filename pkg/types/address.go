package types

import (
	"database/sql/driver"
	"strings"
)

// Address is a delivery or billing snapshot copied onto an order at placement.
// Later edits to the buyer's address book never touch it.
type Address struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone,omitempty"`
}

// NormalizedState is the comparison key used for GST place-of-supply checks.
func (a Address) NormalizedState() string {
	return NormalizeState(a.State)
}

// NormalizeState trims and upper-cases a state name or code.
func NormalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func (a Address) Value() (driver.Value, error) {
	return valueJSON(a)
}

func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	return scanJSON(value, a)
}

// ContactSnapshot captures who placed the order.
type ContactSnapshot struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

func (c ContactSnapshot) Value() (driver.Value, error) {
	return valueJSON(c)
}

func (c *ContactSnapshot) Scan(value interface{}) error {
	if value == nil {
		*c = ContactSnapshot{}
		return nil
	}
	return scanJSON(value, c)
}

// BillingSnapshot carries the GST invoice details a business buyer requested.
type BillingSnapshot struct {
	GSTInvoice   bool    `json:"gst_invoice"`
	GSTIN        string  `json:"gstin,omitempty"`
	BusinessName string  `json:"business_name,omitempty"`
	Address      Address `json:"address"`
}

func (b BillingSnapshot) Value() (driver.Value, error) {
	return valueJSON(b)
}

func (b *BillingSnapshot) Scan(value interface{}) error {
	if value == nil {
		*b = BillingSnapshot{}
		return nil
	}
	return scanJSON(value, b)
}

// SellerSnapshot is the seller identity frozen on an escrow record at capture.
type SellerSnapshot struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Tier  string `json:"tier,omitempty"`
}

func (s SellerSnapshot) Value() (driver.Value, error) {
	return valueJSON(s)
}

func (s *SellerSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = SellerSnapshot{}
		return nil
	}
	return scanJSON(value, s)
}

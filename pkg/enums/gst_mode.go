package enums

import "fmt"

// GSTMode records which GST components apply to a supply.
type GSTMode string

const (
	GSTModeCGSTSGST GSTMode = "cgst_sgst"
	GSTModeIGST     GSTMode = "igst"
	GSTModeMixed    GSTMode = "mixed"
)

var validGSTModes = []GSTMode{
	GSTModeCGSTSGST,
	GSTModeIGST,
	GSTModeMixed,
}

// String implements fmt.Stringer.
func (m GSTMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known GSTMode.
func (m GSTMode) IsValid() bool {
	for _, candidate := range validGSTModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseGSTMode converts raw input into a GSTMode.
func ParseGSTMode(value string) (GSTMode, error) {
	for _, candidate := range validGSTModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gst mode %q", value)
}

package types

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"
)

// Dimensions is the physical size of one unit, used for shipping estimates.
// Weight is in kilograms and lengths in centimetres.
type Dimensions struct {
	WeightKg  decimal.Decimal `json:"weight_kg"`
	LengthCm  decimal.Decimal `json:"length_cm"`
	BreadthCm decimal.Decimal `json:"breadth_cm"`
	HeightCm  decimal.Decimal `json:"height_cm"`
}

func (d Dimensions) Value() (driver.Value, error) {
	return valueJSON(d)
}

func (d *Dimensions) Scan(value interface{}) error {
	if value == nil {
		*d = Dimensions{}
		return nil
	}
	return scanJSON(value, d)
}

// DeliveryWindow is the estimated turnaround in days.
type DeliveryWindow struct {
	MinDays int `json:"min_days"`
	MaxDays int `json:"max_days"`
}

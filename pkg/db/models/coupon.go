package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Coupon is read-only from checkout's perspective; authoring lives elsewhere.
type Coupon struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code           string              `gorm:"column:code;not null;uniqueIndex"`
	DiscountType   enums.DiscountType  `gorm:"column:discount_type;type:text;not null"`
	Value          decimal.Decimal     `gorm:"column:value;type:numeric(14,2);not null"`
	MaxDiscount    decimal.NullDecimal `gorm:"column:max_discount;type:numeric(14,2)"`
	MinOrderAmount decimal.Decimal     `gorm:"column:min_order_amount;type:numeric(14,2);not null;default:0"`
	Scope          enums.CouponScope   `gorm:"column:scope;type:text;not null;default:'any'"`
	StartsAt       *time.Time          `gorm:"column:starts_at"`
	ExpiresAt      *time.Time          `gorm:"column:expires_at"`
	Active         bool                `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

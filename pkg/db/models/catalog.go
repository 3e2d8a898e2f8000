package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// Seller is the read model of a marketplace seller. State drives GST place of supply
// and PickupPincode the shipping origin.
type Seller struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Email         string    `gorm:"column:email;not null"`
	Tier          string    `gorm:"column:tier"`
	State         string    `gorm:"column:state;not null"`
	PickupPincode string    `gorm:"column:pickup_pincode"`
	Active        bool      `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Seller) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Product is the priced catalog entry checkout reads. Catalog management lives elsewhere.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID        `gorm:"column:seller_id;type:uuid;not null;index"`
	Name       string           `gorm:"column:name;not null"`
	UnitPrice  decimal.Decimal  `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Dimensions types.Dimensions `gorm:"column:dimensions;type:jsonb"`
	Active     bool             `gorm:"column:active;not null;default:true"`
	Seller     *Seller          `gorm:"foreignKey:SellerID"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// PaymentAttempt is the audit trail of one capture attempt. Session holds the
// checkout snapshot frozen when the attempt started.
type PaymentAttempt struct {
	ID               uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID                  `gorm:"column:buyer_id;type:uuid;not null;index"`
	Method           enums.PaymentMethod        `gorm:"column:method;type:text;not null"`
	Status           enums.PaymentAttemptStatus `gorm:"column:status;type:text;not null"`
	Amount           decimal.Decimal            `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency         string                     `gorm:"column:currency;type:text;not null"`
	Receipt          string                     `gorm:"column:receipt;not null"`
	GatewayOrderID   *string                    `gorm:"column:gateway_order_id;uniqueIndex"`
	GatewayPaymentID *string                    `gorm:"column:gateway_payment_id"`
	Session          json.RawMessage            `gorm:"column:session;type:jsonb;not null"`
	FailureReason    *string                    `gorm:"column:failure_reason"`
	OrderID          *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	CompletedAt      *time.Time                 `gorm:"column:completed_at"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

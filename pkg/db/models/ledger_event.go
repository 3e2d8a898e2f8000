package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// LedgerEvent records an immutable money movement against an escrow record.
type LedgerEvent struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	SubOrderID     uuid.UUID             `gorm:"column:sub_order_id;type:uuid;not null"`
	EscrowRecordID uuid.UUID             `gorm:"column:escrow_record_id;type:uuid;not null;index"`
	SellerID       uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	ActorID        *uuid.UUID            `gorm:"column:actor_id;type:uuid"`
	Type           enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	Amount         decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Metadata       json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (l *LedgerEvent) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

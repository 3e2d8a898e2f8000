package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// EscrowRecord holds one seller's share of an order until an administrator
// releases it. Seller identity is a snapshot taken at capture; commission and
// seller amounts are frozen at creation. Version guards compare-and-swap updates.
type EscrowRecord struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SubOrderID          uuid.UUID           `gorm:"column:sub_order_id;type:uuid;not null;uniqueIndex"`
	OrderID             uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	OrderNumber         string              `gorm:"column:order_number;not null"`
	SellerID            uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	SellerName          string              `gorm:"column:seller_name;not null"`
	SellerEmail         string              `gorm:"column:seller_email;not null"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	TotalAmount         decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null"`
	CommissionRate      decimal.Decimal     `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	CommissionAmount    decimal.Decimal     `gorm:"column:commission_amount;type:numeric(14,2);not null"`
	SellerAmount        decimal.Decimal     `gorm:"column:seller_amount;type:numeric(14,2);not null"`
	Status              enums.EscrowStatus  `gorm:"column:status;type:text;not null;index"`
	Version             int                 `gorm:"column:version;not null;default:1"`
	EscrowActivatedAt   time.Time           `gorm:"column:escrow_activated_at;not null"`
	PaymentCollectedAt  *time.Time          `gorm:"column:payment_collected_at"`
	ApprovalRequestedAt *time.Time          `gorm:"column:approval_requested_at"`
	AdminApprovedAt     *time.Time          `gorm:"column:admin_approved_at"`
	ReleasedAt          *time.Time          `gorm:"column:released_at"`
	RefundedAt          *time.Time          `gorm:"column:refunded_at"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at"`
	DisputedAt          *time.Time          `gorm:"column:disputed_at"`
	ApprovedBy          *uuid.UUID          `gorm:"column:approved_by;type:uuid"`
	PayoutMethod        *enums.PayoutMethod `gorm:"column:payout_method;type:text"`
	PayoutTransactionID *string             `gorm:"column:payout_transaction_id"`
	AdminNote           *string             `gorm:"column:admin_note"`
	DisputeReason       *string             `gorm:"column:dispute_reason"`
	RefundReason        *string             `gorm:"column:refund_reason"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *EscrowRecord) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

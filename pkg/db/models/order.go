package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// Order is one buyer-initiated purchase. Financial fields are written once at
// placement; only status, payment status and settlement timestamps change later.
type Order struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string                 `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID          uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null;index"`
	Contact          types.ContactSnapshot  `gorm:"column:contact;type:jsonb;not null"`
	ShippingAddress  types.Address          `gorm:"column:shipping_address;type:jsonb;not null"`
	Billing          *types.BillingSnapshot `gorm:"column:billing;type:jsonb"`
	Flow             enums.CheckoutFlow     `gorm:"column:flow;type:text;not null"`
	PaymentMethod    enums.PaymentMethod    `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null"`
	Status           enums.OrderStatus      `gorm:"column:status;type:text;not null"`
	Currency         string                 `gorm:"column:currency;type:text;not null;default:'INR'"`
	Subtotal         decimal.Decimal        `gorm:"column:subtotal;type:numeric(14,2);not null"`
	Discount         decimal.Decimal        `gorm:"column:discount;type:numeric(14,2);not null"`
	ShippingCost     decimal.Decimal        `gorm:"column:shipping_cost;type:numeric(14,2);not null"`
	TaxableAmount    decimal.Decimal        `gorm:"column:taxable_amount;type:numeric(14,2);not null"`
	GSTMode          enums.GSTMode          `gorm:"column:gst_mode;type:text;not null"`
	GSTRate          decimal.Decimal        `gorm:"column:gst_rate;type:numeric(5,2);not null"`
	CGST             decimal.Decimal        `gorm:"column:cgst;type:numeric(14,2);not null"`
	SGST             decimal.Decimal        `gorm:"column:sgst;type:numeric(14,2);not null"`
	IGST             decimal.Decimal        `gorm:"column:igst;type:numeric(14,2);not null"`
	GSTTotal         decimal.Decimal        `gorm:"column:gst_total;type:numeric(14,2);not null"`
	TotalAmount      decimal.Decimal        `gorm:"column:total_amount;type:numeric(14,2);not null"`
	ShippingPending  bool                   `gorm:"column:shipping_pending;not null;default:false"`
	CouponCode       *string                `gorm:"column:coupon_code"`
	PaymentAttemptID *uuid.UUID             `gorm:"column:payment_attempt_id;type:uuid"`
	GatewayOrderID   *string                `gorm:"column:gateway_order_id;uniqueIndex"`
	GatewayPaymentID *string                `gorm:"column:gateway_payment_id"`
	PaidAt           *time.Time             `gorm:"column:paid_at"`
	DeliveredAt      *time.Time             `gorm:"column:delivered_at"`
	CancelledAt      *time.Time             `gorm:"column:cancelled_at"`
	SubOrders        []SubOrder             `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// SubOrder is the part of an order fulfilled by one seller.
type SubOrder struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	SellerID        uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	SellerName      string               `gorm:"column:seller_name;not null"`
	SellerEmail     string               `gorm:"column:seller_email;not null"`
	SellerTier      string               `gorm:"column:seller_tier"`
	SellerState     string               `gorm:"column:seller_state;not null"`
	Status          enums.SubOrderStatus `gorm:"column:status;type:text;not null"`
	Subtotal        decimal.Decimal      `gorm:"column:subtotal;type:numeric(14,2);not null"`
	Discount        decimal.Decimal      `gorm:"column:discount;type:numeric(14,2);not null"`
	ShippingCost    decimal.Decimal      `gorm:"column:shipping_cost;type:numeric(14,2);not null"`
	TaxableAmount   decimal.Decimal      `gorm:"column:taxable_amount;type:numeric(14,2);not null"`
	GSTMode         enums.GSTMode        `gorm:"column:gst_mode;type:text;not null"`
	CGST            decimal.Decimal      `gorm:"column:cgst;type:numeric(14,2);not null"`
	SGST            decimal.Decimal      `gorm:"column:sgst;type:numeric(14,2);not null"`
	IGST            decimal.Decimal      `gorm:"column:igst;type:numeric(14,2);not null"`
	GSTTotal        decimal.Decimal      `gorm:"column:gst_total;type:numeric(14,2);not null"`
	TotalAmount     decimal.Decimal      `gorm:"column:total_amount;type:numeric(14,2);not null"`
	ShippingPending bool                 `gorm:"column:shipping_pending;not null;default:false"`
	DeliveryMinDays *int                 `gorm:"column:delivery_min_days"`
	DeliveryMaxDays *int                 `gorm:"column:delivery_max_days"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	Items           []OrderLineItem      `gorm:"foreignKey:SubOrderID"`
	Escrow          *EscrowRecord        `gorm:"foreignKey:SubOrderID"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *SubOrder) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// OrderLineItem is an immutable priced line captured at placement.
type OrderLineItem struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	SubOrderID uuid.UUID        `gorm:"column:sub_order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	SellerID   uuid.UUID        `gorm:"column:seller_id;type:uuid;not null"`
	Name       string           `gorm:"column:name;not null"`
	Quantity   int              `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal  `gorm:"column:unit_price;type:numeric(14,2);not null"`
	LineTotal  decimal.Decimal  `gorm:"column:line_total;type:numeric(14,2);not null"`
	Dimensions types.Dimensions `gorm:"column:dimensions;type:jsonb"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLineItem) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

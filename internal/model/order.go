package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod identifies how an order is paid for.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "COD"
	PaymentCard         PaymentMethod = "Card"
	PaymentPayPal       PaymentMethod = "PAYPAL"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// OrderStatus is an order's lifecycle state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancel     OrderStatus = "cancel"
	StatusRefunded   OrderStatus = "refunded"
	StatusChargeback OrderStatus = "chargeback"
)

// ValidOrderStatus reports whether s is a known lifecycle state.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDelivered, StatusCancel, StatusRefunded, StatusChargeback:
		return true
	}
	return false
}

// StatusSource records which actor applied a status change.
type StatusSource string

const (
	SourceSystem StatusSource = "system"
	SourceAdmin  StatusSource = "admin"
	SourceStripe StatusSource = "stripe"
)

// GiftWrapType selects a gift wrap tier. Empty means no wrap.
type GiftWrapType string

const (
	GiftWrapStandard GiftWrapType = "STANDARD"
	GiftWrapPremium  GiftWrapType = "PREMIUM"
)

// GiftWrap is the wrap selection captured on an order.
type GiftWrap struct {
	Enabled bool         `json:"enabled"`
	Type    GiftWrapType `json:"type"`
	Message string       `json:"message,omitempty"`
}

// Order represents a placed purchase.
//
// CardInfo and PaymentIntent are provider-supplied snapshots stored encrypted
// at rest; they are never serialised into API responses, only surfaced through
// the super-admin payment-details read path.
type Order struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	Invoice           int64              `json:"invoice" db:"invoice"`
	UserID            string             `json:"userId" db:"user_id"`
	Cart              []OrderItem        `json:"cart"`
	SubTotal          float64            `json:"subTotal" db:"sub_total"`
	ShippingCost      float64            `json:"shippingCost" db:"shipping_cost"`
	Discount          float64            `json:"discount" db:"discount"`
	BundleDiscount    float64            `json:"bundleDiscount" db:"bundle_discount"`
	GiftWrapFee       float64            `json:"giftWrapFee" db:"gift_wrap_fee"`
	TotalAmount       float64            `json:"totalAmount" db:"total_amount"`
	GiftWrap          GiftWrap           `json:"giftWrap" db:"gift_wrap"`
	PaymentMethod     PaymentMethod      `json:"paymentMethod" db:"payment_method"`
	PaymentIntentID   *string            `json:"paymentIntentId,omitempty" db:"payment_intent_id"`
	Status            OrderStatus        `json:"status" db:"status"`
	StatusHistory     []StatusEntry      `json:"statusHistory"`
	CardInfo          json.RawMessage    `json:"-" db:"card_info"`
	PaymentIntent     json.RawMessage    `json:"-" db:"payment_intent"`
	RefundDetails     *RefundDetails     `json:"refundDetails,omitempty" db:"refund_details"`
	ChargebackDetails *ChargebackDetails `json:"chargebackDetails,omitempty" db:"chargeback_details"`
	CreatedAt         time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" db:"updated_at"`
}

// OrderItem is a line item captured at order time. Unit price and product
// type are denormalised; later catalogue changes do not affect placed orders.
type OrderItem struct {
	ID          uuid.UUID `json:"-" db:"id"`
	OrderID     uuid.UUID `json:"-" db:"order_id"`
	ProductID   string    `json:"productId" db:"product_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unitPrice" db:"unit_price"`
	ProductType string    `json:"productType" db:"product_type"`
}

// StatusEntry is one append-only status history record.
type StatusEntry struct {
	Status     OrderStatus  `json:"status" db:"status"`
	Source     StatusSource `json:"source" db:"source"`
	OccurredAt time.Time    `json:"timestamp" db:"occurred_at"`
}

// RefundDetails is the provider refund snapshot captured by reconciliation.
// Amount is in minor units, as delivered by the provider.
type RefundDetails struct {
	RefundID   string    `json:"refundId"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ChargebackDetails is the provider dispute snapshot captured by
// reconciliation. Resolved is set once the dispute reaches a terminal
// won/lost state.
type ChargebackDetails struct {
	DisputeID  string    `json:"disputeId"`
	ChargeID   string    `json:"chargeId,omitempty"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	Resolved   bool      `json:"resolved"`
	OccurredAt time.Time `json:"occurredAt"`
}

// CartItemRequest is a single line item submitted by the client. Unknown
// fields are dropped by typed decoding; prices are never accepted from the
// client.
type CartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// GiftWrapRequest is the client's wrap selection. Enabled tolerates boolean
// and common truthy string encodings from older storefront builds.
type GiftWrapRequest struct {
	Enabled FlexBool     `json:"enabled"`
	Type    GiftWrapType `json:"type"`
	Message string       `json:"message"`
}

// CheckoutRequest prices a cart, either to create a payment intent or as the
// pricing portion of order placement.
type CheckoutRequest struct {
	Cart           []CartItemRequest `json:"cart" validate:"required,min=1,dive"`
	Discount       float64           `json:"discount" validate:"gte=0"`
	ShippingOption string            `json:"shippingOption"`
	City           string            `json:"city"`
	GiftWrap       GiftWrapRequest   `json:"giftWrap"`
}

// PlaceOrderRequest is the full order submission.
type PlaceOrderRequest struct {
	CheckoutRequest
	PaymentMethod   PaymentMethod   `json:"paymentMethod" validate:"required"`
	PaymentIntentID string          `json:"paymentIntentId"`
	CardInfo        json.RawMessage `json:"cardInfo,omitempty"`
}

// PaymentIntentResponse is returned by create-payment-intent.
type PaymentIntentResponse struct {
	ClientSecret   string  `json:"clientSecret"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	SubTotal       float64 `json:"subTotal"`
	ShippingCost   float64 `json:"shippingCost"`
	Discount       float64 `json:"discount"`
	BundleDiscount float64 `json:"bundleDiscount"`
	GiftWrapFee    float64 `json:"giftWrapFee"`
	TotalAmount    float64 `json:"totalAmount"`
}

// PaymentDetails carries decrypted payment snapshots for the super-admin
// read path.
type PaymentDetails struct {
	OrderID       uuid.UUID       `json:"orderId"`
	CardInfo      json.RawMessage `json:"cardInfo,omitempty"`
	PaymentIntent json.RawMessage `json:"paymentIntent,omitempty"`
}

// FlexBool decodes JSON booleans as well as legacy truthy string and numeric
// encodings ("true", "yes", "1", 1).
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

func (b FlexBool) Bool() bool { return bool(b) }

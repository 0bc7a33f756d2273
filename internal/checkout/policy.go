package checkout

import "gemcart/internal/model"

// Policy is a read-only snapshot of the merchant's checkout configuration,
// loaded from the global settings document. It is never mutated by this
// subsystem.
type Policy struct {
	Currency string `json:"currency"`

	CODEnabled          bool `json:"codEnabled"`
	CardEnabled         bool `json:"cardEnabled"`
	PayPalEnabled       bool `json:"paypalEnabled"`
	BankTransferEnabled bool `json:"bankTransferEnabled"`

	ShippingStandard float64 `json:"shippingStandard"`
	ShippingExpress  float64 `json:"shippingExpress"`
	// FreeShippingMin disables STANDARD shipping charges once the subtotal
	// reaches it. Zero means no free-shipping threshold.
	FreeShippingMin float64 `json:"freeShippingMin"`

	// ShippingTiers are evaluated in declaration order; the first matching
	// tier wins. The flat charges above are the fallback.
	ShippingTiers []ShippingTier `json:"shippingTiers"`

	BundleDiscount BundleDiscountRule `json:"bundleDiscount"`
	GiftWrap       GiftWrapRule       `json:"giftWrap"`
}

// ShippingTier is one city/option/subtotal-range shipping rule.
type ShippingTier struct {
	City        string         `json:"city"`
	Option      ShippingOption `json:"option"`
	MinSubtotal float64        `json:"minSubtotal"`
	MaxSubtotal *float64       `json:"maxSubtotal,omitempty"`
	Cost        float64        `json:"cost"`
}

// BundleDiscountRule applies a percentage discount once the cart holds at
// least MinItems units in total.
type BundleDiscountRule struct {
	Enabled  bool    `json:"enabled"`
	Percent  float64 `json:"percent"`
	MinItems int     `json:"minItems"`
}

// GiftWrapRule is the merchant's gift wrap fee schedule.
type GiftWrapRule struct {
	Enabled     bool    `json:"enabled"`
	StandardFee float64 `json:"standardFee"`
	PremiumFee  float64 `json:"premiumFee"`
}

// MethodEnabled reports whether a payment method is switched on.
func (p *Policy) MethodEnabled(m model.PaymentMethod) bool {
	switch m {
	case model.PaymentCOD:
		return p.CODEnabled
	case model.PaymentCard:
		return p.CardEnabled
	case model.PaymentPayPal:
		return p.PayPalEnabled
	case model.PaymentBankTransfer:
		return p.BankTransferEnabled
	}
	return false
}

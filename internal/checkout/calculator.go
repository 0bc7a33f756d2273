package checkout

import (
	"regexp"
	"strings"

	"gemcart/internal/model"

	"github.com/shopspring/decimal"
)

// ShippingOption is a resolved delivery speed.
type ShippingOption string

const (
	ShippingStandard ShippingOption = "STANDARD"
	ShippingExpress  ShippingOption = "EXPRESS"
	// ShippingNone is the resolution of an empty or unrecognised option;
	// it carries no charge. Requiring a selection is the caller's job.
	ShippingNone ShippingOption = ""
)

// LineItem is a normalised cart entry: one product, a positive quantity.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Breakdown is the authoritative priced result for a cart. All float values
// are rounded to 2 decimals; MinorUnits is the provider-facing integer amount.
type Breakdown struct {
	SubTotal       float64
	ShippingCost   float64
	Discount       float64
	BundleDiscount float64
	GiftWrapFee    float64
	Total          float64
	MinorUnits     int64
	Currency       string
}

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NormalizeCart coalesces duplicate product references by summing their
// quantities, preserving first-seen order. It rejects non-positive quantities
// and malformed product ids with ErrInvalidCart, and an empty result with
// ErrEmptyCart.
func NormalizeCart(items []model.CartItemRequest) ([]LineItem, error) {
	index := make(map[string]int, len(items))
	normalized := make([]LineItem, 0, len(items))

	for _, item := range items {
		if !productIDPattern.MatchString(item.ProductID) {
			return nil, model.ErrInvalidCart
		}
		if item.Quantity <= 0 {
			return nil, model.ErrInvalidCart
		}
		if i, ok := index[item.ProductID]; ok {
			normalized[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(normalized)
		normalized = append(normalized, LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if len(normalized) == 0 {
		return nil, model.ErrEmptyCart
	}
	return normalized, nil
}

// ResolveShippingOption maps a requested option to STANDARD or EXPRESS,
// case-insensitively, accepting legacy storefront synonyms. Anything else
// resolves to ShippingNone.
func ResolveShippingOption(requested string) ShippingOption {
	switch strings.ToUpper(strings.TrimSpace(requested)) {
	case "STANDARD", "REGULAR", "NORMAL", "FREE":
		return ShippingStandard
	case "EXPRESS", "FAST", "EXPEDITED":
		return ShippingExpress
	}
	return ShippingNone
}

// Calculate produces the authoritative order total for a normalised cart.
//
// prices must contain the current unit price of every purchasable product the
// cart references; callers obtain it from the catalogue excluding
// discontinued products. A size mismatch between the cart and prices fails
// with ErrProductsUnavailable, which is what makes every line item provably
// purchasable at calculation time.
//
// Calculate is deterministic and performs no I/O, so the same call validates
// a payment intent amount and the final order.
func Calculate(
	cart []LineItem,
	prices map[string]float64,
	discount float64,
	shippingOption string,
	city string,
	giftWrap model.GiftWrapRequest,
	policy *Policy,
) (*Breakdown, error) {
	if len(cart) == 0 {
		return nil, model.ErrEmptyCart
	}
	if discount < 0 {
		return nil, model.ErrInvalidCart
	}
	if len(prices) != len(cart) {
		return nil, model.ErrProductsUnavailable
	}

	subTotal := decimal.Zero
	totalItems := 0
	for _, item := range cart {
		price, ok := prices[item.ProductID]
		if !ok {
			return nil, model.ErrProductsUnavailable
		}
		subTotal = subTotal.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(item.Quantity))))
		totalItems += item.Quantity
	}
	subTotal = subTotal.Round(2)

	shipping := resolveShippingCost(subTotal, shippingOption, city, policy)
	wrapFee := resolveGiftWrapFee(giftWrap, policy)
	bundle := resolveBundleDiscount(subTotal, totalItems, policy)

	// Round the client discount once so the total recomposes exactly from
	// the breakdown's own fields.
	clientDiscount := decimal.NewFromFloat(discount).Round(2)

	total := subTotal.
		Add(shipping).
		Add(wrapFee).
		Sub(clientDiscount).
		Sub(bundle).
		Round(2)

	if total.Sign() <= 0 {
		return nil, model.ErrInvalidTotal
	}

	minor := total.Mul(decimal.NewFromInt(100)).Round(0)
	if minor.Sign() <= 0 || !minor.IsInteger() {
		return nil, model.ErrInvalidTotal
	}

	return &Breakdown{
		SubTotal:       subTotal.InexactFloat64(),
		ShippingCost:   shipping.InexactFloat64(),
		Discount:       clientDiscount.InexactFloat64(),
		BundleDiscount: bundle.InexactFloat64(),
		GiftWrapFee:    wrapFee.InexactFloat64(),
		Total:          total.InexactFloat64(),
		MinorUnits:     minor.IntPart(),
		Currency:       policy.Currency,
	}, nil
}

// resolveShippingCost applies, in precedence order: the free-shipping
// threshold (STANDARD only), the first matching city/option/subtotal tier,
// then the policy's flat charge.
func resolveShippingCost(subTotal decimal.Decimal, requested, city string, policy *Policy) decimal.Decimal {
	option := ResolveShippingOption(requested)
	if option == ShippingNone {
		return decimal.Zero
	}

	if option == ShippingStandard && policy.FreeShippingMin > 0 &&
		subTotal.GreaterThanOrEqual(decimal.NewFromFloat(policy.FreeShippingMin)) {
		return decimal.Zero
	}

	for _, tier := range policy.ShippingTiers {
		if tier.Option != option || !strings.EqualFold(tier.City, city) {
			continue
		}
		if subTotal.LessThan(decimal.NewFromFloat(tier.MinSubtotal)) {
			continue
		}
		if tier.MaxSubtotal != nil && subTotal.GreaterThan(decimal.NewFromFloat(*tier.MaxSubtotal)) {
			continue
		}
		return decimal.NewFromFloat(tier.Cost).Round(2)
	}

	if option == ShippingExpress {
		return decimal.NewFromFloat(policy.ShippingExpress).Round(2)
	}
	return decimal.NewFromFloat(policy.ShippingStandard).Round(2)
}

func resolveGiftWrapFee(req model.GiftWrapRequest, policy *Policy) decimal.Decimal {
	if !policy.GiftWrap.Enabled || !req.Enabled.Bool() {
		return decimal.Zero
	}
	if req.Type == model.GiftWrapPremium {
		return decimal.NewFromFloat(policy.GiftWrap.PremiumFee).Round(2)
	}
	return decimal.NewFromFloat(policy.GiftWrap.StandardFee).Round(2)
}

// resolveBundleDiscount is a percentage of the subtotal once the cart holds
// enough units, capped at the subtotal itself.
func resolveBundleDiscount(subTotal decimal.Decimal, totalItems int, policy *Policy) decimal.Decimal {
	rule := policy.BundleDiscount
	if !rule.Enabled || rule.MinItems <= 0 || totalItems < rule.MinItems {
		return decimal.Zero
	}

	discount := subTotal.
		Mul(decimal.NewFromFloat(rule.Percent)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	if discount.GreaterThan(subTotal) {
		return subTotal
	}
	return discount
}

package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON           = "INVALID_JSON"
	ErrCodeMissingField          = "MISSING_FIELD"
	ErrCodeInvalidCart           = "INVALID_CART"
	ErrCodeEmptyCart             = "EMPTY_CART"
	ErrCodeProductsUnavailable   = "PRODUCTS_UNAVAILABLE"
	ErrCodeInvalidTotal          = "INVALID_TOTAL"
	ErrCodePaymentMethodDisabled = "PAYMENT_METHOD_DISABLED"
	ErrCodePaymentAmountMismatch = "PAYMENT_AMOUNT_MISMATCH"
	ErrCodeMissingPaymentIntent  = "MISSING_PAYMENT_INTENT"
	ErrCodePaymentNotSucceeded   = "PAYMENT_NOT_SUCCEEDED"
	ErrCodeOutOfStock            = "OUT_OF_STOCK"
	ErrCodeInvalidStatus         = "INVALID_STATUS"
	ErrCodeOrderNotFound         = "ORDER_NOT_FOUND"
	ErrCodeEncryptionRequired    = "ENCRYPTION_REQUIRED"
	ErrCodeUnauthorised          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// DomainError is a business-rule violation carrying a stable error code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidCart           = NewDomainError(ErrCodeInvalidCart, "Cart contains an invalid product reference or quantity")
	ErrEmptyCart             = NewDomainError(ErrCodeEmptyCart, "Cart must contain at least one item")
	ErrProductsUnavailable   = NewDomainError(ErrCodeProductsUnavailable, "One or more products are unavailable or discontinued")
	ErrInvalidTotal          = NewDomainError(ErrCodeInvalidTotal, "Order total must be a positive amount")
	ErrPaymentMethodDisabled = NewDomainError(ErrCodePaymentMethodDisabled, "The selected payment method is not enabled")
	ErrPaymentAmountMismatch = NewDomainError(ErrCodePaymentAmountMismatch, "Paid amount does not match the order total")
	ErrMissingPaymentIntent  = NewDomainError(ErrCodeMissingPaymentIntent, "A payment intent id is required for card payments")
	ErrPaymentNotSucceeded   = NewDomainError(ErrCodePaymentNotSucceeded, "The payment has not succeeded")
	ErrOutOfStock            = NewDomainError(ErrCodeOutOfStock, "Insufficient stock for one or more products")
	ErrInvalidStatus         = NewDomainError(ErrCodeInvalidStatus, "Unknown order status")
	ErrOrderNotFound         = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrEncryptionRequired    = NewDomainError(ErrCodeEncryptionRequired, "Payment field encryption is required but no key is configured")
)

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"gemcart/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes a standardised error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Warn().Str("code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps a service error to its HTTP representation. Internal
// error detail is withheld from the response body.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainStatus(domainErr.Code), domainErr.Code, domainErr.Message, logger)
		return
	}

	logger.Error().Err(err).Msg("internal error")
	writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
}

// domainStatus maps the error taxonomy onto HTTP status codes: validation
// failures are 400s, conflicts over product or payment state are 409s.
func domainStatus(code string) int {
	switch code {
	case model.ErrCodeInvalidJSON,
		model.ErrCodeMissingField,
		model.ErrCodeInvalidCart,
		model.ErrCodeEmptyCart,
		model.ErrCodeInvalidStatus,
		model.ErrCodePaymentMethodDisabled,
		model.ErrCodeMissingPaymentIntent:
		return http.StatusBadRequest
	case model.ErrCodeProductsUnavailable,
		model.ErrCodeOutOfStock,
		model.ErrCodeInvalidTotal,
		model.ErrCodePaymentAmountMismatch,
		model.ErrCodePaymentNotSucceeded:
		return http.StatusConflict
	case model.ErrCodeOrderNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

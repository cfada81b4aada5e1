package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stegvault/stegvault/internal/crypto"
	"github.com/stegvault/stegvault/internal/payload"
	"github.com/stegvault/stegvault/internal/stego"
)

// APIError is the JSON error response body.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// WriteJSON writes the error response.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus)
	_ = json.NewEncoder(w).Encode(e)
}

// TranslateError maps core errors onto the HTTP surface. The mapping keeps
// the core's taxonomy visible in the code field so clients can distinguish a
// wrong passphrase (or tampering, deliberately the same code) from a
// malformed carrier or an undersized one.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErr *crypto.ValidationError
	if errors.As(err, &validationErr) {
		return &APIError{
			Code:       "ValidationError",
			Message:    validationErr.Error(),
			HTTPStatus: http.StatusBadRequest,
		}
	}

	var capacityErr *stego.CapacityError
	if errors.As(err, &capacityErr) {
		return &APIError{
			Code:       "CapacityError",
			Message:    capacityErr.Error(),
			HTTPStatus: http.StatusRequestEntityTooLarge,
		}
	}

	var formatErr *stego.FormatError
	if errors.As(err, &formatErr) {
		return &APIError{
			Code:       "FormatError",
			Message:    formatErr.Error(),
			HTTPStatus: http.StatusUnsupportedMediaType,
		}
	}

	var versionErr *payload.UnsupportedVersionError
	if errors.As(err, &versionErr) {
		return &APIError{
			Code:       "UnsupportedVersionError",
			Message:    versionErr.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
		}
	}

	var payloadErr *payload.FormatError
	if errors.As(err, &payloadErr) {
		return &APIError{
			Code:       "PayloadFormatError",
			Message:    payloadErr.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
		}
	}

	if errors.Is(err, crypto.ErrAuthentication) {
		return &APIError{
			Code:       "AuthenticationFailure",
			Message:    crypto.ErrAuthentication.Error(),
			HTTPStatus: http.StatusForbidden,
		}
	}

	return &APIError{
		Code:       "InternalError",
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Predefined request-level errors.
var (
	errMissingCarrier = &APIError{
		Code:       "ValidationError",
		Message:    "multipart field 'carrier' is required",
		HTTPStatus: http.StatusBadRequest,
	}

	errMissingPassphrase = &APIError{
		Code:       "ValidationError",
		Message:    "form field 'passphrase' is required",
		HTTPStatus: http.StatusBadRequest,
	}

	errMissingSecret = &APIError{
		Code:       "ValidationError",
		Message:    "form field 'secret' or file 'secret_file' is required",
		HTTPStatus: http.StatusBadRequest,
	}
)

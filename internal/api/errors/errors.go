// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"

	"github.com/qcose/qcose/internal/api/dto"
	"github.com/qcose/qcose/pkg/cose"
)

// Error codes for API responses.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeCryptoError      = "CRYPTO_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeMalformed        = "MALFORMED_MESSAGE"
	CodeSigVerifyFail    = "SIGNATURE_VERIFICATION_FAILED"
	CodeUnsupportedAlg   = "UNSUPPORTED_ALGORITHM"
	CodeNoVerifier       = "NO_VERIFIER_FOR_ALGORITHM"
	CodeMissingPayload   = "DETACHED_PAYLOAD_REQUIRED"
	CodeTagPolicy        = "TAG_POLICY_VIOLATION"
	CodeKeyError         = "KEY_ERROR"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, cose.ErrSign1Format), errors.Is(err, cose.ErrSignFormat),
		errors.Is(err, cose.ErrCBORDecode), errors.Is(err, cose.ErrCBORNotWellFormed):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeMalformed,
			Message: err.Error(),
		}
	case errors.Is(err, cose.ErrMissingPayload):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeMissingPayload,
			Message: err.Error(),
		}
	case errors.Is(err, cose.ErrTagRequired), errors.Is(err, cose.ErrTagProhibited):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeTagPolicy,
			Message: err.Error(),
		}
	case errors.Is(err, cose.ErrUnsupportedSigningAlg):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeUnsupportedAlg,
			Message: err.Error(),
		}
	case errors.Is(err, cose.ErrNoVerifierForAlg), errors.Is(err, cose.ErrKIDUnmatched):
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeNoVerifier,
			Message: err.Error(),
		}
	case errors.Is(err, cose.ErrSigVerifyFail), errors.Is(err, cose.ErrNoSignatures):
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeSigVerifyFail,
			Message: err.Error(),
		}
	case errors.Is(err, cose.ErrHashGeneralFail):
		return http.StatusInternalServerError, &dto.APIError{
			Code:    CodeCryptoError,
			Message: err.Error(),
		}
	}

	// Check for a *cose.Error with operation context.
	var coseErr *cose.Error
	if errors.As(err, &coseErr) {
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeMalformed,
			Message: coseErr.Error(),
			Details: map[string]string{"operation": coseErr.Op},
		}
	}

	// Default internal error
	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, details map[string]string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}

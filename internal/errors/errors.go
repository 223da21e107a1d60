// Package errors defines the alert engine's error taxonomy.
//
// Failures are caught at the narrowest scope that can still make a useful
// decision (one recipient, one wallet, one definition) and surface as
// operator reports, never as process-level panics.
package errors

import (
	"fmt"

	"github.com/stealth-alerts/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryAuthUnavailable means no valid upstream credential could be
	// obtained. Fatal for the current evaluation cycle.
	CategoryAuthUnavailable ErrorCategory = "auth_unavailable"
	// CategoryUpstreamFetch means a transient provider failure. The current
	// definition is skipped; other definitions proceed.
	CategoryUpstreamFetch ErrorCategory = "upstream_fetch"
	// CategoryEnrichment means a per-field enrichment lookup failed. The
	// field stays unset and the match is still delivered.
	CategoryEnrichment ErrorCategory = "enrichment"
	// CategoryDelivery means a per-recipient send failed after retries.
	CategoryDelivery ErrorCategory = "delivery"
	// CategoryDuplicateWebhook means a webhook delivery id was already
	// claimed. Treated as success, not an error.
	CategoryDuplicateWebhook ErrorCategory = "duplicate_webhook"
	// CategoryValidation means malformed input (bad payload, bad definition).
	CategoryValidation ErrorCategory = "validation"
	// CategoryStorage means a database or cache failure.
	CategoryStorage ErrorCategory = "storage"
)

// CategorizedError represents an error with a category and machine code
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewAuthUnavailableError creates an auth unavailable error
func NewAuthUnavailableError(cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryAuthUnavailable,
		Code:     "AUTH_UNAVAILABLE",
		Message:  "no valid upstream credential obtainable",
		Cause:    cause,
	}
}

// NewUpstreamFetchError creates an upstream fetch error
func NewUpstreamFetchError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryUpstreamFetch,
		Code:     "UPSTREAM_FETCH_FAILED",
		Message:  fmt.Sprintf("upstream fetch failed during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewEnrichmentError creates a per-field enrichment error
func NewEnrichmentError(field, subject string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryEnrichment,
		Code:     "ENRICHMENT_UNAVAILABLE",
		Message:  fmt.Sprintf("enrichment %s unavailable for %s", field, subject),
		Cause:    cause,
		Details: map[string]interface{}{
			"field":   field,
			"subject": subject,
		},
	}
}

// NewDeliveryError creates a per-recipient delivery error
func NewDeliveryError(recipient int64, attempts int, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryDelivery,
		Code:     "DELIVERY_FAILED",
		Message:  fmt.Sprintf("delivery to %d failed after %d attempts", recipient, attempts),
		Cause:    cause,
		Details: map[string]interface{}{
			"recipient": recipient,
			"attempts":  attempts,
		},
	}
}

// NewDuplicateWebhookError creates a duplicate webhook delivery marker
func NewDuplicateWebhookError(deliveryID string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryDuplicateWebhook,
		Code:     "DUPLICATE_WEBHOOK_DELIVERY",
		Message:  fmt.Sprintf("webhook delivery %s already processed", deliveryID),
		Details: map[string]interface{}{
			"deliveryId": deliveryID,
		},
	}
}

// NewValidationError creates a validation error
func NewValidationError(subject, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryValidation,
		Code:     "INVALID_INPUT",
		Message:  fmt.Sprintf("invalid %s: %s", subject, reason),
		Details: map[string]interface{}{
			"subject": subject,
			"reason":  reason,
		},
	}
}

// NewStorageError creates a storage error
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryStorage,
		Code:     "STORAGE_ERROR",
		Message:  fmt.Sprintf("storage error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}
	return &CategorizedError{
		Category: CategoryStorage,
		Code:     "INTERNAL_ERROR",
		Message:  "unexpected error",
		Cause:    err,
	}
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category ErrorCategory) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == category
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	switch catErr.Category {
	case CategoryUpstreamFetch, CategoryDelivery, CategoryStorage:
		return true
	default:
		return false
	}
}

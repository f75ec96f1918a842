package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited marks provider responses throttled upstream (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks network or socket failures worth retrying.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound marks entities the provider no longer knows about.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input or payloads.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRateLimited reports whether an error carries the rate-limit marker.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient reports whether an error carries the transient marker.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsRetryable reports whether the adapter retry wrapper should attempt the
// call again. Not-found, validation, and configuration failures are terminal
// for the item; everything else gets another attempt.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

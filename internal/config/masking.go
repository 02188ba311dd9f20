package config

import (
	"github.com/aatumaykin/agentpool/internal/storage"
)

// MaskedStorageURL returns the storage URL with its password hidden, for logs.
func (c *Config) MaskedStorageURL() string {
	return storage.Describe(c.Storage.URL)
}

// formatValidationError builds a ValidationError. Callers pass value already masked.
func formatValidationError(field, message, value string) error {
	msg := field + ": " + message
	if value != "" {
		msg += " (value: " + value + ")"
	}
	return &ValidationError{Field: field, Message: msg}
}

// ValidationError is a configuration error tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

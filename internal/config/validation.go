package config

import (
	"fmt"
	"strings"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value interface{}) {
	*ve = append(*ve, ValidationError{Field: field, Value: value, Message: message})
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs ValidationErrors

	if _, err := locale.Resolve(c.CountryCode); err != nil {
		errs.Add("country_code", "is not a known marketplace", c.CountryCode)
	}

	switch c.Strategy {
	case StrategyTerminal, StrategyServer:
	default:
		errs.Add("strategy", fmt.Sprintf("must be one of: %s, %s", StrategyTerminal, StrategyServer), c.Strategy)
	}

	if !c.Keyring && strings.TrimSpace(c.SessionPath) == "" {
		errs.Add("session_path", "is required unless keyring is enabled", c.SessionPath)
	}

	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		errs.Add("callback_port", "must be between 0 and 65535", c.CallbackPort)
	}

	if c.CaptureTimeout < 0 {
		errs.Add("capture_timeout", "must not be negative", c.CaptureTimeout)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("log_level", err.Error(), c.LogLevel)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

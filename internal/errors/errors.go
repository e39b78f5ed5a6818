// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict is returned by repositories when an insert hits a unique constraint.
var ErrConflict = errors.New("unique constraint conflict")

// AuthenticationError means an inbound request could not be proven to come from the provider.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

func NewAuthenticationError(reason string) error {
	return &AuthenticationError{Reason: reason}
}

// ConfigurationError means an inbox or contact lacks the identifiers a channel needs.
type ConfigurationError struct {
	Channel string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration for %s: %s", e.Channel, strings.Join(e.Missing, ", "))
}

func NewConfigurationError(channel string, missing ...string) error {
	return &ConfigurationError{Channel: channel, Missing: missing}
}

// ProviderError carries an error payload returned by an external messaging API.
type ProviderError struct {
	Channel    string
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s provider error %d: %s", e.Channel, e.Code, e.Message)
	}
	return fmt.Sprintf("%s provider error (http %d): %s", e.Channel, e.StatusCode, e.Message)
}

// NotFoundError is returned when a lookup by key yields nothing.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func NewNotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// UnauthorizedError is returned when a widget visitor does not own the conversation.
type UnauthorizedError struct {
	ConversationID string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized"
}

func NewUnauthorized(conversationID string) error {
	return &UnauthorizedError{ConversationID: conversationID}
}

// ValidationError wraps a malformed request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned for status changes the conversation state machine forbids.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move conversation from %s to %s", e.From, e.To)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

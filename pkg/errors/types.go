package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Interrupt core errors
	ErrCodeInterruptInvalid ErrorCode = "INTERRUPT_INVALID"
	ErrCodeResponseNotFound ErrorCode = "RESPONSE_NOT_FOUND"
	ErrCodeResponseEmpty    ErrorCode = "RESPONSE_EMPTY"
	ErrCodeArityMismatch    ErrorCode = "ARITY_MISMATCH"
	ErrCodeSubmitFailed     ErrorCode = "SUBMIT_FAILED"

	// Session errors
	ErrCodeSessionClosed  ErrorCode = "SESSION_CLOSED"
	ErrCodeSessionDial    ErrorCode = "SESSION_DIAL"
	ErrCodeSessionTimeout ErrorCode = "SESSION_TIMEOUT"

	// Platform API errors
	ErrCodePlatformAPI       ErrorCode = "PLATFORM_API"
	ErrCodePlatformNotFound  ErrorCode = "PLATFORM_NOT_FOUND"
	ErrCodePlatformRateLimit ErrorCode = "PLATFORM_RATE_LIMIT"

	// Auth errors
	ErrCodeAuthToken   ErrorCode = "AUTH_TOKEN"
	ErrCodeAuthExpired ErrorCode = "AUTH_EXPIRED"

	// Storage errors
	ErrCodeStorageRead  ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite ErrorCode = "STORAGE_WRITE"

	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error represents a structured agentdeck error
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Retryable   bool
	UserMessage string
}

// New creates a new structured error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap wraps an existing error with agentdeck error context
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
	}
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRetryable marks the error as retryable
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithUserMessage sets the human-friendly message shown to users.
// The raw error text never reaches the notification sink directly.
func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString("}")
	}

	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// UserFacing returns the message suitable for display, falling back to
// a generic string when no explicit user message was set.
func (e *Error) UserFacing() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return "something went wrong, please try again"
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	deckErr, ok := err.(*Error)
	if !ok {
		return false
	}

	return deckErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	deckErr, ok := err.(*Error)
	if !ok {
		return ErrCodeInternal
	}

	return deckErr.Code
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	deckErr, ok := err.(*Error)
	if !ok {
		return false
	}

	return deckErr.Retryable
}

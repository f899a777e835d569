package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeConfiguration = "E100"
	CodeStorage       = "E200"
	CodeHardware      = "E300"
	CodeController    = "E400"
)

type AppError struct {
	Code      string
	Message   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewConfigurationError(cause error) *AppError {
	return &AppError{
		Code:      CodeConfiguration,
		Message:   fmt.Sprintf("Configuration error: %s", causeMessage(cause)),
		Severity:  SeverityCritical,
		Retryable: false,
		cause:     cause,
	}
}

func NewStorageError(cause error) *AppError {
	return &AppError{
		Code:      CodeStorage,
		Message:   fmt.Sprintf("Storage error: %s", causeMessage(cause)),
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewHardwareError(device string, cause error) *AppError {
	return &AppError{
		Code:      CodeHardware,
		Message:   fmt.Sprintf("Hardware error on %s: %s", device, causeMessage(cause)),
		Severity:  SeverityHigh,
		Retryable: false,
		cause:     cause,
	}
}

func NewControllerError(cause error) *AppError {
	return &AppError{
		Code:      CodeController,
		Message:   fmt.Sprintf("Controller error: %s", causeMessage(cause)),
		Severity:  SeverityHigh,
		Retryable: false,
		cause:     cause,
	}
}

// Within re-roots e under outer, an error that wraps e and adds context.
// The result keeps e's classification and reports outer's message.
func (e *AppError) Within(outer error) *AppError {
	return &AppError{
		Code:      e.Code,
		Message:   causeMessage(outer),
		Severity:  e.Severity,
		Retryable: e.Retryable,
		cause:     outer,
	}
}

func causeMessage(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

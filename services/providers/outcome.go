package providers

import (
	"fmt"

	"github.com/upb/llm-compare/services/redact"
)

// ErrorKind is the closed set of normalized failure categories
type ErrorKind string

const (
	ErrorKindUnconfigured ErrorKind = "unconfigured"
	ErrorKindRateLimited  ErrorKind = "rate_limited"
	ErrorKindTransient    ErrorKind = "transient"
	ErrorKindUnknown      ErrorKind = "unknown"
)

// UserMessage returns the stable human-readable explanation shown in a failed slot
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrorKindUnconfigured:
		return "configure a valid credential"
	case ErrorKindRateLimited:
		return "rate limit reached, try later"
	case ErrorKindTransient:
		return "provider temporarily unavailable, try again"
	default:
		return "provider returned an unexpected error"
	}
}

// Failure describes why a provider call did not produce text
type Failure struct {
	Kind   ErrorKind
	Detail string
}

// Outcome is the tagged result of one adapter call: Success or Failure
type Outcome struct {
	Text    string
	Usage   Usage
	Failure *Failure
}

// Success creates a successful outcome
func Success(text string, usage Usage) Outcome {
	return Outcome{Text: text, Usage: usage}
}

// Fail creates a failed outcome; credentials echoed in detail are masked
func Fail(kind ErrorKind, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Detail: redact.Secrets(detail)}}
}

// Failf creates a failed outcome with a formatted detail
func Failf(kind ErrorKind, format string, args ...interface{}) Outcome {
	return Fail(kind, fmt.Sprintf(format, args...))
}

// OK reports whether the outcome is a success
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Kind returns the failure kind, or empty for a success
func (o Outcome) Kind() ErrorKind {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}

// Detail returns the failure detail, or empty for a success
func (o Outcome) Detail() string {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Detail
}

// Render returns the text for a success or the ErrorKind explanation for a failure
func (o Outcome) Render() string {
	if o.Failure == nil {
		return o.Text
	}
	return o.Failure.Kind.UserMessage()
}

// ProviderError represents an error returned by a provider's remote API
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the provider's error code or type
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%d %s", e.StatusCode, msg)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// FailureFromError converts any remote-call error into a failed Outcome
func FailureFromError(err error) Outcome {
	return Fail(Classify(err), err.Error())
}

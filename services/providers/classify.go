package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

var (
	rateLimitMarkers = []string{
		"429",
		"quota",
		"billing",
		"rate limit",
		"rate_limit",
		"ratelimit",
		"resource_exhausted",
		"too many requests",
	}

	credentialMarkers = []string{
		"401",
		"403",
		"api key not valid",
		"invalid api key",
		"invalid_api_key",
		"invalid x-api-key",
		"incorrect api key",
		"unauthorized",
		"permission denied",
		"authentication",
	}

	transientMarkers = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"network",
		"unavailable",
		"overloaded",
		"eof",
	}
)

// ClassifyStatus maps an HTTP status code to an ErrorKind.
// The boolean is false when the status alone is not conclusive.
func ClassifyStatus(status int) (ErrorKind, bool) {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		return ErrorKindRateLimited, true
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorKindUnconfigured, true
	case status == http.StatusRequestTimeout, status >= 500 && status <= 599:
		return ErrorKindTransient, true
	}
	return "", false
}

// ClassifyMessage maps free-form error text to an ErrorKind by keyword
func ClassifyMessage(text string) ErrorKind {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, rateLimitMarkers):
		return ErrorKindRateLimited
	case containsAny(lower, credentialMarkers):
		return ErrorKindUnconfigured
	case containsAny(lower, transientMarkers):
		return ErrorKindTransient
	}
	return ErrorKindUnknown
}

// Classify maps any remote-call error to an ErrorKind
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorKindTransient
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode != 0 {
		if kind, ok := ClassifyStatus(provErr.StatusCode); ok {
			return kind
		}
		// The cause chain carries request URLs; only the API message is meaningful here
		return ClassifyMessage(provErr.Message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorKindTransient
	}

	return ClassifyMessage(err.Error())
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

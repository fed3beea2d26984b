package gateway

import "fmt"

type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindRateLimited  ErrorKind = "rate_limited"
	KindBadRequest   ErrorKind = "bad_request"
	KindUnavailable  ErrorKind = "unavailable"
	KindUnknown      ErrorKind = "unknown"
)

// APIError classifies a failed gateway call. StatusCode is zero for
// transport-level failures.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("paypal: %s (status=%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("paypal: %s: %s", e.Kind, e.Message)
}

func classifyStatus(status int, body string) *APIError {
	kind := KindUnknown
	switch {
	case status == 401 || status == 403:
		kind = KindUnauthorized
	case status == 429:
		kind = KindRateLimited
	case status >= 400 && status < 500:
		kind = KindBadRequest
	case status >= 500:
		kind = KindUnavailable
	}
	return &APIError{Kind: kind, StatusCode: status, Message: truncateBody(body)}
}

func truncateBody(body string) string {
	const max = 1024
	if len(body) > max {
		return body[:max]
	}
	return body
}

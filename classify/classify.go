// Package classify maps backend transport failures to structured error kinds
// with retryability and backoff hints.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind is the category of a transport failure.
type Kind int

const (
	Other Kind = iota
	AuthenticationFailed
	PermissionDenied
	InvalidModel
	BadRequest
	RequestTooLarge
	RateLimited
	ServerError
	ServiceUnavailable
	GatewayError
	Timeout
)

var kindNames = map[Kind]string{
	Other:                "other",
	AuthenticationFailed: "authentication_failed",
	PermissionDenied:     "permission_denied",
	InvalidModel:         "invalid_model",
	BadRequest:           "bad_request",
	RequestTooLarge:      "request_too_large",
	RateLimited:          "rate_limited",
	ServerError:          "server_error",
	ServiceUnavailable:   "service_unavailable",
	GatewayError:         "gateway_error",
	Timeout:              "timeout",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message length limits.
const (
	badRequestLimit = 200
	otherLimit      = 500
)

// DefaultBackoff is used for retryable kinds without a Retry-After hint.
const DefaultBackoff = time.Second

// ErrorKind is a classified transport failure.
type ErrorKind struct {
	Kind   Kind
	Status int
	// Message is the (possibly truncated) response body or error text.
	Message string
	// Model and Suggestion are set for InvalidModel.
	Model      string
	Suggestion string
	// RetryAfter is set for RateLimited when the server supplied a hint.
	RetryAfter time.Duration
}

// Retryable reports whether another attempt may succeed.
func (e ErrorKind) Retryable() bool {
	switch e.Kind {
	case RateLimited, ServerError, ServiceUnavailable, GatewayError, Timeout:
		return true
	}
	return false
}

// Backoff is the delay before the next attempt: the server hint when
// present, otherwise DefaultBackoff. Non-retryable kinds return zero.
func (e ErrorKind) Backoff() time.Duration {
	if !e.Retryable() {
		return 0
	}
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	return DefaultBackoff
}

func (e ErrorKind) String() string {
	switch e.Kind {
	case AuthenticationFailed:
		return "authentication failed: check the API key"
	case PermissionDenied:
		return "permission denied for this resource"
	case InvalidModel:
		s := fmt.Sprintf("invalid model %q", e.Model)
		if e.Suggestion != "" {
			s += fmt.Sprintf("; try %q", e.Suggestion)
		}
		return s
	case BadRequest:
		return "bad request: " + e.Message
	case RequestTooLarge:
		return "request too large: reduce the input size"
	case RateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
		}
		return "rate limited"
	case ServerError:
		return fmt.Sprintf("server error (status %d)", e.Status)
	case ServiceUnavailable:
		return "service unavailable"
	case GatewayError:
		return fmt.Sprintf("gateway error (status %d)", e.Status)
	case Timeout:
		return "request timed out"
	}
	if e.Status > 0 {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return e.Message
}

// WithModelHint reports hint as the model of an InvalidModel kind. Other
// kinds and an empty hint leave e unchanged.
func (e ErrorKind) WithModelHint(hint string) ErrorKind {
	if e.Kind == InvalidModel && hint != "" {
		e.Model = hint
	}
	return e
}

// Classify maps a status code, response body and Retry-After header value to
// an ErrorKind.
func Classify(status int, body, retryAfter string) ErrorKind {
	return ClassifyModel(status, body, retryAfter, "")
}

// ClassifyModel is Classify for a request naming modelHint. An InvalidModel
// result reports the hint, falling back to a name found in the body.
func ClassifyModel(status int, body, retryAfter, modelHint string) ErrorKind {
	e := ErrorKind{Status: status}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = AuthenticationFailed
	case status == http.StatusForbidden:
		e.Kind = PermissionDenied
	case status == http.StatusNotFound:
		if strings.Contains(strings.ToLower(body), "model") {
			e.Kind = InvalidModel
			e.Model = modelHint
			if e.Model == "" {
				e.Model = extractModel(body)
			}
			if e.Model == "" {
				e.Model = "unknown"
			}
			e.Suggestion = suggestModel(body)
		} else {
			e.Kind = Other
			e.Message = Truncate(body, otherLimit)
		}
	case status == http.StatusBadRequest:
		e.Kind = BadRequest
		e.Message = Truncate(body, badRequestLimit)
	case status == http.StatusRequestEntityTooLarge:
		e.Kind = RequestTooLarge
	case status == http.StatusTooManyRequests:
		e.Kind = RateLimited
		e.RetryAfter = ParseRetryAfter(retryAfter)
	case status == http.StatusInternalServerError || status == http.StatusBadGateway:
		e.Kind = ServerError
	case status == http.StatusServiceUnavailable:
		e.Kind = ServiceUnavailable
	case status >= 520 && status <= 524:
		e.Kind = GatewayError
	default:
		e.Kind = Other
		e.Message = Truncate(body, otherLimit)
	}
	return e
}

// FromResponse classifies a non-2xx HTTP response. The body is read up to a
// bounded size and closed.
func FromResponse(resp *http.Response) ErrorKind {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}
	return Classify(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
}

// FromError classifies a transport-level error without a response. Deadline
// and network timeouts become Timeout; everything else is Other.
func FromError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKind{Kind: Timeout, Message: err.Error()}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrorKind{Kind: Timeout, Message: err.Error()}
	}
	return ErrorKind{Kind: Other, Message: Truncate(err.Error(), otherLimit)}
}

// ParseRetryAfter reads a Retry-After value given in whole seconds. Other
// forms yield zero.
func ParseRetryAfter(v string) time.Duration {
	secs, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Truncate cuts s to at most limit bytes on a rune boundary and appends
// "..." when anything was removed.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// extractModel returns the first quoted token longer than two characters
// made only of letters, digits, '-', '.' and '_'. Single-quoted tokens are
// preferred; double-quoted tokens followed by ':' are JSON keys and skipped.
func extractModel(body string) string {
	for _, q := range []byte{'\'', '"'} {
		for i := 0; i < len(body); i++ {
			if body[i] != q {
				continue
			}
			j := strings.IndexByte(body[i+1:], q)
			if j < 0 {
				break
			}
			end := i + 1 + j
			if q == '"' && strings.HasPrefix(strings.TrimLeft(body[end+1:], " "), ":") {
				i = end
				continue
			}
			if cand := body[i+1 : end]; len(cand) > 2 && modelToken(cand) {
				return cand
			}
		}
	}
	return ""
}

func modelToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '.', r == '_':
		default:
			return false
		}
	}
	return true
}

func suggestModel(body string) string {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "gpt"):
		return "gpt-5.2"
	case strings.Contains(lower, "claude"), strings.Contains(lower, "sonnet"):
		return "claude-sonnet-4-5-20250929"
	case strings.Contains(lower, "gemini"):
		return "gemini-3-flash-preview"
	}
	return ""
}

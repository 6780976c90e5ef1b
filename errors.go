package structout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reoring/structout/classify"
	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/dialect"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeParseError      = "parse_error"
	CodeDuplicateKey    = "duplicate_key"
	CodeTooDeep         = "too_deep"
	CodeSchemaViolation = "schema_violation"
	CodeHookFailed      = "hook_failed"
	CodeEmptyResponse   = "empty_response"
	CodeTruncated       = "truncated"
)

// Issue represents a single validation entry.
type Issue struct {
	Path    string // JSON Pointer (for example: /items/2/price).
	Code    string // One of the codes listed above.
	Message string
	// Keyword is the schema keyword that failed, for schema violations.
	Keyword string
	Cause   error // Optional: underlying error.
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. schema_violation at /path: message
		fmt.Fprintf(b, "%s at %s", it.Code, pathOrRoot(it.Path))
		if it.Message != "" {
			b.WriteString(": ")
			b.WriteString(it.Message)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

func pathOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// SynthesisError reports a malformed descriptor. It is fatal and never retried.
type SynthesisError = descriptor.Error

// ErrUnknownDialect is returned for a dialect name with no adapter.
var ErrUnknownDialect = dialect.ErrUnknownDialect

// ErrNoAttempts is returned when a retry loop is asked to run without a
// backend call.
var ErrNoAttempts = errors.New("structout: no backend call configured")

// ValidationError is a JSON parse or semantic validation failure. The raw
// response is kept so it can be replayed as the prior assistant turn.
type ValidationError struct {
	Message     string
	RawResponse string
	Issues      Issues
	Cause       error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return "validation failed: " + e.Message
	}
	return "validation failed: " + e.Issues.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// TransportError is a classified backend failure.
type TransportError struct {
	Kind classify.ErrorKind
	// Cause is the error returned by the backend call, when there was one.
	Cause error
}

// NewTransportError classifies a non-success backend response.
func NewTransportError(status int, body, retryAfter string) *TransportError {
	return &TransportError{Kind: classify.Classify(status, body, retryAfter)}
}

// NewModelTransportError is NewTransportError for a request naming model.
func NewModelTransportError(model string, status int, body, retryAfter string) *TransportError {
	return &TransportError{Kind: classify.ClassifyModel(status, body, retryAfter, model)}
}

func (e *TransportError) Error() string { return "transport: " + e.Kind.String() }

func (e *TransportError) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt may succeed.
func (e *TransportError) Retryable() bool { return e.Kind.Retryable() }

// Backoff is the delay suggested before the next attempt.
func (e *TransportError) Backoff() time.Duration { return e.Kind.Backoff() }

// ExhaustedError is the terminal failure after every attempt was used. It
// wraps the last underlying error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// AsIssues extracts Issues from an error using errors.As internally. A
// ValidationError anywhere in the chain yields its issues.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var ve *ValidationError
	if errors.As(err, &ve) && len(ve.Issues) > 0 {
		return ve.Issues, true
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsTransportError extracts a *TransportError from err.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	ok := errors.As(err, &te)
	return te, ok
}

// AsSynthesisError extracts a *SynthesisError from err.
func AsSynthesisError(err error) (*SynthesisError, bool) {
	var se *SynthesisError
	ok := errors.As(err, &se)
	return se, ok
}

package structout

import (
	"bytes"
	"errors"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/reoring/structout/i18n"
	"github.com/reoring/structout/internal/jsonscan"
	"github.com/reoring/structout/jsonschema"
)

// Validatable is implemented by target types that check their own business
// rules after decoding.
type Validatable interface {
	Validate() error
}

type validatorConfig struct {
	rejectDuplicates bool
	maxDepth         int
	disallowUnknown  bool
	checker          *jsonschema.Checker
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*validatorConfig)

// RejectDuplicateKeys fails responses that repeat a key within one object.
func RejectDuplicateKeys() ValidatorOption {
	return func(c *validatorConfig) { c.rejectDuplicates = true }
}

// MaxDepth fails responses nested deeper than n containers.
func MaxDepth(n int) ValidatorOption {
	return func(c *validatorConfig) { c.maxDepth = n }
}

// DisallowUnknownFields fails responses carrying keys the target type does
// not declare.
func DisallowUnknownFields() ValidatorOption {
	return func(c *validatorConfig) { c.disallowUnknown = true }
}

// WithSchemaCheck validates the decoded response against a compiled schema
// before it is bound to the target type.
func WithSchemaCheck(c *jsonschema.Checker) ValidatorOption {
	return func(cfg *validatorConfig) { cfg.checker = c }
}

// Validator parses backend output into T and applies semantic checks. Every
// failure is a *ValidationError carrying the raw text.
type Validator[T any] struct {
	cfg  validatorConfig
	hook func(*T) error
}

// NewValidator returns a Validator for T.
func NewValidator[T any](opts ...ValidatorOption) *Validator[T] {
	v := &Validator[T]{}
	for _, o := range opts {
		o(&v.cfg)
	}
	return v
}

// WithHook sets a semantic check run after decoding. It replaces the
// Validatable method of T when both exist.
func (v *Validator[T]) WithHook(fn func(*T) error) *Validator[T] {
	cp := *v
	cp.hook = fn
	return &cp
}

// Parse decodes raw into T and validates it.
func (v *Validator[T]) Parse(raw string) (T, error) {
	var out T
	body := StripCodeFence(raw)
	if strings.TrimSpace(body) == "" {
		return out, &ValidationError{
			Message:     i18n.T(i18n.KeyEmptyResponse, nil),
			RawResponse: raw,
			Issues:      Issues{{Code: CodeEmptyResponse}},
		}
	}
	data := []byte(body)

	if v.cfg.rejectDuplicates || v.cfg.maxDepth > 0 {
		rep := jsonscan.Bytes(data, jsonscan.Options{RejectDuplicates: v.cfg.rejectDuplicates, MaxDepth: v.cfg.maxDepth})
		if iss := scanIssues(rep); len(iss) > 0 {
			return out, &ValidationError{Message: joinMessages(iss), RawResponse: raw, Issues: iss}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if v.cfg.disallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&out); err != nil {
		return out, parseFailure(err, raw)
	}

	if v.cfg.checker != nil {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return out, parseFailure(err, raw)
		}
		vs, err := v.cfg.checker.Check(generic)
		if err != nil {
			return out, &ValidationError{Message: err.Error(), RawResponse: raw, Cause: err}
		}
		if len(vs) > 0 {
			iss := make(Issues, 0, len(vs))
			for _, x := range vs {
				iss = AppendIssues(iss, Issue{
					Path:    x.Path,
					Code:    CodeSchemaViolation,
					Keyword: x.Keyword,
					Message: i18n.T(i18n.KeySchemaViolation, map[string]string{"path": pathOrRoot(x.Path), "error": x.Message}),
				})
			}
			return out, &ValidationError{Message: joinMessages(iss), RawResponse: raw, Issues: iss}
		}
	}

	if err := v.check(&out); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			if ve.RawResponse == "" {
				ve.RawResponse = raw
			}
			return out, ve
		}
		return out, &ValidationError{
			Message:     i18n.T(i18n.KeyHookFailed, map[string]string{"error": err.Error()}),
			RawResponse: raw,
			Issues:      Issues{{Code: CodeHookFailed, Message: err.Error(), Cause: err}},
			Cause:       err,
		}
	}
	return out, nil
}

func (v *Validator[T]) check(out *T) error {
	if v.hook != nil {
		return v.hook(out)
	}
	if vv, ok := any(out).(Validatable); ok {
		return vv.Validate()
	}
	return nil
}

func parseFailure(err error, raw string) *ValidationError {
	msg := i18n.T(i18n.KeyParseError, map[string]string{"error": err.Error(), "raw": raw})
	return &ValidationError{
		Message:     msg,
		RawResponse: raw,
		Issues:      Issues{{Code: CodeParseError, Message: err.Error(), Cause: err}},
		Cause:       err,
	}
}

func scanIssues(rep jsonscan.Report) Issues {
	var iss Issues
	for _, f := range rep.Findings {
		switch f.Code {
		case jsonscan.CodeDuplicateKey:
			iss = AppendIssues(iss, Issue{Path: f.Path, Code: CodeDuplicateKey,
				Message: i18n.T(i18n.KeyDuplicateKey, map[string]string{"key": keyOf(f.Message), "path": pathOrRoot(f.Path)})})
		case jsonscan.CodeTooDeep:
			iss = AppendIssues(iss, Issue{Path: f.Path, Code: CodeTooDeep,
				Message: i18n.T(i18n.KeyTooDeep, map[string]string{"path": pathOrRoot(f.Path)})})
		case jsonscan.CodeTruncated:
			iss = AppendIssues(iss, Issue{Path: f.Path, Code: CodeTruncated, Message: f.Message})
		}
		// parse errors are reported by the decoder with better context
	}
	return iss
}

// keyOf extracts the quoted key from a jsonscan duplicate message.
func keyOf(msg string) string {
	start := strings.IndexByte(msg, '\'')
	end := strings.LastIndexByte(msg, '\'')
	if start < 0 || end <= start {
		return msg
	}
	return msg[start : end+1]
}

func joinMessages(iss Issues) string {
	msgs := make([]string, 0, len(iss))
	for _, it := range iss {
		msgs = append(msgs, it.Message)
	}
	return strings.Join(msgs, "\n")
}

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// from s. Text without a fence is returned trimmed.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		lang := strings.TrimSpace(t[:nl])
		if lang == "" || !strings.ContainsAny(lang, "{[\"") {
			t = t[nl+1:]
		}
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

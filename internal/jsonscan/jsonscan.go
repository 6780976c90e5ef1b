// Package jsonscan walks raw JSON at the token level to find defects that a
// decoder into a Go value silently hides: duplicate object keys and
// excessive nesting.
package jsonscan

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Finding codes.
const (
	CodeDuplicateKey = "duplicate_key"
	CodeTooDeep      = "too_deep"
	CodeParseError   = "parse_error"
	CodeTruncated    = "truncated"
)

// Finding is a single token-level defect.
type Finding struct {
	Code    string
	Path    string // JSON Pointer of the enclosing container
	Message string
}

// Options bound a scan. Zero values disable the respective check.
type Options struct {
	// RejectDuplicates reports repeated keys within one object.
	RejectDuplicates bool
	// MaxDepth reports the first container nested deeper than this.
	MaxDepth int
	// MaxFindings stops the scan after this many findings; <= 0 means unlimited.
	MaxFindings int
}

// Report is the outcome of a scan.
type Report struct {
	Findings []Finding
	// Depth is the deepest container nesting seen.
	Depth int
}

// OK reports whether the scan found nothing.
func (r Report) OK() bool { return len(r.Findings) == 0 }

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	keys         map[string]struct{}
	expectingKey bool
	key          string // last key read in an object
	index        int    // next element index in an array
}

// Bytes scans data.
func Bytes(data []byte, opts Options) Report {
	return Reader(bytes.NewReader(data), opts)
}

// Reader scans r to the end.
func Reader(r io.Reader, opts Options) Report {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	s := &scanner{opts: opts}
	s.run(dec)
	return s.rep
}

type scanner struct {
	opts  Options
	stack []frame
	rep   Report
	full  bool
}

func (s *scanner) add(f Finding) {
	if s.full {
		return
	}
	s.rep.Findings = append(s.rep.Findings, f)
	if s.opts.MaxFindings > 0 && len(s.rep.Findings) >= s.opts.MaxFindings {
		s.rep.Findings = append(s.rep.Findings, Finding{Code: CodeTruncated, Path: "", Message: "max findings reached"})
		s.full = true
	}
}

func (s *scanner) run(dec *json.Decoder) {
	tooDeep := false
	for !s.full {
		tok, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			s.add(Finding{Code: CodeParseError, Path: s.pointer(), Message: err.Error()})
			return
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				f := frame{kind: kindArray}
				if v == '{' {
					f = frame{kind: kindObject, keys: map[string]struct{}{}, expectingKey: true}
				}
				s.stack = append(s.stack, f)
				if len(s.stack) > s.rep.Depth {
					s.rep.Depth = len(s.stack)
				}
				if s.opts.MaxDepth > 0 && len(s.stack) > s.opts.MaxDepth && !tooDeep {
					tooDeep = true
					s.add(Finding{Code: CodeTooDeep, Path: s.pointer(), Message: "nesting depth exceeds " + strconv.Itoa(s.opts.MaxDepth)})
				}
			case '}', ']':
				if len(s.stack) > 0 {
					s.stack = s.stack[:len(s.stack)-1]
				}
				s.leaveValue()
			}
		case string:
			if top := s.top(); top != nil && top.kind == kindObject && top.expectingKey {
				if _, dup := top.keys[v]; dup && s.opts.RejectDuplicates {
					s.add(Finding{Code: CodeDuplicateKey, Path: s.pointer(), Message: "key '" + v + "' duplicated"})
				}
				top.keys[v] = struct{}{}
				top.key = v
				top.expectingKey = false
				continue
			}
			s.leaveValue()
		default:
			s.leaveValue()
		}
	}
}

func (s *scanner) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

// leaveValue marks the end of a value inside the current container.
func (s *scanner) leaveValue() {
	top := s.top()
	if top == nil {
		return
	}
	if top.kind == kindObject {
		top.expectingKey = true
		return
	}
	top.index++
}

// pointer renders the JSON Pointer of the innermost container.
func (s *scanner) pointer() string {
	if len(s.stack) <= 1 {
		return ""
	}
	var b strings.Builder
	for _, f := range s.stack[:len(s.stack)-1] {
		b.WriteByte('/')
		if f.kind == kindObject {
			b.WriteString(escape(f.key))
		} else {
			b.WriteString(strconv.Itoa(f.index))
		}
	}
	return b.String()
}

func escape(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

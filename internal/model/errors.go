package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported while loading and encoding shards.
var (
	ErrSourceNotFound          = errors.New("source not found")
	ErrMalformedShape          = errors.New("malformed record shape")
	ErrFieldParse              = errors.New("field parse failure")
	ErrMissingProtocolField    = errors.New("missing mandatory protocol field")
	ErrDegenerateNormalization = errors.New("degenerate normalization")
)

// ParseError locates a failure inside a shard file. Record and Packet are
// zero-based and -1 when the failure is not tied to one.
type ParseError struct {
	Source string
	Record int
	Packet int
	Field  string
	Kind   error
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	if e.Record >= 0 {
		fmt.Fprintf(&b, ": record %d", e.Record)
	}
	if e.Packet >= 0 {
		fmt.Fprintf(&b, ": packet %d", e.Packet)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

package sshcfg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHostNotFound is returned by ResolveStrict when no Host or Match stanza
// applies to the requested host.
var ErrHostNotFound = errors.New("no stanza matches host")

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	// SyntaxError indicates a malformed directive, pattern or Match criterion.
	SyntaxError ErrorKind = iota
	// IOError indicates an unreadable config or include file.
	IOError
	// IncludeDepthExceeded indicates the Include expansion went deeper than
	// the configured bound, which means a self-referential include.
	IncludeDepthExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case IOError:
		return "I/O error"
	case IncludeDepthExceeded:
		return "include depth exceeded"
	default:
		return "unknown error"
	}
}

// ParseError is the error type returned for any failure while reading or
// parsing configuration text. Path and Line point at the offending directive
// when known.
type ParseError struct {
	Path string
	Line int
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "%s:", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:", e.Line)
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

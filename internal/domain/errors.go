package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced to callers. Match them with errors.Is.
var (
	ErrNoMatchingFormat            = errors.New("no matching format")
	ErrAmbiguousFormat             = errors.New("ambiguous format")
	ErrMalformedRecord             = errors.New("malformed record")
	ErrRejectedRecord              = errors.New("rejected record")
	ErrMissingStartTime            = errors.New("missing start time")
	ErrUnresolvableChannelConflict = errors.New("unresolvable channel conflict")
	ErrMalformedGroup              = errors.New("malformed recording group")
)

// DecodeError carries the offending file and, when known, a line or block locator.
type DecodeError struct {
	Kind   error
	Path   string
	Line   int    // 1-based; 0 when not applicable
	Block  string // e.g. "integer header", "data"
	Detail string
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Block != "" {
		fmt.Fprintf(&b, " (%s)", e.Block)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// Malformed builds an ErrMalformedRecord error.
func Malformed(path string, line int, block, format string, args ...any) error {
	return &DecodeError{Kind: ErrMalformedRecord, Path: path, Line: line, Block: block, Detail: fmt.Sprintf(format, args...)}
}

// Rejected builds an ErrRejectedRecord error.
func Rejected(path string, line int, block, format string, args ...any) error {
	return &DecodeError{Kind: ErrRejectedRecord, Path: path, Line: line, Block: block, Detail: fmt.Sprintf(format, args...)}
}

// ErrorKind maps an error to a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoMatchingFormat):
		return "no_matching_format"
	case errors.Is(err, ErrAmbiguousFormat):
		return "ambiguous_format"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrRejectedRecord):
		return "rejected_record"
	case errors.Is(err, ErrMissingStartTime):
		return "missing_start_time"
	case errors.Is(err, ErrUnresolvableChannelConflict):
		return "channel_conflict"
	case errors.Is(err, ErrMalformedGroup):
		return "malformed_group"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "io"
	}
}

package protocol

import "fmt"

// ParseErrorKind classifies decode failures.
type ParseErrorKind int

const (
	// ParseErrEmpty indicates an empty or absurdly short buffer.
	ParseErrEmpty ParseErrorKind = iota
	// ParseErrBadCommand indicates an unexpected command character.
	ParseErrBadCommand
	// ParseErrTruncated indicates a frame cut short inside a section header.
	ParseErrTruncated
)

// String returns a human-readable name for the kind.
func (k ParseErrorKind) String() string {
	switch k {
	case ParseErrEmpty:
		return "empty frame"
	case ParseErrBadCommand:
		return "bad command"
	case ParseErrTruncated:
		return "truncated frame"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", k)
	}
}

// ParseError reports a structural problem in an inbound frame. The firmware
// itself tolerates short frames, so callers typically log these and keep the
// connection alive rather than treating them as fatal.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newTruncated(what string, need, got int) *ParseError {
	return &ParseError{
		Kind:    ParseErrTruncated,
		Message: fmt.Sprintf("%s needs %d bytes, have %d", what, need, got),
	}
}

func newBadCommand(want, got byte) *ParseError {
	return &ParseError{
		Kind:    ParseErrBadCommand,
		Message: fmt.Sprintf("expected command '%c', got 0x%02x", want, got),
	}
}

// IsParseError reports whether err is a *ParseError of the given kind.
func IsParseError(err error, kind ParseErrorKind) bool {
	pe, ok := err.(*ParseError)
	return ok && pe.Kind == kind
}

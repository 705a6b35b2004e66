package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the pipeline can decide how to react.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindIO covers filesystem access and JSON parsing.
	KindIO
	// KindDecode is a wrong magic number or an unsupported container.
	KindDecode
	// KindUnsupported is a format the sampler bank or codec cannot handle.
	KindUnsupported
	// KindTooling is an external subprocess that exited with a non-zero code.
	KindTooling
	// KindCancelled is a user or parent cancellation request.
	KindCancelled
	// KindCompress is a block compressor or compression device failure.
	KindCompress
	// KindValidation is bad project settings detected before building.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "IO"
	case KindDecode:
		return "Decode"
	case KindUnsupported:
		return "Unsupported"
	case KindTooling:
		return "Tooling"
	case KindCancelled:
		return "Cancelled"
	case KindCompress:
		return "Compress"
	case KindValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

var (
	ErrCancelled = &Error{Kind: KindCancelled, Op: "cook", Err: errors.New("operation cancelled")}
	ErrUnknown   = errors.New("unknown")
)

// Error is the error type returned by every cooker component.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed, e.g. "texture import".
	Op string
	// Path is the file involved, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s (%s)", msg, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the failing operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewPathError is NewError with the file path the operation touched.
func NewPathError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf builds an Error with a formatted cause.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain. Errors that
// are not *Error are treated as IO, matching the propagation policy of
// the texture engine.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

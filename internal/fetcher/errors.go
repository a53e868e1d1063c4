package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch. Every kind is retried the same way; the
// kind only drives what the visitor is told.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindNetwork
	KindConfiguration
	KindParse
)

var (
	ErrTimeout       = errors.New("bio fetch timed out")
	ErrNetwork       = errors.New("remote config store unreachable")
	ErrConfiguration = errors.New("bio parameter is empty or not found")
	ErrParse         = errors.New("bio parameter is not a valid document")

	// ErrInvalidArgument is returned before any attempt is made.
	ErrInvalidArgument = errors.New("invalid fetch argument")
)

// Code is the stable identifier shown to visitors and used as a metric label.
func (k Kind) Code() string {
	switch k {
	case KindTimeout:
		return "TIMEOUT_ERROR"
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	case KindParse:
		return "PARSE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func (k Kind) String() string {
	return k.Code()
}

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindNetwork:
		return ErrNetwork
	case KindConfiguration:
		return ErrConfiguration
	case KindParse:
		return ErrParse
	default:
		return nil
	}
}

// Error is a classified fetch failure. The kind is decided where the failure
// happens, never recovered from the message text.
type Error struct {
	Kind    Kind
	Attempt int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch bio (attempt %d): %s", e.Attempt, e.Kind.Code())
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the classification carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

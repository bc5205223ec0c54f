package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressInUse indicates a handler is already registered at the address
	ErrAddressInUse = errors.New("address already has a handler")

	// ErrAddressNotFound indicates no handler is registered at the address
	ErrAddressNotFound = errors.New("no handler registered for address")

	// ErrTimeout indicates the caller's bound expired before a reply arrived
	ErrTimeout = errors.New("request timed out")
)

// Code classifies a failed reply so the protocol layer can map it to a wire status
type Code int

const (
	CodeInternal Code = iota + 1
	CodeUnauthenticated
	CodeInvalidRequest
	CodeStorage
	CodeAddressNotFound
	CodeTimeout
)

func (c Code) String() string {
	switch c {
	case CodeInternal:
		return "Internal"
	case CodeUnauthenticated:
		return "Unauthenticated"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeStorage:
		return "Storage"
	case CodeAddressNotFound:
		return "AddressNotFound"
	case CodeTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// ReplyError is a typed failure reply: a code plus a human readable message.
// For in-process dispatch the original cause is kept so errors.Is / errors.As
// still see through it.
type ReplyError struct {
	Err     error
	Message string
	Code    Code
}

func (e *ReplyError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

// Fail builds a failure reply. cause may be nil.
func Fail(code Code, message string, cause error) *ReplyError {
	return &ReplyError{Code: code, Message: message, Err: cause}
}

// CodeOf extracts the failure code from err. Errors that are not a ReplyError
// are reported as CodeInternal; nil has no code (0).
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var re *ReplyError
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeInternal
}

// asReply normalises whatever a handler returned into a *ReplyError
func asReply(err error) *ReplyError {
	var re *ReplyError
	if errors.As(err, &re) {
		return re
	}
	return Fail(CodeInternal, err.Error(), err)
}

package errclass

import (
	"errors"
	"fmt"
)

// RipError is a stable, machine-readable error class.
// Err carries the underlying cause, if any.
type RipError struct {
	Code    string
	Message string
	Err     error
}

func (e *RipError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *RipError) Is(target error) bool {
	t, ok := target.(*RipError)
	return ok && e.Code == t.Code
}

func (e *RipError) Unwrap() error {
	return e.Err
}

// WithMessage returns a new RipError with the same Code but a specific message.
func (e *RipError) WithMessage(msg string) *RipError {
	return &RipError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new RipError with a formatted message.
func (e *RipError) WithMessagef(format string, args ...any) *RipError {
	return &RipError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new RipError with the same Code carrying cause.
func (e *RipError) Wrap(cause error, msg string) *RipError {
	return &RipError{Code: e.Code, Message: msg, Err: cause}
}

// Wrapf is Wrap with a formatted message.
func (e *RipError) Wrapf(cause error, format string, args ...any) *RipError {
	return &RipError{Code: e.Code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Stable error classes.
var (
	ErrNotFound              = &RipError{Code: "E_NOT_FOUND"}
	ErrPermissionDenied      = &RipError{Code: "E_PERMISSION_DENIED"}
	ErrDeviceFull            = &RipError{Code: "E_DEVICE_FULL"}
	ErrDestinationOccupied   = &RipError{Code: "E_DESTINATION_OCCUPIED"}
	ErrCrossDeviceCopyFailed = &RipError{Code: "E_CROSS_DEVICE_COPY_FAILED"}
	ErrRecordCorrupt         = &RipError{Code: "E_RECORD_CORRUPT"}
	ErrIO                    = &RipError{Code: "E_IO"}
	ErrAlreadyBuried         = &RipError{Code: "E_ALREADY_BURIED"}
	ErrInvalidArgs           = &RipError{Code: "E_INVALID_ARGS"}
	ErrAuditChainBroken      = &RipError{Code: "E_AUDIT_CHAIN_BROKEN"}
)

// Code returns the class code of err, or "" when err is nil.
// Errors that carry no class are reported as E_IO.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var re *RipError
	if errors.As(err, &re) {
		return re.Code
	}
	return Classify(err).Code
}

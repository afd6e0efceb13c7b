package errclass

import (
	"errors"
	"io/fs"
)

// Classify maps an OS-level error onto a RipError class, keeping err as the cause.
// Errors that already carry a class are returned unchanged.
func Classify(err error) *RipError {
	if err == nil {
		return nil
	}
	var re *RipError
	if errors.As(err, &re) {
		return re
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound.Wrap(err, "")
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied.Wrap(err, "")
	case isNoSpace(err):
		return ErrDeviceFull.Wrap(err, "")
	default:
		return ErrIO.Wrap(err, "")
	}
}

// ClassifyMsg is Classify with a context message.
func ClassifyMsg(err error, msg string) *RipError {
	if err == nil {
		return nil
	}
	var re *RipError
	if errors.As(err, &re) {
		return re
	}
	c := Classify(err)
	c.Message = msg
	return c
}

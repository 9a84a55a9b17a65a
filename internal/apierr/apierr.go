package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one kind of exchange failure. Codes are stable strings
// returned to API clients.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeNotOwner          Code = "not_owner"
	CodeAlreadyListed     Code = "already_listed"
	CodeNotListed         Code = "not_listed"
	CodeInvalidDesiredSet Code = "invalid_desired_set"
	CodeListingNotOpen    Code = "listing_not_open"
	CodeNotAcceptable     Code = "not_acceptable"
	CodeSelfSwap          Code = "self_swap"
	CodeConflict          Code = "conflict"
	CodeUnauthorized      Code = "unauthorized"
	CodeInvalidRequest    Code = "invalid_request"
)

type Error struct {
	Status int
	Code   Code
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return string(e.Code)
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code Code, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func NotOwner(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, CodeNotOwner, fmt.Errorf(format, args...))
}

func AlreadyListed(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeAlreadyListed, fmt.Errorf(format, args...))
}

func NotListed(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeNotListed, fmt.Errorf(format, args...))
}

func InvalidDesiredSet(format string, args ...interface{}) *Error {
	return New(http.StatusUnprocessableEntity, CodeInvalidDesiredSet, fmt.Errorf(format, args...))
}

func ListingNotOpen(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeListingNotOpen, fmt.Errorf(format, args...))
}

func NotAcceptable(format string, args ...interface{}) *Error {
	return New(http.StatusUnprocessableEntity, CodeNotAcceptable, fmt.Errorf(format, args...))
}

func SelfSwap(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeSelfSwap, fmt.Errorf(format, args...))
}

func Conflict(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeConflict, fmt.Errorf(format, args...))
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, fmt.Errorf(format, args...))
}

func InvalidRequest(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, fmt.Errorf(format, args...))
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsRetryable reports whether the caller may safely retry the failed
// operation. Only optimistic-concurrency conflicts qualify; a Conflict
// guarantees zero side effects occurred.
func IsRetryable(err error) bool {
	return IsCode(err, CodeConflict)
}

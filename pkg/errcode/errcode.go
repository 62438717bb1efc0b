package errcode

import (
	"errors"
	"fmt"
)

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether target carries the same code, so wrapped copies still match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Code returns the business code carried by err, or ErrInternalServer's code.
func Code(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternalServer.Code
}

// IsPermissionDenied reports errors raised when the caller lost access to a
// conversation, typically because it is being torn down concurrently.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrNoPermission) ||
		errors.Is(err, ErrNotChannelMember) ||
		errors.Is(err, ErrConvNotFound)
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam    = New(1001, "invalid parameter")
	ErrInternalServer  = New(1002, "internal server error")
	ErrUnauthorized    = New(1003, "unauthorized")
	ErrForbidden       = New(1004, "forbidden")
	ErrNotFound        = New(1005, "not found")
	ErrTooManyRequests = New(1006, "too many requests")
	ErrNoPermission    = New(1007, "no permission to access this resource")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid")
	ErrTokenExpired  = New(2002, "token expired")
	ErrTokenMissing  = New(2003, "token missing")
	ErrTokenMismatch = New(2004, "token user mismatch")
	ErrLoginFailed   = New(2005, "login failed")
	ErrUserNotFound  = New(2006, "user not found")
	ErrUserExists    = New(2007, "user already exists")
	ErrPasswordWrong = New(2008, "password wrong")
	ErrReservedUser  = New(2009, "user id is reserved")

	// Channel errors (3xxx)
	ErrChannelNotFound      = New(3001, "channel not found")
	ErrChannelArchived      = New(3002, "channel has been archived")
	ErrNotChannelMember     = New(3003, "not a channel member")
	ErrAlreadyChannelMember = New(3005, "already a channel member")
	ErrChannelTitleTaken    = New(3006, "channel title already taken")

	// Message errors (4xxx)
	ErrMessageNotFound = New(4001, "message not found")
	ErrConvNotFound    = New(4003, "conversation not found")
	ErrSeqAllocFailed  = New(4004, "seq allocation failed")
	ErrSendFailed      = New(4005, "message send failed")
	ErrPullFailed      = New(4006, "message pull failed")
	ErrThreadNotFound  = New(4007, "thread root not found")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, "connection over max limit")
	ErrConnClosed      = New(5002, "connection closed")
	ErrInvalidProtocol = New(5003, "invalid protocol")
	ErrPushFailed      = New(5004, "push message failed")
)

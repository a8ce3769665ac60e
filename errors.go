package ignite

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=ErrorCode -output=errorcode_string.go
type ErrorCode uint

// Status codes returned by Ignite nodes.
const (
	Success               ErrorCode = 0
	Failed                ErrorCode = 1
	InvalidOpCode         ErrorCode = 2
	InvalidNodeState      ErrorCode = 10
	FunctionalityDisabled ErrorCode = 100
	CacheDoesNotExists    ErrorCode = 1000
	CacheExists           ErrorCode = 1001
	CacheConfigInvalid    ErrorCode = 1002
	TooManyCursors        ErrorCode = 1010
	ResourceDoesNotExists ErrorCode = 1011
	SecurityViolation     ErrorCode = 1012
	TxLimitExceeded       ErrorCode = 1020
	TxNotFound            ErrorCode = 1021
	TooManyComputeTasks   ErrorCode = 1030
	AuthFailed            ErrorCode = 2000
)

// Client side status codes.
const (
	ConnectionFailed ErrorCode = 9000 + iota
	ProtocolFailed
	InvalidInstance
	IllegalArgument
	TypeMismatch
	TxFailed
)

// IgniteError is the outcome of a call forwarded to an engine. The zero value means success.
//
// Non-throwing functions fill an IgniteError supplied by the caller, while throwing functions
// return it as an error. Both carry the same Code and Message for the same failure.
type IgniteError struct {
	Code      ErrorCode
	Message   string
	Component string // component that produced the failure, may be empty
	cause     error
}

var (
	ErrCacheNotFound   = &IgniteError{Code: CacheDoesNotExists, Message: "cache does not exist"}
	ErrCacheExists     = &IgniteError{Code: CacheExists, Message: "cache already exists"}
	ErrInvalidInstance = &IgniteError{Code: InvalidInstance, Message: "instance is not valid"}
	ErrConnection      = &IgniteError{Code: ConnectionFailed, Message: "connection failed"}
	ErrTypeMismatch    = &IgniteError{Code: TypeMismatch, Message: "type mismatch"}
)

// NewError creates a failure with the given code.
func NewError(code ErrorCode, msg string) *IgniteError {
	return &IgniteError{Code: code, Message: msg}
}

func Errorf(code ErrorCode, format string, args ...any) *IgniteError {
	return &IgniteError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithComponent sets the originating component and returns the receiver.
func (e *IgniteError) WithComponent(component string) *IgniteError {
	e.Component = component
	return e
}

// WithCause attaches the underlying error and returns the receiver.
func (e *IgniteError) WithCause(cause error) *IgniteError {
	e.cause = cause
	return e
}

// IsSuccess reports whether e denotes success. A nil *IgniteError is a success.
func (e *IgniteError) IsSuccess() bool {
	return e == nil || e.Code == Success
}

// Err returns nil on success, otherwise a copy of e as an error.
func (e *IgniteError) Err() error {
	if e.IsSuccess() {
		return nil
	}
	cp := *e
	return &cp
}

// Reset turns e back into a success value.
func (e *IgniteError) Reset() {
	*e = IgniteError{}
}

func (e *IgniteError) set(other *IgniteError) {
	if other == nil {
		e.Reset()
		return
	}
	*e = *other
}

func (e *IgniteError) Error() string {
	var sb strings.Builder
	if e.Component != "" {
		sb.WriteString(e.Component)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Code.String())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func (e *IgniteError) Unwrap() error {
	return e.cause
}

// Is matches any *IgniteError with the same code, so errors.Is(err, ErrCacheNotFound) works
// regardless of the message.
func (e *IgniteError) Is(target error) bool {
	var t *IgniteError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// FromError converts err into an *IgniteError. Errors that already are (or wrap) an
// *IgniteError keep their code, context errors map to Failed, anything else to Failed
// with err kept as the cause.
func FromError(err error) *IgniteError {
	if err == nil {
		return nil
	}
	var igniteErr *IgniteError
	if errors.As(err, &igniteErr) {
		cp := *igniteErr
		if cp.cause == nil && err != error(igniteErr) {
			cp.cause = err
		}
		return &cp
	}
	res := &IgniteError{Code: Failed, Message: err.Error(), cause: err}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.Message = "operation cancelled: " + err.Error()
	}
	return res
}

// CodeOf returns the status code carried by err, Success for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var igniteErr *IgniteError
	if errors.As(err, &igniteErr) {
		return igniteErr.Code
	}
	return Failed
}

// Must panics with err if it is not nil and returns v otherwise.
//
//	cache := ignite.Must(ignite.GetCache[string, int](ctx, ig, "counters"))
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

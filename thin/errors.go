package thin

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanglinqiang/ignite"
)

const component = "thin"

type ClientError struct {
	Message string
}

// ClientConnectionError reports a broken or refused connection. Requests failed with it are
// retried on another node.
type ClientConnectionError struct {
	ClientError
	err error
}

type ClientProtocolError struct {
	ClientError
}

type ClientAuthenticationError struct {
	ClientError
}

// ClientServerError is a failure status returned by a node.
type ClientServerError struct {
	ClientError
	Code ignite.ErrorCode
}

func (err *ClientError) Error() string {
	return err.Message
}

func (err *ClientProtocolError) Error() string {
	return err.Message
}

func (err *ClientAuthenticationError) Error() string {
	return err.Message
}

func (err *ClientServerError) Error() string {
	return fmt.Sprintf("%s: %s", err.Code, err.Message)
}

func (err *ClientConnectionError) Error() string {
	msg := err.Message
	if len(msg) == 0 {
		msg = "connection failed"
	}
	if err.err != nil {
		return fmt.Sprintf("%s: %s", msg, err.err)
	}
	return msg
}

func (err *ClientConnectionError) Unwrap() error {
	return err.err
}

func createClientConnectionError(msg string, err error) *ClientConnectionError {
	return &ClientConnectionError{ClientError{msg}, err}
}

// toIgniteError converts client errors into the facade error type, keeping the original
// error as the cause.
func toIgniteError(err error) error {
	if err == nil {
		return nil
	}
	var igniteErr *ignite.IgniteError
	if errors.As(err, &igniteErr) {
		return err
	}
	var (
		srvErr   *ClientServerError
		connErr  *ClientConnectionError
		authErr  *ClientAuthenticationError
		protoErr *ClientProtocolError
	)
	var code ignite.ErrorCode
	switch {
	case errors.As(err, &srvErr):
		code = srvErr.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ignite.FromError(err).WithComponent(component)
	case errors.As(err, &connErr):
		code = ignite.ConnectionFailed
	case errors.As(err, &authErr):
		code = ignite.AuthFailed
	case errors.As(err, &protoErr):
		code = ignite.ProtocolFailed
	case errors.Is(err, ErrUnsupportedType):
		code = ignite.IllegalArgument
	default:
		code = ignite.Failed
	}
	return ignite.NewError(code, err.Error()).WithComponent(component).WithCause(err)
}

func illegalArgument(format string, args ...any) error {
	return ignite.Errorf(ignite.IllegalArgument, format, args...).WithComponent(component)
}

package mqttstream

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them in calling code.
var (
	// ErrNotConnected is returned when an operation requires an active
	// broker connection and there is none.
	ErrNotConnected = errors.New("mqttstream: not connected to broker")

	// ErrClosed is returned when an operation is issued against a client
	// or stream that has already been closed.
	ErrClosed = errors.New("mqttstream: closed")

	// ErrTimeout is returned by bounded waits that elapse before the
	// underlying operation completes.
	ErrTimeout = errors.New("mqttstream: operation timed out")
)

// OperationError wraps a failure reported by the underlying MQTT client for
// a connect, disconnect, publish, subscribe or unsubscribe operation. The
// partially-completed token is retained so callers can inspect it.
type OperationError struct {
	Op    string
	Token *Token
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("mqttstream: %s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// DecodeError reports that a payload did not parse into the requested type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("mqttstream: payload decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newOperationError(op string, token *Token, err error) *OperationError {
	return &OperationError{Op: op, Token: token, Err: err}
}

package hue

import (
	"errors"
	"fmt"

	"hue-rest-client/internal/domain/model"
)

var (
	// ErrTransport marks every failure where the bridge's intent is unknown:
	// connection, TLS, timeouts and malformed responses.
	ErrTransport = errors.New("hue: transport failure")
	// ErrProtocol marks a response that is neither a success nor an error shape.
	ErrProtocol = errors.New("hue: unexpected response from bridge")

	ErrRuntimeClosed  = errors.New("hue: runtime closed")
	ErrClientsOpen    = errors.New("hue: clients still open")
	ErrClientClosed   = errors.New("hue: client closed")
	ErrBusy           = errors.New("hue: another exchange is in flight on this client")
	ErrNotRegistered  = errors.New("hue: no application username, register first")
	ErrInvalidConfig  = errors.New("hue: invalid client configuration")
	ErrInvalidRequest = errors.New("hue: invalid request")
)

// TransportError reports an exchange that produced no usable bridge answer.
type TransportError struct {
	Op     string
	Status int   // HTTP status, 0 when no response was received
	Err    error // underlying cause
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("hue: %s: %v", e.Op, ErrTransport)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// Status folds err into the legacy integer convention: zero on success,
// the bridge error code when the bridge refused, negative otherwise.
func Status(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := model.CodeOf(err); ok {
		return int(code)
	}
	return -1
}

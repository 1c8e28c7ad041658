package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPort means the port did not parse to 1..65535. Nothing was sent.
	ErrInvalidPort = errors.New("invalid port")
	// ErrBind means no local ephemeral port could be bound.
	ErrBind = errors.New("bind failed")
	// ErrSend means the OS rejected the datagram or the address.
	ErrSend = errors.New("send failed")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// DispatchError carries the failure kind (one of the sentinels above) and
// the underlying cause. errors.Is matches both.
type DispatchError struct {
	Kind error
	Addr string
	Err  error
}

func (e *DispatchError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v to %s: %v", e.Kind, e.Addr, e.Err)
}

func (e *DispatchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName is the short name used in logs and events.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPort):
		return "invalid_port"
	case errors.Is(err, ErrBind):
		return "bind_failure"
	case errors.Is(err, ErrSend):
		return "send_failure"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "unknown"
	}
}

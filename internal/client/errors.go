package client

import (
	"errors"
	"fmt"

	"github.com/dcrodman/noughts/internal/protocol"
)

var (
	errNotConnected   = errors.New("not connected")
	errAlreadyStarted = errors.New("client already started")
)

// ConnectError is returned when the connection to the server could not be opened.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("error connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError is returned when a frame could not be written. Type is empty for
// the plain-text login frame.
type SendError struct {
	Type protocol.Type
	Err  error
}

func (e *SendError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("error sending login: %v", e.Err)
	}
	return fmt.Sprintf("error sending %s: %v", e.Type, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError is returned when a frame could not be read or decoded. Closed
// is set when the underlying stream is gone.
type ReceiveError struct {
	Closed bool
	Err    error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("error receiving from server: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// LoginRejectedError is returned when the server answers the login with
// anything but an accepting LOGIN envelope. This usually means the name is taken.
type LoginRejectedError struct {
	Reply *protocol.Envelope
}

func (e *LoginRejectedError) Error() string {
	return fmt.Sprintf("login rejected: %v", e.Reply)
}

// ProtocolError describes a well-formed envelope whose contents make no sense
// for its type.
type ProtocolError struct {
	Type   protocol.Type
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected %s envelope: %s", e.Type, e.Reason)
}

// UnknownTagError describes an envelope whose type the client does not handle.
type UnknownTagError struct {
	Type protocol.Type
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown envelope type %q", e.Type)
}

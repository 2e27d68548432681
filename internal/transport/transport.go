// Package transport describes the duplex connection a game client uses to talk to
// the server. Implementations live in the tcp and ws subpackages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcrodman/noughts/internal/protocol"
)

// ErrClosed is wrapped by every error a Conn returns once the underlying stream
// can no longer be read from or written to (EOF, reset, closed socket, ...).
// Errors that do not wrap ErrClosed leave the stream usable; a frame that could
// not be decoded is reported as *protocol.DecodeError.
var ErrClosed = errors.New("connection closed")

// Closed marks err as a failure of the underlying stream.
func Closed(err error) error {
	if err == nil || errors.Is(err, ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrClosed, err)
}

// Conn is an established, framed connection to the game server. The read side
// (Receive) and the write side (SendRaw, Send) may be used from two different
// goroutines, but neither side is safe for concurrent use by itself.
type Conn interface {
	// SendRaw writes text as a single plain frame. It is only used for the
	// login handshake.
	SendRaw(text string) error

	// Send encodes and writes one envelope.
	Send(env *protocol.Envelope) error

	// Receive blocks until the next envelope arrives.
	Receive() (*protocol.Envelope, error)

	// SetReadDeadline bounds the current and future Receive calls. A zero
	// value removes the deadline.
	SetReadDeadline(t time.Time) error

	// Close the connection. Pending Receive calls return an ErrClosed error.
	Close() error

	IPAddr() string
	Port() string
}

// Dialer opens connections to a game server.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Conn, error)
}

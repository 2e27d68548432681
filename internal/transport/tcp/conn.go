// Package tcp implements the game transport over a plain TCP stream using
// newline-delimited frames.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dcrodman/noughts/internal/protocol"
	"github.com/dcrodman/noughts/internal/transport"
)

const frameDelimiter = '\n'

// Conn wraps a TCP connection to the game server.
type Conn struct {
	connection net.Conn
	reader     *bufio.Reader
	ipAddr     string
	port       string
}

// NewConn wraps an established connection.
func NewConn(connection net.Conn) *Conn {
	ipAddr, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		ipAddr = connection.RemoteAddr().String()
	}

	return &Conn{
		connection: connection,
		reader:     bufio.NewReader(connection),
		ipAddr:     ipAddr,
		port:       port,
	}
}

func (c *Conn) IPAddr() string { return c.ipAddr }
func (c *Conn) Port() string   { return c.port }

// SendRaw writes text followed by the frame delimiter as-is.
func (c *Conn) SendRaw(text string) error {
	return c.transmit(append([]byte(text), frameDelimiter))
}

// Send encodes env as JSON and writes it as a single frame.
func (c *Conn) Send(env *protocol.Envelope) error {
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	return c.transmit(append(data, frameDelimiter))
}

// transmit writes the contents of data to the TCP connection until all of it
// has been sent.
func (c *Conn) transmit(data []byte) error {
	bytesSent := 0

	for bytesSent < len(data) {
		n, err := c.connection.Write(data[bytesSent:])
		if err != nil {
			return transport.Closed(fmt.Errorf("failed to send to server %v: %w", c.IPAddr(), err))
		}
		bytesSent += n
	}

	return nil
}

// Receive reads the next non-empty frame and decodes it. Read failures are
// reported as transport.ErrClosed; undecodable frames as *protocol.DecodeError.
func (c *Conn) Receive() (*protocol.Envelope, error) {
	for {
		line, err := c.reader.ReadBytes(frameDelimiter)
		if err != nil {
			return nil, transport.Closed(err)
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}

		return protocol.Unmarshal(line)
	}
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.connection.SetReadDeadline(t)
}

// Close the TCP connection.
func (c *Conn) Close() error {
	return c.connection.Close()
}

// Dialer opens TCP connections. A zero Dialer has no connect timeout beyond
// whatever the context imposes.
type Dialer struct {
	Timeout time.Duration
}

func (d *Dialer) Dial(ctx context.Context, host string, port int) (transport.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}

	connection, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	return NewConn(connection), nil
}

// Package ws implements the game transport over a WebSocket connection. Each
// frame travels as one text message.
package ws

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dcrodman/noughts/internal/protocol"
	"github.com/dcrodman/noughts/internal/transport"
)

// DefaultPath is the endpoint used when a Dialer has no Path configured.
const DefaultPath = "/ws"

// Conn wraps a WebSocket connection to the game server.
type Conn struct {
	connection *websocket.Conn
	ipAddr     string
	port       string
}

// NewConn wraps an established WebSocket connection.
func NewConn(connection *websocket.Conn) *Conn {
	ipAddr, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		ipAddr = connection.RemoteAddr().String()
	}
	return &Conn{connection: connection, ipAddr: ipAddr, port: port}
}

func (c *Conn) IPAddr() string { return c.ipAddr }
func (c *Conn) Port() string   { return c.port }

func (c *Conn) SendRaw(text string) error {
	if err := c.connection.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return transport.Closed(err)
	}
	return nil
}

func (c *Conn) Send(env *protocol.Envelope) error {
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	if err := c.connection.WriteMessage(websocket.TextMessage, data); err != nil {
		return transport.Closed(err)
	}
	return nil
}

// Receive reads the next message. Any read error is terminal for a WebSocket
// connection, so all of them are reported as transport.ErrClosed.
func (c *Conn) Receive() (*protocol.Envelope, error) {
	_, data, err := c.connection.ReadMessage()
	if err != nil {
		return nil, transport.Closed(err)
	}
	return protocol.Unmarshal(data)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.connection.SetReadDeadline(t)
}

func (c *Conn) Close() error {
	return c.connection.Close()
}

// Dialer opens WebSocket connections to ws://host:port/Path.
type Dialer struct {
	Path             string
	HandshakeTimeout time.Duration
}

func (d *Dialer) Dial(ctx context.Context, host string, port int) (transport.Conn, error) {
	path := d.Path
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: path}

	dialer := *websocket.DefaultDialer
	if d.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = d.HandshakeTimeout
	}

	connection, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return NewConn(connection), nil
}

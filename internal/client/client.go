// Package client implements the player's side of the game protocol: logging in,
// sending moves and requests, and reacting to what the server pushes back.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/noughts/internal/core/debug"
	"github.com/dcrodman/noughts/internal/metrics"
	"github.com/dcrodman/noughts/internal/protocol"
	"github.com/dcrodman/noughts/internal/transport"
)

// ResultRecorder receives the outcome of every game that ends while connected.
type ResultRecorder interface {
	RecordResult(player, opponent string, mark protocol.Mark, won bool) error
}

// Client is one player's connection to the game server. Start must succeed
// before any of the actions can reach the server.
type Client struct {
	dialer transport.Dialer
	view   View

	log           logrus.FieldLogger
	metrics       *metrics.Metrics
	recorder      ResultRecorder
	invites       *inviteTracker
	packetLogging bool

	session sessionState

	// mu guards started, conn and done, which are set once by Start.
	mu      sync.Mutex
	started bool
	conn    transport.Conn
	done    chan struct{}

	// closing is set by Disconnect so that the listener does not report the
	// closed stream as a lost connection.
	closing atomic.Bool

	// writeMu allows at most one frame to be written at a time.
	writeMu sync.Mutex
}

// Option configures optional collaborators of a Client.
type Option func(*Client)

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithRecorder(r ResultRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithInviteTTL sets how long an unanswered invitation is remembered.
func WithInviteTTL(ttl time.Duration) Option {
	return func(c *Client) { c.invites = newInviteTracker(ttl) }
}

// WithPacketLogging dumps every envelope to the logger at debug level.
func WithPacketLogging(enabled bool) Option {
	return func(c *Client) { c.packetLogging = enabled }
}

// New returns a Client that connects with dialer and reports to view.
func New(dialer transport.Dialer, view View, opts ...Option) *Client {
	c := &Client{dialer: dialer, view: view}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		c.log = logger
	}
	if c.invites == nil {
		c.invites = newInviteTracker(DefaultInviteTTL)
	}
	return c
}

// Start connects to host:port, logs in as userName and launches the listener.
// Every failure is reported to the View before being returned. The connection
// is left open when the login reply is unreadable or negative; call Disconnect
// to release it. A Client can only be started once.
//
// ctx bounds the dial and the wait for the login reply. Without a deadline or
// cancellation the wait is unbounded.
func (c *Client) Start(ctx context.Context, userName, host string, port int) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	c.session.setUserName(userName)
	log := c.log.WithField("user", userName)

	if err := protocol.ValidateUserName(userName); err != nil {
		c.view.Log(err.Error())
		return err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := c.dialer.Dial(ctx, host, port)
	if err != nil {
		c.view.Log("Error connecting to server: " + err.Error())
		log.Warnf("failed to connect to %s: %s", addr, err)
		return &ConnectError{Addr: addr, Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.view.Log(fmt.Sprintf("Connection accepted %s:%s", conn.IPAddr(), conn.Port()))
	log = log.WithField("remote", addr)

	// The user name is the only frame that is not an envelope.
	c.writeMu.Lock()
	err = conn.SendRaw(userName)
	c.writeMu.Unlock()
	c.metrics.FrameSent(protocol.LoginType, err)
	if err != nil {
		c.view.Log("Exception doing login: " + err.Error())
		if cerr := conn.Close(); cerr != nil {
			c.view.Log(cerr.Error())
		}
		c.view.ConnectionFailed()
		log.Warnf("failed to send login: %s", err)
		return &SendError{Err: err}
	}

	reply, err := c.awaitLoginReply(ctx, conn)
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Type != "" {
		// A known type with an unusable payload is still a negative answer.
		reply, err = &protocol.Envelope{Type: decodeErr.Type}, nil
	}
	if err != nil {
		c.view.Log(err.Error())
		log.Warnf("failed to read login reply: %s", err)
		return &ReceiveError{Closed: errors.Is(err, transport.ErrClosed), Err: err}
	}
	c.metrics.FrameReceived(reply.Type)
	c.dump("in", reply)

	if accepted, ok := reply.Payload.(protocol.Flag); reply.Type != protocol.LoginType || !ok || !bool(accepted) {
		c.view.Log("User name taken.")
		log.Infof("login rejected with %v", reply)
		return &LoginRejectedError{Reply: reply}
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.done = done
	c.mu.Unlock()

	go c.listen(conn, done)

	log.Info("logged in")
	return nil
}

// awaitLoginReply blocks for exactly one envelope. Cancelling ctx (or reaching
// its deadline) unblocks the read by moving the read deadline to now.
func (c *Client) awaitLoginReply(ctx context.Context, conn transport.Conn) (*protocol.Envelope, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})

	reply, err := conn.Receive()

	if !stop() && ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		} else {
			err = fmt.Errorf("%w (%w)", err, ctx.Err())
		}
		return nil, err
	}
	if ctx.Done() != nil {
		if derr := conn.SetReadDeadline(time.Time{}); derr != nil && err == nil {
			err = derr
		}
	}
	return reply, err
}

// Disconnect closes the connection. Errors are reported to the View only.
// The listener, if running, observes the closed stream and stops without
// calling ConnectionFailed.
func (c *Client) Disconnect() {
	conn := c.connection()
	if conn == nil {
		return
	}
	c.closing.Store(true)
	if err := conn.Close(); err != nil {
		c.view.Log(err.Error())
		c.log.Debugf("error closing connection: %s", err)
	}
}

// Session returns a snapshot of the current identity, opponent and mark.
func (c *Client) Session() Session {
	return c.session.snapshot()
}

// Done is closed once the listener has stopped. It returns nil before a
// successful Start.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// PendingInvites lists the users we invited who have not answered yet.
func (c *Client) PendingInvites() []string {
	return c.invites.list()
}

func (c *Client) connection() transport.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) dump(direction string, env *protocol.Envelope) {
	if c.packetLogging {
		debug.DumpEnvelope(c.log, direction, env)
	}
}

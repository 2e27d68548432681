package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/noughts/internal/protocol"
)

func TestStart(t *testing.T) {
	conn := newFakeConn()
	view := newRecordingView()
	c := New(&fakeDialer{conn: conn}, view)

	var nameAtSend string
	conn.onSendRaw = func() { nameAtSend = c.Session().UserName }
	conn.push(loginReply(true))

	if err := c.Start(context.Background(), "alice", "localhost", 1500); err != nil {
		t.Fatalf("Start() returned an unexpected error: %s", err)
	}
	defer c.Disconnect()

	if got := view.next(t); got.Method != "Log" || got.Args[0] != "Connection accepted 10.0.0.1:1500" {
		t.Errorf("first view call = %v, want the connection to be logged", got)
	}
	if nameAtSend != "alice" {
		t.Errorf("user name when the login frame was sent = %q, want alice", nameAtSend)
	}
	if diff := cmp.Diff([]string{"alice"}, conn.raw); diff != "" {
		t.Errorf("wrong login frame sent; diff:\n%s", diff)
	}
	if len(conn.sentEnvelopes()) != 0 {
		t.Errorf("no envelopes should be sent during login, got %v", conn.sentEnvelopes())
	}
	if c.Session().UserName != "alice" {
		t.Errorf("Session().UserName = %q, want alice", c.Session().UserName)
	}
	if c.Done() == nil {
		t.Fatal("Done() is nil after a successful Start()")
	}

	// The listener is running.
	conn.push(&protocol.Envelope{Type: protocol.WinType, Payload: protocol.Flag(true)})
	if got := view.next(t); got.Method != "NotifyGameEnded" {
		t.Errorf("listener did not dispatch, got %v", got)
	}

	if err := c.Start(context.Background(), "alice", "localhost", 1500); !errors.Is(err, errAlreadyStarted) {
		t.Errorf("second Start() = %v, want errAlreadyStarted", err)
	}
}

func TestStart_Rejected(t *testing.T) {
	replies := map[string]*protocol.Envelope{
		"name taken":            loginReply(false),
		"wrong type":            {Type: protocol.WinType, Payload: protocol.Flag(true)},
		"login without payload": {Type: protocol.LoginType},
		"user list":             {Type: protocol.WhoIsInType, Payload: protocol.Names{"bob"}},
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			conn := newFakeConn()
			view := newRecordingView()
			c := New(&fakeDialer{conn: conn}, view)

			conn.push(reply)
			err := c.Start(context.Background(), "alice", "localhost", 1500)

			var rejected *LoginRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("Start() = %v, want a *LoginRejectedError", err)
			}
			view.next(t) // Connection accepted
			if got := view.next(t); got.Method != "Log" || got.Args[0] != "User name taken." {
				t.Errorf("view call = %v, want the name to be reported as taken", got)
			}
			if c.Done() != nil {
				t.Error("a listener was started after a rejected login")
			}
			if conn.isClosed() {
				t.Error("a rejected login should leave the connection to the caller")
			}

			conn.push(&protocol.Envelope{Type: protocol.WinType, Payload: protocol.Flag(true)})
			view.expectNothing(t)
		})
	}
}

func TestStart_ConnectError(t *testing.T) {
	view := newRecordingView()
	c := New(&fakeDialer{err: errors.New("connection refused")}, view)

	err := c.Start(context.Background(), "alice", "localhost", 1500)

	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("Start() = %v, want a *ConnectError", err)
	}
	if connectErr.Addr != "localhost:1500" {
		t.Errorf("ConnectError.Addr = %s, want localhost:1500", connectErr.Addr)
	}
	if got := view.next(t); got.Method != "Log" {
		t.Errorf("view call = %v, want the error to be logged", got)
	}
	view.expectNothing(t)
}

func TestStart_SendError(t *testing.T) {
	conn := newFakeConn()
	conn.rawErr = errors.New("broken pipe")
	conn.closeErr = errors.New("already closed")
	view := newRecordingView()
	c := New(&fakeDialer{conn: conn}, view)

	err := c.Start(context.Background(), "alice", "localhost", 1500)

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("Start() = %v, want a *SendError", err)
	}
	if !conn.isClosed() {
		t.Error("the connection should be closed after the login could not be sent")
	}

	var methods []string
	for i := 0; i < 4; i++ {
		methods = append(methods, view.next(t).Method)
	}
	want := []string{"Log", "Log", "Log", "ConnectionFailed"}
	if diff := cmp.Diff(want, methods); diff != "" {
		t.Errorf("wrong view calls; diff:\n%s", diff)
	}
	view.expectNothing(t)
}

func TestStart_ReceiveError(t *testing.T) {
	t.Run("garbled reply", func(t *testing.T) {
		conn := newFakeConn()
		view := newRecordingView()
		c := New(&fakeDialer{conn: conn}, view)

		conn.pushErr(&protocol.DecodeError{Frame: []byte("?"), Err: errors.New("bad json")})
		err := c.Start(context.Background(), "alice", "localhost", 1500)

		var recvErr *ReceiveError
		if !errors.As(err, &recvErr) {
			t.Fatalf("Start() = %v, want a *ReceiveError", err)
		}
		if recvErr.Closed {
			t.Error("a garbled reply should not be reported as a closed connection")
		}
		if conn.isClosed() {
			t.Error("the connection should not be closed after a receive failure")
		}
		if c.Done() != nil {
			t.Error("a listener was started after a failed login")
		}
	})

	t.Run("server hung up", func(t *testing.T) {
		conn := newFakeConn()
		c := New(&fakeDialer{conn: conn}, newRecordingView())

		go func() {
			time.Sleep(10 * time.Millisecond)
			conn.Close()
		}()
		err := c.Start(context.Background(), "alice", "localhost", 1500)

		var recvErr *ReceiveError
		if !errors.As(err, &recvErr) || !recvErr.Closed {
			t.Fatalf("Start() = %v, want a closed *ReceiveError", err)
		}
	})
}

func TestStart_LoginTimeout(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		conn := newFakeConn()
		c := New(&fakeDialer{conn: conn}, newRecordingView())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		err := c.Start(ctx, "alice", "localhost", 1500)
		var recvErr *ReceiveError
		if !errors.As(err, &recvErr) {
			t.Fatalf("Start() = %v, want a *ReceiveError", err)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		conn := newFakeConn()
		c := New(&fakeDialer{conn: conn}, newRecordingView())

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		err := c.Start(ctx, "alice", "localhost", 1500)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Start() = %v, want context.Canceled", err)
		}
	})
}

func TestStart_InvalidUserName(t *testing.T) {
	conn := newFakeConn()
	view := newRecordingView()
	c := New(&fakeDialer{conn: conn}, view)

	err := c.Start(context.Background(), "ali\nce", "localhost", 1500)
	if !errors.Is(err, protocol.ErrInvalidUserName) {
		t.Fatalf("Start() = %v, want ErrInvalidUserName", err)
	}
	if len(conn.raw) != 0 {
		t.Errorf("an invalid name was sent: %v", conn.raw)
	}
}

func TestDisconnect(t *testing.T) {
	c, conn, view := startClient(t)

	conn.closeErr = errors.New("close failed")
	c.Disconnect()

	if !conn.isClosed() {
		t.Error("Disconnect() did not close the connection")
	}
	if got := view.next(t); got.Method != "Log" || got.Args[0] != "close failed" {
		t.Errorf("view call = %v, want the close error to be logged", got)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("the listener did not stop")
	}
	// Closing the connection ourselves is not a lost connection.
	view.expectNothing(t)

	// Disconnect on a client that never connected is a no-op.
	New(&fakeDialer{}, newRecordingView()).Disconnect()
}

func TestStart_Concurrent(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	c := New(dialer, newRecordingView())
	defer c.Disconnect()

	conn.push(loginReply(true))
	errs := make(chan error, 2)
	for _, name := range []string{"alice", "bob"} {
		go func(name string) {
			errs <- c.Start(context.Background(), name, "localhost", 1500)
		}(name)
	}

	var started, refused int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			started++
		case errors.Is(err, errAlreadyStarted):
			refused++
		default:
			t.Errorf("Start() returned an unexpected error: %s", err)
		}
	}
	if started != 1 || refused != 1 {
		t.Errorf("%d starts succeeded and %d were refused, want 1 and 1", started, refused)
	}
	if got := dialer.dials.Load(); got != 1 {
		t.Errorf("dialed %d times, want 1", got)
	}
	if diff := cmp.Diff([]string{c.Session().UserName}, conn.raw); diff != "" {
		t.Errorf("login frames do not match the session; diff:\n%s", diff)
	}
}

func TestStart_RejectedByMalformedReply(t *testing.T) {
	conn := newFakeConn()
	view := newRecordingView()
	c := New(&fakeDialer{conn: conn}, view)

	conn.pushErr(&protocol.DecodeError{Frame: []byte(`{"type":"LOGIN"}`), Type: protocol.LoginType, Err: errors.New("no flag")})
	err := c.Start(context.Background(), "alice", "localhost", 1500)

	var rejected *LoginRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Start() = %v, want a *LoginRejectedError", err)
	}
	view.next(t) // Connection accepted
	if got := view.next(t); got.Method != "Log" || got.Args[0] != "User name taken." {
		t.Errorf("view call = %v, want the name to be reported as taken", got)
	}
}

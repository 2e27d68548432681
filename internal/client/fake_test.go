package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dcrodman/noughts/internal/protocol"
	"github.com/dcrodman/noughts/internal/transport"
)

var errDeadline = errors.New("i/o timeout")

type inbound struct {
	env *protocol.Envelope
	err error
}

// fakeConn is an in-memory transport.Conn. Tests push what the server "sends"
// onto inbound and inspect what the client wrote through sent and raw.
type fakeConn struct {
	inbound chan inbound

	mu              sync.Mutex
	sent            []*protocol.Envelope
	raw             []string
	sendErr         error
	rawErr          error
	closeErr        error
	onSendRaw       func()
	deadline        time.Time
	deadlineChanged chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:         make(chan inbound, 64),
		deadlineChanged: make(chan struct{}),
		closed:          make(chan struct{}),
	}
}

func (f *fakeConn) push(env *protocol.Envelope) { f.inbound <- inbound{env: env} }
func (f *fakeConn) pushErr(err error)           { f.inbound <- inbound{err: err} }

func (f *fakeConn) SendRaw(text string) error {
	f.mu.Lock()
	hook, err := f.onSendRaw, f.rawErr
	if err == nil {
		f.raw = append(f.raw, text)
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeConn) Send(env *protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeConn) sentEnvelopes() []*protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*protocol.Envelope(nil), f.sent...)
}

func (f *fakeConn) Receive() (*protocol.Envelope, error) {
	for {
		f.mu.Lock()
		deadline, changed := f.deadline, f.deadlineChanged
		f.mu.Unlock()

		var timer *time.Timer
		var timeout <-chan time.Time
		if !deadline.IsZero() {
			timer = time.NewTimer(time.Until(deadline))
			timeout = timer.C
		}

		select {
		case in := <-f.inbound:
			stopTimer(timer)
			return in.env, in.err
		case <-f.closed:
			stopTimer(timer)
			return nil, transport.Closed(io.EOF)
		case <-timeout:
			return nil, transport.Closed(errDeadline)
		case <-changed:
			stopTimer(timer)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (f *fakeConn) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	close(f.deadlineChanged)
	f.deadlineChanged = make(chan struct{})
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeErr
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) IPAddr() string { return "10.0.0.1" }
func (f *fakeConn) Port() string   { return "1500" }

type fakeDialer struct {
	conn  *fakeConn
	err   error
	dials atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, host string, port int) (transport.Conn, error) {
	d.dials.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// call is one invocation of a View method.
type call struct {
	Method string
	Args   []interface{}
}

func (c call) String() string { return fmt.Sprintf("%s%v", c.Method, c.Args) }

// recordingView records every View call in order.
type recordingView struct {
	calls chan call
}

func newRecordingView() *recordingView {
	return &recordingView{calls: make(chan call, 256)}
}

func (v *recordingView) record(method string, args ...interface{}) {
	v.calls <- call{Method: method, Args: args}
}

func (v *recordingView) Log(text string)         { v.record("Log", text) }
func (v *recordingView) ConnectionFailed()       { v.record("ConnectionFailed") }
func (v *recordingView) SetUsers(names []string) { v.record("SetUsers", names) }
func (v *recordingView) NotifyInvited(mark protocol.Mark, opponent string) {
	v.record("NotifyInvited", mark, opponent)
}
func (v *recordingView) UpdateWholeTable(board protocol.Board, myTurn bool, mark protocol.Mark) {
	v.record("UpdateWholeTable", board, myTurn, mark)
}
func (v *recordingView) NotifyGameEnded(won bool)                 { v.record("NotifyGameEnded", won) }
func (v *recordingView) PutMark(location int, mark protocol.Mark) { v.record("PutMark", location, mark) }
func (v *recordingView) ShowMessage(text string)                  { v.record("ShowMessage", text) }

// next returns the next recorded call, failing the test if none arrives.
func (v *recordingView) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-v.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a view call")
		return call{}
	}
}

// nextNonLog skips Log calls and returns the first other call.
func (v *recordingView) nextNonLog(t *testing.T) call {
	t.Helper()
	for {
		if c := v.next(t); c.Method != "Log" {
			return c
		}
	}
}

// expectNothing fails if any call is recorded within a short window.
func (v *recordingView) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case c := <-v.calls:
		t.Fatalf("unexpected view call %v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordedResult struct {
	Player, Opponent string
	Mark             protocol.Mark
	Won              bool
}

type fakeRecorder struct {
	results chan recordedResult
}

func (r *fakeRecorder) RecordResult(player, opponent string, mark protocol.Mark, won bool) error {
	r.results <- recordedResult{player, opponent, mark, won}
	return nil
}

func loginReply(accepted bool) *protocol.Envelope {
	return &protocol.Envelope{Type: protocol.LoginType, Payload: protocol.Flag(accepted)}
}

// startClient returns a logged-in client named alice with the connection log
// line already consumed.
func startClient(t *testing.T, opts ...Option) (*Client, *fakeConn, *recordingView) {
	t.Helper()
	conn := newFakeConn()
	view := newRecordingView()
	c := New(&fakeDialer{conn: conn}, view, opts...)

	conn.push(loginReply(true))
	if err := c.Start(context.Background(), "alice", "localhost", 1500); err != nil {
		t.Fatalf("Start() returned an unexpected error: %s", err)
	}
	if got := view.next(t); got.Method != "Log" {
		t.Fatalf("expected the connection to be logged, got %v", got)
	}
	t.Cleanup(c.Disconnect)
	return c, conn, view
}

package client

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dcrodman/noughts/internal/protocol"
	"github.com/dcrodman/noughts/internal/transport"
)

const (
	msgUnknownType   = "Unknown data type received!"
	msgGameLoaded    = "Game loaded."
	msgLoadingFailed = "Loading failed!"
)

// listen is the receive loop. It owns the read side of conn and runs until the
// stream fails, closing done on the way out. Frames that fail to decode are
// skipped; the loop never reconnects.
func (c *Client) listen(conn transport.Conn, done chan<- struct{}) {
	defer close(done)
	log := c.log.WithField("user", c.session.snapshot().UserName)

	for {
		env, err := conn.Receive()
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				c.metrics.GarbledFrame()
				c.view.Log("Error reading from stream in client: " + err.Error())
				log.Warnf("skipping malformed frame %q: %s", decodeErr.Frame, decodeErr.Err)
				continue
			}

			c.metrics.ListenerStopped()
			if c.closing.Load() {
				log.Infof("listener stopped after disconnect: %s", err)
				return
			}
			c.view.Log("Server has close the connection: " + err.Error())
			c.view.ConnectionFailed()
			log.Infof("listener stopped: %s", err)
			return
		}

		c.metrics.FrameReceived(env.Type)
		c.dump("in", env)

		if err := c.handleSafely(env); err != nil {
			var unknown *UnknownTagError
			if errors.As(err, &unknown) {
				c.view.ShowMessage(msgUnknownType)
			} else {
				c.view.Log(err.Error())
			}
			log.WithField("type", env.Type).Warn(err)
		}
	}
}

// handleSafely keeps a panicking View from taking the listener down with it.
func (c *Client) handleSafely(env *protocol.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error handling %s: %v", env.Type, r)
			c.log.Errorf("recovered from panic handling %v: %v\n%s", env, r, debug.Stack())
		}
	}()
	return c.handle(env)
}

// handle applies one envelope to the session and notifies the View.
func (c *Client) handle(env *protocol.Envelope) error {
	switch env.Type {
	case protocol.WhoIsInType:
		names, _ := env.Payload.(protocol.Names)
		c.view.SetUsers([]string(names))

	case protocol.InviteType:
		mark, ok := env.Payload.(protocol.Mark)
		if !ok {
			return &ProtocolError{Type: env.Type, Reason: "no mark assigned"}
		}
		c.session.startGame(env.From, mark)
		if c.invites.resolve(env.From) {
			c.log.Infof("%s accepted our invitation", env.From)
		}
		c.view.NotifyInvited(mark, env.From)

	case protocol.LoadType:
		board, ok := env.Payload.(protocol.Board)
		if !ok {
			c.view.Log(msgLoadingFailed)
			return nil
		}
		c.view.Log(msgGameLoaded)
		myTurn, mark := c.restoreGame(env, board)
		c.view.UpdateWholeTable(board, myTurn, mark)

	case protocol.WinType:
		won, ok := env.Payload.(protocol.Flag)
		if !ok {
			return &ProtocolError{Type: env.Type, Reason: "no outcome"}
		}
		c.view.NotifyGameEnded(bool(won))
		c.recordResult(bool(won))

	case protocol.MarkType:
		location, ok := env.Payload.(protocol.Location)
		if !ok {
			return &ProtocolError{Type: env.Type, Reason: "no location"}
		}
		// The server never echoes our own moves, so this is always the opponent's.
		c.view.PutMark(int(location), c.session.snapshot().Mark.Opponent())

	default:
		return &UnknownTagError{Type: env.Type}
	}

	return nil
}

func (c *Client) recordResult(won bool) {
	if c.recorder == nil {
		return
	}
	s := c.session.snapshot()
	if err := c.recorder.RecordResult(s.UserName, s.EnemyName, s.Mark, won); err != nil {
		c.log.Warnf("failed to record game result: %s", err)
	}
}

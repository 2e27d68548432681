package client

import (
	"github.com/dcrodman/noughts/internal/protocol"
)

// Send validates env and writes it to the server. Only one frame is written at a time, but Send
// never waits for an answer: replies arrive through the listener. A failure is
// reported to the View and returned; the connection and session are left as
// they are.
func (c *Client) Send(env *protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		c.view.Log("Exception writing to server: " + err.Error())
		return &SendError{Type: env.Type, Err: err}
	}

	conn := c.connection()
	if conn == nil {
		c.view.Log("Exception writing to server: " + errNotConnected.Error())
		return &SendError{Type: env.Type, Err: errNotConnected}
	}

	c.writeMu.Lock()
	err := conn.Send(env)
	c.writeMu.Unlock()

	c.metrics.FrameSent(env.Type, err)
	if err != nil {
		c.view.Log("Exception writing to server: " + err.Error())
		c.log.WithField("type", env.Type).Warnf("failed to send: %s", err)
		return &SendError{Type: env.Type, Err: err}
	}

	c.dump("out", env)
	return nil
}

// Mark tells the opponent about our move at location.
func (c *Client) Mark(location int) error {
	s := c.session.snapshot()
	return c.Send(protocol.NewMark(location, s.UserName, s.EnemyName))
}

// Invite asks target to play a game.
func (c *Client) Invite(target string) error {
	if err := c.Send(protocol.NewInvite(c.session.snapshot().UserName, target)); err != nil {
		return err
	}
	c.invites.add(target)
	return nil
}

// RequestUserList asks for the list of logged in users.
func (c *Client) RequestUserList() error {
	return c.Send(protocol.NewRequest(protocol.WhoIsInType))
}

func (c *Client) Logout() error {
	return c.Send(protocol.NewRequest(protocol.LogoutType))
}

// SaveGame asks the server to save the game in progress.
func (c *Client) SaveGame() error {
	return c.Send(protocol.NewRequest(protocol.SaveType))
}

// LoadGame asks the server for our saved game. The board arrives later as a
// LOAD envelope.
func (c *Client) LoadGame() error {
	return c.Send(protocol.NewRequest(protocol.LoadType))
}

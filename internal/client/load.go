package client

import (
	"github.com/dcrodman/noughts/internal/protocol"
)

// nextToMove derives whose turn it is from the board alone. X always opens and
// the players alternate, so equal counts mean X moves next.
func nextToMove(board protocol.Board) protocol.Mark {
	x, o := board.Count()
	if x == o {
		return protocol.X
	}
	return protocol.O
}

// restoreGame recovers our mark and opponent from a loaded game. The player
// who saved the game (From) plays X and the other one (To) plays O. If we are
// neither, the current mark is kept.
func (c *Client) restoreGame(env *protocol.Envelope, board protocol.Board) (myTurn bool, mark protocol.Mark) {
	s := c.session.snapshot()

	switch s.UserName {
	case env.From:
		c.session.startGame(env.To, protocol.X)
	case env.To:
		c.session.startGame(env.From, protocol.O)
	default:
		c.log.Warnf("loaded game between %s and %s does not involve %s", env.From, env.To, s.UserName)
	}

	if x, o := board.Count(); x-o != 0 && x-o != 1 {
		c.log.Warnf("loaded board %v is inconsistent: %d X and %d O", board, x, o)
	}

	mark = c.session.snapshot().Mark
	return nextToMove(board) == mark, mark
}

package client

import "github.com/dcrodman/noughts/internal/protocol"

// View is the presentation layer the client reports to. The client only ever
// calls into it; implementations must be safe to call from the listener
// goroutine while user actions run elsewhere.
type View interface {
	// Log shows a status or error line.
	Log(text string)

	// ConnectionFailed is called when the connection can no longer be used.
	ConnectionFailed()

	// SetUsers replaces the list of users logged in to the server.
	SetUsers(names []string)

	// NotifyInvited reports that a game against opponent started and that the
	// local player plays mark.
	NotifyInvited(mark protocol.Mark, opponent string)

	// UpdateWholeTable replaces the board after a saved game was loaded.
	UpdateWholeTable(board protocol.Board, myTurn bool, mark protocol.Mark)

	NotifyGameEnded(won bool)

	// PutMark places the opponent's mark at location.
	PutMark(location int, mark protocol.Mark)

	ShowMessage(text string)
}

// Package terminal is a line-oriented front end for the game client. View
// prints everything the client reports and keeps a local copy of the board;
// Shell reads commands and turns them into client actions.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dcrodman/noughts/internal/client"
	"github.com/dcrodman/noughts/internal/protocol"
)

var (
	ErrNoGame          = errors.New("no game in progress")
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrInvalidLocation = errors.New("location is outside the board")
	ErrOccupied        = errors.New("location is already taken")
)

// View writes client notifications to an io.Writer. It is safe for use by the
// listener goroutine and the shell at the same time.
type View struct {
	mu  sync.Mutex
	out io.Writer

	size     int
	board    protocol.Board
	mark     protocol.Mark
	opponent string
	myTurn   bool
	inGame   bool
	session  SessionSource

	failOnce sync.Once
	failed   chan struct{}
}

// NewView returns a View printing to out with an empty board of the given
// size. A size below one falls back to protocol.DefaultBoardSize.
func NewView(out io.Writer, size int) *View {
	if size < 1 {
		size = protocol.DefaultBoardSize
	}
	return &View{
		out:    out,
		size:   size,
		board:  protocol.NewBoard(size),
		failed: make(chan struct{}),
	}
}

// SessionSource reports the client's view of the current game.
type SessionSource interface {
	Session() client.Session
}

// TrackSession lets the view look up the opponent of a game restored from
// the server, since a loaded board does not name them.
func (v *View) TrackSession(src SessionSource) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.session = src
}

func (v *View) printf(format string, args ...interface{}) {
	fmt.Fprintf(v.out, format, args...)
}

func (v *View) Log(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.printf("%s\n", text)
}

// ConnectionFailed reports the lost connection once and releases Failed.
func (v *View) ConnectionFailed() {
	v.mu.Lock()
	v.inGame = false
	v.mu.Unlock()

	v.failOnce.Do(func() {
		v.Log("Connection to the server was lost.")
		close(v.failed)
	})
}

// Failed is closed after the first ConnectionFailed call.
func (v *View) Failed() <-chan struct{} {
	return v.failed
}

func (v *View) SetUsers(names []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(names) == 0 {
		v.printf("Nobody is logged in.\n")
		return
	}
	v.printf("Logged in: %s\n", strings.Join(names, ", "))
}

// NotifyInvited starts a fresh game against opponent. X always moves first.
func (v *View) NotifyInvited(mark protocol.Mark, opponent string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.board = protocol.NewBoard(v.size)
	v.mark = mark
	v.opponent = opponent
	v.myTurn = mark == protocol.X
	v.inGame = true

	v.printf("Game started against %s. You play %s.\n", opponent, mark)
	v.render()
}

func (v *View) UpdateWholeTable(board protocol.Board, myTurn bool, mark protocol.Mark) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.board = board.Clone()
	v.myTurn = myTurn
	v.mark = mark
	v.opponent = ""
	if v.session != nil {
		v.opponent = v.session.Session().EnemyName
	}
	v.inGame = true
	v.render()
}

func (v *View) NotifyGameEnded(won bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.inGame = false
	v.myTurn = false
	if won {
		v.printf("You won!\n")
	} else {
		v.printf("You lost!\n")
	}
}

// PutMark places the opponent's move, after which it is our turn again.
func (v *View) PutMark(location int, mark protocol.Mark) {
	v.mu.Lock()
	defer v.mu.Unlock()

	row, col, ok := v.board.Locate(location)
	if !ok {
		v.printf("Opponent played outside the board (%d).\n", location)
		return
	}
	v.board[row][col] = mark
	v.myTurn = true
	v.render()
}

func (v *View) ShowMessage(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.printf("*** %s ***\n", text)
}

// CheckMove reports why we could not play at location, if anything.
func (v *View) CheckMove(location int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _, err := v.checkMove(location)
	return err
}

func (v *View) checkMove(location int) (row, col int, err error) {
	if !v.inGame {
		return 0, 0, ErrNoGame
	}
	if !v.myTurn {
		return 0, 0, ErrNotYourTurn
	}
	row, col, ok := v.board.Locate(location)
	if !ok {
		return 0, 0, ErrInvalidLocation
	}
	if v.board[row][col] != protocol.Empty {
		return 0, 0, ErrOccupied
	}
	return row, col, nil
}

// PlaceOwn records our move at location and hands the turn to the opponent.
func (v *View) PlaceOwn(location int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	row, col, err := v.checkMove(location)
	if err != nil {
		return err
	}
	v.board[row][col] = v.mark
	v.myTurn = false
	v.render()
	return nil
}

// Board returns a copy of the local board.
func (v *View) Board() protocol.Board {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.board.Clone()
}

// render draws the board followed by whose turn it is. Callers hold mu.
func (v *View) render() {
	for _, row := range v.board {
		for _, tile := range row {
			v.printf(" %c", byte(tile))
		}
		v.printf("\n")
	}
	switch {
	case !v.inGame:
	case v.myTurn:
		v.printf("Your move (%s).\n", v.mark)
	default:
		v.printf("Waiting for %s.\n", v.opponentName())
	}
}

func (v *View) opponentName() string {
	if v.opponent == "" {
		return "the opponent"
	}
	return v.opponent
}

package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dcrodman/noughts/internal/client"
	"github.com/dcrodman/noughts/internal/history"
)

const historyLimit = 10

// ErrConnectionLost is returned by Run when the client's listener stopped.
var ErrConnectionLost = errors.New("connection lost")

var errQuit = errors.New("quit")

// Actions are the client operations the shell can trigger.
type Actions interface {
	RequestUserList() error
	Invite(target string) error
	Mark(location int) error
	SaveGame() error
	LoadGame() error
	Logout() error
	PendingInvites() []string
	Session() client.Session
}

// History is the read side of the game history store.
type History interface {
	Results(player string, limit int) ([]history.Result, error)
	Tally(player string) (wins, losses int64, err error)
}

// Shell reads one command per line and runs it against the client.
type Shell struct {
	actions Actions
	view    *View
	history History
	log     logrus.FieldLogger
	title   cases.Caser
}

// NewShell returns a Shell. store may be nil when results are not kept.
func NewShell(actions Actions, view *View, store History, log logrus.FieldLogger) *Shell {
	return &Shell{
		actions: actions,
		view:    view,
		history: store,
		log:     log,
		title:   cases.Title(language.English),
	}
}

// Run executes commands read from in until quit, end of input, ctx being done
// or the connection being lost (ErrConnectionLost). Command errors are printed
// and do not stop the loop.
func (s *Shell) Run(ctx context.Context, in io.Reader, connectionLost <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.view.Log(`Type "help" for a list of commands.`)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-connectionLost:
			return ErrConnectionLost
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := s.Execute(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				s.view.Log(s.title.String(err.Error()))
			}
		}
	}
}

// Execute runs a single command line.
func (s *Shell) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	command, args := strings.ToLower(fields[0]), fields[1:]
	s.log.Debugf("running command %q", line)

	switch command {
	case "help":
		s.help()
		return nil
	case "who":
		return s.actions.RequestUserList()
	case "invite":
		if len(args) != 1 {
			return errors.New("usage: invite <user>")
		}
		return s.actions.Invite(args[0])
	case "mark":
		return s.mark(args)
	case "save":
		return s.actions.SaveGame()
	case "load":
		return s.actions.LoadGame()
	case "logout":
		return s.actions.Logout()
	case "invites":
		s.invites()
		return nil
	case "history":
		return s.showHistory()
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (s *Shell) mark(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mark <location>")
	}
	location, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid location %q", args[0])
	}
	if err := s.view.CheckMove(location); err != nil {
		return err
	}
	if err := s.actions.Mark(location); err != nil {
		return err
	}
	return s.view.PlaceOwn(location)
}

func (s *Shell) invites() {
	pending := s.actions.PendingInvites()
	if len(pending) == 0 {
		s.view.Log("No pending invitations.")
		return
	}
	s.view.Log("Waiting for: " + strings.Join(pending, ", "))
}

func (s *Shell) showHistory() error {
	if s.history == nil {
		return history.ErrDisabled
	}
	player := s.actions.Session().UserName

	wins, losses, err := s.history.Tally(player)
	if err != nil {
		return err
	}
	results, err := s.history.Results(player, historyLimit)
	if err != nil {
		return err
	}

	s.view.Log(fmt.Sprintf("%d won, %d lost", wins, losses))
	for _, r := range results {
		outcome := "lost"
		if r.Won {
			outcome = "won"
		}
		s.view.Log(fmt.Sprintf("%s  %s against %s as %s",
			r.FinishedAt.Format("2006-01-02 15:04:05"), outcome, r.Opponent, r.Mark))
	}
	return nil
}

func (s *Shell) help() {
	s.view.Log(strings.Join([]string{
		"who              list logged in users",
		"invite <user>    invite a user to play",
		"mark <location>  play at a cell, numbered row by row from 0",
		"save             save the current game",
		"load             load the saved game",
		"invites          list unanswered invitations",
		"history          show past results",
		"logout           log out from the server",
		"quit             leave",
	}, "\n"))
}

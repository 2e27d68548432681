// Package protocol defines the envelopes exchanged between a game client and the
// server along with their wire encoding.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies the kind of an Envelope and determines the shape of its payload.
type Type string

const (
	LoginType   Type = "LOGIN"
	WhoIsInType Type = "WHOISIN"
	InviteType  Type = "INVITE"
	MarkType    Type = "MARK"
	LoadType    Type = "LOAD"
	SaveType    Type = "SAVE"
	WinType     Type = "WIN"
	LogoutType  Type = "LOGOUT"
)

// Types is the closed set of tags understood by this version of the protocol.
var Types = []Type{
	LoginType, WhoIsInType, InviteType, MarkType, LoadType, SaveType, WinType, LogoutType,
}

// Known reports whether t is one of the tags in Types.
func (t Type) Known() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Payload is implemented by every value that can ride inside an Envelope.
type Payload interface {
	payload()
}

// Flag is a boolean payload (LOGIN acceptance, WIN outcome).
type Flag bool

// Location is the index of a board cell, counted row by row from zero.
type Location int

// Names is the list of users currently logged in to the server.
type Names []string

func (Flag) payload()     {}
func (Location) payload() {}
func (Names) payload()    {}
func (Mark) payload()     {}
func (Board) payload()    {}

// Envelope is the unit exchanged between client and server once the login
// handshake is complete. Envelopes are treated as read-only once created.
type Envelope struct {
	Type    Type
	Payload Payload
	From    string
	To      string
}

var (
	ErrUnknownType      = errors.New("unknown envelope type")
	ErrPayloadMismatch  = errors.New("payload does not match envelope type")
	ErrInvalidUserName  = errors.New("invalid user name")
	errPayloadForbidden = errors.New("envelope type carries no payload")
)

// New returns an Envelope after checking that the payload agrees with the tag.
func New(t Type, p Payload, from, to string) (*Envelope, error) {
	env := &Envelope{Type: t, Payload: p, From: from, To: to}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

func mustNew(t Type, p Payload, from, to string) *Envelope {
	env, err := New(t, p, from, to)
	if err != nil {
		panic(err)
	}
	return env
}

// Validate checks that the tag is known and the payload agrees with it.
func (e *Envelope) Validate() error {
	if !e.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	return checkPayload(e.Type, e.Payload)
}

// NewMark builds the envelope announcing a move at location.
func NewMark(location int, from, to string) *Envelope {
	return mustNew(MarkType, Location(location), from, to)
}

// NewInvite builds an invitation from one user to another.
func NewInvite(from, to string) *Envelope {
	return mustNew(InviteType, nil, from, to)
}

// NewRequest builds an unaddressed envelope with no payload. It is used for the
// WHOISIN, LOGOUT, SAVE and LOAD requests and panics for a type that requires
// a payload.
func NewRequest(t Type) *Envelope {
	return mustNew(t, nil, "", "")
}

func (e *Envelope) String() string {
	if e.Payload == nil {
		return fmt.Sprintf("%s{from=%q to=%q}", e.Type, e.From, e.To)
	}
	return fmt.Sprintf("%s{from=%q to=%q payload=%v}", e.Type, e.From, e.To, e.Payload)
}

// checkPayload enforces the per-tag payload shapes. A nil Payload means the
// payload is absent.
func checkPayload(t Type, p Payload) error {
	var ok bool
	switch t {
	case LoginType, WinType:
		_, ok = p.(Flag)
	case MarkType:
		_, ok = p.(Location)
	case WhoIsInType:
		_, ok = p.(Names)
		ok = ok || p == nil
	case InviteType:
		var m Mark
		m, ok = p.(Mark)
		if ok && !m.Player() {
			return fmt.Errorf("%w: %s payload %q is not a player mark", ErrPayloadMismatch, t, m)
		}
		ok = ok || p == nil
	case LoadType:
		_, ok = p.(Board)
		ok = ok || p == nil
	case SaveType, LogoutType:
		if p != nil {
			return fmt.Errorf("%w: %s", errPayloadForbidden, t)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	if !ok {
		return fmt.Errorf("%w: %s cannot carry %T", ErrPayloadMismatch, t, p)
	}
	return nil
}

// ValidateUserName checks that name can be sent as the plain-text login frame.
func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidUserName)
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: name contains a line break", ErrInvalidUserName)
	}
	return nil
}

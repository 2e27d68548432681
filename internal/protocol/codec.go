package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// frame is the JSON shape of an envelope on the wire. The payload is decoded
// lazily once the type is known.
type frame struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
}

// DecodeError is returned when a complete frame was read from the connection
// but could not be turned into an Envelope. The stream itself is still usable.
// Type is set when the frame carried a known type but an unusable payload.
type DecodeError struct {
	Frame []byte
	Type  Type
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Marshal encodes env as a single-line JSON frame (without a trailing newline).
func Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, errors.New("cannot marshal nil envelope")
	}

	f := frame{Type: env.Type, From: env.From, To: env.To}
	if env.Payload != nil {
		p, err := json.Marshal(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", env.Type, err)
		}
		f.Payload = p
	}

	return json.Marshal(&f)
}

// Unmarshal decodes one frame. Frames with an unrecognized type are returned as
// an Envelope with that Type and no payload so that the receiver can decide
// what to do with them. All failures are reported as *DecodeError.
func Unmarshal(data []byte) (*Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{Frame: data, Err: err}
	}
	if f.Type == "" {
		return nil, &DecodeError{Frame: data, Err: errors.New("frame has no type")}
	}

	env := &Envelope{Type: f.Type, From: f.From, To: f.To}
	if !f.Type.Known() {
		return env, nil
	}

	p, err := decodePayload(f.Type, f.Payload)
	if err != nil {
		return nil, &DecodeError{Frame: data, Type: f.Type, Err: fmt.Errorf("%s payload: %w", f.Type, err)}
	}
	if err := checkPayload(f.Type, p); err != nil {
		return nil, &DecodeError{Frame: data, Type: f.Type, Err: err}
	}
	env.Payload = p

	return env, nil
}

func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	switch t {
	case LoginType, WinType:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return Flag(v), nil
	case MarkType:
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return Location(v), nil
	case WhoIsInType:
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return Names(v), nil
	case InviteType:
		var v Mark
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case LoadType:
		var v Board
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		// SAVE and LOGOUT requests carry nothing meaningful; some peers send an
		// empty string here.
		return nil, nil
	}
}

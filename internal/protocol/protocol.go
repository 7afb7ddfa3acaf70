package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"aeon-session-server/internal/model"
)

// Envelope is the wire unit exchanged over a live connection: a type tag
// plus a tag-specific payload. Envelopes are transient and never persisted.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound tags.
const (
	TypeCursor   = "cursor"
	TypePresence = "presence"
	TypePing     = "ping"
)

// Outbound tags.
const (
	TypeInit = "init"
	TypePong = "pong"
)

// Presence broadcast actions.
const (
	ActionJoin   = "join"
	ActionUpdate = "update"
	ActionLeave  = "leave"
)

var ErrUnknownType = errors.New("unknown envelope type")

type CursorPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresencePayload struct {
	Status  model.Status `json:"status"`
	Editing string       `json:"editing,omitempty"`
}

type InitPayload struct {
	Session  model.SessionDocument `json:"session"`
	Presence []model.Participant   `json:"presence"`
}

type CursorBroadcast struct {
	UserID string       `json:"userId"`
	Cursor model.Cursor `json:"cursor"`
}

type PresenceBroadcast struct {
	Action string             `json:"action"`
	User   *model.Participant `json:"user,omitempty"`
	UserID string             `json:"userId,omitempty"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("decode envelope: missing type")
	}
	return env, nil
}

func (e Envelope) DecodeCursor() (CursorPayload, error) {
	var p CursorPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return CursorPayload{}, fmt.Errorf("decode cursor payload: %w", err)
	}
	return p, nil
}

func (e Envelope) DecodePresence() (PresencePayload, error) {
	var p PresencePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return PresencePayload{}, fmt.Errorf("decode presence payload: %w", err)
	}
	if !p.Status.Valid() {
		return PresencePayload{}, fmt.Errorf("decode presence payload: invalid status %q", p.Status)
	}
	return p, nil
}

// Encode builds a wire frame for the given tag and payload.
func Encode(envType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", envType, err)
	}
	return json.Marshal(Envelope{Type: envType, Payload: raw})
}

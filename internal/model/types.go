package model

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleAssistant:
		return true
	}
	return false
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is one live connection's presence record. It exists only in
// the owning session actor's memory and is never persisted.
type Participant struct {
	UserID       string  `json:"userId"`
	Role         Role    `json:"role"`
	Status       Status  `json:"status"`
	LastActivity int64   `json:"lastActivity"`
	Cursor       *Cursor `json:"cursor,omitempty"`
	Editing      string  `json:"editing,omitempty"`
}

type Schema struct {
	Version string `json:"version"`
}

// SessionDocument is the durable payload for one session. Version increases
// by exactly 1 on every successful replace.
type SessionDocument struct {
	Route     string         `json:"route"`
	Data      map[string]any `json:"data"`
	Schema    Schema         `json:"schema"`
	Version   int64          `json:"version,omitempty"`
	UpdatedAt int64          `json:"updatedAt,omitempty"`
	UpdatedBy string         `json:"updatedBy,omitempty"`
}

const DefaultSchemaVersion = "1.0.0"

// DefaultDocument is what readers see before a session is ever initialized.
func DefaultDocument() SessionDocument {
	return SessionDocument{
		Route:  "/",
		Data:   map[string]any{},
		Schema: Schema{Version: DefaultSchemaVersion},
	}
}

// RouteEntry is one named route in the shared registry. Pattern is the
// unique key; writes are replace-by-key.
type RouteEntry struct {
	Pattern  string         `json:"pattern"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

package session

import (
	"log"
	"time"

	"aeon-session-server/internal/actor"
	"aeon-session-server/internal/mirror"
	"aeon-session-server/internal/model"
	"aeon-session-server/internal/protocol"
	"aeon-session-server/internal/storage"
)

const docKey = "session"

// Actor is the single authority for one session's live roster and durable
// document. All state below the mailbox is touched only inside its turns,
// so none of it is locked.
type Actor struct {
	id      string
	mailbox *actor.Mailbox

	kv     storage.KV
	mirror *mirror.Writer
	now    func() int64

	roster map[*Conn]*model.Participant
	doc    *model.SessionDocument
	loaded bool
}

func NewActor(id string, kv storage.KV, mirrorWriter *mirror.Writer) *Actor {
	return &Actor{
		id:      id,
		mailbox: actor.NewMailbox(),
		kv:      kv,
		mirror:  mirrorWriter,
		now:     func() int64 { return time.Now().UnixMilli() },
		roster:  make(map[*Conn]*model.Participant),
	}
}

func (a *Actor) Stop() {
	a.mailbox.Stop()
}

// Accept registers a new participant, sends it the current document and
// roster, and announces the join to everyone else.
func (a *Actor) Accept(conn *Conn, userID string, role model.Role) {
	a.mailbox.Do(func() {
		p := &model.Participant{
			UserID:       userID,
			Role:         role,
			Status:       model.StatusOnline,
			LastActivity: a.now(),
		}
		a.roster[conn] = p

		doc, ok, err := a.loadDoc()
		if err != nil {
			log.Printf("session %s: document load failed on accept: %v", a.id, err)
			ok = false
		}
		if !ok {
			doc = model.DefaultDocument()
		}

		init, err := protocol.Encode(protocol.TypeInit, protocol.InitPayload{
			Session:  doc,
			Presence: a.rosterSnapshot(),
		})
		if err != nil {
			log.Printf("session %s: encode init failed: %v", a.id, err)
		} else if err := conn.Writer.Write(init); err != nil {
			log.Printf("session %s: init send failed: %v", a.id, err)
		}

		a.broadcast(protocol.TypePresence, protocol.PresenceBroadcast{
			Action: protocol.ActionJoin,
			User:   p,
		}, conn)
	})
}

// HandleEvent dispatches one inbound frame. Malformed frames are dropped
// and logged; events from unregistered connections are no-ops.
func (a *Actor) HandleEvent(conn *Conn, raw []byte) {
	a.mailbox.Do(func() {
		p, ok := a.roster[conn]
		if !ok {
			return
		}

		env, err := protocol.Decode(raw)
		if err != nil {
			log.Printf("session %s: dropping malformed event: %v", a.id, err)
			return
		}

		p.LastActivity = a.now()

		switch env.Type {
		case protocol.TypeCursor:
			payload, err := env.DecodeCursor()
			if err != nil {
				log.Printf("session %s: dropping cursor event: %v", a.id, err)
				return
			}
			p.Cursor = &model.Cursor{X: payload.X, Y: payload.Y}
			a.broadcast(protocol.TypeCursor, protocol.CursorBroadcast{
				UserID: p.UserID,
				Cursor: *p.Cursor,
			}, conn)

		case protocol.TypePresence:
			payload, err := env.DecodePresence()
			if err != nil {
				log.Printf("session %s: dropping presence event: %v", a.id, err)
				return
			}
			p.Status = payload.Status
			p.Editing = payload.Editing
			a.broadcast(protocol.TypePresence, protocol.PresenceBroadcast{
				Action: protocol.ActionUpdate,
				User:   p,
			}, conn)

		case protocol.TypePing:
			pong, err := protocol.Encode(protocol.TypePong, protocol.PongPayload{Timestamp: a.now()})
			if err != nil {
				return
			}
			if err := conn.Writer.Write(pong); err != nil {
				log.Printf("session %s: pong send failed: %v", a.id, err)
			}
		}
		// Unknown tags are ignored.
	})
}

// Disconnect removes the connection's participant and announces the leave.
// Disconnecting an unknown connection is a no-op.
func (a *Actor) Disconnect(conn *Conn) {
	a.mailbox.Do(func() {
		p, ok := a.roster[conn]
		if !ok {
			return
		}
		delete(a.roster, conn)
		a.broadcast(protocol.TypePresence, protocol.PresenceBroadcast{
			Action: protocol.ActionLeave,
			UserID: p.UserID,
		}, nil)
	})
}

// Document returns the session's document, reading through to the durable
// store when the cache is cold. ok is false when no document exists yet.
func (a *Actor) Document() (doc model.SessionDocument, ok bool, err error) {
	a.mailbox.Do(func() {
		doc, ok, err = a.loadDoc()
	})
	return doc, ok, err
}

// Initialize creates revision 1 unless a document already exists, in which
// case the existing document is returned unchanged with created=false.
func (a *Actor) Initialize(route string, data map[string]any, schemaVersion string) (doc model.SessionDocument, created bool, err error) {
	a.mailbox.Do(func() {
		var existing model.SessionDocument
		var ok bool
		existing, ok, err = a.loadDoc()
		if err != nil {
			return
		}
		if ok {
			doc = existing
			return
		}

		if route == "" {
			route = "/"
		}
		if data == nil {
			data = map[string]any{}
		}
		if schemaVersion == "" {
			schemaVersion = model.DefaultSchemaVersion
		}

		doc = model.SessionDocument{
			Route:     route,
			Data:      data,
			Schema:    model.Schema{Version: schemaVersion},
			Version:   1,
			UpdatedAt: a.now(),
		}
		if err = a.kv.Put(docKey, doc); err != nil {
			doc = model.SessionDocument{}
			return
		}
		a.cache(doc)
		created = true
	})
	return doc, created, err
}

// Replace persists the document wholesale at the next revision. The durable
// write is synchronous and its failure propagates; the mirror write is
// detached and never reported.
func (a *Actor) Replace(next model.SessionDocument) (version int64, err error) {
	a.mailbox.Do(func() {
		var current model.SessionDocument
		var ok bool
		current, ok, err = a.loadDoc()
		if err != nil {
			return
		}

		next.Version = 1
		if ok {
			next.Version = current.Version + 1
		}
		next.UpdatedAt = a.now()
		if next.Data == nil {
			next.Data = map[string]any{}
		}

		if err = a.kv.Put(docKey, next); err != nil {
			return
		}
		a.cache(next)
		if a.mirror != nil {
			a.mirror.Enqueue(a.id, next)
		}
		version = next.Version
	})
	return version, err
}

// Presence returns a snapshot of the roster.
func (a *Actor) Presence() []model.Participant {
	var out []model.Participant
	a.mailbox.Do(func() {
		out = a.rosterSnapshot()
	})
	return out
}

func (a *Actor) rosterSnapshot() []model.Participant {
	out := make([]model.Participant, 0, len(a.roster))
	for _, p := range a.roster {
		out = append(out, *p)
	}
	return out
}

func (a *Actor) loadDoc() (model.SessionDocument, bool, error) {
	if a.loaded {
		if a.doc == nil {
			return model.SessionDocument{}, false, nil
		}
		return *a.doc, true, nil
	}

	var doc model.SessionDocument
	ok, err := a.kv.Get(docKey, &doc)
	if err != nil {
		return model.SessionDocument{}, false, err
	}
	a.loaded = true
	if !ok {
		return model.SessionDocument{}, false, nil
	}
	a.doc = &doc
	return doc, true, nil
}

func (a *Actor) cache(doc model.SessionDocument) {
	a.doc = &doc
	a.loaded = true
}

// broadcast fans an envelope out to every roster member except exclude.
// A failed write to one connection never aborts delivery to the rest; dead
// connections are pruned when their disconnect arrives.
func (a *Actor) broadcast(envType string, payload any, exclude *Conn) {
	data, err := protocol.Encode(envType, payload)
	if err != nil {
		log.Printf("session %s: encode %s broadcast failed: %v", a.id, envType, err)
		return
	}
	for c := range a.roster {
		if c == exclude {
			continue
		}
		if err := c.Writer.Write(data); err != nil {
			log.Printf("session %s: broadcast to one connection failed: %v", a.id, err)
		}
	}
}

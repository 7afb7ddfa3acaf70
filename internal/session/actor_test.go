package session

import (
	"encoding/json"
	"errors"
	"testing"

	"aeon-session-server/internal/model"
	"aeon-session-server/internal/protocol"
	"aeon-session-server/internal/storage"
)

type testWriter struct {
	frames [][]byte
	fail   bool
}

func (w *testWriter) Write(message []byte) error {
	if w.fail {
		return errors.New("write failed")
	}
	w.frames = append(w.frames, message)
	return nil
}

func (w *testWriter) Close() error { return nil }

func (w *testWriter) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	out := make([]protocol.Envelope, 0, len(w.frames))
	for _, f := range w.frames {
		var env protocol.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, env)
	}
	return out
}

func (w *testWriter) lastOfType(t *testing.T, envType string) (protocol.Envelope, bool) {
	t.Helper()
	var found protocol.Envelope
	ok := false
	for _, env := range w.envelopes(t) {
		if env.Type == envType {
			found = env
			ok = true
		}
	}
	return found, ok
}

func newTestActor(t *testing.T) *Actor {
	t.Helper()
	kv, err := storage.OpenFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileKV: %v", err)
	}
	a := NewActor("test", kv, nil)
	t.Cleanup(a.Stop)
	return a
}

// failingKV rejects every operation, standing in for an unreachable
// durable store.
type failingKV struct{}

var errStoreDown = errors.New("store unreachable")

func (failingKV) Get(key string, out any) (bool, error) { return false, errStoreDown }

func (failingKV) Put(key string, value any) error { return errStoreDown }

func (failingKV) Delete(key string) error { return errStoreDown }

func (failingKV) List(prefix string) (map[string]json.RawMessage, error) {
	return nil, errStoreDown
}

func TestAccept_SendsInitAndBroadcastsJoin(t *testing.T) {
	a := newTestActor(t)

	wA := &testWriter{}
	connA := &Conn{Writer: wA}
	a.Accept(connA, "alice", model.RoleUser)

	envs := wA.envelopes(t)
	if len(envs) != 1 || envs[0].Type != protocol.TypeInit {
		t.Fatalf("expected single init frame, got %+v", envs)
	}
	var init protocol.InitPayload
	if err := json.Unmarshal(envs[0].Payload, &init); err != nil {
		t.Fatalf("unmarshal init: %v", err)
	}
	if init.Session.Route != "/" || init.Session.Schema.Version != "1.0.0" {
		t.Fatalf("expected default document, got %+v", init.Session)
	}
	if len(init.Presence) != 1 || init.Presence[0].UserID != "alice" {
		t.Fatalf("expected self in roster, got %+v", init.Presence)
	}

	wB := &testWriter{}
	a.Accept(&Conn{Writer: wB}, "bob", model.RoleAdmin)

	// Alice hears bob's join; bob does not hear his own.
	join, ok := wA.lastOfType(t, protocol.TypePresence)
	if !ok {
		t.Fatalf("expected join broadcast to alice")
	}
	var pb protocol.PresenceBroadcast
	if err := json.Unmarshal(join.Payload, &pb); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if pb.Action != protocol.ActionJoin || pb.User == nil || pb.User.UserID != "bob" {
		t.Fatalf("unexpected join broadcast: %+v", pb)
	}
	if _, ok := wB.lastOfType(t, protocol.TypePresence); ok {
		t.Fatalf("joiner should not receive its own join")
	}
}

func TestCursorEvent_UpdatesSenderAndFansOutToOthers(t *testing.T) {
	a := newTestActor(t)

	wA, wB := &testWriter{}, &testWriter{}
	connA, connB := &Conn{Writer: wA}, &Conn{Writer: wB}
	a.Accept(connA, "alice", model.RoleUser)
	a.Accept(connB, "bob", model.RoleUser)

	before := len(wA.frames)
	a.HandleEvent(connA, []byte(`{"type":"cursor","payload":{"x":10,"y":20}}`))

	env, ok := wB.lastOfType(t, protocol.TypeCursor)
	if !ok {
		t.Fatalf("expected cursor broadcast to bob")
	}
	var cb protocol.CursorBroadcast
	if err := json.Unmarshal(env.Payload, &cb); err != nil {
		t.Fatalf("unmarshal cursor: %v", err)
	}
	if cb.UserID != "alice" || cb.Cursor.X != 10 || cb.Cursor.Y != 20 {
		t.Fatalf("unexpected cursor broadcast: %+v", cb)
	}
	if len(wA.frames) != before {
		t.Fatalf("sender should not receive its own cursor")
	}

	for _, p := range a.Presence() {
		switch p.UserID {
		case "alice":
			if p.Cursor == nil || p.Cursor.X != 10 || p.Cursor.Y != 20 {
				t.Fatalf("alice cursor not updated: %+v", p)
			}
		case "bob":
			if p.Cursor != nil {
				t.Fatalf("bob cursor changed as a side effect: %+v", p)
			}
		}
	}
}

func TestPresenceEvent_UpdatesStatusAndEditing(t *testing.T) {
	a := newTestActor(t)

	wA, wB := &testWriter{}, &testWriter{}
	connA, connB := &Conn{Writer: wA}, &Conn{Writer: wB}
	a.Accept(connA, "alice", model.RoleUser)
	a.Accept(connB, "bob", model.RoleUser)

	a.HandleEvent(connA, []byte(`{"type":"presence","payload":{"status":"away","editing":"#bio"}}`))

	env, ok := wB.lastOfType(t, protocol.TypePresence)
	if !ok {
		t.Fatalf("expected presence broadcast to bob")
	}
	var pb protocol.PresenceBroadcast
	if err := json.Unmarshal(env.Payload, &pb); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if pb.Action != protocol.ActionUpdate || pb.User == nil {
		t.Fatalf("unexpected presence broadcast: %+v", pb)
	}
	if pb.User.Status != model.StatusAway || pb.User.Editing != "#bio" {
		t.Fatalf("broadcast should carry updated participant: %+v", pb.User)
	}
}

func TestPingEvent_RepliesToSenderOnly(t *testing.T) {
	a := newTestActor(t)

	wA, wB := &testWriter{}, &testWriter{}
	connA, connB := &Conn{Writer: wA}, &Conn{Writer: wB}
	a.Accept(connA, "alice", model.RoleUser)
	a.Accept(connB, "bob", model.RoleUser)

	bobFrames := len(wB.frames)
	a.HandleEvent(connA, []byte(`{"type":"ping"}`))

	env, ok := wA.lastOfType(t, protocol.TypePong)
	if !ok {
		t.Fatalf("expected pong to sender")
	}
	var pong protocol.PongPayload
	if err := json.Unmarshal(env.Payload, &pong); err != nil {
		t.Fatalf("unmarshal pong: %v", err)
	}
	if pong.Timestamp == 0 {
		t.Fatalf("expected timestamp in pong")
	}
	if len(wB.frames) != bobFrames {
		t.Fatalf("ping must not broadcast")
	}
}

func TestHandleEvent_DropsMalformedAndUnknown(t *testing.T) {
	a := newTestActor(t)

	wA, wB := &testWriter{}, &testWriter{}
	connA, connB := &Conn{Writer: wA}, &Conn{Writer: wB}
	a.Accept(connA, "alice", model.RoleUser)
	a.Accept(connB, "bob", model.RoleUser)

	bobFrames := len(wB.frames)
	a.HandleEvent(connA, []byte(`not json`))
	a.HandleEvent(connA, []byte(`{"type":"cursor","payload":"nope"}`))
	a.HandleEvent(connA, []byte(`{"type":"teleport","payload":{}}`))

	if len(wB.frames) != bobFrames {
		t.Fatalf("malformed/unknown events must not broadcast")
	}
	if len(a.Presence()) != 2 {
		t.Fatalf("roster corrupted by malformed events")
	}
}

func TestHandleEvent_UnregisteredConnectionIsNoop(t *testing.T) {
	a := newTestActor(t)

	wA := &testWriter{}
	a.Accept(&Conn{Writer: wA}, "alice", model.RoleUser)

	frames := len(wA.frames)
	a.HandleEvent(&Conn{Writer: &testWriter{}}, []byte(`{"type":"cursor","payload":{"x":1,"y":2}}`))
	if len(wA.frames) != frames {
		t.Fatalf("event from unregistered connection must be a no-op")
	}
}

func TestDisconnect_BroadcastsLeaveToRemaining(t *testing.T) {
	a := newTestActor(t)

	wA, wB := &testWriter{}, &testWriter{}
	connA, connB := &Conn{Writer: wA}, &Conn{Writer: wB}
	a.Accept(connA, "alice", model.RoleUser)
	a.Accept(connB, "bob", model.RoleUser)

	a.Disconnect(connA)

	env, ok := wB.lastOfType(t, protocol.TypePresence)
	if !ok {
		t.Fatalf("expected leave broadcast to bob")
	}
	var pb protocol.PresenceBroadcast
	if err := json.Unmarshal(env.Payload, &pb); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if pb.Action != protocol.ActionLeave || pb.UserID != "alice" {
		t.Fatalf("unexpected leave broadcast: %+v", pb)
	}
	if pb.User != nil {
		t.Fatalf("leave carries id only, got %+v", pb.User)
	}

	if got := a.Presence(); len(got) != 1 || got[0].UserID != "bob" {
		t.Fatalf("unexpected roster after disconnect: %+v", got)
	}
}

func TestDisconnect_UnknownConnectionIsNoop(t *testing.T) {
	a := newTestActor(t)

	wA := &testWriter{}
	a.Accept(&Conn{Writer: wA}, "alice", model.RoleUser)

	frames := len(wA.frames)
	a.Disconnect(&Conn{Writer: &testWriter{}})
	if len(wA.frames) != frames {
		t.Fatalf("disconnecting an unregistered connection must not broadcast")
	}
	if len(a.Presence()) != 1 {
		t.Fatalf("roster changed by unknown disconnect")
	}
}

func TestBroadcast_FailedWriteDoesNotAbortDelivery(t *testing.T) {
	a := newTestActor(t)

	wDead := &testWriter{fail: true}
	wB := &testWriter{}
	connDead := &Conn{Writer: wDead}
	connB := &Conn{Writer: wB}
	a.Accept(connDead, "dead", model.RoleUser)
	a.Accept(connB, "bob", model.RoleUser)

	wC := &testWriter{}
	a.Accept(&Conn{Writer: wC}, "carol", model.RoleUser)

	// Both live members heard carol's join despite the dead connection.
	if _, ok := wB.lastOfType(t, protocol.TypePresence); !ok {
		t.Fatalf("expected join delivered to bob")
	}
	if len(a.Presence()) != 3 {
		t.Fatalf("failed sends must not prune the roster")
	}
}

func TestInitialize_IsIdempotent(t *testing.T) {
	a := newTestActor(t)

	doc, created, err := a.Initialize("/docs", map[string]any{"a": float64(1)}, "2.0")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !created {
		t.Fatalf("expected created")
	}
	if doc.Version != 1 || doc.Route != "/docs" || doc.Schema.Version != "2.0" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	again, created, err := a.Initialize("/elsewhere", map[string]any{"b": float64(2)}, "9.9")
	if err != nil {
		t.Fatalf("Initialize twice: %v", err)
	}
	if created {
		t.Fatalf("second initialize must report exists")
	}
	if again.Version != 1 || again.Route != "/docs" {
		t.Fatalf("second initialize must not change the document: %+v", again)
	}
}

func TestInitialize_AppliesDefaults(t *testing.T) {
	a := newTestActor(t)

	doc, created, err := a.Initialize("", nil, "")
	if err != nil || !created {
		t.Fatalf("Initialize: created=%v err=%v", created, err)
	}
	if doc.Route != "/" || doc.Schema.Version != "1.0.0" || doc.Data == nil {
		t.Fatalf("defaults not applied: %+v", doc)
	}
}

func TestReplace_RevisionStrictlyIncreases(t *testing.T) {
	a := newTestActor(t)

	for i := int64(1); i <= 5; i++ {
		v, err := a.Replace(model.SessionDocument{Route: "/", Data: map[string]any{"n": float64(i)}, Schema: model.Schema{Version: "1.0.0"}})
		if err != nil {
			t.Fatalf("Replace %d: %v", i, err)
		}
		if v != i {
			t.Fatalf("expected revision %d, got %d", i, v)
		}
	}

	doc, ok, err := a.Document()
	if err != nil || !ok {
		t.Fatalf("Document: ok=%v err=%v", ok, err)
	}
	if doc.Version != 5 {
		t.Fatalf("expected stored revision 5, got %d", doc.Version)
	}
}

func TestReplace_SurvivesActorRestart(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.OpenFileKV(dir)
	if err != nil {
		t.Fatalf("OpenFileKV: %v", err)
	}

	a := NewActor("s1", kv, nil)
	if _, err := a.Replace(model.SessionDocument{Route: "/x", Data: map[string]any{}, Schema: model.Schema{Version: "1.0.0"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	a.Stop()

	// Cold start: the store, not memory, is authoritative.
	kv2, err := storage.OpenFileKV(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	b := NewActor("s1", kv2, nil)
	defer b.Stop()

	v, err := b.Replace(model.SessionDocument{Route: "/x", Data: map[string]any{}, Schema: model.Schema{Version: "1.0.0"}})
	if err != nil {
		t.Fatalf("Replace after restart: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected revision 2 after restart, got %d", v)
	}
}

func TestReplace_StoreFailureSurfacesAndPreservesLastRevision(t *testing.T) {
	kv, err := storage.OpenFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileKV: %v", err)
	}
	a := NewActor("s1", kv, nil)
	defer a.Stop()

	if _, err := a.Replace(model.SessionDocument{Route: "/", Data: map[string]any{"ok": true}, Schema: model.Schema{Version: "1.0.0"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	a.kv = failingKV{}
	if _, err := a.Replace(model.SessionDocument{Route: "/", Data: map[string]any{"bad": true}, Schema: model.Schema{Version: "1.0.0"}}); err == nil {
		t.Fatalf("expected failure when the store is unreachable")
	}

	a.kv = kv
	doc, ok, err := a.Document()
	if err != nil || !ok {
		t.Fatalf("Document: ok=%v err=%v", ok, err)
	}
	if doc.Version != 1 {
		t.Fatalf("expected last persisted revision 1, got %d", doc.Version)
	}
	if _, bad := doc.Data["bad"]; bad {
		t.Fatalf("failed write must not be applied: %+v", doc.Data)
	}
}

func TestDocument_ReadThroughCachesMiss(t *testing.T) {
	a := newTestActor(t)

	_, ok, err := a.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if ok {
		t.Fatalf("expected no document")
	}

	// A cached miss must not mask a later write through the same actor.
	if _, _, err := a.Initialize("/docs", nil, ""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	doc, ok, err := a.Document()
	if err != nil || !ok {
		t.Fatalf("Document after init: ok=%v err=%v", ok, err)
	}
	if doc.Route != "/docs" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

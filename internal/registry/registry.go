package registry

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"aeon-session-server/internal/actor"
	"aeon-session-server/internal/model"
	"aeon-session-server/internal/storage"
)

const keyPrefix = "route:"

// Actor is the single registry instance for the whole deployment: keyed
// CRUD over the shared route namespace, one turn at a time.
type Actor struct {
	mailbox *actor.Mailbox
	kv      storage.KV
}

func New(kv storage.KV) *Actor {
	return &Actor{
		mailbox: actor.NewMailbox(),
		kv:      kv,
	}
}

// Open creates the registry over its reserved storage namespace under
// dataDir.
func Open(dataDir string) (*Actor, error) {
	kv, err := storage.OpenFileKV(filepath.Join(dataDir, "routes"))
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

func (a *Actor) Stop() {
	a.mailbox.Stop()
}

func (a *Actor) Lookup(pattern string) (entry model.RouteEntry, ok bool, err error) {
	a.mailbox.Do(func() {
		ok, err = a.kv.Get(keyPrefix+pattern, &entry)
	})
	return entry, ok, err
}

// Upsert replaces the entry for its pattern. Idempotent.
func (a *Actor) Upsert(entry model.RouteEntry) (err error) {
	if entry.Pattern == "" {
		return fmt.Errorf("registry: missing pattern")
	}
	a.mailbox.Do(func() {
		err = a.kv.Put(keyPrefix+entry.Pattern, entry)
	})
	return err
}

// Delete removes the entry for pattern. Deleting an absent key is not an
// error.
func (a *Actor) Delete(pattern string) (err error) {
	a.mailbox.Do(func() {
		err = a.kv.Delete(keyPrefix + pattern)
	})
	return err
}

// List returns every stored entry whose pattern starts with prefix, sorted
// by pattern for stable output.
func (a *Actor) List(prefix string) (entries []model.RouteEntry, err error) {
	a.mailbox.Do(func() {
		var raw map[string]json.RawMessage
		raw, err = a.kv.List(keyPrefix + prefix)
		if err != nil {
			return
		}
		entries = make([]model.RouteEntry, 0, len(raw))
		for key, data := range raw {
			var entry model.RouteEntry
			if jsonErr := json.Unmarshal(data, &entry); jsonErr != nil {
				err = fmt.Errorf("registry: decode %q: %w", key, jsonErr)
				return
			}
			entries = append(entries, entry)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Pattern < entries[j].Pattern })
	})
	return entries, err
}

package session

import (
	"net/url"
	"path/filepath"
	"sync"

	"aeon-session-server/internal/mirror"
	"aeon-session-server/internal/storage"
)

// Manager resolves a session id to its actor, creating the actor (and its
// storage namespace) on first use. One actor per id for the life of the
// process; different ids share nothing.
type Manager struct {
	dataDir string
	mirror  *mirror.Writer

	mu     sync.Mutex
	actors map[string]*Actor
}

func NewManager(dataDir string, mirrorWriter *mirror.Writer) *Manager {
	return &Manager{
		dataDir: dataDir,
		mirror:  mirrorWriter,
		actors:  make(map[string]*Actor),
	}
}

func (m *Manager) Get(id string) (*Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.actors[id]; ok {
		return a, nil
	}

	kv, err := storage.OpenFileKV(filepath.Join(m.dataDir, "sessions", url.QueryEscape(id)))
	if err != nil {
		return nil, err
	}
	a := NewActor(id, kv, m.mirror)
	m.actors[id] = a
	return a, nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actors {
		a.Stop()
	}
}

package history

import (
	"fmt"
	"strings"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// Store archives history entries outside the process.
type Store interface {
	// Append records one entry.
	Append(e Entry) error
	// Load returns up to limit entries, most recent first.
	Load(limit int) ([]Entry, error)
	// Clear removes every archived entry.
	Clear() error
	// Trim drops all but the keep most recent entries.
	Trim(keep int) error
	Close() error
}

// Backend names accepted by OpenStore.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// MemoryStore archives nothing; the History's own list is the only copy.
type MemoryStore struct{}

func (MemoryStore) Append(Entry) error        { return nil }
func (MemoryStore) Load(int) ([]Entry, error) { return nil, nil }
func (MemoryStore) Clear() error              { return nil }
func (MemoryStore) Trim(int) error            { return nil }
func (MemoryStore) Close() error              { return nil }

// OpenStore opens the named backend at path.
func OpenStore(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return MemoryStore{}, nil
	case BackendSQLite:
		return OpenSQLiteStore(path)
	case BackendBolt:
		return OpenBoltStore(path)
	}
	return nil, fmt.Errorf("unknown history backend %q", backend)
}

// NewFromConfig builds a History from the [History] section and preloads it
// from the configured store.
func NewFromConfig() (*History, error) {
	backend := configuration.GetString("History", "backend", BackendMemory)
	path := configuration.GetString("History", "path", "history.db")

	store, err := OpenStore(backend, path)
	if err != nil {
		return nil, err
	}

	h := New(configuration.GetInt("History", "max_entries", DefaultMaxEntries), store)
	if err := h.Preload(configuration.GetInt("History", "load_limit", 100)); err != nil {
		store.Close()
		return nil, err
	}

	logger.HistoryInfo("History backend %q ready", backend)
	return h, nil
}

// Package history keeps the list of completed calculations, most recent
// first, and optionally archives it in a persistent Store.
package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retrocalc/pkg/logger"
)

var (
	// ErrEntryNotFound is returned when no entry has the requested id.
	ErrEntryNotFound = errors.New("history entry not found")
	// ErrNoSuchEntry is returned when a !N reference points past the end of
	// the history.
	ErrNoSuchEntry = errors.New("no such history entry")
)

// DefaultMaxEntries bounds a History created with maxEntries <= 0.
const DefaultMaxEntries = 1000

// Entry is one completed calculation. Entries are never modified after
// creation.
type Entry struct {
	ID         string    `json:"id" yaml:"id"`
	Expression string    `json:"expression" yaml:"expression"`
	Result     string    `json:"result" yaml:"result"`
	Mode       string    `json:"mode" yaml:"mode"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewEntry creates an entry with a fresh time-ordered id.
func NewEntry(expression, result, mode string) Entry {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Entry{
		ID:         id.String(),
		Expression: expression,
		Result:     result,
		Mode:       mode,
		Timestamp:  time.Now(),
	}
}

// String renders the entry as "expression = result".
func (e Entry) String() string {
	return e.Expression + " = " + e.Result
}

// History is an ordered, size-bounded list of entries. It is safe for
// concurrent use.
type History struct {
	mu         sync.RWMutex
	entries    []Entry // most recent first
	maxEntries int
	store      Store
}

// New creates an empty History. A nil store keeps the history in memory only.
func New(maxEntries int, store Store) *History {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if store == nil {
		store = MemoryStore{}
	}
	return &History{maxEntries: maxEntries, store: store}
}

// Preload replaces the in-memory list with up to limit entries from the store.
func (h *History) Preload(limit int) error {
	if limit <= 0 || limit > h.maxEntries {
		limit = h.maxEntries
	}
	entries, err := h.store.Load(limit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()

	logger.HistoryInfo("Loaded %d history entries", len(entries))
	return nil
}

// Add prepends e and drops the oldest entries beyond the size bound, both in
// memory and in the store. The entry is kept in memory even when writing it to
// the store fails.
func (h *History) Add(e Entry) error {
	h.mu.Lock()
	h.entries = append([]Entry{e}, h.entries...)
	if len(h.entries) > h.maxEntries {
		h.entries = h.entries[:h.maxEntries]
	}
	h.mu.Unlock()

	if err := h.store.Append(e); err != nil {
		logger.HistoryError("Failed to archive entry %s: %v", e.ID, err)
		return fmt.Errorf("failed to archive history entry: %w", err)
	}
	if err := h.store.Trim(h.maxEntries); err != nil {
		logger.HistoryError("Failed to trim archive to %d entries: %v", h.maxEntries, err)
		return fmt.Errorf("failed to trim history store: %w", err)
	}
	return nil
}

// List returns a copy of all entries, most recent first.
func (h *History) List() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry(nil), h.entries...)
}

// Recent returns at most n entries, most recent first.
func (h *History) Recent(n int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n < 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	return append([]Entry(nil), h.entries[:n]...)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Get finds an entry by id.
func (h *History) Get(id string) (Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Clear removes every entry. Clearing an empty history is a no-op.
func (h *History) Clear() error {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()

	if err := h.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear history store: %w", err)
	}
	return nil
}

// Search returns the entries whose expression or result contains keyword,
// ignoring case, most recent first.
func (h *History) Search(keyword string) []Entry {
	needle := strings.ToLower(keyword)

	h.mu.RLock()
	defer h.mu.RUnlock()
	var matches []Entry
	for _, e := range h.entries {
		if strings.Contains(strings.ToLower(e.Expression), needle) ||
			strings.Contains(strings.ToLower(e.Result), needle) {
			matches = append(matches, e)
		}
	}
	return matches
}

// Result returns the result text of the n-th most recent entry (0 = latest).
func (h *History) Result(n int) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n < 0 || n >= len(h.entries) {
		return "", fmt.Errorf("%w: !%d", ErrNoSuchEntry, n)
	}
	return h.entries[n].Result, nil
}

// Expand replaces "!!" with the latest result and "!N" with the N-th most
// recent result. Negative results are parenthesized so the surrounding
// operators keep their meaning. A '!' not followed by '!' or a digit is left
// alone.
func (h *History) Expand(expr string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(expr); {
		if expr[i] != '!' {
			b.WriteByte(expr[i])
			i++
			continue
		}

		if i+1 < len(expr) && expr[i+1] == '!' {
			result, err := h.Result(0)
			if err != nil {
				return "", err
			}
			b.WriteString(reference(result))
			i += 2
			continue
		}

		end := i + 1
		for end < len(expr) && expr[end] >= '0' && expr[end] <= '9' {
			end++
		}
		if end == i+1 {
			b.WriteByte('!')
			i++
			continue
		}

		n, err := strconv.Atoi(expr[i+1 : end])
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoSuchEntry, expr[i:end])
		}
		result, err := h.Result(n)
		if err != nil {
			return "", err
		}
		b.WriteString(reference(result))
		i = end
	}
	return b.String(), nil
}

func reference(result string) string {
	if strings.HasPrefix(result, "-") {
		return "(" + result + ")"
	}
	return result
}

// Close releases the underlying store.
func (h *History) Close() error {
	return h.store.Close()
}

// Package cache holds the last-known rows of every table and view, so reads
// can degrade to stale data when the backend is unreachable.
//
// A snapshot is the full JSON array of a table's last successfully fetched or
// mutated rows, stored under a versioned key. Snapshots are always replaced
// whole, never partially merged. Bumping the version invalidates everything
// cached under the previous one; keys without a version suffix are legacy and
// are read as a fallback only, never written.
package cache

import (
	"strings"

	"github.com/buger/jsonparser"
	json "github.com/goccy/go-json"

	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
)

const (
	// Version is the current snapshot schema version.
	Version = "1.0.0"
	// Prefix namespaces every key this SDK writes into the Store.
	Prefix = "bakersDozen_"
)

// Snapshots layers table snapshots on a key-value Store.
//
// All methods are failure-tolerant: a Store error or a corrupted value is
// logged and treated as a cache miss, never raised, because the cache is
// only ever a fallback.
type Snapshots struct {
	store  Store
	logger logger.Logger
}

func NewSnapshots(store Store, log logger.Logger) *Snapshots {
	return &Snapshots{store: store, logger: log}
}

// Key returns the versioned store key for a table or view name.
func Key(name string) string {
	return Prefix + name + "_v" + Version
}

func legacyKey(name string) string {
	return Prefix + name
}

// Load returns the cached rows for name, consulting the versioned key first
// and the legacy key as a fallback. A corrupted versioned entry is removed
// and reported as a miss.
func (s *Snapshots) Load(name string) ([]json.RawMessage, bool) {
	if rows, ok := s.load(Key(name)); ok {
		return rows, true
	}
	return s.load(legacyKey(name))
}

func (s *Snapshots) load(key string) ([]json.RawMessage, bool) {
	value, ok, err := s.store.Get(key)
	if err != nil {
		s.logger.Error("error reading cached data", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(value), &rows); err != nil {
		s.logger.Error("error parsing cached data, removing corrupted entry", "key", key, "error", err)
		if err := s.store.Delete(key); err != nil {
			s.logger.Error("error removing corrupted entry", "key", key, "error", err)
		}
		return nil, false
	}
	return rows, true
}

// Save replaces the snapshot for name with rows.
func (s *Snapshots) Save(name string, rows []json.RawMessage) {
	if rows == nil {
		rows = []json.RawMessage{}
	}
	value, err := json.Marshal(rows)
	if err != nil {
		s.logger.Error("error encoding snapshot", "name", name, "error", err)
		return
	}
	if err := s.store.Set(Key(name), string(value)); err != nil {
		s.logger.Error("error storing snapshot", "name", name, "error", err)
	}
}

// Append adds row to the snapshot for name, creating the snapshot if absent.
func (s *Snapshots) Append(name string, row json.RawMessage) {
	rows, _ := s.Load(name)
	s.Save(name, append(rows, row))
}

// Merge shallow-merges row into the snapshot entry with the same id.
// Rows with other ids are left untouched. A row whose id is not present in
// the snapshot is ignored.
func (s *Snapshots) Merge(name string, row json.RawMessage) {
	rows, ok := s.Load(name)
	if !ok {
		return
	}

	id := RowID(row)
	if id == "" {
		return
	}

	for i, existing := range rows {
		if RowID(existing) != id {
			continue
		}
		merged, err := mergeRows(existing, row)
		if err != nil {
			s.logger.Error("error merging cached row", "name", name, "id", id, "error", err)
			return
		}
		rows[i] = merged
		s.Save(name, rows)
		return
	}
}

// Remove drops the row with the given id from the snapshot for name.
func (s *Snapshots) Remove(name, id string) {
	rows, ok := s.Load(name)
	if !ok {
		return
	}

	filtered := rows[:0]
	for _, row := range rows {
		if RowID(row) != id {
			filtered = append(filtered, row)
		}
	}
	s.Save(name, filtered)
}

// ClearTable removes the snapshot for name, both versioned and legacy keys.
func (s *Snapshots) ClearTable(name string) {
	for _, key := range []string{Key(name), legacyKey(name)} {
		if err := s.store.Delete(key); err != nil {
			s.logger.Error("error clearing cached data", "key", key, "error", err)
		}
	}
}

// Clear removes every entry under the SDK's prefix.
func (s *Snapshots) Clear() {
	keys, err := s.store.Keys()
	if err != nil {
		s.logger.Error("error listing cache keys", "error", err)
		return
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, Prefix) {
			continue
		}
		if err := s.store.Delete(key); err != nil {
			s.logger.Error("error clearing cached data", "key", key, "error", err)
		}
	}
}

// Verify reports the keys under the SDK's prefix whose values fail to parse.
// It does not remove them; Load does that lazily.
func (s *Snapshots) Verify() []string {
	keys, err := s.store.Keys()
	if err != nil {
		s.logger.Error("error listing cache keys", "error", err)
		return nil
	}

	var corrupted []string
	for _, key := range keys {
		if !strings.HasPrefix(key, Prefix) {
			continue
		}
		value, ok, err := s.store.Get(key)
		if err != nil || !ok {
			continue
		}
		var rows []json.RawMessage
		if err := json.Unmarshal([]byte(value), &rows); err != nil {
			corrupted = append(corrupted, key)
		}
	}
	return corrupted
}

// RowID extracts the id field from a raw row without decoding the whole
// document.
func RowID(row json.RawMessage) string {
	id, err := jsonparser.GetString(row, "id")
	if err != nil {
		return ""
	}
	return id
}

func mergeRows(existing, update json.RawMessage) (json.RawMessage, error) {
	var base map[string]any
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, err
	}
	var overlay map[string]any
	if err := json.Unmarshal(update, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		base[k] = v
	}
	return json.Marshal(base)
}

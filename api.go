package bakersdozen

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"

	json "github.com/goccy/go-json"

	"github.com/bakersdozen/bakersdozen.go/pkg/cache"
	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

// GetAll returns every row of table. Online it fetches fresh rows and
// overwrites the table's cache snapshot; on any failure, and while offline,
// it serves the snapshot instead, or an empty slice when nothing was ever
// cached. It only errors when a row cannot be decoded into T.
func GetAll[T any](ctx context.Context, db *DB, table models.Table) ([]T, error) {
	return decodeRows[T](db.getAllRaw(ctx, connection.Select, string(table), string(table)))
}

// GetView is the read-only analogue of GetAll for a derived view. Views are
// cached under their own namespace, with the same fallback policy.
func GetView[T any](ctx context.Context, db *DB, view models.View) ([]T, error) {
	return decodeRows[T](db.getAllRaw(ctx, connection.ViewSelect, string(view), viewCacheName(view)))
}

// GetByID returns the row of table with the given id, or (nil, nil) when no
// such row exists. The backend's "no rows" condition is a none-found result,
// not an error; transport failures fall back to scanning the cache.
func GetByID[T any](ctx context.Context, db *DB, table models.Table, id string) (*T, error) {
	row := db.getByIDRaw(ctx, table, id)
	if row == nil {
		return nil, nil
	}
	return decodeRow[T](row)
}

// Query returns the rows of table matching pred. It is GetAll followed by an
// in-memory filter: there is no backend-side filtering, so correctness and
// performance are bounded by the fetched or cached set.
func Query[T any](ctx context.Context, db *DB, table models.Table, pred func(T) bool) ([]T, error) {
	rows, err := GetAll[T](ctx, db, table)
	if err != nil {
		return nil, err
	}

	filtered := make([]T, 0, len(rows))
	for _, row := range rows {
		if pred(row) {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// Insert creates a row in table from record, assigning a random UUID when
// record carries no id, and returns the backend's canonical row. The
// canonical row is appended to the cache snapshot and subscribers are
// notified before Insert returns. While offline it fails with ErrOffline
// without touching the network.
func Insert[T any](ctx context.Context, db *DB, table models.Table, record any) (*T, error) {
	if !db.monitor.Online() {
		return nil, ErrOffline
	}

	fields, err := recordFields(record)
	if err != nil {
		return nil, err
	}
	if id, _ := fields["id"].(string); id == "" {
		fields["id"] = uuid.Must(uuid.NewV4()).String()
	}

	var created json.RawMessage
	if err := db.send(ctx, &created, connection.Insert, table, fields); err != nil {
		db.logger.Error("error inserting record", "table", table, "error", err)
		return nil, err
	}

	db.cache.Append(string(table), created)
	db.notifySubscribers(table, connection.ActionInsert, created)

	return decodeRow[T](created)
}

// Update applies the fields of record to the row with record's id and
// returns the backend's canonical updated row, shallow-merging it into the
// cached snapshot. It returns (nil, nil) when the id does not exist
// remotely, and ErrOffline while offline.
func Update[T any](ctx context.Context, db *DB, table models.Table, record any) (*T, error) {
	if !db.monitor.Online() {
		return nil, ErrOffline
	}

	fields, err := recordFields(record)
	if err != nil {
		return nil, err
	}
	if id, _ := fields["id"].(string); id == "" {
		return nil, ErrMissingID
	}

	var updated json.RawMessage
	if err := db.send(ctx, &updated, connection.Update, table, fields); err != nil {
		if connection.IsNoRows(err) {
			return nil, nil
		}
		db.logger.Error("error updating record", "table", table, "error", err)
		return nil, err
	}

	db.cache.Merge(string(table), updated)
	db.notifySubscribers(table, connection.ActionUpdate, updated)

	return decodeRow[T](updated)
}

// Delete removes the row of table with the given id. The row is fetched
// first for the notification payload; when it does not exist, Delete
// reports false without issuing the delete call. ErrOffline while offline.
func Delete(ctx context.Context, db *DB, table models.Table, id string) (bool, error) {
	if !db.monitor.Online() {
		return false, ErrOffline
	}

	record := db.getByIDRaw(ctx, table, id)
	if record == nil {
		return false, nil
	}

	if err := db.send(ctx, nil, connection.Delete, table, id); err != nil {
		db.logger.Error("error deleting record", "table", table, "error", err)
		return false, err
	}

	db.cache.Remove(string(table), id)
	db.notifySubscribers(table, connection.ActionDelete, record)

	return true, nil
}

func viewCacheName(view models.View) string {
	return "view_" + string(view)
}

// getAllRaw implements the shared read path: cache while offline, fetch and
// write through while online, cache fallback on failure. It never errors.
func (db *DB) getAllRaw(ctx context.Context, method connection.RPCFunction, wireName, cacheName string) []json.RawMessage {
	if !db.monitor.Online() {
		rows, _ := db.cache.Load(cacheName)
		return rows
	}

	var rows []json.RawMessage
	if err := db.send(ctx, &rows, method, wireName); err != nil {
		db.logger.Error("error fetching records, falling back to cache", "name", wireName, "error", err)
		cached, _ := db.cache.Load(cacheName)
		return cached
	}

	db.cache.Save(cacheName, rows)
	return rows
}

// getByIDRaw returns the raw row or nil for none-found. Like all reads it
// never errors: backend failures degrade to a linear scan of the snapshot.
func (db *DB) getByIDRaw(ctx context.Context, table models.Table, id string) json.RawMessage {
	if !db.monitor.Online() {
		return db.cachedByID(string(table), id)
	}

	var row json.RawMessage
	if err := db.send(ctx, &row, connection.Select, table, id); err != nil {
		if connection.IsNoRows(err) {
			return nil
		}
		db.logger.Error("error fetching record by id, falling back to cache", "table", table, "id", id, "error", err)
		return db.cachedByID(string(table), id)
	}
	return row
}

func (db *DB) cachedByID(name, id string) json.RawMessage {
	rows, ok := db.cache.Load(name)
	if !ok {
		return nil
	}
	for _, row := range rows {
		if cache.RowID(row) == id {
			return row
		}
	}
	return nil
}

// recordFields flattens record into a field map via its JSON encoding, so
// callers can pass either a typed struct or a map.
func recordFields(record any) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("record must encode to an object: %w", err)
	}
	return fields, nil
}

func decodeRow[T any](row json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(row, &out); err != nil {
		return nil, fmt.Errorf("decoding row: %w", err)
	}
	return &out, nil
}

func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal(row, &v); err != nil {
			return nil, fmt.Errorf("decoding row: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

package bakersdozen

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/bakersdozen/bakersdozen.go/internal/codec"
	"github.com/bakersdozen/bakersdozen.go/pkg/cache"
	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/connmon"
	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

// SubscriptionCallback receives one call per change: local mutations made
// through this DB and remote changes pushed by the backend.
type SubscriptionCallback func(table models.Table, action connection.Action, record json.RawMessage)

// teardownTimeout bounds the background RPCs issued while unsubscribing or
// closing, which have no caller context to inherit.
const teardownTimeout = 5 * time.Second

// DB is the single point of truth for reading and writing domain entities,
// shielding callers from backend unavailability. Construct it with New and
// release it with Close.
type DB struct {
	monitor *connmon.Monitor
	cache   *cache.Snapshots
	logger  logger.Logger
	auth    *Auth

	// newConn rebuilds the transport after the previous one died; the
	// websocket protocol is stateful, so a dead connection is replaced, not
	// reused.
	newConn func() connection.Connection

	connMu    sync.Mutex
	con       connection.Connection
	connected bool

	subsMu    sync.Mutex
	subs      map[int]*subscription
	nextSubID int
}

// subscription tracks one Subscribe call: its callback and the live queries
// it registered. done tears down the forwarding goroutines.
type subscription struct {
	callback SubscriptionCallback
	lives    []liveBinding
	done     chan struct{}
}

type liveBinding struct {
	id    string
	table models.Table
}

// New constructs a DB from cfg and starts its connection monitor. It does
// not fail when the backend is unreachable: the DB starts offline, reads
// serve the cache, and the monitor keeps probing until the backend answers.
func New(ctx context.Context, cfg *Config) *DB {
	cfg = cfg.withDefaults()

	jsonCodec := codec.JSON{}
	params := connection.NewConnectionParams{
		BaseURL:     cfg.URL,
		APIKey:      cfg.AnonKey,
		Marshaler:   jsonCodec,
		Unmarshaler: jsonCodec,
		Logger:      cfg.Logger,
	}

	db := &DB{
		cache:  cache.NewSnapshots(cfg.Store, cfg.Logger),
		logger: cfg.Logger,
		subs:   make(map[int]*subscription),
		newConn: func() connection.Connection {
			return connection.NewWebSocketConnection(params)
		},
	}
	db.con = db.newConn()
	db.auth = newAuth(db)
	db.monitor = connmon.New(db.probe, cfg.ProbeInterval, cfg.Logger)
	db.monitor.Start(ctx)

	return db
}

// Auth returns the authentication service bound to this DB.
func (db *DB) Auth() *Auth {
	return db.auth
}

// Monitor exposes the connection monitor, e.g. to forward host-environment
// online/offline events.
func (db *DB) Monitor() *connmon.Monitor {
	return db.monitor
}

// Cache exposes the snapshot layer for maintenance operations such as
// clearing a table's cached rows.
func (db *DB) Cache() *cache.Snapshots {
	return db.cache
}

// Online reports the connection monitor's current state.
func (db *DB) Online() bool {
	return db.monitor.Online()
}

// Close stops the monitor, kills the live queries of every remaining
// subscriber, and closes the transport.
func (db *DB) Close(ctx context.Context) error {
	db.monitor.Stop()

	db.subsMu.Lock()
	for id, sub := range db.subs {
		close(sub.done)
		delete(db.subs, id)
	}
	db.subsMu.Unlock()

	db.connMu.Lock()
	defer db.connMu.Unlock()
	if !db.connected {
		return nil
	}
	db.connected = false
	return db.con.Close(ctx)
}

// probe is the connection monitor's reachability check: connect if needed,
// then a ping round-trip. A failed ping discards the connection so the next
// probe dials fresh.
func (db *DB) probe(ctx context.Context) error {
	db.connMu.Lock()
	defer db.connMu.Unlock()

	if !db.connected {
		if err := db.con.Connect(ctx); err != nil {
			return err
		}
		db.connected = true
		go db.restoreSubscriptions(ctx)
	}

	if err := db.con.Send(ctx, nil, connection.Ping); err != nil {
		db.connected = false
		closeCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if closeErr := db.con.Close(closeCtx); closeErr != nil {
			db.logger.Debug("error closing dead connection", "error", closeErr)
		}
		db.con = db.newConn()
		return err
	}

	return nil
}

// send issues an RPC on the current connection.
func (db *DB) send(ctx context.Context, dest any, method connection.RPCFunction, params ...any) error {
	db.connMu.Lock()
	con := db.con
	db.connMu.Unlock()
	return con.Send(ctx, dest, method, params...)
}

// Subscribe registers callback for every local mutation and every remote
// change event on the tracked tables, and returns the function that
// unsubscribes it. Each subscriber gets its own live queries; remote events
// are delivered asynchronously and at most once per event.
//
// While offline, the live queries cannot be registered yet; they are
// established when the connection comes up. Local mutation notifications
// work regardless.
func (db *DB) Subscribe(ctx context.Context, callback SubscriptionCallback) func() {
	sub := &subscription{
		callback: callback,
		done:     make(chan struct{}),
	}

	db.subsMu.Lock()
	db.nextSubID++
	id := db.nextSubID
	db.subs[id] = sub
	db.subsMu.Unlock()

	if db.monitor.Online() {
		db.establishLives(ctx, sub)
	}

	return func() {
		db.unsubscribe(id)
	}
}

func (db *DB) unsubscribe(id int) {
	db.subsMu.Lock()
	sub, ok := db.subs[id]
	if ok {
		delete(db.subs, id)
	}
	db.subsMu.Unlock()

	if !ok {
		return
	}

	close(sub.done)

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	db.connMu.Lock()
	con := db.con
	db.connMu.Unlock()

	db.subsMu.Lock()
	lives := sub.lives
	db.subsMu.Unlock()

	for _, live := range lives {
		if err := con.Kill(ctx, live.id); err != nil {
			db.logger.Error("error killing live query", "table", live.table, "error", err)
		}
	}
}

// establishLives registers one live query per tracked table for sub and
// starts the goroutines that forward change events to its callback.
func (db *DB) establishLives(ctx context.Context, sub *subscription) {
	db.connMu.Lock()
	con := db.con
	connected := db.connected
	db.connMu.Unlock()

	if !connected {
		return
	}

	var lives []liveBinding
	for _, table := range models.Tables() {
		liveID, ch, err := con.Live(ctx, table)
		if err != nil {
			db.logger.Error("error establishing live query", "table", table, "error", err)
			continue
		}
		lives = append(lives, liveBinding{id: liveID, table: table})
		go forwardNotifications(sub.done, ch, sub.callback)
	}

	db.subsMu.Lock()
	sub.lives = append(sub.lives, lives...)
	db.subsMu.Unlock()
}

func forwardNotifications(done chan struct{}, ch chan connection.Notification, callback SubscriptionCallback) {
	for {
		select {
		case <-done:
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			callback(n.Table, n.Action, n.Record)
		}
	}
}

// restoreSubscriptions re-registers the live queries of every subscriber on
// a fresh connection. Live queries are connection state and do not survive a
// reconnect.
func (db *DB) restoreSubscriptions(ctx context.Context) {
	db.subsMu.Lock()
	subs := make([]*subscription, 0, len(db.subs))
	for _, sub := range db.subs {
		subs = append(subs, sub)
	}
	db.subsMu.Unlock()

	for _, sub := range subs {
		db.subsMu.Lock()
		sub.lives = nil
		db.subsMu.Unlock()
		db.establishLives(ctx, sub)
	}
}

// notifySubscribers delivers a local mutation to every subscriber,
// synchronously and exactly once per mutating call.
func (db *DB) notifySubscribers(table models.Table, action connection.Action, record json.RawMessage) {
	db.subsMu.Lock()
	callbacks := make([]SubscriptionCallback, 0, len(db.subs))
	for _, sub := range db.subs {
		callbacks = append(callbacks, sub.callback)
	}
	db.subsMu.Unlock()

	for _, callback := range callbacks {
		callback(table, action, record)
	}
}

// Package connection implements the Bakers Dozen RPC protocol: request and
// response framing, error codes, and live-query notifications, over a
// WebSocket transport.
package connection

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/bakersdozen/bakersdozen.go/internal/codec"
	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

// Connection is the transport to the remote backend: table CRUD, auth, and
// live-query channels. Implementations must be safe for concurrent use.
type Connection interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Send issues an RPC call and decodes the response's result into dest.
	// Pass a nil dest to discard the result. A backend-reported error is
	// returned as *RPCError.
	Send(ctx context.Context, dest any, method RPCFunction, params ...any) error

	// Live registers a live query on the given table and returns its ID and
	// the channel change events are delivered on.
	Live(ctx context.Context, table models.Table) (string, chan Notification, error)

	// Kill tears down a live query and closes its notification channel.
	// Leaking a live query leaks its backend channel.
	Kill(ctx context.Context, liveQueryID string) error
}

// NewConnectionParams configures a Connection.
type NewConnectionParams struct {
	BaseURL     string
	APIKey      string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger
}

// BaseConnection carries the bookkeeping shared by Connection
// implementations: pending responses and live notification channels, both
// keyed by id.
type BaseConnection struct {
	baseURL     string
	apiKey      string
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
	logger      logger.Logger

	responseChannels     map[string]chan RPCResponse[json.RawMessage]
	responseChannelsLock sync.RWMutex

	notificationChannels     map[string]chan Notification
	notificationChannelsLock sync.RWMutex
}

func (bc *BaseConnection) createResponseChannel(id string) (chan RPCResponse[json.RawMessage], error) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()

	if _, ok := bc.responseChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", ErrIDInUse, id)
	}

	ch := make(chan RPCResponse[json.RawMessage], 1)
	bc.responseChannels[id] = ch

	return ch, nil
}

func (bc *BaseConnection) getResponseChannel(id string) (chan RPCResponse[json.RawMessage], bool) {
	bc.responseChannelsLock.RLock()
	defer bc.responseChannelsLock.RUnlock()
	ch, ok := bc.responseChannels[id]
	return ch, ok
}

func (bc *BaseConnection) removeResponseChannel(id string) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()
	delete(bc.responseChannels, id)
}

func (bc *BaseConnection) createNotificationChannel(liveQueryID string) (chan Notification, error) {
	bc.notificationChannelsLock.Lock()
	defer bc.notificationChannelsLock.Unlock()

	if _, ok := bc.notificationChannels[liveQueryID]; ok {
		return nil, fmt.Errorf("%w: %v", ErrIDInUse, liveQueryID)
	}

	ch := make(chan Notification, notificationBuffer)
	bc.notificationChannels[liveQueryID] = ch

	return ch, nil
}

// deliverNotification hands a change event to its live query's channel
// without blocking. The registry lock is held across the send so the channel
// cannot be closed out from under it by a concurrent Kill.
// The second return reports whether the event was delivered.
func (bc *BaseConnection) deliverNotification(n Notification) (known, delivered bool) {
	bc.notificationChannelsLock.RLock()
	defer bc.notificationChannelsLock.RUnlock()

	ch, ok := bc.notificationChannels[n.ID]
	if !ok {
		return false, false
	}

	select {
	case ch <- n:
		return true, true
	default:
		return true, false
	}
}

func (bc *BaseConnection) removeNotificationChannel(id string) (chan Notification, bool) {
	bc.notificationChannelsLock.Lock()
	defer bc.notificationChannelsLock.Unlock()
	ch, ok := bc.notificationChannels[id]
	delete(bc.notificationChannels, id)
	return ch, ok
}

func (bc *BaseConnection) preConnectionChecks() error {
	if bc.baseURL == "" {
		return ErrNoBaseURL
	}

	if bc.marshaler == nil {
		return ErrNoMarshaler
	}

	if bc.unmarshaler == nil {
		return ErrNoUnmarshaler
	}

	return nil
}

// notificationBuffer absorbs short bursts of change events so the read loop
// is not blocked by a slow consumer.
const notificationBuffer = 64

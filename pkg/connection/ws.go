package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"

	"github.com/bakersdozen/bakersdozen.go/internal/rand"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

// DefaultDialer is the gorilla dialer used by WebSocketConnection.
// It enables compression and requests the json subprotocol.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"json"},
}

// WebSocketConnection speaks the RPC protocol over a single WebSocket.
// Responses are correlated with requests by id; messages without an id are
// live notifications and are routed to their live query's channel.
type WebSocketConnection struct {
	BaseConnection

	Conn     *gorilla.Conn
	connLock sync.Mutex

	// Timeout bounds how long Send waits for the RPC response after the
	// request was written. Set it to 0 to rely purely on the caller's
	// context.
	Timeout time.Duration

	closeOnce  sync.Once
	closeChan  chan int
	closeError error
}

// NewWebSocketConnection builds an unconnected WebSocketConnection.
// Call Connect before use.
func NewWebSocketConnection(p NewConnectionParams) *WebSocketConnection {
	return &WebSocketConnection{
		BaseConnection: BaseConnection{
			baseURL: p.BaseURL,
			apiKey:  p.APIKey,

			marshaler:   p.Marshaler,
			unmarshaler: p.Unmarshaler,
			logger:      p.Logger,

			responseChannels:     make(map[string]chan RPCResponse[json.RawMessage]),
			notificationChannels: make(map[string]chan Notification),
		},

		closeChan: make(chan int),
		Timeout:   DefaultTimeout,
	}
}

// Connect dials the backend's /rpc endpoint. The anonymous API key is sent
// as the X-Api-Key header on the handshake.
func (ws *WebSocketConnection) Connect(ctx context.Context) error {
	if err := ws.preConnectionChecks(); err != nil {
		return err
	}

	header := http.Header{}
	if ws.apiKey != "" {
		header.Set("X-Api-Key", ws.apiKey)
	}

	connection, res, err := DefaultDialer.DialContext(ctx, fmt.Sprintf("%s/rpc", ws.baseURL), header)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	ws.Conn = connection

	go ws.initialize()
	return nil
}

// Close closes the WebSocket connection and stops listening for incoming
// messages. If ctx is canceled before the close message is written, the
// connection is still torn down locally.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	ws.closeOnce.Do(func() {
		close(ws.closeChan)
	})

	// Closing the live channels lets their consumers exit; a closed
	// connection delivers no further notifications anyway.
	ws.notificationChannelsLock.Lock()
	for id, ch := range ws.notificationChannels {
		close(ch)
		delete(ws.notificationChannels, id)
	}
	ws.notificationChannelsLock.Unlock()

	if ws.Conn == nil {
		return nil
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- ws.Conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(CloseMessageCode, ""))
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			// The server may never learn this was a clean close, but local
			// resources must be released regardless.
			ws.logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	return ws.Conn.Close()
}

// Send issues an RPC call and decodes the response's result into dest.
//
// The ctx is additionally bounded by ws.Timeout when it is non-zero, so a
// hung request cannot tie up its caller indefinitely.
func (ws *WebSocketConnection) Send(ctx context.Context, dest any, method RPCFunction, params ...any) error {
	if ws.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.Timeout)
		defer cancel()
	}

	select {
	case <-ws.closeChan:
		if ws.closeError != nil {
			return ws.closeError
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	id := rand.NewRequestID(RequestIDLength)
	request := &RPCRequest{
		ID:     id,
		Method: string(method),
		Params: params,
	}

	responseChan, err := ws.createResponseChannel(id)
	if err != nil {
		return err
	}
	defer ws.removeResponseChannel(id)

	if err := ws.write(request); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ws.closeChan:
		if ws.closeError != nil {
			return ws.closeError
		}
		return ErrClosed
	case res, open := <-responseChan:
		if !open {
			return errors.New("response channel closed")
		}

		if res.Error != nil {
			return res.Error
		}

		if dest == nil || res.Result == nil {
			return nil
		}

		if err := ws.unmarshaler.Unmarshal(*res.Result, dest); err != nil {
			return fmt.Errorf("error unmarshaling response: %w", err)
		}

		return nil
	}
}

// Live registers a live query on table. The returned channel carries one
// Notification per remote change until Kill is called for the returned id.
func (ws *WebSocketConnection) Live(ctx context.Context, table models.Table) (string, chan Notification, error) {
	var liveQueryID string
	if err := ws.Send(ctx, &liveQueryID, Live, table); err != nil {
		return "", nil, err
	}

	ch, err := ws.createNotificationChannel(liveQueryID)
	if err != nil {
		return "", nil, err
	}

	return liveQueryID, ch, nil
}

// Kill tears down the live query and closes its notification channel.
func (ws *WebSocketConnection) Kill(ctx context.Context, liveQueryID string) error {
	err := ws.Send(ctx, nil, Kill, liveQueryID)

	if ch, ok := ws.removeNotificationChannel(liveQueryID); ok {
		close(ch)
	}

	return err
}

func (ws *WebSocketConnection) write(v any) error {
	data, err := ws.marshaler.Marshal(v)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	if ws.Conn == nil {
		return ErrNotConnected
	}
	return ws.Conn.WriteMessage(gorilla.TextMessage, data)
}

func (ws *WebSocketConnection) initialize() {
	for {
		select {
		case <-ws.closeChan:
			return
		default:
			_, data, err := ws.Conn.ReadMessage()
			if err != nil {
				ws.handleError(err)
				return
			}
			go ws.handleResponse(data)
		}
	}
}

// handleError records why the read loop died and unblocks pending Sends.
// Read errors on a websocket are never recoverable; the failure is surfaced
// through closeError.
func (ws *WebSocketConnection) handleError(err error) {
	// closeError is only written before closeChan is closed, which is the
	// barrier Send reads it behind.
	ws.closeOnce.Do(func() {
		switch {
		case errors.Is(err, net.ErrClosed):
			ws.closeError = net.ErrClosed
		case gorilla.IsCloseError(err, CloseMessageCode) || gorilla.IsUnexpectedCloseError(err):
			ws.closeError = io.ErrClosedPipe
		default:
			ws.closeError = err
			ws.logger.Error("connection read failed", "error", err)
		}
		close(ws.closeChan)
	})
}

func (ws *WebSocketConnection) handleResponse(res []byte) {
	var rpcRes RPCResponse[json.RawMessage]
	if err := ws.unmarshaler.Unmarshal(res, &rpcRes); err != nil {
		ws.logger.Error("error unmarshaling response", "error", err)
		return
	}

	if rpcRes.ID != "" {
		responseChan, ok := ws.getResponseChannel(rpcRes.ID)
		if !ok {
			// The requester timed out and removed its channel already.
			ws.logger.Error("unavailable response channel", "id", rpcRes.ID)
			return
		}
		responseChan <- rpcRes
		return
	}

	if rpcRes.Result == nil {
		ws.logger.Error("message carried neither id nor result", "data", string(res))
		return
	}

	var notification Notification
	if err := ws.unmarshaler.Unmarshal(*rpcRes.Result, &notification); err != nil {
		ws.logger.Error("error unmarshaling as notification", "error", err)
		return
	}

	if notification.ID == "" {
		ws.logger.Error("notification did not contain an 'id' field", "data", string(res))
		return
	}

	known, delivered := ws.deliverNotification(notification)
	switch {
	case !known:
		// Killed concurrently with the event being in flight.
		ws.logger.Debug("no live channel for notification", "id", notification.ID)
	case !delivered:
		ws.logger.Warn("dropping notification for slow consumer", "id", notification.ID)
	}
}

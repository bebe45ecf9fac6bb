// Package fakebakery provides an in-process fake Bakers Dozen backend for
// testing. It speaks the RPC protocol over WebSocket with JSON encoding,
// keeps tables in memory, computes the derived views, issues signed session
// tokens, and records per-method call counts so tests can assert which
// network calls were (not) made.
//
// Responses can be stubbed per method to inject backend errors, and the
// whole server can be put into a failing mode to simulate an unreachable
// backend without tearing the connection down.
package fakebakery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"

	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
	zerologger "github.com/bakersdozen/bakersdozen.go/pkg/logger/zerolog"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

const tokenTTL = time.Hour

// StubResponse forces a fixed outcome for every call of one method.
type StubResponse struct {
	Method string
	Result any
	Error  *connection.RPCError
}

type account struct {
	ID        string
	Email     string
	Password  string
	CreatedAt string
}

type liveQuery struct {
	conn  *gws.Conn
	table string
}

// Server is the fake backend. Use "127.0.0.1:0" to bind a random port.
type Server struct {
	addr     string
	listener net.Listener
	server   *gws.Server
	logger   logger.Logger
	secret   []byte

	mu          sync.RWMutex
	conns       map[*gws.Conn]struct{}
	tables      map[string][]map[string]any
	accounts    map[string]*account
	sessions    map[*gws.Conn]*account
	lives       map[string]liveQuery
	stubs       map[string]StubResponse
	methodCalls map[string]int

	// failAll makes every RPC return an internal error, simulating a
	// reachable socket with a broken backend behind it.
	failAll bool
	// rejectProfileWrites simulates a row access policy denying writes to
	// the users table, the way RLS does for fresh accounts.
	rejectProfileWrites bool

	writeMu sync.Mutex
}

type handler struct {
	server *Server
}

// NewServer creates an unstarted fake backend.
func NewServer(addr string) *Server {
	s := &Server{
		addr:        addr,
		logger:      zerologger.New(zerolog.Nop()),
		secret:      []byte("fakebakery-test-secret"),
		conns:       make(map[*gws.Conn]struct{}),
		tables:      make(map[string][]map[string]any),
		accounts:    make(map[string]*account),
		sessions:    make(map[*gws.Conn]*account),
		lives:       make(map[string]liveQuery),
		stubs:       make(map[string]StubResponse),
		methodCalls: make(map[string]int),
	}
	for _, table := range models.Tables() {
		s.tables[string(table)] = []map[string]any{}
	}

	s.server = gws.NewServer(&handler{server: s}, &gws.ServerOption{})
	s.server.OnError = func(_ net.Conn, err error) {
		if !errors.Is(err, net.ErrClosed) && !isUseOfClosedNetworkError(err) {
			s.logger.Error("server error", "error", err)
		}
	}

	return s
}

// SetLogger replaces the server's logger, Nop by default.
func (s *Server) SetLogger(l logger.Logger) {
	s.logger = l
}

// parkingListener blocks Accept once the listener has been closed.
// gws's RunListener retries Accept in a tight loop on error and never
// returns, so a closed listener would otherwise spin at full CPU for the
// rest of the process.
type parkingListener struct {
	net.Listener
	closeOnce sync.Once
	closed    chan struct{}
}

func (l *parkingListener) Close() error {
	err := l.Listener.Close()
	l.closeOnce.Do(func() { close(l.closed) })
	return err
}

func (l *parkingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		select {
		case <-l.closed:
			select {} // park the accept loop instead of feeding the retry spin
		default:
		}
	}
	return conn, err
}

// Start begins accepting WebSocket connections.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	wrapped := &parkingListener{Listener: listener, closed: make(chan struct{})}
	s.listener = wrapped

	go func() {
		if err := s.server.RunListener(wrapped); err != nil {
			if !errors.Is(err, net.ErrClosed) && !isUseOfClosedNetworkError(err) {
				s.logger.Error("server error", "error", err)
			}
		}
	}()

	return nil
}

// Stop shuts the server down and severs all open connections, so connected
// clients observe the outage immediately.
func (s *Server) Stop() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	conns := make([]*gws.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.NetConn().Close()
	}
	return err
}

// URL returns the ws:// base URL of the running server.
func (s *Server) URL() string {
	return fmt.Sprintf("ws://%s", s.listener.Addr().String())
}

// Seed replaces the rows of table.
func (s *Server) Seed(table models.Table, rows []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[string(table)] = rows
}

// Rows returns a copy of the current rows of table.
func (s *Server) Rows(table models.Table) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, len(s.tables[string(table)]))
	copy(out, s.tables[string(table)])
	return out
}

// LiveCount reports how many live queries are currently registered.
func (s *Server) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lives)
}

// CallCount reports how many requests the server received for method.
func (s *Server) CallCount(method connection.RPCFunction) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.methodCalls[string(method)]
}

// Stub forces the outcome of every subsequent call of stub.Method.
func (s *Server) Stub(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs[stub.Method] = stub
}

// Unstub removes a stub installed with Stub.
func (s *Server) Unstub(method connection.RPCFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stubs, string(method))
}

// SetFailAll toggles the mode in which every RPC fails with an internal
// error.
func (s *Server) SetFailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// SetRejectProfileWrites toggles the simulated access policy on the users
// table.
func (s *Server) SetRejectProfileWrites(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectProfileWrites = reject
}

func (h *handler) OnOpen(socket *gws.Conn) {
	s := h.server
	s.mu.Lock()
	s.conns[socket] = struct{}{}
	s.mu.Unlock()
}

func (h *handler) OnClose(socket *gws.Conn, err error) {
	s := h.server
	s.mu.Lock()
	delete(s.conns, socket)
	delete(s.sessions, socket)
	for id, lq := range s.lives {
		if lq.conn == socket {
			delete(s.lives, id)
		}
	}
	s.mu.Unlock()
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		h.server.logger.Error("error writing pong", "error", err)
	}
}

func (h *handler) OnPong(socket *gws.Conn, payload []byte) {}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	s := h.server

	var req connection.RPCRequest
	if err := json.Unmarshal(message.Bytes(), &req); err != nil {
		h.sendError(socket, "", connection.CodeParseError, "parse error")
		return
	}

	s.mu.Lock()
	s.methodCalls[req.Method]++
	failAll := s.failAll
	stub, stubbed := s.stubs[req.Method]
	s.mu.Unlock()

	if failAll {
		h.sendError(socket, req.ID, connection.CodeInternalError, "backend unavailable")
		return
	}

	if stubbed {
		if stub.Error != nil {
			h.sendError(socket, req.ID, stub.Error.Code, stub.Error.Message)
		} else {
			h.sendResponse(socket, req.ID, stub.Result)
		}
		return
	}

	switch connection.RPCFunction(req.Method) {
	case connection.Ping:
		h.sendResponse(socket, req.ID, "pong")
	case connection.Select:
		h.handleSelect(socket, &req)
	case connection.ViewSelect:
		h.handleView(socket, &req)
	case connection.Insert:
		h.handleInsert(socket, &req)
	case connection.Update:
		h.handleUpdate(socket, &req)
	case connection.Upsert:
		h.handleUpsert(socket, &req)
	case connection.Delete:
		h.handleDelete(socket, &req)
	case connection.Live:
		h.handleLive(socket, &req)
	case connection.Kill:
		h.handleKill(socket, &req)
	case connection.SignUp:
		h.handleSignUp(socket, &req)
	case connection.SignIn:
		h.handleSignIn(socket, &req)
	case connection.SignOut:
		h.handleSignOut(socket, &req)
	case connection.Authenticate:
		h.handleAuthenticate(socket, &req)
	case connection.Info:
		h.handleInfo(socket, &req)
	case connection.UpdateUser:
		h.handleUpdateUser(socket, &req)
	case connection.ResetPassword:
		h.sendResponse(socket, req.ID, nil)
	default:
		h.sendError(socket, req.ID, connection.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (h *handler) sendResponse(socket *gws.Conn, id string, result any) {
	resp := connection.RPCResponse[any]{ID: id, Result: &result}
	h.write(socket, resp)
}

func (h *handler) sendError(socket *gws.Conn, id string, code int, message string) {
	resp := connection.RPCResponse[any]{ID: id, Error: &connection.RPCError{Code: code, Message: message}}
	h.write(socket, resp)
}

func (h *handler) write(socket *gws.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.server.logger.Error("error marshaling response", "error", err)
		return
	}

	h.server.writeMu.Lock()
	defer h.server.writeMu.Unlock()
	if err := socket.WriteMessage(gws.OpcodeText, data); err != nil {
		h.server.logger.Error("error writing response", "error", err)
	}
}

func isUseOfClosedNetworkError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "use of closed network connection")
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

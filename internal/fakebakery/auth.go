package fakebakery

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lxzan/gws"

	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
)

func (s *Server) issueToken(acc *account) (string, error) {
	claims := jwt.MapClaims{
		"sub":   acc.ID,
		"email": acc.Email,
		"exp":   time.Now().Add(tokenTTL).Unix(),
		"iat":   time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) authResult(acc *account) (map[string]any, error) {
	token, err := s.issueToken(acc)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token": token,
		"user": map[string]any{
			"id":         acc.ID,
			"email":      acc.Email,
			"created_at": acc.CreatedAt,
		},
	}, nil
}

// RegisterAccount pre-creates an auth account, for tests that sign in
// without signing up first.
func (s *Server) RegisterAccount(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &account{
		ID:        newID(),
		Email:     email,
		Password:  password,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.accounts[email] = acc
	return acc.ID
}

func (h *handler) handleSignUp(socket *gws.Conn, req *connection.RPCRequest) {
	email, eok := paramString(req.Params, 0)
	password, pok := paramString(req.Params, 1)
	if !eok || !pok || email == "" || password == "" {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "signup: email and password required")
		return
	}

	s := h.server
	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodeAuthFailed, "account already exists")
		return
	}
	acc := &account{
		ID:        newID(),
		Email:     email,
		Password:  password,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.accounts[email] = acc
	s.sessions[socket] = acc
	s.mu.Unlock()

	result, err := s.authResult(acc)
	if err != nil {
		h.sendError(socket, req.ID, connection.CodeInternalError, err.Error())
		return
	}
	h.sendResponse(socket, req.ID, result)
}

func (h *handler) handleSignIn(socket *gws.Conn, req *connection.RPCRequest) {
	email, eok := paramString(req.Params, 0)
	password, pok := paramString(req.Params, 1)
	if !eok || !pok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "signin: email and password required")
		return
	}

	s := h.server
	s.mu.Lock()
	acc, exists := s.accounts[email]
	if !exists || acc.Password != password {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodeAuthFailed, "invalid credentials")
		return
	}
	s.sessions[socket] = acc
	s.mu.Unlock()

	result, err := s.authResult(acc)
	if err != nil {
		h.sendError(socket, req.ID, connection.CodeInternalError, err.Error())
		return
	}
	h.sendResponse(socket, req.ID, result)
}

func (h *handler) handleSignOut(socket *gws.Conn, req *connection.RPCRequest) {
	s := h.server
	s.mu.Lock()
	delete(s.sessions, socket)
	s.mu.Unlock()
	h.sendResponse(socket, req.ID, nil)
}

func (h *handler) handleAuthenticate(socket *gws.Conn, req *connection.RPCRequest) {
	token, ok := paramString(req.Params, 0)
	if !ok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "authenticate: token required")
		return
	}

	s := h.server
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		h.sendError(socket, req.ID, connection.CodeAuthFailed, "invalid token")
		return
	}

	email, _ := claims["email"].(string)
	s.mu.Lock()
	acc, exists := s.accounts[email]
	if !exists {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodeAuthFailed, "unknown account")
		return
	}
	s.sessions[socket] = acc
	s.mu.Unlock()

	result, err := s.authResult(acc)
	if err != nil {
		h.sendError(socket, req.ID, connection.CodeInternalError, err.Error())
		return
	}
	h.sendResponse(socket, req.ID, result)
}

func (h *handler) handleInfo(socket *gws.Conn, req *connection.RPCRequest) {
	s := h.server
	s.mu.RLock()
	acc, signedIn := s.sessions[socket]
	s.mu.RUnlock()

	if !signedIn {
		h.sendError(socket, req.ID, connection.CodeAuthFailed, "not signed in")
		return
	}

	h.sendResponse(socket, req.ID, map[string]any{
		"id":         acc.ID,
		"email":      acc.Email,
		"created_at": acc.CreatedAt,
	})
}

func (h *handler) handleUpdateUser(socket *gws.Conn, req *connection.RPCRequest) {
	changes, ok := paramFields(req.Params, 0)
	if !ok {
		h.sendError(socket, req.ID, connection.CodeInvalidParams, "update_user: changes required")
		return
	}

	s := h.server
	s.mu.Lock()
	acc, signedIn := s.sessions[socket]
	if !signedIn {
		s.mu.Unlock()
		h.sendError(socket, req.ID, connection.CodeAuthFailed, "not signed in")
		return
	}
	if password, ok := changes["password"].(string); ok && password != "" {
		acc.Password = password
	}
	if email, ok := changes["email"].(string); ok && email != "" {
		delete(s.accounts, acc.Email)
		acc.Email = email
		s.accounts[email] = acc
	}
	s.mu.Unlock()

	h.sendResponse(socket, req.ID, nil)
}

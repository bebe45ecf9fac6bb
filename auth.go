package bakersdozen

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
	"github.com/bakersdozen/bakersdozen.go/pkg/models"
)

// AuthEvent tags a session-lifecycle change forwarded to OnAuthStateChange
// listeners.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthUserUpdated    AuthEvent = "USER_UPDATED"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// Session is the active authentication state.
type Session struct {
	AccessToken string
	UserID      string
	Email       string
	ExpiresAt   time.Time
}

// AuthStateCallback receives session-lifecycle events. The session is nil
// for AuthSignedOut.
type AuthStateCallback func(event AuthEvent, session *Session)

// UserAttributes are the mutable fields of the auth record.
type UserAttributes struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// authRecord is the backend's auth-side identity, without the profile row.
type authRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// authPayload is what signin/signup/authenticate return.
type authPayload struct {
	Token string     `json:"token"`
	User  authRecord `json:"user"`
}

// Auth normalizes the backend's two-part identity, the auth record plus a
// profile-table row, into one models.User with a role.
//
// A missing profile row is never an error: row access policy can legitimately
// prevent a fresh account from writing its profile, so a default role of
// "user" is synthesized until the row exists.
type Auth struct {
	db *DB

	mu           sync.Mutex
	session      *Session
	listeners    map[int]AuthStateCallback
	nextListener int
}

func newAuth(db *DB) *Auth {
	return &Auth{
		db:        db,
		listeners: make(map[int]AuthStateCallback),
	}
}

// SignInWithPassword authenticates with email and password and returns the
// joined User.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*models.User, error) {
	var payload authPayload
	if err := a.db.send(ctx, &payload, connection.SignIn, email, password); err != nil {
		return nil, err
	}

	session := a.setSession(payload)
	user := a.joinProfile(ctx, payload.User)
	a.emit(ctx, AuthSignedIn, session)

	return user, nil
}

// SignUp creates an account and returns the new User. The profile row is
// created best-effort: a rejection by access policy is logged and the User
// is returned with the default role anyway, since the auth account exists.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	var payload authPayload
	if err := a.db.send(ctx, &payload, connection.SignUp, email, password); err != nil {
		return nil, err
	}

	session := a.setSession(payload)

	profile := models.User{
		ID:        payload.User.ID,
		Email:     payload.User.Email,
		Role:      models.RoleUser,
		CreatedAt: payload.User.CreatedAt,
	}
	if err := a.db.send(ctx, nil, connection.Insert, models.TableUsers, profile); err != nil {
		a.db.logger.Warn("could not create user profile, continuing with default role", "error", err)
	}

	a.emit(ctx, AuthSignedIn, session)

	return &profile, nil
}

// SignOut invalidates the session.
func (a *Auth) SignOut(ctx context.Context) error {
	err := a.db.send(ctx, nil, connection.SignOut)

	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()

	a.emit(ctx, AuthSignedOut, nil)
	return err
}

// GetSession returns the active session, or nil.
func (a *Auth) GetSession() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

// GetUser returns the joined User for the active session, or (nil, nil)
// when nobody is signed in.
func (a *Auth) GetUser(ctx context.Context) (*models.User, error) {
	if a.GetSession() == nil {
		return nil, nil
	}

	var record authRecord
	if err := a.db.send(ctx, &record, connection.Info); err != nil {
		return nil, err
	}

	return a.joinProfile(ctx, record), nil
}

// IsAdmin reports whether the active session's user has the admin role.
func (a *Auth) IsAdmin(ctx context.Context) bool {
	user, err := a.GetUser(ctx)
	if err != nil || user == nil {
		return false
	}
	return user.Role == models.RoleAdmin
}

// IsLoggedIn reports whether a user is signed in.
func (a *Auth) IsLoggedIn(ctx context.Context) bool {
	user, err := a.GetUser(ctx)
	return err == nil && user != nil
}

// RefreshSession exchanges the current token for a fresh one.
func (a *Auth) RefreshSession(ctx context.Context) error {
	current := a.GetSession()
	if current == nil {
		return ErrNotSignedIn
	}

	var payload authPayload
	if err := a.db.send(ctx, &payload, connection.Authenticate, current.AccessToken); err != nil {
		return err
	}

	session := a.setSession(payload)
	a.emit(ctx, AuthTokenRefreshed, session)
	return nil
}

// ResetPassword asks the backend to start a password reset for email.
func (a *Auth) ResetPassword(ctx context.Context, email string) error {
	return a.db.send(ctx, nil, connection.ResetPassword, email)
}

// UpdateUser applies changes to the auth record of the active session.
func (a *Auth) UpdateUser(ctx context.Context, changes UserAttributes) error {
	if a.GetSession() == nil {
		return ErrNotSignedIn
	}

	if err := a.db.send(ctx, nil, connection.UpdateUser, changes); err != nil {
		return err
	}

	a.emit(ctx, AuthUserUpdated, a.GetSession())
	return nil
}

// OnAuthStateChange registers callback for session-lifecycle events and
// returns the function that removes it.
func (a *Auth) OnAuthStateChange(callback AuthStateCallback) func() {
	a.mu.Lock()
	a.nextListener++
	id := a.nextListener
	a.listeners[id] = callback
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// joinProfile fetches the profile row for record and merges it with the
// auth record. A missing or unreadable profile yields the default role.
func (a *Auth) joinProfile(ctx context.Context, record authRecord) *models.User {
	user := &models.User{
		ID:        record.ID,
		Email:     record.Email,
		Role:      models.RoleUser,
		CreatedAt: record.CreatedAt,
	}

	profile, err := GetByID[models.User](ctx, a.db, models.TableUsers, record.ID)
	if err != nil {
		a.db.logger.Warn("could not read user profile, using default role", "id", record.ID, "error", err)
		return user
	}
	if profile != nil && profile.Role != "" {
		user.Role = profile.Role
	}
	return user
}

// setSession records the session from an auth payload, deriving expiry from
// the token's claims. The token is not verified client-side; the backend is
// the authority on its validity.
func (a *Auth) setSession(payload authPayload) *Session {
	session := &Session{
		AccessToken: payload.Token,
		UserID:      payload.User.ID,
		Email:       payload.User.Email,
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(payload.Token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			session.ExpiresAt = exp.Time
		}
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			session.UserID = sub
		}
	} else {
		a.db.logger.Debug("could not parse session token claims", "error", err)
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()

	return session
}

// emit forwards event to every listener. On sign-in the profile row is
// upserted first, idempotently and best-effort: a policy rejection is
// logged, never raised.
func (a *Auth) emit(ctx context.Context, event AuthEvent, session *Session) {
	if event == AuthSignedIn && session != nil {
		// Only identity fields: an upsert carrying a role would reset an
		// admin back to "user" on every sign in.
		profile := map[string]any{
			"id":    session.UserID,
			"email": session.Email,
		}
		if err := a.db.send(ctx, nil, connection.Upsert, models.TableUsers, profile); err != nil {
			a.db.logger.Warn("could not upsert user profile on sign in", "error", err)
		}
	}

	a.mu.Lock()
	callbacks := make([]AuthStateCallback, 0, len(a.listeners))
	for _, cb := range a.listeners {
		callbacks = append(callbacks, cb)
	}
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(event, session)
	}
}

// Package session owns the auth token and user state. All mutations
// write through to the credential store synchronously, so the durable
// state never lags the in-memory state.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hiddensweep/hiddensweep/pkg/api"
	"github.com/hiddensweep/hiddensweep/pkg/credstore"
	"github.com/hiddensweep/hiddensweep/pkg/logging"
	"github.com/hiddensweep/hiddensweep/pkg/models"
	"github.com/hiddensweep/hiddensweep/pkg/protocol"
)

// Store holds the session state.
type Store struct {
	api   *api.Client
	creds *credstore.Store

	mu       sync.RWMutex
	token    string
	user     *models.User
	loading  bool
	degraded bool
}

// NewStore creates a session store wired into the API client: it becomes
// the client's token source and its unauthorized hook, so any 401 on an
// authenticated call forces logout here and nowhere else.
func NewStore(client *api.Client, creds *credstore.Store) *Store {
	s := &Store{
		api:     client,
		creds:   creds,
		loading: true,
	}
	client.SetTokenSource(s.Token)
	client.OnUnauthorized(s.forceLogout)
	return s
}

// Initialize restores a previous session at startup. A stored token is
// verified against the backend; when verification fails for reasons other
// than an invalid token or a caller cancellation, a cached user snapshot
// is adopted as a degraded session rather than forcing logout (the next
// authenticated call still re-validates via the 401 hook). The loading
// flag is cleared exactly once on every exit path.
func (s *Store) Initialize(ctx context.Context) {
	defer s.clearLoading()

	token, err := s.creds.LoadToken()
	if err != nil {
		logging.Warn("failed to read stored token", zap.Error(err))
		return
	}
	if token == "" {
		return
	}

	if exp, ok := TokenExpiry(token); ok && time.Now().After(exp) {
		logging.Info("stored token is past its expiry, verifying anyway",
			zap.Time("expired_at", exp))
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	var resp protocol.VerifyResponse
	err = s.api.Call(ctx, http.MethodGet, "/api/auth/verify", nil, &resp, api.WithoutNotify())
	if err == nil && resp.User != nil {
		s.adopt(token, resp.User, false)
		return
	}

	var authErr *api.AuthError
	switch {
	case errors.As(err, &authErr):
		// Token rejected; the unauthorized hook already cleared state.
		return
	case errors.Is(err, context.Canceled):
		s.forceLogout()
		return
	default:
		cached, cerr := s.creds.LoadUser()
		if cerr == nil && cached != nil {
			logging.Warn("token verification unavailable, using cached user",
				zap.Error(err))
			s.adopt(token, cached, true)
			return
		}
		s.forceLogout()
	}
}

// Login authenticates with email and password. On success the token and
// user are adopted and persisted; the returned string is the optional
// server message.
func (s *Store) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", &api.ValidationError{Reason: "email and password are required"}
	}

	var resp protocol.AuthResponse
	err := s.api.Call(ctx, http.MethodPost, "/api/auth/login",
		protocol.LoginRequest{Email: email, Password: password}, &resp,
		api.WithoutAuth(), api.WithoutNotify())
	if err != nil {
		return nil, "", err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, "", &api.ServerError{Status: http.StatusOK, Message: "malformed auth response"}
	}

	if err := s.adopt(resp.Token, resp.User, false); err != nil {
		return nil, "", err
	}
	logging.Info("logged in", zap.String("email", resp.User.Email))
	return resp.User, resp.Message, nil
}

// Register creates an account and logs in with the returned credentials.
func (s *Store) Register(ctx context.Context, name, email, password string) (*models.User, string, error) {
	if name == "" || email == "" || password == "" {
		return nil, "", &api.ValidationError{Reason: "name, email and password are required"}
	}

	var resp protocol.AuthResponse
	err := s.api.Call(ctx, http.MethodPost, "/api/auth/register",
		protocol.RegisterRequest{Name: name, Email: email, Password: password}, &resp,
		api.WithoutAuth(), api.WithoutNotify())
	if err != nil {
		return nil, "", err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, "", &api.ServerError{Status: http.StatusOK, Message: "malformed auth response"}
	}

	if err := s.adopt(resp.Token, resp.User, false); err != nil {
		return nil, "", err
	}
	logging.Info("registered", zap.String("email", resp.User.Email))
	return resp.User, resp.Message, nil
}

// Logout tells the server to revoke the token (best effort, failures
// ignored) and unconditionally clears local state. Logging out always
// succeeds locally.
func (s *Store) Logout(ctx context.Context) {
	if s.Token() != "" {
		err := s.api.Call(ctx, http.MethodPost, "/api/auth/logout", nil, nil, api.WithoutNotify())
		if err != nil {
			logging.Debug("server logout failed", zap.Error(err))
		}
	}
	s.forceLogout()
}

// RefreshToken exchanges the current token for a fresh one.
func (s *Store) RefreshToken(ctx context.Context) error {
	var resp protocol.RefreshResponse
	err := s.api.Call(ctx, http.MethodPost, "/api/auth/refresh", nil, &resp)
	if err != nil {
		return err
	}
	if resp.Token == "" {
		return &api.ServerError{Status: http.StatusOK, Message: "malformed refresh response"}
	}

	s.mu.Lock()
	s.token = resp.Token
	s.mu.Unlock()
	return s.creds.SaveToken(resp.Token)
}

// UpdateUser overwrites the in-memory user and the durable snapshot.
// No server call is made.
func (s *Store) UpdateUser(u *models.User) error {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return s.creds.SaveUser(u)
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the current user, or nil when logged out.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether both a token and a user are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// IsLoading reports whether Initialize has not finished yet.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// IsDegraded reports whether the session was restored from the cached
// snapshot without a fresh server confirmation.
func (s *Store) IsDegraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// adopt installs a token+user pair in memory and on disk.
func (s *Store) adopt(token string, u *models.User, degraded bool) error {
	s.mu.Lock()
	s.token = token
	s.user = u
	s.degraded = degraded
	s.mu.Unlock()
	return s.creds.Save(token, u)
}

// forceLogout clears memory and durable state without a server call.
// Idempotent; also fired by the API client's 401 hook.
func (s *Store) forceLogout() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.degraded = false
	s.mu.Unlock()
	if err := s.creds.Clear(); err != nil {
		logging.Warn("failed to clear stored credentials", zap.Error(err))
	}
}

func (s *Store) clearLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// TokenExpiry returns the exp claim of a JWT without verifying the
// signature. Used only for advisory logging and display; the server
// remains the source of truth.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

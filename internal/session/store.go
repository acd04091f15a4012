// Package session holds the bearer token and the user it belongs to.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/api"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	tokenKey          = "token"
	revalidateTimeout = 15 * time.Second
)

// Authenticator is the backend half of the session.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	AdminLogin(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Register(ctx context.Context, reg domain.Registration) (string, error)
	Me(ctx context.Context, token string) (*domain.User, error)
	VerifyEmail(ctx context.Context, verificationToken string) (string, error)
}

// CredentialSink receives the token every outgoing request should carry.
type CredentialSink interface {
	SetBearer(token string)
	ClearBearer()
}

type Recorder interface {
	RecordRevalidation(result string)
}

// Session is a consistent read of the store. User is never set without Token.
type Session struct {
	Token string
	User  *domain.User
}

type Store struct {
	mu    sync.RWMutex
	token string
	user  *domain.User

	auth    Authenticator
	sink    CredentialSink
	storage storage.Store
	group   singleflight.Group
	now     func() time.Time
	log     *slog.Logger
	metrics Recorder

	onChange func()
}

func NewStore(auth Authenticator, sink CredentialSink, st storage.Store, l *slog.Logger, metrics Recorder) *Store {
	return &Store{
		auth:    auth,
		sink:    sink,
		storage: st,
		now:     time.Now,
		log:     logger.OrDefault(l),
		metrics: metrics,
	}
}

func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{Token: s.token, User: copyUser(s.user)}
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin
}

// Restore adopts the persisted token, if any, and revalidates it.
func (s *Store) Restore(ctx context.Context) (*domain.User, error) {
	data, err := s.storage.Get(ctx, tokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	s.apply(string(data), nil)
	return s.Revalidate(ctx)
}

// SetToken persists token and makes it the credential for future calls. The user is cleared
// until the next Revalidate.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.Logout(ctx)
	}
	s.apply(token, nil)
	return s.persist(ctx, token)
}

// Revalidate asks the backend who the current token belongs to. Any failure clears the session.
// Concurrent calls for the same token share one request, and a result is only applied while
// its token is still current. The shared request is not bound to any one caller: a caller
// whose ctx ends gets ctx.Err() while the others keep waiting for the answer.
func (s *Store) Revalidate(ctx context.Context) (*domain.User, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := s.group.DoChan(token, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revalidateTimeout)
		defer cancel()
		return s.revalidate(rctx, token)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyUser(res.Val.(*domain.User)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) revalidate(ctx context.Context, token string) (*domain.User, error) {
	if s.expired(token) {
		s.clearIf(ctx, token)
		s.record("expired")
		return nil, ErrTokenExpired
	}

	user, err := s.auth.Me(ctx, token)
	if err != nil && ctx.Err() != nil {
		// timed out; the answer is unknown, not negative
		return nil, ctx.Err()
	}
	if err == nil && (user == nil || user.ID == "") {
		err = errors.New("user has no id")
	}
	if err != nil {
		s.clearIf(ctx, token)
		s.record("cleared")
		s.log.InfoContext(ctx, "session cleared after failed revalidation", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	s.mu.Lock()
	current := s.token == token
	if current {
		s.user = copyUser(user)
	}
	s.mu.Unlock()

	if !current {
		s.record("superseded")
		return nil, fmt.Errorf("%w: token changed during revalidation", ErrInvalidSession)
	}
	s.record("valid")
	return user, nil
}

func (s *Store) Login(ctx context.Context, email, password string) (*domain.User, error) {
	res, err := s.auth.Login(ctx, domain.Credentials{Email: email, Password: password})
	return s.completeLogin(ctx, "login", "Login failed", res, err)
}

func (s *Store) AdminLogin(ctx context.Context, email, password string) (*domain.User, error) {
	res, err := s.auth.AdminLogin(ctx, domain.Credentials{Email: email, Password: password})
	return s.completeLogin(ctx, "admin login", "Admin login failed", res, err)
}

func (s *Store) completeLogin(ctx context.Context, op, fallback string, res *domain.AuthResult, err error) (*domain.User, error) {
	if err == nil && (res == nil || res.Token == "" || res.User == nil) {
		err = errors.New("response has no token or user")
	}
	if err != nil {
		return nil, &AuthError{Op: op, Message: api.UserMessage(err, fallback), Err: err}
	}

	s.apply(res.Token, res.User)
	s.log.InfoContext(ctx, "signed in", slog.String("user_id", res.User.ID), slog.Bool("admin", res.User.IsAdmin))
	if err := s.persist(ctx, res.Token); err != nil {
		return copyUser(res.User), err
	}
	return copyUser(res.User), nil
}

// Register creates an account without signing in; the account still has to be verified.
func (s *Store) Register(ctx context.Context, name, email, password string) (string, error) {
	msg, err := s.auth.Register(ctx, domain.Registration{Name: name, Email: email, Password: password})
	if err != nil {
		return "", &AuthError{Op: "register", Message: api.UserMessage(err, "Registration failed"), Err: err}
	}
	return msg, nil
}

func (s *Store) VerifyEmail(ctx context.Context, verificationToken string) (string, error) {
	msg, err := s.auth.VerifyEmail(ctx, verificationToken)
	if err != nil {
		return "", &AuthError{Op: "verify email", Message: api.UserMessage(err, "Email verification failed"), Err: err}
	}
	return msg, nil
}

// CompleteCallback finishes an external sign-in that redirected back with ?token= or ?error=.
func (s *Store) CompleteCallback(ctx context.Context, params url.Values) (*domain.User, error) {
	if msg := params.Get("error"); msg != "" {
		return nil, &AuthError{Op: "callback", Message: msg, Err: ErrCallbackFailed}
	}
	token := params.Get("token")
	if token == "" {
		return nil, ErrNoToken
	}
	if err := s.SetToken(ctx, token); err != nil {
		return nil, err
	}
	return s.Revalidate(ctx)
}

// Logout is local only; the backend is not told.
func (s *Store) Logout(ctx context.Context) error {
	s.clear()
	if err := s.storage.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// Invalidate clears the session if token is still the current one. The API client calls it
// when a request sent with token came back unauthenticated.
func (s *Store) Invalidate(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.clearIf(ctx, token) {
		s.log.Info("session cleared after unauthenticated response")
	}
}

// OnIdentityChange registers fn to run after the session moves to a different token,
// including sign-out. fn runs outside the store's lock.
func (s *Store) OnIdentityChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) apply(token string, user *domain.User) {
	s.mu.Lock()
	changed := s.token != token
	s.token = token
	s.user = copyUser(user)
	s.sink.SetBearer(token)
	hook := s.onChange
	s.mu.Unlock()

	if changed && hook != nil {
		hook()
	}
}

func (s *Store) clear() {
	s.mu.Lock()
	changed := s.token != ""
	s.token = ""
	s.user = nil
	s.sink.ClearBearer()
	hook := s.onChange
	s.mu.Unlock()

	if changed && hook != nil {
		hook()
	}
}

func (s *Store) clearIf(ctx context.Context, token string) bool {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.user = nil
	s.sink.ClearBearer()
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), tokenKey); err != nil {
		s.log.WarnContext(ctx, "failed to delete session token", slog.Any("error", err))
	}
	return true
}

func (s *Store) persist(ctx context.Context, token string) error {
	if err := s.storage.Set(ctx, tokenKey, []byte(token)); err != nil {
		s.log.WarnContext(ctx, "failed to persist session token", slog.Any("error", err))
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	return nil
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque tokens are left
// to the backend.
func (s *Store) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(s.now())
}

func (s *Store) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordRevalidation(result)
	}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

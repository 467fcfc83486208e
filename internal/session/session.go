// Package session holds the authenticated identity of one client.
//
// A Session is created once with Open, changed only by Login, Exchange,
// Refresh and Logout, and released with Close. Nothing else in the module
// keeps authentication state.
package session

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
	cookiejar "github.com/juju/persistent-cookiejar"

	"canteen/internal/apiclient"
	"canteen/internal/model"
)

const DefaultCookieName = "access_token"

// ErrNotLoggedIn is returned when an operation needs a user and there is none.
var ErrNotLoggedIn = fmt.Errorf("%w: not logged in", errors.Unauthorized)

type Config struct {
	APIURL     string
	CookieFile string
	CookieName string
	Timeout    time.Duration
	// NoPersist keeps cookies in memory only.
	NoPersist bool
	// HTTPClient overrides the transport; its Jar is replaced.
	HTTPClient *http.Client
}

type Session struct {
	cfg    Config
	jar    *cookiejar.Jar
	client *apiclient.Client

	mu   sync.RWMutex
	user *model.User
}

// Claims are the parts of the session token the client cares about. The
// token is read without verifying its signature; the server remains the
// authority on whether it is valid.
type Claims struct {
	Subject   string
	Role      model.Role
	ExpiresAt time.Time
}

func Open(cfg Config) (*Session, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	jar, err := cookiejar.New(&cookiejar.Options{
		Filename:  cfg.CookieFile,
		NoPersist: cfg.NoPersist,
	})
	if err != nil {
		return nil, fmt.Errorf("open cookie jar: %w", err)
	}

	opts := []apiclient.Option{apiclient.WithTimeout(cfg.Timeout)}
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		opts = append(opts, apiclient.WithHTTPClient(&hc))
	}
	opts = append(opts, apiclient.WithJar(jar))

	client, err := apiclient.New(cfg.APIURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, jar: jar, client: client}, nil
}

func (s *Session) Client() *apiclient.Client {
	return s.client
}

// Jar exposes the cookie jar for the push channel handshake.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// User returns the current user, if one has been established.
func (s *Session) User() (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

func (s *Session) setUser(u *model.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Session) Login(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.establish(resp)
}

// Exchange completes an OAuth login with the callback token.
func (s *Session) Exchange(ctx context.Context, token string) (*model.User, error) {
	resp, err := s.client.ExchangeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.establish(resp)
}

func (s *Session) establish(resp *model.AuthResponse) (*model.User, error) {
	s.pinCookie(resp.AccessToken)
	u := resp.User
	s.setUser(&u)
	if err := s.jar.Save(); err != nil {
		return nil, fmt.Errorf("save cookie jar: %w", err)
	}
	return &u, nil
}

// pinCookie stores the token with the expiry of its claims so the
// session survives between process runs even when the server issued a
// browser-session cookie.
func (s *Session) pinCookie(token string) {
	claims, err := parseClaims(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return
	}
	s.jar.SetCookies(s.client.BaseURL(), []*http.Cookie{{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HttpOnly: true,
	}})
}

// Refresh re-reads the current user from the server. A rejected session
// clears the local user.
func (s *Session) Refresh(ctx context.Context) (*model.User, error) {
	u, err := s.client.Me(ctx)
	if err != nil {
		if errors.Is(err, errors.Unauthorized) {
			s.setUser(nil)
		}
		return nil, err
	}
	s.setUser(u)
	return u, nil
}

// Require returns the current user if it has one of roles. Without roles
// any logged-in user passes.
func (s *Session) Require(roles ...model.Role) (*model.User, error) {
	u, ok := s.User()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	if len(roles) > 0 && !slices.Contains(roles, u.Role) {
		return nil, fmt.Errorf("%w: %s cannot do this", errors.Forbidden, u.Role)
	}
	return u, nil
}

func (s *Session) token() (string, bool) {
	for _, c := range s.jar.Cookies(s.client.BaseURL()) {
		if c.Name == s.cfg.CookieName {
			return c.Value, true
		}
	}
	return "", false
}

// Claims decodes the stored session token.
func (s *Session) Claims() (*Claims, error) {
	token, ok := s.token()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	return parseClaims(token)
}

// Expired reports whether the stored token is missing or past its expiry.
func (s *Session) Expired(now time.Time) bool {
	c, err := s.Claims()
	if err != nil {
		return true
	}
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Logout invalidates the session server-side and forgets it locally. The
// local state is cleared even when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx)
	s.jar.RemoveAll()
	s.setUser(nil)
	if saveErr := s.jar.Save(); saveErr != nil && err == nil {
		err = fmt.Errorf("save cookie jar: %w", saveErr)
	}
	return err
}

// Close persists the cookie jar.
func (s *Session) Close() error {
	if err := s.jar.Save(); err != nil {
		return fmt.Errorf("save cookie jar: %w", err)
	}
	return nil
}

func parseClaims(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	c := &Claims{}
	c.Subject, _ = mc.GetSubject()
	if role, ok := mc["role"].(string); ok {
		c.Role = model.Role(role)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

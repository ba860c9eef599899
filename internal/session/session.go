// Package session keeps anonymous shoppers' cart identity behind a cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName = "storefront_session"
	defaultTTL = 30 * 24 * time.Hour
)

var ErrNoSession = errors.New("no session")

// Data is what the storefront remembers about a visitor.
type Data struct {
	// AnonymousID owns the visitor's cart until they sign in.
	AnonymousID string `json:"anonymous_id"`
	CreatedAt   int64  `json:"created_at"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Data, bool)
	Set(ctx context.Context, key string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, key string)
	Close() error
}

type Manager struct {
	store  Store
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, secure bool) *Manager {
	return &Manager{
		store:  store,
		secure: secure,
		ttl:    defaultTTL,
		now:    time.Now,
	}
}

func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

// GetSession returns the session named by the request cookie or
// ErrNoSession.
func (m *Manager) GetSession(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	if ctx == nil {
		ctx = r.Context()
	}

	data, ok := m.store.Get(ctx, cookie.Value)
	if !ok {
		return nil, ErrNoSession
	}
	if m.now().Unix()-data.CreatedAt > int64(m.ttl.Seconds()) {
		m.store.Delete(ctx, cookie.Value)
		return nil, ErrNoSession
	}
	return data, nil
}

// Ensure returns the request's session, starting a new one with a fresh
// anonymous id and setting the cookie when there is none.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Data, error) {
	data, err := m.GetSession(ctx, r)
	if err == nil {
		return data, nil
	}

	data = &Data{
		AnonymousID: uuid.NewString(),
		CreatedAt:   m.now().Unix(),
	}
	sessionID := uuid.NewString()
	if err := m.store.Set(ctx, sessionID, data, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return cloneData(data), nil
}

// Destroy removes the session and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		m.store.Delete(ctx, cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cloneData(data *Data) *Data {
	if data == nil {
		return nil
	}
	cloned := *data
	return &cloned
}

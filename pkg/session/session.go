// Package session keeps server-side sessions in pkg/cache, keyed by the id in
// the session cookie (rrnagar.sid by default).
//
//	r.Use(session.Middleware(session.DefaultOptions()))
//
//	sess := session.FromCtx(r)
//	sess.Login(customer.ID, "customer")
//	_ = sess.Save(w)
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/cache"
)

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

// DefaultOptions reads the cookie name, TTL and Secure flag from config.
func DefaultOptions() Options {
	return Options{
		CookieName: config.SessionCookie(),
		TTL:        config.SessionTTL(),
		Secure:     config.SessionSecure(),
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

type ctxKey struct{}

// Session is the request's view of one stored session.
type Session struct {
	id        string
	data      map[string]any
	opts      Options
	changed   bool
	destroyed bool
}

func newID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("session: entropy: %v", err))
	}
	return hex.EncodeToString(b)
}

func storeKey(id string) string { return "session:" + id }

func (s *Session) ID() string { return s.id }

func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.changed = true
}

func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) Delete(key string) {
	delete(s.data, key)
	s.changed = true
}

// Login stores the principal. The session id is rotated so a pre-login
// cookie cannot be reused.
func (s *Session) Login(userID uint, role string) {
	if s.id != "" {
		_ = cache.Forget(storeKey(s.id))
	}
	s.id = newID()
	s.data = map[string]any{"user_id": userID, "role": role}
	s.changed = true
	s.destroyed = false
}

// UserID is 0 when nobody is logged in.
func (s *Session) UserID() uint {
	v, ok := s.data["user_id"]
	if !ok {
		return 0
	}
	return cast.ToUint(v)
}

func (s *Session) Role() string {
	return cast.ToString(s.data["role"])
}

// Destroy removes the stored session and expires the cookie on Save.
func (s *Session) Destroy() {
	if s.id != "" {
		_ = cache.Forget(storeKey(s.id))
	}
	s.data = map[string]any{}
	s.destroyed = true
	s.changed = true
}

// Save persists the session and writes the cookie. It is a no-op when
// nothing changed.
func (s *Session) Save(w http.ResponseWriter) error {
	if !s.changed {
		return nil
	}
	s.changed = false

	if s.destroyed {
		http.SetCookie(w, &http.Cookie{
			Name:     s.opts.CookieName,
			Value:    "",
			Path:     s.opts.Path,
			MaxAge:   -1,
			HttpOnly: true,
		})
		return nil
	}

	if s.id == "" {
		s.id = newID()
	}
	if err := cache.Set(storeKey(s.id), s.data, s.opts.TTL); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    s.id,
		Path:     s.opts.Path,
		MaxAge:   int(s.opts.TTL.Seconds()),
		Expires:  time.Now().Add(s.opts.TTL),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: s.opts.SameSite,
	})
	return nil
}

// Middleware attaches the caller's session to the request context. Unknown
// or expired cookies yield an empty session; no cookie is issued until Save.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := &Session{opts: opts, data: map[string]any{}}

			if cookie, err := r.Cookie(opts.CookieName); err == nil && cookie.Value != "" {
				var data map[string]any
				if cache.Get(storeKey(cookie.Value), &data) {
					sess.id = cookie.Value
					sess.data = data
				}
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromCtx returns the request's session, or a detached empty one when the
// middleware did not run.
func FromCtx(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok {
		return s
	}
	return &Session{opts: DefaultOptions(), data: map[string]any{}}
}

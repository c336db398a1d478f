// Package sessions keeps the logged in user and flash messages in an
// encrypted cookie.
package sessions

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/efish/efish/internal/krypto"
)

const (
	CookieName = "efish-session"

	// RememberFor is how long a "remember me" session lasts.
	RememberFor = 30 * 24 * time.Hour
)

type Store struct {
	store sessions.Store
}

func NewStore(store sessions.Store) *Store {
	return &Store{store: store}
}

// NewCookieStore creates a store that authenticates and encrypts the
// session cookie with keys derived from keys. New cookies use the first
// key, the others are only used to read existing cookies so keys can be
// rotated.
func NewCookieStore(keys []krypto.Key, secure bool) (*Store, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one cookie key is required")
	}

	pairs := make([][]byte, 0, len(keys)*2)
	for i, k := range keys {
		hashKey, err := k.Derive("session-authentication")
		if err != nil {
			return nil, fmt.Errorf("cookie key %d: %w", i, err)
		}

		blockKey, err := k.Derive("session-encryption")
		if err != nil {
			return nil, fmt.Errorf("cookie key %d: %w", i, err)
		}

		pairs = append(pairs, hashKey.SecretValue(), blockKey.SecretValue())
	}

	cs := sessions.NewCookieStore(pairs...)
	// Only the cookie attributes are changed here, the codecs keep
	// rejecting cookies older than their default of 30 days.
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return NewStore(cs), nil
}

// Get returns the session of the request. A cookie that can't be decoded,
// for example because it was signed with a retired key, results in a new
// empty session.
func (s *Store) Get(r *http.Request) (*Session, error) {
	base, err := s.store.Get(r, CookieName)
	if err != nil {
		if base == nil {
			return nil, err
		}
		base.Values = map[any]any{}
		base.IsNew = true
	}

	applyRemember(base)

	return &Session{base: base}, nil
}

func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *Session) error {
	err := s.store.Save(r, w, sess.base)
	if err != nil {
		return err
	}

	sess.needsSave = false
	return nil
}

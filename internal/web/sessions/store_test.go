package sessions_test

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/krypto"
	"github.com/efish/efish/internal/web/sessions"
)

const (
	cookieKey      = "568554094ec040ab8a6b3e6d7cc138b0dc855f39ba1aeb2ffc903f7260b3a452"
	otherCookieKey = "d503685b5e0848dcd1026711a5d92e8a087dfaffa489fb563e0de73db2f2476c"
)

func Test_Store_RoundTrip(t *testing.T) {
	userID := uuid.MustParse("0e4cf2a4-3a55-4a5e-9d8b-0d5b6a6e2c11")

	tests := map[string]struct {
		remember   bool
		wantMaxAge int
	}{
		"ok, browser session":    {remember: false, wantMaxAge: 0},
		"ok, remembered session": {remember: true, wantMaxAge: int(sessions.RememberFor.Seconds())},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, cookieKey)

			sess := getSession(t, store, nil)
			if _, ok := sess.UserID(); ok {
				t.Fatalf("new session should not have a user")
			}

			sess.SetUserID(userID, tc.remember)
			sess.AddFlash(sessions.LevelSuccess, "Welcome back!")
			if !sess.NeedsSave() {
				t.Fatalf("expected session to need saving")
			}

			cookie := saveSession(t, store, sess)
			if cookie.MaxAge != tc.wantMaxAge {
				t.Errorf("wanted max age %d, got %d", tc.wantMaxAge, cookie.MaxAge)
			}

			if !cookie.HttpOnly {
				t.Errorf("expected an http only cookie")
			}

			got := getSession(t, store, cookie)
			gotID, ok := got.UserID()
			if !ok || gotID != userID {
				t.Errorf("wanted user %s, got %s (ok=%v)", userID, gotID, ok)
			}

			wantFlashes := []sessions.Flash{{Level: sessions.LevelSuccess, Message: "Welcome back!"}}
			if flashes := got.ConsumeFlashes(); !reflect.DeepEqual(flashes, wantFlashes) {
				t.Errorf("wanted flashes %v, got %v", wantFlashes, flashes)
			}

			if flashes := got.ConsumeFlashes(); len(flashes) != 0 {
				t.Errorf("flashes should only be returned once, got %v", flashes)
			}

			// Saving again keeps a remembered session remembered.
			again := saveSession(t, store, got)
			if again.MaxAge != tc.wantMaxAge {
				t.Errorf("wanted max age %d after resave, got %d", tc.wantMaxAge, again.MaxAge)
			}
		})
	}

	t.Run("ok, logout forgets user", func(t *testing.T) {
		store := newStore(t, cookieKey)

		sess := getSession(t, store, nil)
		sess.SetUserID(userID, true)
		cookie := saveSession(t, store, sess)

		sess = getSession(t, store, cookie)
		sess.DeleteUserID()
		cookie = saveSession(t, store, sess)

		if cookie.MaxAge != 0 {
			t.Errorf("wanted browser session after logout, got max age %d", cookie.MaxAge)
		}

		sess = getSession(t, store, cookie)
		if _, ok := sess.UserID(); ok {
			t.Errorf("expected no user after logout")
		}
	})
}

func Test_Store_KeyRotation(t *testing.T) {
	userID := uuid.MustParse("0e4cf2a4-3a55-4a5e-9d8b-0d5b6a6e2c11")

	old := newStore(t, cookieKey)
	sess := getSession(t, old, nil)
	sess.SetUserID(userID, false)
	cookie := saveSession(t, old, sess)

	t.Run("ok, old key still reads cookie", func(t *testing.T) {
		rotated := newStore(t, otherCookieKey, cookieKey)

		got := getSession(t, rotated, cookie)
		if gotID, ok := got.UserID(); !ok || gotID != userID {
			t.Errorf("wanted user %s, got %s (ok=%v)", userID, gotID, ok)
		}
	})

	t.Run("ok, unknown key results in new session", func(t *testing.T) {
		other := newStore(t, otherCookieKey)

		got := getSession(t, other, cookie)
		if _, ok := got.UserID(); ok {
			t.Errorf("expected no user in session")
		}
	})
}

func Test_NewCookieStore(t *testing.T) {
	t.Run("fail, no keys", func(t *testing.T) {
		_, err := sessions.NewCookieStore(nil, true)
		if err == nil {
			t.Fatalf("expected error, got <nil>")
		}
	})

	t.Run("fail, zero key", func(t *testing.T) {
		_, err := sessions.NewCookieStore([]krypto.Key{{}}, true)
		if err == nil {
			t.Fatalf("expected error, got <nil>")
		}
	})
}

func newStore(t *testing.T, keys ...string) *sessions.Store {
	t.Helper()

	parsed := make([]krypto.Key, 0, len(keys))
	for _, k := range keys {
		parsed = append(parsed, must(krypto.ParseKey(k)))
	}

	store, err := sessions.NewCookieStore(parsed, false)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	return store
}

func getSession(t *testing.T, store *sessions.Store, cookie *http.Cookie) *sessions.Session {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}

	sess, err := store.Get(r)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}

	return sess
}

func saveSession(t *testing.T, store *sessions.Store, sess *sessions.Session) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	err := store.Save(r, w, sess)
	if err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == sessions.CookieName {
			return c
		}
	}

	t.Fatalf("no session cookie was set")
	return nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

package sessions

import (
	"encoding/gob"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	userIDKey   = "userID"
	rememberKey = "remember"
)

// Flash levels, these double as CSS classes in the views.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelDanger  = "danger"
)

// Flash is a message that is shown once, on the next page the user sees.
type Flash struct {
	Level   string
	Message string
}

func init() {
	// Session values are gob encoded into the cookie.
	gob.Register(Flash{})
	gob.Register(uuid.UUID{})
}

// Session is the cookie backed session of a single visitor.
type Session struct {
	base      *sessions.Session
	needsSave bool
}

// NeedsSave reports whether the session was modified since it was
// loaded or last saved.
func (s *Session) NeedsSave() bool {
	return s.needsSave
}

func (s *Session) UserID() (uuid.UUID, bool) {
	userID, ok := s.base.Values[userIDKey].(uuid.UUID)
	return userID, ok
}

// SetUserID logs in the user. When remember is true the session outlives
// the browser session, see RememberFor.
func (s *Session) SetUserID(userID uuid.UUID, remember bool) {
	s.needsSave = true
	s.base.Values[userIDKey] = userID
	s.base.Values[rememberKey] = remember
	applyRemember(s.base)
}

// DeleteUserID logs out the user.
func (s *Session) DeleteUserID() {
	s.needsSave = true
	delete(s.base.Values, userIDKey)
	delete(s.base.Values, rememberKey)
	applyRemember(s.base)
}

func (s *Session) AddFlash(level, message string) {
	s.needsSave = true
	s.base.AddFlash(Flash{Level: level, Message: message})
}

// ConsumeFlashes returns the flashes and removes them from the session.
func (s *Session) ConsumeFlashes() []Flash {
	raw := s.base.Flashes()
	if len(raw) == 0 {
		return nil
	}

	s.needsSave = true

	flashes := make([]Flash, 0, len(raw))
	for _, r := range raw {
		if f, ok := r.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	return flashes
}

func applyRemember(base *sessions.Session) {
	remember, _ := base.Values[rememberKey].(bool)
	if remember {
		base.Options.MaxAge = int(RememberFor.Seconds())
		return
	}
	// A cookie without Max-Age is removed when the browser closes.
	base.Options.MaxAge = 0
}

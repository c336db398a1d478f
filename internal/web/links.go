package web

import (
	"net/url"
)

// Links builds the absolute URLs to this server that are put in emails.
type Links struct {
	BaseURL *url.URL
}

// PasswordResetLink returns the link to the form where the password can be
// reset with token.
func (l Links) PasswordResetLink(token string) string {
	u := l.BaseURL.JoinPath("password-resets")
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

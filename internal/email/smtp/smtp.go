// Package smtp sends emails through an SMTP relay.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/krypto"
)

// Settings contains the settings of the SMTP relay.
type Settings struct {
	Host     string
	Port     string
	Username string
	Password krypto.Secret
}

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender sends plain text emails over SMTP. When the relay supports it,
// STARTTLS is used. Credentials are only sent over TLS or to localhost.
type Sender struct {
	settings Settings
	sendMail SendFunc
	nowFunc  func() time.Time
}

// NewSender creates a new sender that uses smtp.SendMail.
func NewSender(s Settings) *Sender {
	return &Sender{
		settings: s,
		sendMail: smtp.SendMail,
		nowFunc:  time.Now,
	}
}

// WithSendFunc replaces the function used to deliver messages.
func (s *Sender) WithSendFunc(f SendFunc) *Sender {
	s.sendMail = f
	return s
}

func (s *Sender) Send(ctx context.Context, from, recipient email.Address, subject, body string) error {
	if s.settings.Host == "" || s.settings.Port == "" {
		return errors.New("smtp host and port are required")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.settings.Username != "" || !s.settings.Password.IsZero() {
		auth = smtp.PlainAuth("", s.settings.Username, string(s.settings.Password.SecretValue()), s.settings.Host)
	}

	addr := net.JoinHostPort(s.settings.Host, s.settings.Port)
	msg := buildMessage(from, recipient, subject, body, s.nowFunc())

	err := s.sendMail(addr, auth, string(from), []string{string(recipient)}, msg)
	if err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}

	return nil
}

func buildMessage(from, recipient email.Address, subject, body string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + string(from) + "\r\n")
	b.WriteString("To: " + string(recipient) + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

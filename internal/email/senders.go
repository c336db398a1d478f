package email

import (
	"context"
	"log/slog"
	"sync"
)

// LogSender writes emails to the log instead of delivering them. It backs
// EMAIL_DRIVER=log, where reset links can be copied from the log during
// development. Recipients and bodies end up in the log, so it has no place
// in production.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, from, recipient Address, subject, body string) error {
	s.logger.InfoContext(ctx, "send email",
		"from", from,
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}

// Message is an email as it was handed to a Sender.
type Message struct {
	From      Address
	Recipient Address
	Subject   string
	Body      string
}

// MemorySender keeps emails in memory, for tests.
type MemorySender struct {
	mu     sync.Mutex
	emails []Message
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emails = append(s.emails, Message{
		From:      from,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}

// Emails returns a copy of all emails sent so far.
func (s *MemorySender) Emails() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.emails))
	copy(out, s.emails)
	return out
}

// LastTo returns the most recent email sent to recipient.
func (s *MemorySender) LastTo(recipient Address) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.emails) - 1; i >= 0; i-- {
		if s.emails[i].Recipient == recipient {
			return s.emails[i], true
		}
	}
	return Message{}, false
}

// Package postmark sends emails through the Postmark API.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/krypto"
)

// Settings contains the settings for the Postmark API.
type Settings struct {
	// APIURL is the root of the API, emails are posted to APIURL/email.
	APIURL        *url.URL
	ServerToken   krypto.Secret
	MessageStream string
}

// APIError is a rejected send. Code is the Postmark error code, zero
// when the response carried none.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postmark: status %d, error code %d: %s", e.Status, e.Code, e.Message)
}

// Sender sends emails as single Postmark messages.
type Sender struct {
	client   *http.Client
	endpoint string
	settings Settings
}

// NewSender creates a new sender.
func NewSender(client *http.Client, s Settings) *Sender {
	return &Sender{
		client:   client,
		endpoint: s.APIURL.JoinPath("email").String(),
		settings: s,
	}
}

type message struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type reply struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// Send posts one plain text message. A rejected message is returned
// as an *APIError.
func (s *Sender) Send(ctx context.Context, from, recipient email.Address, subject, body string) error {
	payload, err := json.Marshal(message{
		From:          string(from),
		To:            string(recipient),
		Subject:       subject,
		TextBody:      body,
		MessageStream: s.settings.MessageStream,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", string(s.settings.ServerToken.SecretValue()))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Most failures are a 422 with the reason in the body, but proxies in
	// between may answer with anything.
	var r reply
	decodeErr := json.NewDecoder(resp.Body).Decode(&r)

	if resp.StatusCode == http.StatusOK && decodeErr == nil && r.ErrorCode == 0 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Code: r.ErrorCode, Message: r.Message}
	if decodeErr != nil {
		apiErr.Message = "unreadable response"
	}

	return apiErr
}

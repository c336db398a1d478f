// Package email renders templated emails and hands them to a Sender.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TemplateElement is used by a renderer to identify the different parts of an email template.
type TemplateElement string

const (
	ElementSubject TemplateElement = "subject"
	ElementBody    TemplateElement = "body"
)

// Renderer is responsible for rendering email templates.
type Renderer interface {
	Render(w io.Writer, name string, element TemplateElement, data any) error
}

// Sender is responsible for actually sending an email.
type Sender interface {
	Send(ctx context.Context, from, recipient Address, subject, body string) error
}

// ServiceConfig is the configuration for the email service.
type ServiceConfig struct {
	From Address
}

// Service renders emails from templates and sends them.
type Service struct {
	renderer Renderer
	sender   Sender
	cfg      ServiceConfig
}

func NewService(renderer Renderer, sender Sender, cfg ServiceConfig) (*Service, error) {
	if cfg.From == "" {
		return nil, errors.New("from address is required")
	}

	return &Service{
		renderer: renderer,
		sender:   sender,
		cfg:      cfg,
	}, nil
}

// Send renders the named template with data and sends the result to recipient.
// The subject is collapsed to a single line.
func (s *Service) Send(ctx context.Context, name string, recipient Address, data any) error {
	var buf bytes.Buffer
	err := s.renderer.Render(&buf, name, ElementSubject, data)
	if err != nil {
		return fmt.Errorf("failed to render subject of %s: %w", name, err)
	}

	subject := strings.Join(strings.Fields(buf.String()), " ")
	if subject == "" {
		return fmt.Errorf("email %s has an empty subject", name)
	}

	buf.Reset()
	err = s.renderer.Render(&buf, name, ElementBody, data)
	if err != nil {
		return fmt.Errorf("failed to render body of %s: %w", name, err)
	}

	body := strings.TrimSpace(buf.String()) + "\n"

	err = s.sender.Send(ctx, s.cfg.From, recipient, subject, body)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}

	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/krypto"
)

// PasswordReset is a request to set a new password with a reset token.
type PasswordReset struct {
	Token           string   `schema:",required"`
	Password        Password `schema:",required"`
	ConfirmPassword Password `schema:",required"`
}

// ResetEmail is the data available to the password reset email template.
type ResetEmail struct {
	DisplayName string
	ResetURL    string
	ExpiresIn   string
}

// RequestPasswordReset emails a password reset link to addr if a user with
// that address exists.
//
// It never reports back whether a user was found or whether the email was
// sent. Failures are passed to the ErrFunc of the service.
func (s *Service) RequestPasswordReset(ctx context.Context, addr email.Address) {
	err := s.requestPasswordReset(ctx, addr)
	if err != nil {
		s.errHandler(fmt.Errorf("password reset request failed: %w", err))
	}
}

func (s *Service) requestPasswordReset(ctx context.Context, addr email.Address) error {
	u, err := s.store.FindUserByEmail(ctx, addr)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.signer.Sign(string(u.Email))
	if err != nil {
		return err
	}

	data := ResetEmail{
		DisplayName: u.DisplayName(),
		ResetURL:    s.links.PasswordResetLink(token),
		ExpiresIn:   humanizeDuration(s.cfg.ResetTokenExpiry),
	}

	err = s.mailer.Send(ctx, "password-reset", u.Email, data)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// CheckResetToken reports whether token can still be used to reset a
// password. It returns krypto.ErrExpiredToken or krypto.ErrInvalidToken
// if it can't.
func (s *Service) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.signer.Verify(token, s.cfg.ResetTokenExpiry)
	if err != nil {
		return err
	}

	// Consumed tokens can't be checked without consuming them, the form is
	// shown and the replay is rejected on submit.
	return nil
}

// ResetPassword sets the password of the user the token was issued for.
//
// Token errors are krypto.ErrExpiredToken and krypto.ErrInvalidToken,
// ErrUserNotFound is returned when the address in the token no longer
// belongs to a user.
//
// With single use tokens, the token is consumed right before the new
// credential is stored. Failures up to that point leave the token usable,
// a failing credential update spends it.
func (s *Service) ResetPassword(ctx context.Context, r PasswordReset) error {
	if !r.Password.Equal(r.ConfirmPassword) {
		return errorz.InvalidInput{
			errorz.Keyed{Key: "ConfirmPassword", Err: ErrPasswordMismatch},
		}
	}

	signed, err := s.signer.Verify(r.Token, s.cfg.ResetTokenExpiry)
	if err != nil {
		return err
	}

	addr, err := email.ParseAddress(signed.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", krypto.ErrInvalidToken, err)
	}

	u, err := s.store.FindUserByEmail(ctx, addr)
	if errors.Is(err, errorz.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	hash, err := r.Password.Hash()
	if err != nil {
		return err
	}

	if s.cfg.SingleUseResetTokens {
		fresh, err := s.ledger.Consume(ctx, signed.ID, signed.IssuedAt.Add(s.cfg.ResetTokenExpiry))
		if err != nil {
			return fmt.Errorf("failed to consume token: %w", err)
		}
		if !fresh {
			return fmt.Errorf("%w: token was already used", krypto.ErrInvalidToken)
		}
	}

	err = s.store.UpdateCredential(ctx, u.ID, hash, s.NowFunc())
	if errors.Is(err, errorz.ErrNotFound) {
		return ErrUserNotFound
	}

	return err
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

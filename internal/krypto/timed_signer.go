package krypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indicates a token that is malformed, was not signed
	// by us or was signed for a different purpose.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates an authentic token that is older than allowed.
	ErrExpiredToken = errors.New("expired token")
)

const (
	signerIssuer = "efish"

	// clockSkew is how far in the future an issue time may lie, to allow
	// for clocks of multiple instances drifting apart.
	clockSkew = 5 * time.Second
)

// Signed is the verified content of a token.
type Signed struct {
	Value    string
	ID       string
	IssuedAt time.Time
}

// TimedSigner signs values into URL safe tokens that carry their issue time.
// Tokens are compact HS256 JWS with the value as subject and a random ID.
//
// The signing key is derived from the secret for the purpose of the signer,
// a token signed for one purpose will never verify for another.
type TimedSigner struct {
	purpose string
	key     []byte
	parser  *jwt.Parser

	NowFunc func() time.Time
}

// NewTimedSigner creates a signer for the given purpose.
func NewTimedSigner(secret Key, purpose string) (*TimedSigner, error) {
	if purpose == "" {
		return nil, errors.New("purpose is required")
	}

	key, err := secret.Derive(purpose)
	if err != nil {
		return nil, err
	}

	return &TimedSigner{
		purpose: purpose,
		key:     key.value,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithIssuer(signerIssuer),
			jwt.WithAudience(purpose),
		),
		NowFunc: time.Now,
	}, nil
}

// Sign creates a token for value, issued now.
func (s *TimedSigner) Sign(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: nothing to sign", ErrInvalidData)
	}

	claims := jwt.RegisteredClaims{
		Issuer:   signerIssuer,
		Subject:  value,
		Audience: jwt.ClaimStrings{s.purpose},
		IssuedAt: jwt.NewNumericDate(s.NowFunc()),
		ID:       uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

// Verify checks the signature of the token and whether it was issued no
// longer than maxAge ago. A token exactly maxAge old is still accepted.
func (s *TimedSigner) Verify(token string, maxAge time.Duration) (Signed, error) {
	var claims jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.IssuedAt == nil || claims.Subject == "" || claims.ID == "" {
		return Signed{}, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}

	// iat only has whole seconds, so now is compared at the same precision.
	issuedAt := claims.IssuedAt.Time
	age := s.NowFunc().Truncate(time.Second).Sub(issuedAt)
	if age < -clockSkew {
		return Signed{}, fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}

	if age > maxAge {
		return Signed{}, fmt.Errorf("%w: issued %s ago", ErrExpiredToken, age.Round(time.Second))
	}

	return Signed{
		Value:    claims.Subject,
		ID:       claims.ID,
		IssuedAt: issuedAt,
	}, nil
}

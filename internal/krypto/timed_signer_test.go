package krypto_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/efish/efish/internal/krypto"
)

const (
	signerKey      = "2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d"
	otherSignerKey = "90303dfed7994260ea4817a5ca8a392915cd401115b2f97495dadfcbcd14adbf"
)

func newSignerAt(t *testing.T, key, purpose string, now time.Time) *krypto.TimedSigner {
	t.Helper()

	s, err := krypto.NewTimedSigner(must(krypto.ParseKey(key)), purpose)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	s.NowFunc = func() time.Time {
		return now
	}

	return s
}

func Test_NewTimedSigner(t *testing.T) {
	t.Run("fail, no purpose", func(t *testing.T) {
		_, err := krypto.NewTimedSigner(must(krypto.ParseKey(signerKey)), "")
		if err == nil {
			t.Fatalf("wanted error, got <nil>")
		}
	})

	t.Run("fail, zero key", func(t *testing.T) {
		_, err := krypto.NewTimedSigner(krypto.Key{}, "password-reset")
		if !errors.Is(err, krypto.ErrInvalidKey) {
			t.Fatalf("wanted %v, got %v (via errors.Is)", krypto.ErrInvalidKey, err)
		}
	})
}

func Test_TimedSigner_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)

	values := map[string]string{
		"ok, email":     "alice@example.com",
		"ok, non-ascii": "jöhn@exämple.com",
		"ok, url chars": "a+b/c=d?e&f@example.com",
	}

	for name, value := range values {
		t.Run(name, func(t *testing.T) {
			s := newSignerAt(t, signerKey, "password-reset", now)

			token, err := s.Sign(value)
			if err != nil {
				t.Fatalf("failed to sign: %v", err)
			}

			if strings.ContainsAny(token, "+/= ") {
				t.Errorf("token %q is not url safe", token)
			}

			got, err := s.Verify(token, time.Hour)
			if err != nil {
				t.Fatalf("failed to verify: %v", err)
			}

			if got.Value != value {
				t.Errorf("wanted value %q, got %q", value, got.Value)
			}

			if !got.IssuedAt.Equal(now) {
				t.Errorf("wanted issued at %v, got %v", now, got.IssuedAt)
			}

			if got.ID == "" {
				t.Errorf("wanted non-empty token id")
			}
		})
	}

	t.Run("ok, tokens for the same value differ", func(t *testing.T) {
		s := newSignerAt(t, signerKey, "password-reset", now)

		a := must(s.Sign("alice@example.com"))
		b := must(s.Sign("alice@example.com"))
		if a == b {
			t.Errorf("expected unique tokens, got %q twice", a)
		}
	})

	t.Run("fail, empty value", func(t *testing.T) {
		s := newSignerAt(t, signerKey, "password-reset", now)

		_, err := s.Sign("")
		if !errors.Is(err, krypto.ErrInvalidData) {
			t.Fatalf("wanted %v, got %v (via errors.Is)", krypto.ErrInvalidData, err)
		}
	})
}

func Test_TimedSigner_Expiry(t *testing.T) {
	issued := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)
	maxAge := time.Hour

	tests := map[string]struct {
		age     time.Duration
		wantErr error
	}{
		"ok, just issued":            {age: 0},
		"ok, one second before":      {age: maxAge - time.Second},
		"ok, exactly max age":        {age: maxAge},
		"fail, one second after":     {age: maxAge + time.Second, wantErr: krypto.ErrExpiredToken},
		"fail, long after":           {age: 30 * 24 * time.Hour, wantErr: krypto.ErrExpiredToken},
		"ok, slight clock skew":      {age: -time.Second},
		"fail, issued in the future": {age: -time.Hour, wantErr: krypto.ErrInvalidToken},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			signer := newSignerAt(t, signerKey, "password-reset", issued)
			token := must(signer.Sign("alice@example.com"))

			verifier := newSignerAt(t, signerKey, "password-reset", issued.Add(tc.age))
			got, err := verifier.Verify(token, maxAge)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("wanted error %v, got %v (via errors.Is)", tc.wantErr, err)
			}

			if tc.wantErr == nil && got.Value != "alice@example.com" {
				t.Errorf("wanted value %q, got %q", "alice@example.com", got.Value)
			}
		})
	}

	fractionTests := map[string]struct {
		issued  time.Time
		age     time.Duration
		wantErr error
	}{
		"ok, late in the second, just inside max age": {
			issued: issued.Add(900 * time.Millisecond),
			age:    maxAge - 500*time.Millisecond,
		},
		"ok, late in the second, exactly max age": {
			issued: issued.Add(900 * time.Millisecond),
			age:    maxAge,
		},
		"ok, early in the second, just before the next second": {
			issued: issued.Add(100 * time.Millisecond),
			age:    maxAge + 800*time.Millisecond,
		},
		"fail, late in the second, past max age": {
			issued:  issued.Add(900 * time.Millisecond),
			age:     maxAge + 500*time.Millisecond,
			wantErr: krypto.ErrExpiredToken,
		},
	}

	for name, tc := range fractionTests {
		t.Run(name, func(t *testing.T) {
			signer := newSignerAt(t, signerKey, "password-reset", tc.issued)
			token := must(signer.Sign("alice@example.com"))

			verifier := newSignerAt(t, signerKey, "password-reset", tc.issued.Add(tc.age))
			_, err := verifier.Verify(token, maxAge)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("wanted error %v, got %v (via errors.Is)", tc.wantErr, err)
			}
		})
	}

	t.Run("expired and invalid are distinguishable", func(t *testing.T) {
		signer := newSignerAt(t, signerKey, "password-reset", issued)
		token := must(signer.Sign("alice@example.com"))

		verifier := newSignerAt(t, signerKey, "password-reset", issued.Add(2*maxAge))
		_, err := verifier.Verify(token, maxAge)
		if errors.Is(err, krypto.ErrInvalidToken) {
			t.Errorf("expired token should not be reported as invalid: %v", err)
		}
	})
}

func Test_TimedSigner_Tamper(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)
	s := newSignerAt(t, signerKey, "password-reset", now)
	token := must(s.Sign("alice@example.com"))

	for i := range token {
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}

		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := s.Verify(tampered, time.Hour)
		if !errors.Is(err, krypto.ErrInvalidToken) {
			t.Errorf("index %d: wanted %v, got %v (via errors.Is)", i, krypto.ErrInvalidToken, err)
		}
	}
}

func Test_TimedSigner_Invalid(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)
	s := newSignerAt(t, signerKey, "password-reset", now)
	valid := must(s.Sign("alice@example.com"))

	tokens := map[string]string{
		"empty":            "",
		"garbage":          "not-a-token",
		"two segments":     strings.Join(strings.Split(valid, ".")[:2], "."),
		"extra segment":    valid + ".AAAA",
		"truncated":        valid[:len(valid)-2],
		"signed elsewhere": must(newSignerAt(t, otherSignerKey, "password-reset", now).Sign("alice@example.com")),
		"other purpose":    must(newSignerAt(t, signerKey, "email-confirmation", now).Sign("alice@example.com")),
		"alg none":         unsignedToken(t, now),
		"wrong issuer":     tokenWithClaims(t, now, jwt.RegisteredClaims{Issuer: "someone-else"}),
		"missing subject":  tokenWithClaims(t, now, jwt.RegisteredClaims{Subject: "-"}),
		"missing id":       tokenWithClaims(t, now, jwt.RegisteredClaims{ID: "-"}),
		"missing iat":      tokenWithClaims(t, now, jwt.RegisteredClaims{IssuedAt: &jwt.NumericDate{}}),
	}

	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(token, time.Hour)
			if !errors.Is(err, krypto.ErrInvalidToken) {
				t.Fatalf("wanted %v, got %v (via errors.Is)", krypto.ErrInvalidToken, err)
			}

			if errors.Is(err, krypto.ErrExpiredToken) {
				t.Fatalf("invalid token should not be reported as expired: %v", err)
			}
		})
	}
}

func unsignedToken(t *testing.T, now time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Issuer:   "efish",
		Subject:  "alice@example.com",
		Audience: jwt.ClaimStrings{"password-reset"},
		IssuedAt: jwt.NewNumericDate(now),
		ID:       "4a8f4e76-9bb7-4e39-8b37-23b4c1e61d9a",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to create unsigned token: %v", err)
	}

	return token
}

// tokenWithClaims signs a token with the right key that has one claim
// overridden. A "-" clears a string claim, a zero NumericDate clears iat.
func tokenWithClaims(t *testing.T, now time.Time, override jwt.RegisteredClaims) string {
	t.Helper()

	key := must(must(krypto.ParseKey(signerKey)).Derive("password-reset"))

	claims := jwt.RegisteredClaims{
		Issuer:   "efish",
		Subject:  "alice@example.com",
		Audience: jwt.ClaimStrings{"password-reset"},
		IssuedAt: jwt.NewNumericDate(now),
		ID:       "4a8f4e76-9bb7-4e39-8b37-23b4c1e61d9a",
	}

	if override.Issuer != "" {
		claims.Issuer = override.Issuer
	}
	if override.Subject == "-" {
		claims.Subject = ""
	}
	if override.ID == "-" {
		claims.ID = ""
	}
	if override.IssuedAt != nil {
		claims.IssuedAt = nil
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.SecretValue())
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	return token
}

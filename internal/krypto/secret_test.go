package krypto_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/efish/efish/internal/krypto"
)

// credentials mirrors how the senders and stores carry their secrets.
type credentials struct {
	Username string
	Password krypto.Secret
}

func Test_Secret_Redacted(t *testing.T) {
	secrets := map[string]string{
		"redis password":        "r3dis-pa55",
		"postmark server token": "8f3b2a10-6c1e-4c55-9d0a-3f1e2b7c9a44",
		"mailgun api key":       "key-3ax6xnjp29jd6fds4gc373sgvjxteol0",
		"smtp password":         "correct horse battery staple",
	}

	for name, raw := range secrets {
		t.Run(name, func(t *testing.T) {
			secret := krypto.NewSecret(raw)
			creds := credentials{Username: "efish", Password: secret}

			outputs := map[string]string{
				"%s":  fmt.Sprintf("%s", secret), //nolint:gosimple
				"%v":  fmt.Sprintf("%v", secret),
				"%q":  fmt.Sprintf("%q", secret),
				"%x":  fmt.Sprintf("%x", secret),
				"%#v": fmt.Sprintf("%#v", secret),
				"+v":  fmt.Sprintf("%+v", creds),
				"err": fmt.Errorf("failed to dial with %v", secret).Error(),
			}

			var text, js bytes.Buffer
			slog.New(slog.NewTextHandler(&text, nil)).Info("connecting", "secret", secret, "creds", creds)
			slog.New(slog.NewJSONHandler(&js, nil)).Info("connecting", "secret", secret)
			outputs["slog text"] = text.String()
			outputs["slog json"] = js.String()

			var b bytes.Buffer
			enc := json.NewEncoder(&b)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(creds); err != nil {
				t.Fatalf("failed to encode: %v", err)
			}
			outputs["json"] = b.String()

			for kind, out := range outputs {
				if strings.Contains(out, raw) {
					t.Errorf("%s: output contains the raw secret:\n%s", kind, out)
				}

				if !strings.Contains(out, krypto.SecretMarker) {
					t.Errorf("%s: output does not contain %s:\n%s", kind, krypto.SecretMarker, out)
				}
			}

			if got := string(secret.SecretValue()); got != raw {
				t.Errorf("got secret value %q, want %q", got, raw)
			}
		})
	}
}

func Test_Secret_IsZero(t *testing.T) {
	tests := map[string]struct {
		secret krypto.Secret
		want   bool
	}{
		"zero value":   {secret: krypto.Secret{}, want: true},
		"empty string": {secret: krypto.NewSecret(""), want: true},
		"set":          {secret: krypto.NewSecret("x"), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tc.secret.IsZero(); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("zero value has no secret value", func(t *testing.T) {
		if v := (krypto.Secret{}).SecretValue(); len(v) != 0 {
			t.Errorf("got %q, want empty", v)
		}
	})
}

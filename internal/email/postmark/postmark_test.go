package postmark_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/efish/efish/internal/email/postmark"
	"github.com/efish/efish/internal/krypto"
)

func Test_Sender_Send(t *testing.T) {
	tests := map[string]struct {
		status  int
		resBody string
		wantErr *postmark.APIError
	}{
		"ok": {
			status:  http.StatusOK,
			resBody: `{"ErrorCode":0,"Message":"OK","MessageID":"b7bc2f4a-e38e-4336-af7d-e6c392c2f817"}`,
		},
		"fail, inactive recipient": {
			status:  http.StatusUnprocessableEntity,
			resBody: `{"ErrorCode":406,"Message":"You tried to send to a recipient that has been marked as inactive."}`,
			wantErr: &postmark.APIError{Status: 422, Code: 406, Message: "You tried to send to a recipient that has been marked as inactive."},
		},
		"fail, error code with status ok": {
			status:  http.StatusOK,
			resBody: `{"ErrorCode":300,"Message":"Invalid email request"}`,
			wantErr: &postmark.APIError{Status: 200, Code: 300, Message: "Invalid email request"},
		},
		"fail, server error": {
			status:  http.StatusInternalServerError,
			resBody: `{}`,
			wantErr: &postmark.APIError{Status: 500},
		},
		"fail, html from a proxy": {
			status:  http.StatusBadGateway,
			resBody: `<html>bad gateway</html>`,
			wantErr: &postmark.APIError{Status: 502, Message: "unreadable response"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var (
				got      map[string]string
				gotPath  string
				gotToken string
			)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotToken = r.Header.Get("X-Postmark-Server-Token")
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.resBody))
			}))
			defer srv.Close()

			sender := postmark.NewSender(srv.Client(), postmark.Settings{
				APIURL:        must(url.Parse(srv.URL)),
				ServerToken:   krypto.NewSecret("server-token"),
				MessageStream: "outbound",
			})

			err := sender.Send(context.Background(), "noreply@efish.example", "alice@example.com", "Reset your efish password", "Body")
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else {
				var apiErr *postmark.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("got error %v, want *postmark.APIError", err)
				}
				if *apiErr != *tc.wantErr {
					t.Errorf("got %+v, want %+v", *apiErr, *tc.wantErr)
				}
			}

			if gotPath != "/email" {
				t.Errorf("got path %q, want /email", gotPath)
			}

			if gotToken != "server-token" {
				t.Errorf("got token %q", gotToken)
			}

			want := map[string]string{
				"From":          "noreply@efish.example",
				"To":            "alice@example.com",
				"Subject":       "Reset your efish password",
				"TextBody":      "Body",
				"MessageStream": "outbound",
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("field %s: got %q, want %q", k, got[k], v)
				}
			}
		})
	}

	t.Run("fail, unreachable api", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		sender := postmark.NewSender(http.DefaultClient, postmark.Settings{
			APIURL:      must(url.Parse(srv.URL)),
			ServerToken: krypto.NewSecret("server-token"),
		})

		err := sender.Send(context.Background(), "noreply@efish.example", "alice@example.com", "s", "b")
		if err == nil {
			t.Fatal("expected error, got <nil>")
		}
	})
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

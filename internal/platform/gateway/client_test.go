package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "mediajobs",
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "svc", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "files", r.PostForm.Get("scope"))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(tokenURL string) *Client {
	return NewClient(Config{
		TokenURL:     tokenURL,
		ClientID:     "svc",
		ClientSecret: "secret",
		Scope:        "files",
		Timeout:      5 * time.Second,
	}, testLogger())
}

func TestClient_Token(t *testing.T) {
	t.Parallel()

	jwtToken := signedToken(t, time.Now().Add(time.Hour))

	tests := []struct {
		name      string
		status    int
		body      string
		wantToken string
		wantErr   string
	}{
		{
			name:      "opaque token",
			status:    http.StatusOK,
			body:      `{"access_token":"opaque-123","token_type":"Bearer","expires_in":3600}`,
			wantToken: "opaque-123",
		},
		{
			name:      "valid jwt",
			status:    http.StatusOK,
			body:      `{"access_token":"` + jwtToken + `","token_type":"Bearer"}`,
			wantToken: jwtToken,
		},
		{
			name:    "expired jwt",
			status:  http.StatusOK,
			body:    `{"access_token":"` + signedToken(t, time.Now().Add(-time.Minute)) + `"}`,
			wantErr: "already expired",
		},
		{
			name:    "rejected credentials",
			status:  http.StatusUnauthorized,
			body:    `{"error":"invalid_client"}`,
			wantErr: "status 401",
		},
		{
			name:    "missing token",
			status:  http.StatusOK,
			body:    `{"token_type":"Bearer"}`,
			wantErr: "no access_token",
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: "malformed token response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := tokenServer(t, tt.status, tt.body)
			token, err := newTestClient(server.URL).Token(context.Background())

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInfrastructure)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestClient_TokenNeverCached(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"access_token":"t"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 3; i++ {
		_, err := client.Token(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestClient_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
}

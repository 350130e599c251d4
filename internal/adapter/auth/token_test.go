package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/auth"
)

func newTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", "fittrack", time.Hour)
	require.NoError(t, err)
	return tokens
}

func TestIssueVerify(t *testing.T) {
	tokens := newTokens(t)

	raw, err := tokens.Issue("acc-1", time.Now())
	require.NoError(t, err)

	got, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got)
}

func TestVerify_Rejects(t *testing.T) {
	tokens := newTokens(t)
	other, err := auth.NewTokens("other-secret", "fittrack", time.Hour)
	require.NoError(t, err)
	foreign, err := auth.NewTokens("test-secret", "someone-else", time.Hour)
	require.NoError(t, err)

	expired, err := tokens.Issue("acc-1", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	forged, err := other.Issue("acc-1", time.Now())
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue("acc-1", time.Now())
	require.NoError(t, err)
	noSubject, err := tokens.Issue("", time.Now())
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired":      expired,
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"garbage":      "not.a.token",
	} {
		_, err := tokens.Verify(raw)
		assert.True(t, errors.Is(err, auth.ErrInvalidToken), "%s: error = %v", name, err)
	}
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := auth.NewTokens("", "fittrack", 0)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	tokens := newTokens(t)
	var seen string
	handler := tokens.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.AccountFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := tokens.Issue("acc-7", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		account string
	}{
		{"anonymous", "", http.StatusNoContent, ""},
		{"valid", "Bearer " + valid, http.StatusNoContent, "acc-7"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.account, seen)
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func authedHandler(t *testing.T) (http.Handler, *struct {
	id    string
	roles []string
}) {
	t.Helper()
	seen := &struct {
		id    string
		roles []string
	}{}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.id, _ = ActorID(r.Context())
		seen.roles = ActorRoles(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return RequireAuth(testSecret)(next), seen
}

func TestRequireAuthInjectsActor(t *testing.T) {
	h, seen := authedHandler(t)

	token := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"roles": []interface{}{"USER", "ADMIN"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", seen.id)
	assert.Equal(t, []string{"USER", "ADMIN"}, seen.roles)
}

func TestRequireAuthSingleRoleClaim(t *testing.T) {
	h, seen := authedHandler(t)

	token := signToken(t, jwt.MapClaims{
		"sub":   "user-2",
		"roles": "USER",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"USER"}, seen.roles)
}

func TestRequireAuthRejections(t *testing.T) {
	h, _ := authedHandler(t)

	expired := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	noSubject := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).
		SignedString([]byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expired},
		{"no subject", "Bearer " + noSubject},
		{"wrong signing key", "Bearer " + wrongKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgroup31/teamon-sub001/services"
	"github.com/madgroup31/teamon-sub001/store"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authedRequest(t *testing.T, token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthMiddlewareResolvesActor(t *testing.T) {
	var seen Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		require.True(t, ok)
		seen = actor
	})
	handler := AuthMiddleware(testSecret)(next)

	token := signToken(t, jwt.MapClaims{"sub": "u1", "name": "Mario Rossi"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, token))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Actor{ID: "u1", Name: "Mario Rossi"}, seen)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	handler := AuthMiddleware(testSecret)(next)

	cases := map[string]string{
		"no token":        "",
		"garbage":         "not-a-jwt",
		"wrong secret":    mustSign(t, jwt.MapClaims{"sub": "u1"}, "other-secret"),
		"missing subject": signToken(t, jwt.MapClaims{"name": "Mario"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, authedRequest(t, token))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func mustSign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", store.ErrAborted), http.StatusConflict},
		{fmt.Errorf("x: %w", services.ErrNotSender), http.StatusForbidden},
		{fmt.Errorf("x: %w", services.ErrNotMember), http.StatusForbidden},
		{fmt.Errorf("x: %w", services.ErrBadFeedback), http.StatusBadRequest},
		{fmt.Errorf("x: %w", store.ErrPartialCascade), http.StatusBadGateway},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

// Package handlers is the thin HTTP surface over the core: JSON in,
// service call, JSON out. The acting user is resolved from the bearer
// token here and passed into the services explicitly.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/madgroup31/teamon-sub001/services"
	"github.com/madgroup31/teamon-sub001/store"
)

type actorKey struct{}

// Actor identifies the authenticated user performing a request.
type Actor struct {
	ID   string
	Name string
}

// ActorFrom returns the actor placed in the context by AuthMiddleware.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// AuthMiddleware validates the bearer token and threads the acting user
// into the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
				func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
					}
					return []byte(secret), nil
				})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			sub, _ := claims["sub"].(string)
			name, _ := claims["name"].(string)
			if sub == "" {
				http.Error(w, "token missing subject", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey{}, Actor{ID: sub, Name: name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the core's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrAborted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrNotSender), errors.Is(err, services.ErrNotMember):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrBadFeedback):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrPartialCascade):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

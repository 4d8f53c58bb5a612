package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/minuted/minuted/internal/storage"
)

// KeyResolver maps a bearer token to its owner.
type KeyResolver interface {
	OwnerForAPIKey(token string) (string, error)
}

type ctxKey int

const ownerCtxKey ctxKey = iota

// BearerAuth resolves the Authorization bearer token to an owner id and
// stores it on the request context. Tokens are matched by hash, so the
// lookup leaks no timing signal about stored keys.
func BearerAuth(keys KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}

			owner, err := keys.OwnerForAPIKey(auth[len(prefix):])
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "resolving api key: %v", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerCtxKey, owner)))
		})
	}
}

// ownerFrom returns the authenticated owner id set by BearerAuth.
func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerCtxKey).(string)
	return owner
}

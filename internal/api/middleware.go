/**
 * @description
 * This file provides HTTP middleware for the API layer. It contains the
 * JWT authentication middleware used by creator-facing dashboard routes and
 * a shared-key middleware for internal service-to-service endpoints.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: For parsing and verifying bearer tokens.
 * - github.com/google/uuid: For validating account identifiers.
 */

package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

// accountIDKey is the context key under which the authenticated creator's
// account ID is stored.
const accountIDKey contextKey = "accountID"

// AccountIDFromContext retrieves the authenticated account ID set by
// AuthMiddleware. The second return value is false if the request was not
// authenticated.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey).(uuid.UUID)
	return id, ok
}

// AuthMiddleware verifies the Authorization bearer token using the shared
// HMAC secret and injects the creator's account ID into the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respondWithError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				log.Printf("level=warn component=api msg=\"rejected bearer token\" error=%v", err)
				respondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				respondWithError(w, http.StatusUnauthorized, "token missing subject")
				return
			}
			accountID, err := uuid.Parse(subject)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "token subject is not a valid account id")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalAuthMiddleware guards internal endpoints with a static shared key
// carried in the X-Internal-Api-Key header.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Internal-Api-Key")
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callbackTokenValid compares the X-Callback-Token header against the
// expected token. An empty expected token means the check is disabled.
func callbackTokenValid(r *http.Request, expected string) bool {
	if expected == "" {
		return true
	}
	provided := r.Header.Get("X-Callback-Token")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

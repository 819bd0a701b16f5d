package middleware

import (
	"net/http"
	"strings"

	"map-pin-backend/internal/services"
)

// Credentials extracts the request's token material into the context. The
// services resolve identity themselves, so the middleware never rejects a
// request; routes that need an identity fail with AuthRequired downstream.
func Credentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := services.Credentials{
			RefreshToken: r.Header.Get("X-Refresh-Token"),
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				creds.AccessToken = parts[1]
			}
		}

		ctx := services.WithCredentials(r.Context(), creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// NewIdentityMiddleware resolves the user identity that keys the realtime
// session. With no JWT secret configured the `userid` query parameter is
// trusted as-is; otherwise a session-token cookie or bearer token must be
// presented and its subject claim becomes the identity.
func NewIdentityMiddleware(logger *slog.Logger, jwtSecret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				// something went wrong with previous middlewares
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if jwtSecret == "" {
				userID := r.URL.Query().Get("userid")
				if userID == "" {
					logger.Warn("Upgrade request without userid", "ip", reqMeta.IP)
					http.Error(w, "Missing userid", http.StatusUnauthorized)
					return
				}
				reqMeta.UserID = userID
				next.ServeHTTP(w, r)
				return
			}

			tokenString := bearerToken(r)
			if tokenString == "" {
				logger.Warn("JWT token missing in request", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token with HMAC signing
			token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("Invalid JWT token presented", "ip", reqMeta.IP, slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok || claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = claims.Subject
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie("session-token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}

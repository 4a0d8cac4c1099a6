package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "appregistry/pkg/domain"
	"appregistry/pkg/requestcontext"
)

// JWTValidator validates bearer tokens issued by the identity provider.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims the registry needs from a validated token. The
// subject is the identity-provider id; it is stored on the user record but
// never used as a storage join key.
type JWTClaims struct {
	Subject string
	Email   string
}

// UserResolver lazily creates or looks up the caller by email on first
// authenticated request, attaching the identity-provider subject.
type UserResolver interface {
	ResolveByEmail(ctx context.Context, email, subject string) (id.UserID, error)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token, resolves the caller to an
// internal user record and threads the user id and email through the
// request context.
func RequireAuth(validator JWTValidator, users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if claims.Email == "" {
				logger.WarnContext(ctx, "unauthorized access - token without email claim",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Token is missing the email claim")
				return
			}

			userID, err := users.ResolveByEmail(ctx, claims.Email, claims.Subject)
			if err != nil {
				logger.ErrorContext(ctx, "failed to resolve user",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication failed")
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithUserEmail(ctx, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

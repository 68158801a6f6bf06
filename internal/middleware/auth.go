package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/httputil"
	"github.com/ideahub/session-server-go/internal/model"
	"github.com/ideahub/session-server-go/internal/repository"
	"github.com/ideahub/session-server-go/internal/util"
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware resolves a bearer token to a principal. Identity itself is
// owned by an external service; this only maps token to user row.
type AuthMiddleware struct {
	userRepo repository.UserRepository
}

func NewAuthMiddleware(userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{userRepo: userRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		tokenHash := util.HashToken(token)
		user, err := m.userRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			httputil.WriteError(w, apperrors.StoreUnavailable(err))
			return
		}

		if user == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			httputil.WriteError(w, apperrors.Unauthorized("Invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// SSE clients cannot set headers from EventSource; allow query tokens.
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}

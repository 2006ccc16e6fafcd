// Package middlewarectx содержит HTTP middleware аутентификации и проверки доступа.
//
// JWTMiddleware проверяет токен из заголовка Authorization и заново вычисляет права
// пользователя по текущему состоянию хранилища. Скоупы из токена не используются:
// гейты смотрят только на вычисленные access.Capabilities из контекста.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID ключ идентификатора пользователя в контексте.
	UserID Key = "user_id"
	// Caps ключ вычисленных прав пользователя в контексте.
	Caps Key = "capabilities"
)

// TokenParser проверяет access-токен.
type TokenParser interface {
	ParseToken(token string) (*jwt.Claims, error)
}

// AccessResolver вычисляет права пользователя.
type AccessResolver interface {
	Resolve(ctx context.Context, userID string) (*access.Capabilities, error)
}

// JWTMiddleware проверяет Bearer-токен и кладет в контекст идентификатор пользователя
// и его права. Пользователь, удаленный после выдачи токена, получает 401.
func JWTMiddleware(tokens TokenParser, resolver AccessResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				response.JSON(w, r, http.StatusUnauthorized, response.Error("missing or invalid authorization header"))
				return
			}
			claims, err := tokens.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				response.JSON(w, r, http.StatusUnauthorized, response.Error("invalid or expired token"))
				return
			}

			caps, err := resolver.Resolve(r.Context(), claims.UserID())
			if errors.Is(err, models.ErrNotFound) {
				log.Warn("token owner not found", slog.String("user_id", claims.UserID()))
				response.JSON(w, r, http.StatusUnauthorized, response.Error("invalid or expired token"))
				return
			}
			if err != nil {
				log.Error("failed to resolve access", sl.Err(err))
				response.JSON(w, r, http.StatusInternalServerError, response.Error("internal error"))
				return
			}

			ctx := context.WithValue(r.Context(), UserID, claims.UserID())
			ctx = context.WithValue(ctx, Caps, caps)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom возвращает идентификатор пользователя из контекста.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}

// CapabilitiesFrom возвращает права пользователя из контекста.
func CapabilitiesFrom(ctx context.Context) *access.Capabilities {
	caps, _ := ctx.Value(Caps).(*access.Capabilities)
	return caps
}

// WithCapabilities кладет в контекст пользователя и его права.
func WithCapabilities(ctx context.Context, caps *access.Capabilities) context.Context {
	if caps != nil && caps.User != nil {
		ctx = context.WithValue(ctx, UserID, caps.User.ID)
	}
	return context.WithValue(ctx, Caps, caps)
}

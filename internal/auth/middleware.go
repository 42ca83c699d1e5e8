package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/helios-portal/helios-portal/internal/platform/httpx"
	"github.com/helios-portal/helios-portal/internal/shared"
	"github.com/helios-portal/helios-portal/internal/staff"
)

// Middleware authenticates inbound requests from the bearer header.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAuth admits only active, verified accounts.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return m.guard(next, true)
}

// RequireSession admits any account with a live session, including ones
// still pending verification. The verification routes use this.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return m.guard(next, false)
}

func (m Middleware) guard(next http.Handler, requireActive bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		var user *staff.User
		var err error
		if requireActive {
			user, err = m.Service.Authenticate(r.Context(), token)
		} else {
			user, err = m.Service.Identify(r.Context(), token)
		}
		if err != nil {
			m.respondAuthError(w, err)
			return
		}
		ctx := shared.ContextWithIdentity(r.Context(), &shared.Identity{
			UserID:    user.ID,
			DiscordID: user.DiscordID,
			Rank:      user.Rank,
		})
		ctx = ContextWithAccessToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingToken):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
	case errors.Is(err, ErrInvalidToken):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
	case errors.Is(err, ErrSessionRevoked):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired or revoked")
	case errors.Is(err, ErrAccountNotActive):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "account not active")
	default:
		if m.Logger != nil {
			m.Logger.Error("authenticate request", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// BearerToken extracts the bearer credential from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type accessTokenContextKey struct{}

// ContextWithAccessToken stores the raw presented token; the verification
// flow needs it to rotate the session it arrived on.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey{}, token)
}

// AccessTokenFromContext extracts the raw presented token.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenContextKey{}).(string)
	return token
}

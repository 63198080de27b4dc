package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"assetmgt/auth"
	"assetmgt/models"
	"assetmgt/store"
	"assetmgt/utils"
)

// UserLookup resolves a verified email to its account.
type UserLookup interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

// Authenticate verifies the bearer token, loads the caller's account and puts
// the resulting principal in the request context. Websocket upgrades may pass
// the token as ?token= since browsers cannot set headers on them.
func Authenticate(v auth.Verifier, users UserLookup, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			id, err := v.Verify(r.Context(), token)
			if err != nil {
				lg.Debugw("token rejected", "path", r.URL.Path, "error", err)
				utils.RespondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := users.UserByEmail(r.Context(), id.Email)
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithError(w, http.StatusUnauthorized, "user is not registered")
				return
			}
			if err != nil {
				lg.Errorw("load principal", "email", id.Email, "error", err)
				utils.RespondWithError(w, http.StatusInternalServerError, "failed to load user")
				return
			}

			role, ok := auth.ParseRole(user.Role)
			if !ok {
				lg.Warnw("user has unknown role", "email", user.Email, "role", user.Role)
				utils.RespondWithError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			ctx = auth.WithPrincipal(ctx, auth.Principal{User: user, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require rejects callers whose role lacks capability. It must run after Authenticate.
func Require(capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !p.Can(capability) {
				utils.RespondWithError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

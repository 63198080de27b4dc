package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"assetmgt/utils"
)

// Recovery turns a handler panic into a 500 and keeps the server running.
func Recovery(lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					lg.Errorw("panic recovered", "path", r.URL.Path, "panic", err, "stack", string(debug.Stack()))
					utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
)

// Sessions loads the caller's session into the request context. Handlers
// that change it save it through the store.
func Sessions(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := store.Load(r)
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

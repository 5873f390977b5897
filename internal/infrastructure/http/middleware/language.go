package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
)

// LanguageCookie is the long-lived cookie holding a visitor's language.
const LanguageCookie = "preferred_language"

type languageKey struct{}

// Language returns the language resolved for the request, or the default
// outside the Language middleware.
func Language(ctx context.Context) language.Resolution {
	if res, ok := ctx.Value(languageKey{}).(language.Resolution); ok {
		return res
	}
	return language.Resolution{Code: language.Default, Source: language.SourceDefault}
}

// WithLanguage returns ctx carrying res.
func WithLanguage(ctx context.Context, res language.Resolution) context.Context {
	return context.WithValue(ctx, languageKey{}, res)
}

// ResolveLanguage picks the response language of every request and keeps
// it in the session so later requests resolve from there. Bearer-token
// callers are stateless and get no session write.
func ResolveLanguage(store *session.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := session.FromContext(ctx)

			signals := language.Signals{
				Override:       r.URL.Query().Get("lang"),
				Session:        sess.Language,
				AcceptLanguage: r.Header.Get("Accept-Language"),
			}
			if c, err := r.Cookie(LanguageCookie); err == nil {
				signals.Cookie = c.Value
			}
			if u := CurrentUser(ctx); u != nil {
				signals.UserPreference = string(u.PreferredLanguage())
			}

			res := language.Resolve(signals)

			if TokenClaims(ctx) == nil && sess.Language != string(res.Code) {
				sess.Language = string(res.Code)
				if err := store.Save(ctx, w, sess); err != nil {
					logger.Warn("Failed to store session language", zap.Error(err))
				}
			}

			next.ServeHTTP(w, r.WithContext(WithLanguage(ctx, res)))
		})
	}
}

package auth

import (
	"net/http"
	"strings"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
)

// ReviewObserver counts token validation outcomes. Outcomes are one of
// "success", "denied" and "error".
type ReviewObserver interface {
	ObserveTokenReview(outcome string)
}

type noopObserver struct{}

func (noopObserver) ObserveTokenReview(string) {}

// Middleware returns an http middleware that requires a valid cluster bearer
// token on every request. On success the verified identity is stored in the
// request context for downstream handlers.
//
// A rejected token is 401. An unreachable auth backend is 503 so callers can
// distinguish "retry later" from "this token is bad".
func Middleware(validator *Validator, observers ...ReviewObserver) func(http.Handler) http.Handler {
	var observer ReviewObserver = noopObserver{}
	if len(observers) > 0 {
		observer = observers[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				observer.ObserveTokenReview("denied")
				http.Error(w, "Missing or malformed Authorization header", http.StatusUnauthorized)
				return
			}

			identity, err := validator.Validate(r.Context(), token)
			if err != nil {
				if errors.IsAuthBackendUnavailable(err) {
					observer.ObserveTokenReview("error")
					logger.Warnw("token review backend unavailable", "error", err)
					http.Error(w, "Authentication backend unavailable", http.StatusServiceUnavailable)
					return
				}
				observer.ObserveTokenReview("denied")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			observer.ObserveTokenReview("success")
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

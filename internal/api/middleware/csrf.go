package middleware

import (
	"log/slog"
	"net/http"

	"github.com/membergate/membergate/internal/api/apierr"
	"github.com/membergate/membergate/internal/services/csrf"
)

const (
	// CSRFCookieName is the cookie half of the double-submit pair.
	CSRFCookieName = "csrf_token"
	// CSRFHeaderName is the header half; clients echo the cookie value here.
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF creates double-submit CSRF middleware. Safe methods pass through but
// get a guard cookie issued if one is absent. Mutating requests carrying an
// ambient cookie, whether the session cookie or the guard cookie itself,
// must echo the guard cookie value in the CSRF header; a cross-site page can
// make the browser attach those cookies but cannot read them to forge the
// header. Requests carrying neither cookie, such as bearer-token clients or
// a first-contact signup, have nothing a forged request could ride on and
// skip the check. Paths in exempt skip it entirely, which is how login
// bootstraps before the client holds a cookie.
func CSRF(logger *slog.Logger, guard *csrf.Guard, exempt ...string) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]bool, len(exempt))
	for _, path := range exempt {
		exemptPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, cookieErr := r.Cookie(CSRFCookieName)
			_, sessionErr := r.Cookie(SessionCookieName)
			ambient := cookieErr == nil || sessionErr == nil

			if isSafeMethod(r.Method) || exemptPaths[r.URL.Path] || !ambient {
				if cookieErr != nil {
					if err := issueCookie(w, guard); err != nil {
						logger.Error("failed to issue csrf cookie",
							slog.String("error", err.Error()),
						)
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			cookieValue := ""
			if cookieErr == nil {
				cookieValue = cookie.Value
			}
			if err := guard.Verify(r.Header.Get(CSRFHeaderName), cookieValue); err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IssueCSRFCookie sets a fresh guard cookie on the response. Handlers call
// this after login so a new principal never keeps an old token.
func IssueCSRFCookie(w http.ResponseWriter, guard *csrf.Guard) error {
	return issueCookie(w, guard)
}

func issueCookie(w http.ResponseWriter, guard *csrf.Guard) error {
	token, err := guard.Issue()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

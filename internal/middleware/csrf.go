package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

const (
	csrfCookieName = "csrf_token"
	// CSRFHeader carries the token on unsafe requests; htmx sends it via hx-headers.
	CSRFHeader = "X-CSRF-Token"
)

// CSRF issues a CSRF cookie and verifies modifying requests carry the token in
// header and cookie (double submit). It must run after Middleware.
func (s *Sessions) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd := SessionFromContext(r.Context())
		token := sd.CSRFToken
		if token == "" {
			token = newCSRFToken()
			sd.CSRFToken = token
			sd.MarkDirty()
		}

		if c, err := r.Cookie(csrfCookieName); err != nil || c.Value != token {
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: false,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(24 * time.Hour),
			})
		}

		if !isSafeMethod(r.Method) {
			if hdr := r.Header.Get(CSRFHeader); hdr == "" || hdr != token {
				WriteError(w, r, http.StatusForbidden, "invalid CSRF token")
				return
			}
			if c, err := r.Cookie(csrfCookieName); err != nil || c.Value != token {
				WriteError(w, r, http.StatusForbidden, "invalid CSRF token")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// CSRFToken returns the token handlers embed in rendered pages.
func CSRFToken(r *http.Request) string {
	return SessionFromContext(r.Context()).CSRFToken
}

func newCSRFToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

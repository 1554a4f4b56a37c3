package middleware

import (
	"net/http"
	"net/url"

	"finitefield.org/consultants-web/internal/nav"
)

// HTMXInfo is what an htmx request reports about itself through its HX-*
// request headers.
type HTMXInfo struct {
	Request bool
	Boosted bool
	Target  string
	// CurrentPath is the path of the page that issued the request, taken from
	// HX-Current-URL. Empty when the header is missing or points off-site.
	CurrentPath string
}

// ParseHTMX reads the HX-* headers of r. The current URL only counts when it
// belongs to the host serving r.
func ParseHTMX(r *http.Request) HTMXInfo {
	info := HTMXInfo{
		Request: r.Header.Get("HX-Request") == "true",
		Boosted: r.Header.Get("HX-Boosted") == "true",
		Target:  r.Header.Get("HX-Target"),
	}
	if raw := r.Header.Get("HX-Current-URL"); raw != "" {
		if u, err := url.Parse(raw); err == nil && (u.Host == "" || u.Host == r.Host) && nav.IsLocalPath(u.Path) {
			info.CurrentPath = nav.Clean(u.Path)
		}
	}
	return info
}

// HTMX stores the parsed HX-* headers in the request context so handlers can
// answer with fragments and HX-* response headers instead of full pages.
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithHTMX(r.Context(), ParseHTMX(r))))
	})
}

// CurrentPath returns the path of the page hosting the request's target:
// HX-Current-URL for htmx requests, the request path otherwise.
func CurrentPath(r *http.Request) string {
	info, ok := htmxFromContext(r.Context())
	if !ok {
		info = ParseHTMX(r)
	}
	if info.CurrentPath != "" {
		return info.CurrentPath
	}
	return nav.Clean(r.URL.Path)
}

package handlers

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"finitefield.org/consultants-web/internal/middleware"
	"finitefield.org/consultants-web/internal/nav"
	"finitefield.org/consultants-web/internal/observability"
)

// HeaderFragment renders the header alone. With wait=1 it first blocks until
// the mount's navigation fetch settles, the client goes away, or the wait
// timeout passes.
func (s *Site) HeaderFragment(w http.ResponseWriter, r *http.Request) {
	c, err := s.component(r)
	if err != nil {
		observability.FromContext(r.Context()).Error("attach header", zap.Error(err))
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "header unavailable")
		return
	}
	if r.URL.Query().Get("wait") == "1" {
		timer := time.NewTimer(s.waitTimeout)
		defer timer.Stop()
		select {
		case <-c.Settled():
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}
	s.renderHeader(r.Context(), w, c, middleware.CurrentPath(r))
}

// ToggleMenu flips the mobile menu and returns the updated header.
func (s *Site) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	c, err := s.component(r)
	if err != nil {
		observability.FromContext(r.Context()).Error("attach header", zap.Error(err))
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "header unavailable")
		return
	}
	c.ToggleMenu()
	if !middleware.IsHTMX(r.Context()) {
		http.Redirect(w, r, refererPath(r), http.StatusSeeOther)
		return
	}
	s.renderHeader(r.Context(), w, c, middleware.CurrentPath(r))
}

// Go activates a header link: mobile panel links collapse the menu, then the
// client is sent to the link target.
func (s *Site) Go(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := q.Get("to")
	if !nav.IsLocalPath(to) {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid navigation target")
		return
	}
	c, err := s.component(r)
	if err != nil {
		observability.FromContext(r.Context()).Error("attach header", zap.Error(err))
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "header unavailable")
		return
	}
	c.ActivateLink(responseNavigator{w: w, r: r}, to, q.Get("from") == "mobile")
}

// responseNavigator moves the browser by answering the current request.
type responseNavigator struct {
	w http.ResponseWriter
	r *http.Request
}

func (n responseNavigator) Navigate(path string) {
	if middleware.IsHTMX(n.r.Context()) {
		n.w.Header().Set("HX-Redirect", path)
		n.w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(n.w, n.r, path, http.StatusSeeOther)
}

func refererPath(r *http.Request) string {
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && (u.Host == "" || u.Host == r.Host) && nav.IsLocalPath(u.Path) {
			return u.Path
		}
	}
	return nav.Home.Path
}

// Package handlers serves the site pages and the header fragment endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	g "maragu.dev/gomponents"

	"finitefield.org/consultants-web/internal/content"
	"finitefield.org/consultants-web/internal/format"
	"finitefield.org/consultants-web/internal/header"
	"finitefield.org/consultants-web/internal/middleware"
	"finitefield.org/consultants-web/internal/mount"
	"finitefield.org/consultants-web/internal/nav"
	"finitefield.org/consultants-web/internal/observability"
)

const defaultWaitTimeout = 10 * time.Second

// Options configures Site. Posts backs the posts index; when nil, Reader is
// used if it lists posts.
type Options struct {
	Reader      content.Reader
	Posts       content.PostLister
	Registry    *mount.Registry
	Markdown    *format.Markdown
	SiteName    string
	WaitTimeout time.Duration
}

// Site holds the dependencies of the page and header handlers.
type Site struct {
	reader      content.Reader
	posts       content.PostLister
	registry    *mount.Registry
	markdown    *format.Markdown
	siteName    string
	waitTimeout time.Duration
}

// New validates opts and builds the handler set.
func New(opts Options) (*Site, error) {
	if opts.Reader == nil {
		return nil, errors.New("handlers: content reader is required")
	}
	if opts.Posts == nil {
		lister, ok := opts.Reader.(content.PostLister)
		if !ok {
			return nil, errors.New("handlers: post lister is required")
		}
		opts.Posts = lister
	}
	if opts.Registry == nil {
		return nil, errors.New("handlers: mount registry is required")
	}
	if opts.Markdown == nil {
		opts.Markdown = format.NewMarkdown()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	return &Site{
		reader:      opts.Reader,
		posts:       opts.Posts,
		registry:    opts.Registry,
		markdown:    opts.Markdown,
		siteName:    opts.SiteName,
		waitTimeout: opts.WaitTimeout,
	}, nil
}

// Routes registers every page and header endpoint on r.
func (s *Site) Routes(r chi.Router) {
	r.Get("/", s.Home)
	r.Get(header.FragmentPath, s.HeaderFragment)
	r.Post(header.MenuPath, s.ToggleMenu)
	r.Get(header.GoPath, s.Go)
	r.Get(nav.AllPosts.Path, s.Posts)
	r.Get("/"+nav.RegionsSegment+"/{slug}", s.Region)
	r.Get("/{slug}", s.Page)
	r.NotFound(s.NotFound)
}

// component attaches the caller's header mount, creating it on first visit,
// and records its id in the session.
func (s *Site) component(r *http.Request) (*header.Component, error) {
	sd := middleware.SessionFromContext(r.Context())
	c, id, err := s.registry.Attach(r.Context(), sd.MountID)
	if err != nil {
		return nil, err
	}
	sd.SetMountID(id)
	return c, nil
}

func (s *Site) renderPage(w http.ResponseWriter, r *http.Request, status int, title string, meta Meta, body ...g.Node) {
	logger := observability.FromContext(r.Context())
	c, err := s.component(r)
	if err != nil {
		logger.Error("attach header", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	page := PageData{
		Title:     title,
		SiteName:  s.siteName,
		CSRFToken: middleware.CSRFToken(r),
		Meta:      meta,
		Header:    c.ViewModel(r.URL.Path),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := layout(page, body...).Render(w); err != nil {
		logger.Warn("render page", zap.Error(err))
	}
}

func (s *Site) renderHeader(ctx context.Context, w http.ResponseWriter, c *header.Component, currentPath string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := header.View(c.ViewModel(currentPath)).Render(w); err != nil {
		observability.FromContext(ctx).Warn("render header", zap.Error(err))
	}
}

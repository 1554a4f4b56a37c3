package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"finitefield.org/consultants-web/internal/content"
	"finitefield.org/consultants-web/internal/nav"
	"finitefield.org/consultants-web/internal/observability"
)

// Home renders the landing page.
func (s *Site) Home(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, s.siteName, Meta{Canonical: nav.Home.Path},
		html.Section(
			html.Class("hero"),
			html.H1(g.Text(s.siteName)),
			html.P(g.Text("Find your regional consultant, upcoming events, and resources.")),
		),
	)
}

// Region renders one region's contact details.
func (s *Site) Region(w http.ResponseWriter, r *http.Request) {
	slug := content.NormalizeSlug(chi.URLParam(r, "slug"))
	if slug == "" {
		s.NotFound(w, r)
		return
	}
	region, err := s.reader.RegionBySlug(r.Context(), slug)
	if err != nil {
		s.contentError(w, r, err, "region", slug)
		return
	}
	s.renderPage(w, r, http.StatusOK, region.Name,
		Meta{Description: region.Description, Canonical: nav.RegionPath(region.Slug)},
		regionBody(region),
	)
}

// Page renders a CMS page addressed by its root-level slug.
func (s *Site) Page(w http.ResponseWriter, r *http.Request) {
	slug := content.NormalizeSlug(chi.URLParam(r, "slug"))
	if slug == "" {
		s.NotFound(w, r)
		return
	}
	page, err := s.reader.PageBySlug(r.Context(), slug)
	if err != nil {
		s.contentError(w, r, err, "page", slug)
		return
	}
	body, err := s.markdown.HTML(page.Content)
	if err != nil {
		observability.FromContext(r.Context()).Error("render page body", zap.String("slug", slug), zap.Error(err))
		s.errorPage(w, r)
		return
	}
	s.renderPage(w, r, http.StatusOK, page.Title,
		Meta{Canonical: nav.PagePath(page.Slug), OGType: "article"},
		html.Article(
			html.Class("page"),
			g.Attr("data-key", page.ID),
			html.H1(g.Text(page.Title)),
			html.Div(html.Class("page__body"), g.Raw(body)),
		),
	)
}

const postExcerptRunes = 240

var postTypeLabels = map[string]string{
	content.PostJob:          "Job Postings",
	content.PostEvent:        "Events",
	content.PostAnnouncement: "Announcements",
	content.PostResource:     "Resources",
}

// Posts renders the posts index, newest first. ?type= narrows it to one post
// type; an unknown type is a 404.
func (s *Site) Posts(w http.ResponseWriter, r *http.Request) {
	postType := strings.TrimSpace(r.URL.Query().Get("type"))
	if postType != "" && !content.ValidPostType(postType) {
		s.NotFound(w, r)
		return
	}
	posts, err := s.posts.ListPosts(r.Context(), postType)
	if err != nil {
		observability.FromContext(r.Context()).Error("list posts", zap.String("type", postType), zap.Error(err))
		s.errorPage(w, r)
		return
	}
	title := "All Posts"
	canonical := nav.AllPosts.Path
	if postType != "" {
		title = postTypeLabels[postType]
		canonical += "?type=" + url.QueryEscape(postType)
	}
	s.renderPage(w, r, http.StatusOK, title, Meta{Canonical: canonical}, postsBody(title, postType, posts))
}

func postsBody(title, active string, posts []content.Post) g.Node {
	filters := []g.Node{postFilter("All", "", active)}
	for _, pt := range content.PostTypes {
		filters = append(filters, postFilter(postTypeLabels[pt], pt, active))
	}
	return html.Section(
		html.Class("posts"),
		html.H1(g.Text(title)),
		html.Nav(html.Class("posts__filters"), g.Attr("aria-label", "Post types"), g.Group(filters)),
		g.If(len(posts) == 0, html.P(html.Class("posts__empty"), g.Text("No posts yet."))),
		g.If(len(posts) > 0, html.Ul(
			html.Class("posts__list"),
			g.Map(posts, func(p content.Post) g.Node {
				return html.Li(
					html.Class("post"),
					g.Attr("data-key", p.ID),
					g.Attr("data-type", p.Type),
					html.H2(g.Text(p.Title)),
					html.P(
						html.Class("post__meta"),
						g.Text(postTypeLabels[p.Type]),
						g.If(!p.DatePosted.IsZero(), html.Time(
							html.DateTime(p.DatePosted.Format("2006-01-02")),
							g.Text(p.DatePosted.Format("January 2, 2006")),
						)),
					),
					g.If(p.Content != "", html.P(html.Class("post__excerpt"), g.Text(excerpt(p.Content)))),
					g.If(p.ExternalLink != "", html.A(
						html.Class("post__link"),
						html.Href(p.ExternalLink),
						html.Target("_blank"),
						html.Rel("noopener noreferrer"),
						g.Text("Learn more"),
					)),
				)
			}),
		)),
	)
}

func postFilter(label, postType, active string) g.Node {
	href := nav.AllPosts.Path
	if postType != "" {
		href += "?type=" + url.QueryEscape(postType)
	}
	return html.A(
		html.Href(href),
		g.If(postType == active, g.Attr("aria-current", "page")),
		g.Text(label),
	)
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= postExcerptRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:postExcerptRunes])) + "…"
}

// NotFound renders the 404 page with the header intact.
func (s *Site) NotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusNotFound, "Not found", Meta{},
		html.Section(
			html.Class("not-found"),
			html.H1(g.Text("Page not found")),
			html.P(g.Text("The page you were looking for does not exist.")),
			html.A(html.Href("/"), g.Text("Back to home")),
		),
	)
}

func (s *Site) errorPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusInternalServerError, "Error", Meta{},
		html.Section(
			html.Class("error"),
			html.H1(g.Text("Something went wrong")),
			html.P(g.Text("Please try again in a moment.")),
		),
	)
}

func (s *Site) contentError(w http.ResponseWriter, r *http.Request, err error, kind, slug string) {
	if errors.Is(err, content.ErrNotFound) {
		s.NotFound(w, r)
		return
	}
	observability.FromContext(r.Context()).Error("load "+kind,
		zap.String("slug", slug),
		zap.Error(err),
	)
	s.errorPage(w, r)
}

func regionBody(region content.Region) g.Node {
	return html.Article(
		html.Class("region"),
		g.Attr("data-key", region.ID),
		html.H1(g.Text(region.Name)),
		g.If(region.Description != "", html.P(html.Class("region__description"), g.Text(region.Description))),
		html.Dl(
			html.Class("region__contact"),
			g.If(region.ContactEmail != "", g.Group([]g.Node{
				html.Dt(g.Text("Email")),
				html.Dd(html.A(html.Href("mailto:"+region.ContactEmail), g.Text(region.ContactEmail))),
			})),
			g.If(region.ContactPhone != "", g.Group([]g.Node{
				html.Dt(g.Text("Phone")),
				html.Dd(html.A(html.Href("tel:"+region.ContactPhone), g.Text(region.ContactPhone))),
			})),
			g.If(region.OfficeHoursInfo != "", g.Group([]g.Node{
				html.Dt(g.Text("Office hours")),
				html.Dd(g.Text(region.OfficeHoursInfo)),
			})),
		),
		g.If(region.SchedulingLink != "", html.A(
			html.Class("region__schedule"),
			html.Href(region.SchedulingLink),
			html.Target("_blank"),
			html.Rel("noopener noreferrer"),
			g.Text("Schedule a consultation"),
		)),
	)
}

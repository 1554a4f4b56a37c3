package handlers

import (
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	jsoniter "github.com/json-iterator/go"

	"finitefield.org/consultants-web/internal/header"
	"finitefield.org/consultants-web/internal/middleware"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.3/dist/htmx.min.js"

// Meta carries the page's search and share metadata.
type Meta struct {
	Description string
	Canonical   string
	OGType      string
}

// PageData is the view model shared by every full page.
type PageData struct {
	Title     string
	SiteName  string
	CSRFToken string
	Meta      Meta
	Header    header.ViewModel
}

func layout(p PageData, body ...g.Node) g.Node {
	title := p.SiteName
	if p.Title != "" && p.Title != p.SiteName {
		title = p.Title + " | " + p.SiteName
	}
	return html.Doctype(
		html.HTML(
			html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(g.Text(title)),
				g.If(p.Meta.Description != "", html.Meta(html.Name("description"), html.Content(p.Meta.Description))),
				g.If(p.Meta.Canonical != "", html.Link(html.Rel("canonical"), html.Href(p.Meta.Canonical))),
				html.Meta(g.Attr("property", "og:title"), html.Content(title)),
				html.Meta(g.Attr("property", "og:type"), html.Content(ogType(p.Meta.OGType))),
				html.Meta(g.Attr("property", "og:site_name"), html.Content(p.SiteName)),
				html.Link(html.Rel("stylesheet"), html.Href("/assets/css/site.css")),
				html.Script(html.Src(htmxSrc), html.Defer()),
			),
			html.Body(
				g.If(p.CSRFToken != "", g.Attr("hx-headers", csrfHeaders(p.CSRFToken))),
				header.View(p.Header),
				html.Main(
					html.Class("site-main"),
					g.Group(body),
				),
			),
		),
	)
}

func ogType(t string) string {
	if t == "" {
		return "website"
	}
	return t
}

func csrfHeaders(token string) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]string{middleware.CSRFHeader: token})
	if err != nil {
		return ""
	}
	return string(b)
}

package header

import (
	"net/url"

	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"finitefield.org/consultants-web/internal/content"
	"finitefield.org/consultants-web/internal/nav"
)

// Endpoints served for the header fragment.
const (
	FragmentPath = "/_header"
	MenuPath     = "/_header/menu"
	GoPath       = "/_header/go"

	// RootID is the DOM id of the header element that htmx swaps.
	RootID = "site-header"
	// MobilePanelID is the DOM id of the mobile navigation panel.
	MobilePanelID = "mobile-menu"
)

// ViewModel is the immutable input to View.
type ViewModel struct {
	Snapshot    Snapshot
	Brand       Brand
	MenuOpen    bool
	Settled     bool
	CurrentPath string
}

// View renders the header. It depends only on vm.
func View(vm ViewModel) g.Node {
	return html.Header(
		html.ID(RootID),
		html.Class("site-header"),
		g.If(!vm.Settled, g.Group([]g.Node{
			g.Attr("hx-get", FragmentPath+"?wait=1"),
			g.Attr("hx-trigger", "load"),
			g.Attr("hx-swap", "outerHTML"),
		})),
		html.Div(
			html.Class("site-header__bar"),
			brandLink(vm.Brand),
			desktopNav(vm),
			menuButton(vm.MenuOpen),
		),
		g.If(vm.MenuOpen, mobilePanel(vm)),
	)
}

func brandLink(b Brand) g.Node {
	label := b.Name
	if label == "" {
		label = b.Mark
	}
	var mark g.Node
	if b.LogoURL != "" {
		mark = html.Img(html.Src(b.LogoURL), html.Alt(label), html.Class("site-header__logo"))
	} else {
		mark = html.Span(html.Class("site-header__mark"), g.Text(b.Mark))
	}
	return html.A(
		html.Href(nav.Home.Path),
		html.Class("site-header__brand"),
		g.Attr("aria-label", label),
		mark,
	)
}

func desktopNav(vm ViewModel) g.Node {
	return html.Nav(
		html.Class("site-header__nav"),
		g.Attr("aria-label", "Main"),
		html.Ul(
			html.Class("site-header__links"),
			html.Li(staticLink(nav.Home, vm.CurrentPath, "")),
			html.Li(
				html.Class("site-header__dropdown"),
				html.Button(
					html.Type("button"),
					html.Class("site-header__dropdown-toggle"),
					g.Attr("aria-haspopup", "true"),
					g.Text("Regions"),
				),
				html.Ul(
					html.Class("site-header__dropdown-menu"),
					g.Map(vm.Snapshot.Regions, func(r content.Region) g.Node {
						return html.Li(entryLink(r.ID, nav.RegionPath(r.Slug), r.Name, vm.CurrentPath, ""))
					}),
				),
			),
			g.Map(vm.Snapshot.Pages, func(p content.Page) g.Node {
				return html.Li(entryLink(p.ID, nav.PagePath(p.Slug), p.Title, vm.CurrentPath, ""))
			}),
			html.Li(staticLink(nav.AllPosts, vm.CurrentPath, "")),
		),
	)
}

func menuButton(open bool) g.Node {
	label, icon := "Open menu", hamburgerIcon
	if open {
		label, icon = "Close menu", closeIcon
	}
	return html.Button(
		html.Type("button"),
		html.Class("site-header__menu-button"),
		g.Attr("hx-post", MenuPath),
		g.Attr("hx-target", "#"+RootID),
		g.Attr("hx-swap", "outerHTML"),
		g.Attr("aria-controls", MobilePanelID),
		g.Attr("aria-expanded", boolAttr(open)),
		g.Attr("aria-label", label),
		g.Raw(icon),
	)
}

func mobilePanel(vm ViewModel) g.Node {
	return html.Nav(
		html.ID(MobilePanelID),
		html.Class("site-header__mobile"),
		g.Attr("aria-label", "Mobile"),
		html.Ul(
			html.Li(staticLink(nav.Home, vm.CurrentPath, GoPath)),
			html.Li(
				html.Span(html.Class("site-header__mobile-heading"), g.Text("Regions")),
				html.Ul(
					g.Map(vm.Snapshot.Regions, func(r content.Region) g.Node {
						return html.Li(entryLink(r.ID, nav.RegionPath(r.Slug), r.Name, vm.CurrentPath, GoPath))
					}),
				),
			),
			g.Map(vm.Snapshot.Pages, func(p content.Page) g.Node {
				return html.Li(entryLink(p.ID, nav.PagePath(p.Slug), p.Title, vm.CurrentPath, GoPath))
			}),
			html.Li(staticLink(nav.AllPosts, vm.CurrentPath, GoPath)),
		),
	)
}

func staticLink(item nav.Item, current, via string) g.Node {
	return entryLink(item.Key, item.Path, item.Label, current, via)
}

// entryLink renders one navigation link. When via is set the link goes
// through that close-and-navigate endpoint instead of straight to target.
func entryLink(key, target, label, current, via string) g.Node {
	href := target
	if via != "" {
		q := url.Values{}
		q.Set("to", target)
		q.Set("from", "mobile")
		href = via + "?" + q.Encode()
	}
	return html.A(
		html.Href(href),
		g.Attr("data-key", key),
		g.Attr("data-path", target),
		g.If(nav.IsActive(target, current), g.Attr("aria-current", "page")),
		g.Text(label),
	)
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

const hamburgerIcon = `<svg class="icon icon-menu" xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" aria-hidden="true"><line x1="4" y1="6" x2="20" y2="6"/><line x1="4" y1="12" x2="20" y2="12"/><line x1="4" y1="18" x2="20" y2="18"/></svg>`

const closeIcon = `<svg class="icon icon-close" xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" aria-hidden="true"><line x1="6" y1="6" x2="18" y2="18"/><line x1="18" y1="6" x2="6" y2="18"/></svg>`

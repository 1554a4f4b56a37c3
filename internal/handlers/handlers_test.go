package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"finitefield.org/consultants-web/internal/content"
	"finitefield.org/consultants-web/internal/content/filestore"
	"finitefield.org/consultants-web/internal/header"
	"finitefield.org/consultants-web/internal/middleware"
	"finitefield.org/consultants-web/internal/mount"
)

const fixture = `
regions:
  - id: r2
    name: South
    slug: south
  - id: r1
    name: North
    slug: north
    description: Serving the northern counties.
    contact_email: north@example.org
    scheduling_link: https://calendly.example/north
pages:
  - id: p1
    title: About
    slug: about
    show_on_navigation: true
    content: "# About us\n\nWe are **here**.<script>alert(1)</script>"
  - id: p2
    title: Hidden
    slug: hidden
    content: Not in the header.
posts:
  - id: post-1
    title: Spring Workshop
    slug: spring-workshop
    type: event
    content: Join us in April.
    date_posted: 2024-03-01T09:00:00Z
  - id: post-2
    title: Regional Coordinator
    slug: regional-coordinator
    type: job
    content: We are hiring.
    external_link: https://jobs.example.org/42
    date_posted: 2024-04-15T09:00:00Z
`

// failingService lets page lookups succeed while navigation queries fail.
type failingService struct {
	content.Store
}

func (failingService) ListRegions(context.Context) ([]content.Region, error) {
	return nil, errors.New("store unavailable")
}

func (failingService) ListNavigablePages(context.Context) ([]content.Page, error) {
	return nil, errors.New("store unavailable")
}

type client struct {
	t    *testing.T
	srv  *httptest.Server
	http *http.Client
}

func newSite(t *testing.T, svc content.Service, reader content.Reader) *client {
	t.Helper()

	factory := func(id string) (*header.Component, error) {
		return header.New(svc, header.WithID(id), header.WithBrand("SLPC", "Ohio Consultants"))
	}
	registry, err := mount.NewRegistry(factory, mount.Config{IdleTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	site, err := New(Options{Reader: reader, Registry: registry, SiteName: "Ohio Consultants", WaitTimeout: 2 * time.Second})
	require.NoError(t, err)

	sessions, err := middleware.NewSessions("test-key", false, nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.HTMX)
	r.Use(sessions.Middleware)
	r.Use(sessions.CSRF)
	site.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{
		t:   t,
		srv: srv,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func newFileSite(t *testing.T) *client {
	t.Helper()
	store, err := filestore.Parse([]byte(fixture))
	require.NoError(t, err)
	return newSite(t, store, store)
}

func (c *client) do(method, path string, htmx bool) (*http.Response, *goquery.Document) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, nil)
	require.NoError(c.t, err)
	if htmx {
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Current-URL", c.srv.URL+"/")
	}
	if method != http.MethodGet {
		req.Header.Set(middleware.CSRFHeader, c.csrfToken())
	}
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	doc, err := goquery.NewDocumentFromReader(res.Body)
	require.NoError(c.t, err)
	return res, doc
}

func (c *client) csrfToken() string {
	u, err := url.Parse(c.srv.URL)
	require.NoError(c.t, err)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "csrf_token" {
			return ck.Value
		}
	}
	return ""
}

func headerHrefs(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find("#" + header.RootID + " .site-header__nav a").Each(func(_ int, s *goquery.Selection) {
		hrefs = append(hrefs, s.AttrOr("href", ""))
	})
	return hrefs
}

func TestHomeRendersStaticLinksImmediately(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	res, doc := c.do(http.MethodGet, "/", false)
	require.Equal(t, http.StatusOK, res.StatusCode)

	hrefs := headerHrefs(doc)
	require.Equal(t, "/", hrefs[0])
	require.Equal(t, "/posts", hrefs[len(hrefs)-1])
	require.Contains(t, doc.Find("body").AttrOr("hx-headers", ""), middleware.CSRFHeader)
	require.Equal(t, "Ohio Consultants", doc.Find("title").Text())
}

func TestHeaderFragmentWaitsForNavigation(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	c.do(http.MethodGet, "/", false)

	res, doc := c.do(http.MethodGet, header.FragmentPath+"?wait=1", true)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []string{"/", "/regions/north", "/regions/south", "/about", "/posts"}, headerHrefs(doc))
	_, pending := doc.Find("#" + header.RootID).Attr("hx-get")
	require.False(t, pending)
}

func TestSessionsGetSeparateMenus(t *testing.T) {
	t.Parallel()

	a := newFileSite(t)
	a.do(http.MethodGet, "/", false)
	_, doc := a.do(http.MethodPost, header.MenuPath, true)
	require.Equal(t, 1, doc.Find("#"+header.MobilePanelID).Length())

	// a second browser against the same server starts closed
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	b := &client{t: t, srv: a.srv, http: &http.Client{Jar: jar, CheckRedirect: a.http.CheckRedirect}}
	b.do(http.MethodGet, "/", false)
	_, doc = b.do(http.MethodGet, header.FragmentPath, true)
	require.Equal(t, 0, doc.Find("#"+header.MobilePanelID).Length())
}

func TestMenuToggleAndCloseOnNavigate(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	c.do(http.MethodGet, "/", false)
	c.do(http.MethodGet, header.FragmentPath+"?wait=1", true)

	_, doc := c.do(http.MethodPost, header.MenuPath, true)
	panel := doc.Find("#" + header.MobilePanelID)
	require.Equal(t, 1, panel.Length())
	link := panel.Find(`a[data-key="r1"]`)
	require.Equal(t, "/regions/north", link.AttrOr("data-path", ""))

	href := link.AttrOr("href", "")
	res, _ := c.do(http.MethodGet, href, true)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "/regions/north", res.Header.Get("HX-Redirect"))

	_, doc = c.do(http.MethodGet, header.FragmentPath, true)
	require.Equal(t, 0, doc.Find("#"+header.MobilePanelID).Length())
	require.Equal(t, "false", doc.Find(".site-header__menu-button").AttrOr("aria-expanded", ""))
}

func TestDesktopGoLeavesMenuOpen(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	c.do(http.MethodGet, "/", false)
	c.do(http.MethodPost, header.MenuPath, true)

	res, _ := c.do(http.MethodGet, header.GoPath+"?to=%2Fabout", false)
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/about", res.Header.Get("Location"))

	_, doc := c.do(http.MethodGet, header.FragmentPath, true)
	require.Equal(t, 1, doc.Find("#"+header.MobilePanelID).Length())
}

func TestGoRejectsForeignTargets(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	targets := []string{
		"https://evil.example",
		"//evil.example",
		"",
		"/\t/evil.example",
		"/\t\\evil.example",
		"/\x0b/evil.example",
	}
	for _, target := range targets {
		for _, htmx := range []bool{false, true} {
			res, _ := c.do(http.MethodGet, header.GoPath+"?to="+url.QueryEscape(target), htmx)
			require.Equal(t, http.StatusBadRequest, res.StatusCode, "target %q htmx=%v", target, htmx)
			require.Empty(t, res.Header.Get("Location"))
			require.Empty(t, res.Header.Get("HX-Redirect"))
		}
	}
}

func TestMenuToggleRequiresCSRF(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	c.do(http.MethodGet, "/", false)

	req, err := http.NewRequest(http.MethodPost, c.srv.URL+header.MenuPath, nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	res, err := c.http.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestRegionPage(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	res, doc := c.do(http.MethodGet, "/regions/north", false)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "North", doc.Find("article.region h1").Text())
	require.Equal(t, "mailto:north@example.org", doc.Find(".region__contact a").AttrOr("href", ""))
	require.Equal(t, "https://calendly.example/north", doc.Find(".region__schedule").AttrOr("href", ""))
	require.Equal(t, "Serving the northern counties.", doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	require.Equal(t, "/regions/north", doc.Find(`link[rel="canonical"]`).AttrOr("href", ""))
	require.Equal(t, "North | Ohio Consultants", doc.Find("title").Text())

	res, doc = c.do(http.MethodGet, "/regions/nowhere", false)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, 1, doc.Find("#"+header.RootID).Length())
}

func TestContentPage(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	res, doc := c.do(http.MethodGet, "/about", false)
	require.Equal(t, http.StatusOK, res.StatusCode)
	body := doc.Find(".page__body")
	require.Equal(t, "About us", body.Find("h1").Text())
	require.Equal(t, "here", body.Find("strong").Text())
	require.Equal(t, 0, body.Find("script").Length())

	res, _ = c.do(http.MethodGet, "/hidden", false)
	require.Equal(t, http.StatusOK, res.StatusCode, "pages off the header are still reachable")

	res, _ = c.do(http.MethodGet, "/missing", false)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMixedCaseSlugLinksResolve(t *testing.T) {
	t.Parallel()

	store, err := filestore.Parse([]byte(`
regions:
  - id: r3
    name: North East
    slug: North-East
pages:
  - id: p4
    title: Our Team
    slug: Our-Team
    show_on_navigation: true
    content: Meet the team.
`))
	require.NoError(t, err)
	c := newSite(t, store, store)
	c.do(http.MethodGet, "/", false)

	_, doc := c.do(http.MethodGet, header.FragmentPath+"?wait=1", true)
	hrefs := headerHrefs(doc)
	require.Equal(t, []string{"/", "/regions/North-East", "/Our-Team", "/posts"}, hrefs)

	for _, href := range hrefs[1:3] {
		res, _ := c.do(http.MethodGet, href, false)
		require.Equal(t, http.StatusOK, res.StatusCode, href)
	}
}

func TestAllPostsLinkResolves(t *testing.T) {
	t.Parallel()

	c := newFileSite(t)
	res, doc := c.do(http.MethodGet, "/posts", false)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "All Posts | Ohio Consultants", doc.Find("title").Text())

	var keys []string
	doc.Find(".posts__list .post").Each(func(_ int, s *goquery.Selection) {
		keys = append(keys, s.AttrOr("data-key", ""))
	})
	require.Equal(t, []string{"post-2", "post-1"}, keys)
	require.Equal(t, "https://jobs.example.org/42", doc.Find(`.post[data-key="post-2"] .post__link`).AttrOr("href", ""))
	require.Equal(t, "2024-04-15", doc.Find(`.post[data-key="post-2"] time`).AttrOr("datetime", ""))
	require.Equal(t, "page", doc.Find(`#`+header.RootID+` .site-header__nav a[href="/posts"]`).AttrOr("aria-current", ""))

	res, doc = c.do(http.MethodGet, "/posts?type=job", false)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, 1, doc.Find(".posts__list .post").Length())
	require.Equal(t, "page", doc.Find(`.posts__filters a[href="/posts?type=job"]`).AttrOr("aria-current", ""))

	res, doc = c.do(http.MethodGet, "/posts?type=announcement", false)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, 1, doc.Find(".posts__empty").Length())

	res, _ = c.do(http.MethodGet, "/posts?type=newsletter", false)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestExcerptTruncates(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b", excerpt("  a\n\tb "))
	long := strings.Repeat("x", postExcerptRunes+10)
	got := excerpt(long)
	require.True(t, strings.HasSuffix(got, "…"))
	require.Equal(t, postExcerptRunes+1, len([]rune(got)))
}

func TestNavigationFailureKeepsStaticLinks(t *testing.T) {
	t.Parallel()

	store, err := filestore.Parse([]byte(fixture))
	require.NoError(t, err)
	c := newSite(t, failingService{Store: store}, store)

	res, _ := c.do(http.MethodGet, "/about", false)
	require.Equal(t, http.StatusOK, res.StatusCode)

	_, doc := c.do(http.MethodGet, header.FragmentPath+"?wait=1", true)
	require.Equal(t, []string{"/", "/posts"}, headerHrefs(doc))
	require.False(t, strings.Contains(strings.ToLower(doc.Text()), "unavailable"))
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	require.Error(t, err)
}

package header

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/consultants-web/internal/content"
)

type fakeService struct {
	regions    []content.Region
	pages      []content.Page
	regionsErr error
	pagesErr   error

	// gate, when set, blocks both queries until closed or ctx ends.
	gate chan struct{}

	regionCalls atomic.Int32
	pageCalls   atomic.Int32
}

func (f *fakeService) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) ListRegions(ctx context.Context) ([]content.Region, error) {
	f.regionCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.regionsErr != nil {
		return nil, f.regionsErr
	}
	return f.regions, nil
}

func (f *fakeService) ListNavigablePages(ctx context.Context) ([]content.Page, error) {
	f.pageCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.pagesErr != nil {
		return nil, f.pagesErr
	}
	return f.pages, nil
}

type fakeSettings struct {
	settings content.SiteSettings
	err      error
}

func (f fakeSettings) SiteSettings(context.Context) (content.SiteSettings, error) {
	return f.settings, f.err
}

func render(t *testing.T, vm ViewModel) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, View(vm).Render(&buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func desktopHrefs(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find(".site-header__nav a").Each(func(_ int, s *goquery.Selection) {
		hrefs = append(hrefs, s.AttrOr("href", ""))
	})
	return hrefs
}

func mountAndSettle(t *testing.T, c *Component) {
	t.Helper()
	c.Mount(context.Background())
	select {
	case <-c.Settled():
	case <-time.After(2 * time.Second):
		t.Fatal("component did not settle")
	}
	c.Wait()
}

func TestLoaderPreservesStoreOrder(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		regions: []content.Region{
			{ID: "r2", Name: "Zeta", Slug: "zeta"},
			{ID: "r1", Name: "Alpha", Slug: "alpha"},
		},
		pages: []content.Page{
			{ID: "p2", Title: "Team", Slug: "team"},
			{ID: "p1", Title: "About", Slug: "about"},
		},
	}
	loader, err := NewLoader(svc)
	require.NoError(t, err)

	snap, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, svc.regions, snap.Regions)
	require.Equal(t, svc.pages, snap.Pages)
	require.EqualValues(t, 1, svc.regionCalls.Load())
	require.EqualValues(t, 1, svc.pageCalls.Load())
}

func TestLoaderFailureReturnsNoPartialData(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	svc := &fakeService{
		regions:  []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
		pagesErr: cause,
	}
	loader, err := NewLoader(svc)
	require.NoError(t, err)

	snap, err := loader.Load(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, cause)
	require.True(t, snap.Empty())
}

func TestNewLoaderRequiresService(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(nil)
	require.Error(t, err)
	_, err = New(nil)
	require.Error(t, err)
}

func TestRenderedRegionOrderMatchesFetch(t *testing.T) {
	t.Parallel()

	regions := []content.Region{
		{ID: "r1", Name: "Central", Slug: "central"},
		{ID: "r2", Name: "North", Slug: "north"},
		{ID: "r3", Name: "South", Slug: "south"},
	}
	c, err := New(&fakeService{regions: regions})
	require.NoError(t, err)
	mountAndSettle(t, c)

	doc := render(t, c.ViewModel("/"))
	var keys []string
	doc.Find(".site-header__dropdown-menu a").Each(func(_ int, s *goquery.Selection) {
		keys = append(keys, s.AttrOr("data-key", ""))
	})
	require.Equal(t, []string{"r1", "r2", "r3"}, keys)
}

func TestSnapshotReplacedWholesale(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		regions: []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
		pages:   []content.Page{{ID: "p1", Title: "About", Slug: "about"}},
		gate:    make(chan struct{}),
	}
	c, err := New(svc)
	require.NoError(t, err)
	c.Mount(context.Background())

	require.True(t, c.Snapshot().Empty())
	require.False(t, c.IsSettled())

	close(svc.gate)
	<-c.Settled()
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Regions, 1)
	require.Len(t, snap.Pages, 1)
	require.True(t, c.Loaded())
}

func TestFetchFailureIsSilent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(&fakeService{regionsErr: errors.New("store unavailable")},
		WithLogger(zap.New(core)),
		WithID("mount-1"),
	)
	require.NoError(t, err)

	require.NotPanics(t, func() { mountAndSettle(t, c) })
	require.True(t, c.Snapshot().Empty())
	require.False(t, c.Loaded())

	entries := logs.FilterMessage("navigation data fetch failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Equal(t, "mount-1", entries[0].ContextMap()["mount_id"])
}

func TestMenuToggleTwiceRestoresState(t *testing.T) {
	t.Parallel()

	var m Menu
	require.False(t, m.IsOpen())
	require.True(t, m.Toggle())
	require.False(t, m.Toggle())
	require.False(t, m.IsOpen())

	m.Toggle()
	m.Close()
	require.False(t, m.IsOpen())
	m.Close()
	require.False(t, m.IsOpen())
}

func TestActivateLink(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeService{})
	require.NoError(t, err)

	var navigated []string
	navigator := NavigatorFunc(func(p string) { navigated = append(navigated, p) })

	c.ToggleMenu()
	c.ActivateLink(navigator, "/about", false)
	require.True(t, c.MenuOpen(), "desktop links leave the menu alone")

	c.ActivateLink(navigator, "/regions/north", true)
	require.False(t, c.MenuOpen())
	require.Equal(t, []string{"/about", "/regions/north"}, navigated)
}

func TestScenarioSingleRegionNoPages(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeService{
		regions: []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
	})
	require.NoError(t, err)
	mountAndSettle(t, c)

	doc := render(t, c.ViewModel("/"))
	require.Equal(t, []string{"/", "/regions/north", "/posts"}, desktopHrefs(doc))

	north := doc.Find(`.site-header__nav a[data-key="r1"]`)
	require.Equal(t, "North", north.Text())
	require.Equal(t, 0, doc.Find("#"+MobilePanelID).Length())
	_, waiting := doc.Find("#" + RootID).Attr("hx-get")
	require.False(t, waiting)
}

func TestScenarioPageQueryRejects(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(&fakeService{
		regions:  []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
		pagesErr: errors.New("query failed"),
	}, WithLogger(zap.New(core)))
	require.NoError(t, err)
	mountAndSettle(t, c)

	doc := render(t, c.ViewModel("/"))
	// The join is all-or-nothing: the resolved region list is dropped too.
	require.Equal(t, []string{"/", "/posts"}, desktopHrefs(doc))
	require.Equal(t, 1, logs.FilterMessage("navigation data fetch failed").Len())
	require.NotContains(t, doc.Text(), "error")
}

func TestScenarioInitialRenderBeforeFetch(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		regions: []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
		pages:   []content.Page{{ID: "p1", Title: "About", Slug: "about"}},
		gate:    make(chan struct{}),
	}
	c, err := New(svc)
	require.NoError(t, err)
	c.Mount(context.Background())
	t.Cleanup(func() {
		c.Unmount()
		c.Wait()
	})

	doc := render(t, c.ViewModel("/"))
	require.Equal(t, []string{"/", "/posts"}, desktopHrefs(doc))

	root := doc.Find("#" + RootID)
	require.Equal(t, FragmentPath+"?wait=1", root.AttrOr("hx-get", ""))
	require.Equal(t, "load", root.AttrOr("hx-trigger", ""))
	require.Equal(t, "outerHTML", root.AttrOr("hx-swap", ""))
}

func TestScenarioMobileMenuCloseOnNavigate(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeService{
		regions: []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
	})
	require.NoError(t, err)
	mountAndSettle(t, c)

	require.False(t, c.MenuOpen())
	require.True(t, c.ToggleMenu())

	doc := render(t, c.ViewModel("/"))
	panel := doc.Find("#" + MobilePanelID)
	require.Equal(t, 1, panel.Length())
	require.Equal(t, "true", doc.Find(".site-header__menu-button").AttrOr("aria-expanded", ""))

	link := panel.Find(`a[data-key="r1"]`)
	require.Equal(t, "/regions/north", link.AttrOr("data-path", ""))
	require.True(t, strings.HasPrefix(link.AttrOr("href", ""), GoPath+"?"))

	var got string
	c.ActivateLink(NavigatorFunc(func(p string) { got = p }), link.AttrOr("data-path", ""), true)
	require.False(t, c.MenuOpen())
	require.Equal(t, "/regions/north", got)

	doc = render(t, c.ViewModel("/regions/north"))
	require.Equal(t, 0, doc.Find("#"+MobilePanelID).Length())
	require.Equal(t, "false", doc.Find(".site-header__menu-button").AttrOr("aria-expanded", ""))
}

func TestUnmountDiscardsLateResult(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		regions: []content.Region{{ID: "r1", Name: "North", Slug: "north"}},
		gate:    make(chan struct{}),
	}
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(svc, WithLogger(zap.New(core)))
	require.NoError(t, err)
	c.Mount(context.Background())

	c.Unmount()
	close(svc.gate)
	c.Wait()

	require.True(t, c.IsSettled())
	require.True(t, c.Snapshot().Empty())
	require.False(t, c.Loaded())
	require.Zero(t, logs.FilterMessage("navigation data fetch failed").Len())
}

func TestMountRunsOnce(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	c, err := New(svc)
	require.NoError(t, err)

	mountAndSettle(t, c)
	c.Mount(context.Background())
	c.Wait()
	require.EqualValues(t, 1, svc.regionCalls.Load())
	require.EqualValues(t, 1, svc.pageCalls.Load())
}

func TestMountSurvivesRequestCancellation(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		pages: []content.Page{{ID: "p1", Title: "About", Slug: "about"}},
		gate:  make(chan struct{}),
	}
	c, err := New(svc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c.Mount(ctx)
	cancel()
	close(svc.gate)
	<-c.Settled()
	c.Wait()

	require.True(t, c.Loaded())
	require.Len(t, c.Snapshot().Pages, 1)
}

func TestBrandUsesSiteLogo(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeService{},
		WithBrand("SLPC", "Ohio Consultants"),
		WithSettings(fakeSettings{settings: content.SiteSettings{LogoURL: "https://cdn.example/logo.png"}}),
	)
	require.NoError(t, err)
	mountAndSettle(t, c)

	doc := render(t, c.ViewModel("/"))
	require.Equal(t, "https://cdn.example/logo.png", doc.Find(".site-header__brand img").AttrOr("src", ""))
}

func TestBrandFallsBackToMark(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(&fakeService{},
		WithBrand("SLPC", "Ohio Consultants"),
		WithSettings(fakeSettings{err: errors.New("settings down")}),
		WithLogger(zap.New(core)),
	)
	require.NoError(t, err)
	mountAndSettle(t, c)

	doc := render(t, c.ViewModel("/"))
	require.Equal(t, 0, doc.Find(".site-header__brand img").Length())
	require.Equal(t, "SLPC", doc.Find(".site-header__mark").Text())
	require.Equal(t, 1, logs.FilterMessage("site settings unavailable").Len())
	require.True(t, c.Loaded())
}

func TestViewMarksActiveLink(t *testing.T) {
	t.Parallel()

	vm := ViewModel{
		Settled: true,
		Snapshot: Snapshot{
			Pages: []content.Page{{ID: "p1", Title: "About", Slug: "about"}},
		},
		CurrentPath: "/about",
	}
	doc := render(t, vm)
	require.Equal(t, "page", doc.Find(`.site-header__nav a[data-key="p1"]`).AttrOr("aria-current", ""))
	_, homeActive := doc.Find(`.site-header__nav a[data-key="home"]`).Attr("aria-current")
	require.False(t, homeActive)
}

func TestViewEmptySnapshotHasNoPlaceholders(t *testing.T) {
	t.Parallel()

	doc := render(t, ViewModel{Settled: true, MenuOpen: true})
	require.Equal(t, 0, doc.Find(".site-header__dropdown-menu li").Length())
	panelLinks := doc.Find("#" + MobilePanelID + " a")
	require.Equal(t, 2, panelLinks.Length())
	require.Equal(t, "home", panelLinks.First().AttrOr("data-key", ""))
	require.Equal(t, "all-posts", panelLinks.Last().AttrOr("data-key", ""))
}

func TestWaitCoversMountRacingUnmount(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		svc := &fakeService{regions: []content.Region{{ID: "r1", Name: "North", Slug: "north"}}}
		c, err := New(svc, WithSettings(fakeSettings{}))
		require.NoError(t, err)

		mounted := make(chan struct{})
		go func() {
			defer close(mounted)
			c.Mount(context.Background())
		}()
		c.Unmount()
		c.Wait()
		calls := svc.regionCalls.Load()
		<-mounted

		// anything Mount started was already finished when Wait returned
		require.Never(t, func() bool { return svc.regionCalls.Load() != calls }, 5*time.Millisecond, time.Millisecond)
		require.True(t, c.IsSettled())
	}
}

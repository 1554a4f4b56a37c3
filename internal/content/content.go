// Package content defines the records the site reads from its content store
// and the query contracts every store backend implements.
package content

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a content record cannot be located.
var ErrNotFound = errors.New("content: not found")

// Region is a geographic grouping with its own listing page.
type Region struct {
	ID   string
	Name string
	Slug string

	// Detail fields are only populated by RegionBySlug.
	Description     string
	ContactEmail    string
	ContactPhone    string
	OfficeHoursInfo string
	SchedulingLink  string
}

// Page is a generic content page. Stores only return pages flagged for
// navigation from ListNavigablePages; the flag itself is never surfaced.
type Page struct {
	ID    string
	Title string
	Slug  string

	// Content is markdown and only populated by PageBySlug.
	Content string
}

// Post types editors can choose from.
const (
	PostJob          = "job"
	PostEvent        = "event"
	PostAnnouncement = "announcement"
	PostResource     = "resource"
)

// PostTypes lists every post type in display order.
var PostTypes = []string{PostJob, PostEvent, PostAnnouncement, PostResource}

// ValidPostType reports whether t is one of PostTypes.
func ValidPostType(t string) bool {
	for _, pt := range PostTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// Post is a dated announcement, event or job listing.
type Post struct {
	ID           string
	Title        string
	Slug         string
	Type         string
	Content      string
	ExternalLink string
	DatePosted   time.Time
}

// SiteSettings carries site-wide presentation settings.
type SiteSettings struct {
	ID      string
	LogoURL string
}

// Service is the read side the navigation header depends on.
type Service interface {
	// ListRegions returns every region ordered by name ascending.
	ListRegions(ctx context.Context) ([]Region, error)
	// ListNavigablePages returns pages flagged for navigation ordered by title ascending.
	ListNavigablePages(ctx context.Context) ([]Page, error)
}

// SettingsSource is implemented by stores that expose site settings.
type SettingsSource interface {
	SiteSettings(ctx context.Context) (SiteSettings, error)
}

// Reader looks up single records for detail pages.
type Reader interface {
	RegionBySlug(ctx context.Context, slug string) (Region, error)
	PageBySlug(ctx context.Context, slug string) (Page, error)
}

// PostLister backs the posts index.
type PostLister interface {
	// ListPosts returns posts newest first. A non-empty postType restricts the
	// result to that type.
	ListPosts(ctx context.Context, postType string) ([]Post, error)
}

// Store is the full surface a backend provides.
type Store interface {
	Service
	SettingsSource
	Reader
	PostLister
}

// NormalizeSlug trims a slug, rejecting anything that could escape a single
// path segment. Case is kept: stores match slugs exactly as editors saved them
// and header links are built from those stored values.
func NormalizeSlug(slug string) string {
	slug = strings.TrimSpace(slug)
	slug = strings.Trim(slug, "/")
	if slug == "" {
		return ""
	}
	if strings.Contains(slug, "..") || strings.ContainsAny(slug, "/\\?#") {
		return ""
	}
	return slug
}

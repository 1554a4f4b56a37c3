// Package filestore serves site content from a local YAML document. It backs
// local development and tests, and applies the same ordering and navigation
// filter a hosted store applies in its queries.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"finitefield.org/consultants-web/internal/content"
)

type document struct {
	Site    siteDocument     `yaml:"site"`
	Regions []regionDocument `yaml:"regions"`
	Pages   []pageDocument   `yaml:"pages"`
	Posts   []postDocument   `yaml:"posts"`
}

type siteDocument struct {
	ID      string `yaml:"id"`
	LogoURL string `yaml:"logo_url"`
}

type regionDocument struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Slug            string `yaml:"slug"`
	Description     string `yaml:"description"`
	ContactEmail    string `yaml:"contact_email"`
	ContactPhone    string `yaml:"contact_phone"`
	OfficeHoursInfo string `yaml:"office_hours_info"`
	SchedulingLink  string `yaml:"scheduling_link"`
}

type pageDocument struct {
	ID               string `yaml:"id"`
	Title            string `yaml:"title"`
	Slug             string `yaml:"slug"`
	Content          string `yaml:"content"`
	ShowOnNavigation bool   `yaml:"show_on_navigation"`
}

type postDocument struct {
	ID           string    `yaml:"id"`
	Title        string    `yaml:"title"`
	Slug         string    `yaml:"slug"`
	Type         string    `yaml:"type"`
	Content      string    `yaml:"content"`
	ExternalLink string    `yaml:"external_link"`
	DatePosted   time.Time `yaml:"date_posted"`
}

// Store is an immutable in-memory view of a YAML content document.
type Store struct {
	doc document
}

var _ content.Store = (*Store)(nil)

// Open reads and parses the YAML document at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("filestore: path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", path, err)
	}
	store, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("filestore: %s: %w", path, err)
	}
	return store, nil
}

// Parse builds a Store from raw YAML.
func Parse(data []byte) (*Store, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	for i, r := range doc.Regions {
		if strings.TrimSpace(r.ID) == "" || content.NormalizeSlug(r.Slug) == "" {
			return nil, fmt.Errorf("region #%d: id and slug are required", i)
		}
	}
	for i, p := range doc.Pages {
		if strings.TrimSpace(p.ID) == "" || content.NormalizeSlug(p.Slug) == "" {
			return nil, fmt.Errorf("page #%d: id and slug are required", i)
		}
	}
	for i, p := range doc.Posts {
		if strings.TrimSpace(p.ID) == "" || content.NormalizeSlug(p.Slug) == "" {
			return nil, fmt.Errorf("post #%d: id and slug are required", i)
		}
		if !content.ValidPostType(p.Type) {
			return nil, fmt.Errorf("post #%d: unknown type %q", i, p.Type)
		}
	}
	return &Store{doc: doc}, nil
}

// ListRegions returns all regions ordered by name.
func (s *Store) ListRegions(ctx context.Context) ([]content.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	regions := make([]content.Region, 0, len(s.doc.Regions))
	for _, r := range s.doc.Regions {
		regions = append(regions, content.Region{ID: r.ID, Name: r.Name, Slug: r.Slug})
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	return regions, nil
}

// ListNavigablePages returns pages flagged for navigation ordered by title.
func (s *Store) ListNavigablePages(ctx context.Context) ([]content.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages := make([]content.Page, 0, len(s.doc.Pages))
	for _, p := range s.doc.Pages {
		if !p.ShowOnNavigation {
			continue
		}
		pages = append(pages, content.Page{ID: p.ID, Title: p.Title, Slug: p.Slug})
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
	return pages, nil
}

// SiteSettings returns the site block, or ErrNotFound when it is empty.
func (s *Store) SiteSettings(ctx context.Context) (content.SiteSettings, error) {
	if err := ctx.Err(); err != nil {
		return content.SiteSettings{}, err
	}
	if s.doc.Site == (siteDocument{}) {
		return content.SiteSettings{}, content.ErrNotFound
	}
	return content.SiteSettings{ID: s.doc.Site.ID, LogoURL: strings.TrimSpace(s.doc.Site.LogoURL)}, nil
}

// RegionBySlug returns the full region record for slug.
func (s *Store) RegionBySlug(ctx context.Context, slug string) (content.Region, error) {
	if err := ctx.Err(); err != nil {
		return content.Region{}, err
	}
	slug = content.NormalizeSlug(slug)
	for _, r := range s.doc.Regions {
		if slug != "" && content.NormalizeSlug(r.Slug) == slug {
			return content.Region{
				ID:              r.ID,
				Name:            r.Name,
				Slug:            r.Slug,
				Description:     r.Description,
				ContactEmail:    r.ContactEmail,
				ContactPhone:    r.ContactPhone,
				OfficeHoursInfo: r.OfficeHoursInfo,
				SchedulingLink:  r.SchedulingLink,
			}, nil
		}
	}
	return content.Region{}, content.ErrNotFound
}

// PageBySlug returns the full page record for slug, navigable or not.
func (s *Store) PageBySlug(ctx context.Context, slug string) (content.Page, error) {
	if err := ctx.Err(); err != nil {
		return content.Page{}, err
	}
	slug = content.NormalizeSlug(slug)
	for _, p := range s.doc.Pages {
		if slug != "" && content.NormalizeSlug(p.Slug) == slug {
			return content.Page{ID: p.ID, Title: p.Title, Slug: p.Slug, Content: p.Content}, nil
		}
	}
	return content.Page{}, content.ErrNotFound
}

// ListPosts returns posts newest first, ties broken by title.
func (s *Store) ListPosts(ctx context.Context, postType string) ([]content.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	posts := make([]content.Post, 0, len(s.doc.Posts))
	for _, p := range s.doc.Posts {
		if postType != "" && p.Type != postType {
			continue
		}
		posts = append(posts, content.Post{
			ID:           p.ID,
			Title:        p.Title,
			Slug:         p.Slug,
			Type:         p.Type,
			Content:      p.Content,
			ExternalLink: p.ExternalLink,
			DatePosted:   p.DatePosted,
		})
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].DatePosted.Equal(posts[j].DatePosted) {
			return posts[i].DatePosted.After(posts[j].DatePosted)
		}
		return posts[i].Title < posts[j].Title
	})
	return posts, nil
}

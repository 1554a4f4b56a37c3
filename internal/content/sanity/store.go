package sanity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finitefield.org/consultants-web/internal/content"
)

const (
	regionsQuery = `*[_type == "region"] | order(name asc) {
  _id,
  name,
  "slug": slug.current
}`
	navigablePagesQuery = `*[_type == "page" && showOnNavigation == true] | order(title asc) {
  _id,
  title,
  "slug": slug.current
}`
	siteSettingsQuery = `*[_type == "siteSettings"][0] {
  _id,
  "logoUrl": siteLogo.asset->url
}`
	regionBySlugQuery = `*[_type == "region" && slug.current == $slug][0] {
  _id,
  name,
  "slug": slug.current,
  description,
  contactEmail,
  contactPhone,
  officeHoursInfo,
  schedulingLink
}`
	pageBySlugQuery = `*[_type == "page" && slug.current == $slug][0] {
  _id,
  title,
  "slug": slug.current,
  content
}`
	postProjection = `{
  _id,
  title,
  "slug": slug.current,
  type,
  content,
  externalLink,
  datePosted
}`
	postsQuery       = `*[_type == "post"] | order(datePosted desc, title asc) ` + postProjection
	postsByTypeQuery = `*[_type == "post" && type == $type] | order(datePosted desc, title asc) ` + postProjection
)

type regionDocument struct {
	ID              string `json:"_id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Description     string `json:"description"`
	ContactEmail    string `json:"contactEmail"`
	ContactPhone    string `json:"contactPhone"`
	OfficeHoursInfo string `json:"officeHoursInfo"`
	SchedulingLink  string `json:"schedulingLink"`
}

type pageDocument struct {
	ID      string `json:"_id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Content string `json:"content"`
}

type postDocument struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Type         string    `json:"type"`
	Content      string    `json:"content"`
	ExternalLink string    `json:"externalLink"`
	DatePosted   time.Time `json:"datePosted"`
}

type settingsDocument struct {
	ID      string `json:"_id"`
	LogoURL string `json:"logoUrl"`
}

// Store implements content.Store on top of a Client.
type Store struct {
	client *Client
}

var _ content.Store = (*Store)(nil)

// NewStore wraps client.
func NewStore(client *Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("sanity: client is required")
	}
	return &Store{client: client}, nil
}

// ListRegions returns regions ordered by name; ordering is applied by the query.
func (s *Store) ListRegions(ctx context.Context) ([]content.Region, error) {
	var docs []regionDocument
	if err := s.client.Query(ctx, regionsQuery, nil, &docs); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	regions := make([]content.Region, 0, len(docs))
	for _, doc := range docs {
		regions = append(regions, content.Region{ID: doc.ID, Name: doc.Name, Slug: doc.Slug})
	}
	return regions, nil
}

// ListNavigablePages returns navigation pages ordered by title.
func (s *Store) ListNavigablePages(ctx context.Context) ([]content.Page, error) {
	var docs []pageDocument
	if err := s.client.Query(ctx, navigablePagesQuery, nil, &docs); err != nil {
		return nil, fmt.Errorf("list navigable pages: %w", err)
	}
	pages := make([]content.Page, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, content.Page{ID: doc.ID, Title: doc.Title, Slug: doc.Slug})
	}
	return pages, nil
}

// SiteSettings returns the singleton settings document.
func (s *Store) SiteSettings(ctx context.Context) (content.SiteSettings, error) {
	var doc settingsDocument
	if err := s.client.Query(ctx, siteSettingsQuery, nil, &doc); err != nil {
		return content.SiteSettings{}, fmt.Errorf("site settings: %w", err)
	}
	return content.SiteSettings{ID: doc.ID, LogoURL: strings.TrimSpace(doc.LogoURL)}, nil
}

// RegionBySlug returns the full region document for slug.
func (s *Store) RegionBySlug(ctx context.Context, slug string) (content.Region, error) {
	slug = content.NormalizeSlug(slug)
	if slug == "" {
		return content.Region{}, content.ErrNotFound
	}
	var doc regionDocument
	if err := s.client.Query(ctx, regionBySlugQuery, map[string]string{"slug": slug}, &doc); err != nil {
		return content.Region{}, fmt.Errorf("region %s: %w", slug, err)
	}
	return content.Region{
		ID:              doc.ID,
		Name:            doc.Name,
		Slug:            doc.Slug,
		Description:     doc.Description,
		ContactEmail:    doc.ContactEmail,
		ContactPhone:    doc.ContactPhone,
		OfficeHoursInfo: doc.OfficeHoursInfo,
		SchedulingLink:  doc.SchedulingLink,
	}, nil
}

// PageBySlug returns the full page document for slug.
func (s *Store) PageBySlug(ctx context.Context, slug string) (content.Page, error) {
	slug = content.NormalizeSlug(slug)
	if slug == "" {
		return content.Page{}, content.ErrNotFound
	}
	var doc pageDocument
	if err := s.client.Query(ctx, pageBySlugQuery, map[string]string{"slug": slug}, &doc); err != nil {
		return content.Page{}, fmt.Errorf("page %s: %w", slug, err)
	}
	return content.Page{ID: doc.ID, Title: doc.Title, Slug: doc.Slug, Content: doc.Content}, nil
}

// ListPosts returns posts newest first, optionally filtered by type.
func (s *Store) ListPosts(ctx context.Context, postType string) ([]content.Post, error) {
	query, params := postsQuery, map[string]string(nil)
	if postType != "" {
		query, params = postsByTypeQuery, map[string]string{"type": postType}
	}
	var docs []postDocument
	if err := s.client.Query(ctx, query, params, &docs); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]content.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, content.Post{
			ID:           doc.ID,
			Title:        doc.Title,
			Slug:         doc.Slug,
			Type:         doc.Type,
			Content:      doc.Content,
			ExternalLink: strings.TrimSpace(doc.ExternalLink),
			DatePosted:   doc.DatePosted,
		})
	}
	return posts, nil
}

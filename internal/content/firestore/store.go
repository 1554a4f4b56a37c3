package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"finitefield.org/consultants-web/internal/content"
)

const (
	regionsCollection  = "regions"
	pagesCollection    = "pages"
	settingsCollection = "siteSettings"
	postsCollection    = "posts"
)

type regionDocument struct {
	Name            string `firestore:"name"`
	Slug            string `firestore:"slug"`
	Description     string `firestore:"description"`
	ContactEmail    string `firestore:"contactEmail"`
	ContactPhone    string `firestore:"contactPhone"`
	OfficeHoursInfo string `firestore:"officeHoursInfo"`
	SchedulingLink  string `firestore:"schedulingLink"`
}

type pageDocument struct {
	Title            string `firestore:"title"`
	Slug             string `firestore:"slug"`
	Content          string `firestore:"content"`
	ShowOnNavigation bool   `firestore:"showOnNavigation"`
}

type postDocument struct {
	Title        string    `firestore:"title"`
	Slug         string    `firestore:"slug"`
	Type         string    `firestore:"type"`
	Content      string    `firestore:"content"`
	ExternalLink string    `firestore:"externalLink"`
	DatePosted   time.Time `firestore:"datePosted"`
}

type settingsDocument struct {
	LogoURL string `firestore:"logoUrl"`
}

// Store implements content.Store with one collection per document type.
// Ordering and filters are part of each query, so the collections need
// composite indexes on pages (showOnNavigation, title) and posts
// (type, datePosted desc).
type Store struct {
	provider *Provider
}

var _ content.Store = (*Store)(nil)

// NewStore constructs a Store backed by provider.
func NewStore(provider *Provider) (*Store, error) {
	if provider == nil {
		return nil, errors.New("firestore store: provider is required")
	}
	return &Store{provider: provider}, nil
}

// ListRegions returns regions ordered by name.
func (s *Store) ListRegions(ctx context.Context) ([]content.Region, error) {
	var regions []content.Region
	err := s.query(ctx, "regions.list", regionsCollection,
		func(q firestore.Query) firestore.Query { return q.OrderBy("name", firestore.Asc) },
		func(snap *firestore.DocumentSnapshot) error {
			var doc regionDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			regions = append(regions, content.Region{ID: snap.Ref.ID, Name: doc.Name, Slug: doc.Slug})
			return nil
		})
	if err != nil {
		return nil, err
	}
	return regions, nil
}

// ListNavigablePages returns pages flagged for navigation ordered by title.
func (s *Store) ListNavigablePages(ctx context.Context) ([]content.Page, error) {
	var pages []content.Page
	err := s.query(ctx, "pages.list_navigable", pagesCollection,
		func(q firestore.Query) firestore.Query {
			return q.Where("showOnNavigation", "==", true).OrderBy("title", firestore.Asc)
		},
		func(snap *firestore.DocumentSnapshot) error {
			var doc pageDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			pages = append(pages, content.Page{ID: snap.Ref.ID, Title: doc.Title, Slug: doc.Slug})
			return nil
		})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// SiteSettings returns the first settings document.
func (s *Store) SiteSettings(ctx context.Context) (content.SiteSettings, error) {
	var settings content.SiteSettings
	found := false
	err := s.query(ctx, "site_settings.get", settingsCollection,
		func(q firestore.Query) firestore.Query { return q.Limit(1) },
		func(snap *firestore.DocumentSnapshot) error {
			var doc settingsDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			settings = content.SiteSettings{ID: snap.Ref.ID, LogoURL: strings.TrimSpace(doc.LogoURL)}
			found = true
			return nil
		})
	if err != nil {
		return content.SiteSettings{}, err
	}
	if !found {
		return content.SiteSettings{}, content.ErrNotFound
	}
	return settings, nil
}

// RegionBySlug returns the region whose slug matches.
func (s *Store) RegionBySlug(ctx context.Context, slug string) (content.Region, error) {
	slug = content.NormalizeSlug(slug)
	if slug == "" {
		return content.Region{}, content.ErrNotFound
	}
	var region content.Region
	found := false
	err := s.query(ctx, "regions.by_slug", regionsCollection,
		func(q firestore.Query) firestore.Query { return q.Where("slug", "==", slug).Limit(1) },
		func(snap *firestore.DocumentSnapshot) error {
			var doc regionDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			region = content.Region{
				ID:              snap.Ref.ID,
				Name:            doc.Name,
				Slug:            doc.Slug,
				Description:     doc.Description,
				ContactEmail:    doc.ContactEmail,
				ContactPhone:    doc.ContactPhone,
				OfficeHoursInfo: doc.OfficeHoursInfo,
				SchedulingLink:  doc.SchedulingLink,
			}
			found = true
			return nil
		})
	if err != nil {
		return content.Region{}, err
	}
	if !found {
		return content.Region{}, content.ErrNotFound
	}
	return region, nil
}

// PageBySlug returns the page whose slug matches.
func (s *Store) PageBySlug(ctx context.Context, slug string) (content.Page, error) {
	slug = content.NormalizeSlug(slug)
	if slug == "" {
		return content.Page{}, content.ErrNotFound
	}
	var page content.Page
	found := false
	err := s.query(ctx, "pages.by_slug", pagesCollection,
		func(q firestore.Query) firestore.Query { return q.Where("slug", "==", slug).Limit(1) },
		func(snap *firestore.DocumentSnapshot) error {
			var doc pageDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			page = content.Page{ID: snap.Ref.ID, Title: doc.Title, Slug: doc.Slug, Content: doc.Content}
			found = true
			return nil
		})
	if err != nil {
		return content.Page{}, err
	}
	if !found {
		return content.Page{}, content.ErrNotFound
	}
	return page, nil
}

// ListPosts returns posts newest first, optionally filtered by type.
func (s *Store) ListPosts(ctx context.Context, postType string) ([]content.Post, error) {
	var posts []content.Post
	err := s.query(ctx, "posts.list", postsCollection,
		func(q firestore.Query) firestore.Query {
			if postType != "" {
				q = q.Where("type", "==", postType)
			}
			return q.OrderBy("datePosted", firestore.Desc)
		},
		func(snap *firestore.DocumentSnapshot) error {
			var doc postDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			posts = append(posts, content.Post{
				ID:           snap.Ref.ID,
				Title:        doc.Title,
				Slug:         doc.Slug,
				Type:         doc.Type,
				Content:      doc.Content,
				ExternalLink: strings.TrimSpace(doc.ExternalLink),
				DatePosted:   doc.DatePosted,
			})
			return nil
		})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) query(ctx context.Context, op, collection string, build func(firestore.Query) firestore.Query, each func(*firestore.DocumentSnapshot) error) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	iter := build(client.Collection(collection).Query).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return wrapError(op, err)
		}
		if err := each(snap); err != nil {
			return fmt.Errorf("%s: decode %s: %w", op, snap.Ref.ID, err)
		}
	}
}

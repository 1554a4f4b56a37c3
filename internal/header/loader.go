// Package header implements the site navigation header: the loader that
// populates the navigation snapshot, the mobile menu state, the mounted
// component that ties them together, and its rendering.
package header

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"finitefield.org/consultants-web/internal/content"
)

// ErrFetchFailed wraps any failure of the navigation queries.
var ErrFetchFailed = errors.New("navigation data fetch failed")

var tracer = otel.Tracer("finitefield.org/consultants-web/internal/header")

// Snapshot is the navigation content currently shown in the header. Regions
// are ordered by name and pages by title, exactly as the store returned them.
// A Snapshot is replaced wholesale; its slices are never mutated in place.
type Snapshot struct {
	Regions []content.Region
	Pages   []content.Page
}

// Empty reports whether the snapshot has no entries.
func (s Snapshot) Empty() bool {
	return len(s.Regions) == 0 && len(s.Pages) == 0
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Regions: append([]content.Region(nil), s.Regions...),
		Pages:   append([]content.Page(nil), s.Pages...),
	}
}

// Loader runs the two navigation queries as one all-or-nothing join.
type Loader struct {
	svc content.Service
}

// NewLoader constructs a Loader over svc.
func NewLoader(svc content.Service) (*Loader, error) {
	if svc == nil {
		return nil, errors.New("header: content service is required")
	}
	return &Loader{svc: svc}, nil
}

// Load issues both queries concurrently and waits for both. Either failure
// cancels the other query and yields an error wrapping ErrFetchFailed with no
// partial data.
func (l *Loader) Load(ctx context.Context) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "header.load")
	defer span.End()

	var (
		regions []content.Region
		pages   []content.Page
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := l.svc.ListRegions(gctx)
		if err != nil {
			return fmt.Errorf("regions: %w", err)
		}
		regions = res
		return nil
	})
	g.Go(func() error {
		res, err := l.svc.ListNavigablePages(gctx)
		if err != nil {
			return fmt.Errorf("pages: %w", err)
		}
		pages = res
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	span.SetAttributes(
		attribute.Int("navigation.regions", len(regions)),
		attribute.Int("navigation.pages", len(pages)),
	)
	return Snapshot{Regions: regions, Pages: pages}, nil
}

package slug

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/models"
	"strings"
)

// Kind is the dimension a path segment resolved to
type Kind string

const (
	KindUnresolved   Kind = "unresolved"
	KindCity         Kind = "city"
	KindType         Kind = "type"
	KindTag          Kind = "tag"
	KindTypeTag      Kind = "type_tag"
	KindNeighborhood Kind = "neighborhood"
)

// Resolution is the tagged result of resolving one segment. Only the
// fields matching Kind are set.
type Resolution struct {
	Kind          Kind
	CanonicalName string
	Slug          string

	City         string
	Type         string
	Tag          *models.Tag
	Neighborhood *models.Neighborhood
}

// Found reports whether the segment named a known dimension
func (r Resolution) Found() bool {
	return r.Kind != KindUnresolved
}

// TagFinder looks up shared labels by slug. It returns database.ErrNotFound
// for unknown slugs.
type TagFinder interface {
	FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error)
}

// NeighborhoodFinder looks up neighborhoods by slug
type NeighborhoodFinder interface {
	FindNeighborhoodBySlug(ctx context.Context, slug string) (*models.Neighborhood, error)
}

// Resolver maps free-form URL segments onto catalog filter dimensions
type Resolver struct {
	tags          TagFinder
	neighborhoods NeighborhoodFinder
}

// NewResolver creates a new resolver
func NewResolver(tags TagFinder, neighborhoods NeighborhoodFinder) *Resolver {
	return &Resolver{tags: tags, neighborhoods: neighborhoods}
}

// Resolve classifies segment as a city, a type, a tag or a "{type}-{tag}"
// composite. Unknown segments resolve to KindUnresolved with a nil error;
// an error means the tag store could not be queried.
func (r *Resolver) Resolve(ctx context.Context, segment string) (Resolution, error) {
	key := strings.ToLower(strings.TrimSpace(segment))
	unresolved := Resolution{Kind: KindUnresolved, Slug: key}
	if key == "" {
		return unresolved, nil
	}

	if city, ok := NormalizeCity(key); ok {
		return Resolution{Kind: KindCity, CanonicalName: CityName(city), Slug: city, City: city}, nil
	}
	if typ, ok := NormalizeType(key); ok {
		return Resolution{Kind: KindType, CanonicalName: TypeName(typ), Slug: typ, Type: typ}, nil
	}

	key = Make(key)
	tag, err := r.findTag(ctx, key)
	if err != nil {
		return unresolved, err
	}
	if tag != nil {
		return Resolution{Kind: KindTag, CanonicalName: tag.Name, Slug: tag.Slug, Tag: tag}, nil
	}

	// {type}-{tag}: split at the first hyphen, both halves must be known.
	// A type whose own name contains a hyphen cannot be expressed this way.
	left, right, ok := strings.Cut(key, "-")
	if !ok || right == "" {
		return unresolved, nil
	}
	typ, ok := NormalizeType(left)
	if !ok {
		return unresolved, nil
	}
	tag, err = r.findTag(ctx, right)
	if err != nil {
		return unresolved, err
	}
	if tag == nil {
		return unresolved, nil
	}
	return Resolution{
		Kind:          KindTypeTag,
		CanonicalName: fmt.Sprintf("%s %s", TypeName(typ), tag.Name),
		Slug:          typ + "-" + tag.Slug,
		Type:          typ,
		Tag:           tag,
	}, nil
}

// ResolveNeighborhood resolves a barrio slug (path segment or query value)
func (r *Resolver) ResolveNeighborhood(ctx context.Context, segment string) (Resolution, error) {
	key := Make(segment)
	unresolved := Resolution{Kind: KindUnresolved, Slug: key}
	if key == "" {
		return unresolved, nil
	}

	n, err := r.neighborhoods.FindNeighborhoodBySlug(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return unresolved, nil
	}
	if err != nil {
		return unresolved, fmt.Errorf("neighborhood lookup %q: %w", key, err)
	}
	return Resolution{Kind: KindNeighborhood, CanonicalName: n.Name, Slug: n.Slug, Neighborhood: n}, nil
}

func (r *Resolver) findTag(ctx context.Context, key string) (*models.Tag, error) {
	tag, err := r.tags.FindTagBySlug(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tag lookup %q: %w", key, err)
	}
	return tag, nil
}

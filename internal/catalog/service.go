package catalog

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/cache"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/database/query"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/metrics"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/slug"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotFound means a path or filter named nothing the catalog knows.
// A valid filter with no matching rows is an empty Page instead.
var ErrNotFound = errors.New("catalog: not found")

// Store is the read side of the datastore used by the catalog
type Store interface {
	ImageFetcher
	FindPage(ctx context.Context, plan query.Plan) ([]models.Property, int64, error)
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
	GetPropertyBySlug(ctx context.Context, slug string) (*models.Property, error)
	LabelsFor(ctx context.Context, propertyID string) ([]string, []string, error)
	GetNeighborhood(ctx context.Context, id uint) (*models.Neighborhood, error)
}

// Resolver maps URL segments to filter dimensions
type Resolver interface {
	Resolve(ctx context.Context, segment string) (slug.Resolution, error)
	ResolveNeighborhood(ctx context.Context, segment string) (slug.Resolution, error)
}

// Page is one page of a listing
type Page struct {
	Items      []models.Property `json:"items"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// Options are the query-string refinements shared by every listing
type Options struct {
	Neighborhood string
	MinRooms     int
	Sort         Sort
	Page         int
}

// Listing is a Browse result: the page plus what the path resolved to
type Listing struct {
	Page
	Operation models.Operation `json:"operacion"`
	Heading   string           `json:"titulo"`
	City      string           `json:"ciudad,omitempty"`
	Type      string           `json:"tipo,omitempty"`
	Tag       *models.Tag      `json:"tag,omitempty"`
}

// Service answers public catalog reads through the shared cache
type Service struct {
	store    Store
	resolver Resolver
	cache    *cache.Cache
	log      *logrus.Logger
}

// NewService creates a new catalog service. A nil cache disables caching.
func NewService(store Store, resolver Resolver, c *cache.Cache, log *logrus.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		cache:    c,
		log:      logging.OrDefault(log),
	}
}

// ByCity lists every property in a city regardless of operation
func (s *Service) ByCity(ctx context.Context, city string, opts Options) (Page, error) {
	c, ok := slug.NormalizeCity(city)
	if !ok {
		return Page{}, ErrNotFound
	}
	return s.listWith(ctx, "by_city", Filter{City: c}, opts)
}

// ByOperationAndCity lists a city's properties for one operation
func (s *Service) ByOperationAndCity(ctx context.Context, op models.Operation, city string, opts Options) (Page, error) {
	if !op.Valid() {
		return Page{}, ErrNotFound
	}
	c, ok := slug.NormalizeCity(city)
	if !ok {
		return Page{}, ErrNotFound
	}
	return s.listWith(ctx, "by_operation_city", Filter{Operation: op, City: c}, opts)
}

// ByOperationCityAndType lists by operation and type. An empty city means
// every city.
func (s *Service) ByOperationCityAndType(ctx context.Context, op models.Operation, city, typ string, opts Options) (Page, error) {
	f, err := scoped(op, city, typ)
	if err != nil {
		return Page{}, err
	}
	return s.listWith(ctx, "by_operation_city_type", f, opts)
}

// ByOperationAndTag lists by operation and tag membership
func (s *Service) ByOperationAndTag(ctx context.Context, op models.Operation, tagID uint, opts Options) (Page, error) {
	if !op.Valid() || tagID == 0 {
		return Page{}, ErrNotFound
	}
	return s.listWith(ctx, "by_operation_tag", Filter{Operation: op, TagID: tagID}, opts)
}

// ByOperationCityTypeAndTag is the most specific listing. City and type are
// optional; the tag is not.
func (s *Service) ByOperationCityTypeAndTag(ctx context.Context, op models.Operation, city, typ string, tagID uint, opts Options) (Page, error) {
	if tagID == 0 {
		return Page{}, ErrNotFound
	}
	f, err := scoped(op, city, typ)
	if err != nil {
		return Page{}, err
	}
	f.TagID = tagID
	return s.listWith(ctx, "by_operation_city_type_tag", f, opts)
}

// ByNeighborhood lists a barrio's properties regardless of operation
func (s *Service) ByNeighborhood(ctx context.Context, neighborhood string, opts Options) (Page, *models.Neighborhood, error) {
	res, err := s.resolver.ResolveNeighborhood(ctx, neighborhood)
	if err != nil {
		s.log.WithError(err).WithField("barrio", neighborhood).Error("Neighborhood resolution failed")
		return emptyPage(opts.Page), nil, nil
	}
	if !res.Found() {
		return Page{}, nil, ErrNotFound
	}
	opts.Neighborhood = ""
	f := Filter{NeighborhoodID: res.Neighborhood.ID}
	page, err := s.listWith(ctx, "by_neighborhood", f, opts)
	return page, res.Neighborhood, err
}

// Featured returns the newest highlighted properties, at most one page
func (s *Service) Featured(ctx context.Context, limit int) (Page, error) {
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	f := Filter{HighlightedOnly: true}.normalized()
	plan := Compile(f)
	plan.Limit = limit

	key := cache.GenerateKey("featured", limit)
	return s.fetch(ctx, "featured", key, plan, f.Page, s.cache)
}

// Browse dispatches an operation-scoped path ("/venta/casas",
// "/arriendo/cucuta/apartamentos-con-piscina") through the slug resolver.
// A resolver datastore failure degrades to an empty page, never a 404.
func (s *Service) Browse(ctx context.Context, operation string, segments []string, opts Options) (Listing, error) {
	op, ok := models.ParseOperation(operation)
	if !ok {
		return Listing{}, ErrNotFound
	}
	out := Listing{Operation: op}

	var parts []string
	for _, seg := range segments {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	if len(parts) == 0 || len(parts) > 2 {
		return Listing{}, ErrNotFound
	}

	city := ""
	if len(parts) == 2 {
		c, ok := slug.NormalizeCity(parts[0])
		if !ok {
			return Listing{}, ErrNotFound
		}
		city = c
		out.City = c
	}

	res, err := s.resolver.Resolve(ctx, parts[len(parts)-1])
	if err != nil {
		s.log.WithError(err).WithField("segments", parts).Error("Segment resolution failed")
		out.Page = emptyPage(opts.Page)
		return out, nil
	}

	var page Page
	switch res.Kind {
	case slug.KindCity:
		if city != "" {
			return Listing{}, ErrNotFound
		}
		out.City = res.City
		page, err = s.ByOperationAndCity(ctx, op, res.City, opts)
	case slug.KindType:
		out.Type = res.Type
		page, err = s.ByOperationCityAndType(ctx, op, city, res.Type, opts)
	case slug.KindTag:
		out.Tag = res.Tag
		if city == "" {
			page, err = s.ByOperationAndTag(ctx, op, res.Tag.ID, opts)
		} else {
			page, err = s.ByOperationCityTypeAndTag(ctx, op, city, "", res.Tag.ID, opts)
		}
	case slug.KindTypeTag:
		out.Type = res.Type
		out.Tag = res.Tag
		page, err = s.ByOperationCityTypeAndTag(ctx, op, city, res.Type, res.Tag.ID, opts)
	default:
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, err
	}

	out.Page = page
	out.Heading = heading(op, res.CanonicalName, city)
	return out, nil
}

// BySlug returns one property with its gallery, labels and neighborhood
func (s *Service) BySlug(ctx context.Context, propertySlug string) (*models.Property, error) {
	key := cache.GenerateKey("detail", propertySlug)
	p, err := cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (*models.Property, error) {
		p, err := s.store.GetPropertyBySlug(ctx, propertySlug)
		if err != nil {
			return nil, err
		}
		return s.hydrate(ctx, p)
	}, cache.TagCatalog)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.DatastoreErrors.WithLabelValues("detail").Inc()
		s.log.WithError(err).WithField("slug", propertySlug).Error("Failed to load property detail")
		return nil, err
	}
	return p, nil
}

// AdminList reads a filtered page straight from the datastore, skipping the cache
func (s *Service) AdminList(ctx context.Context, f Filter) (Page, error) {
	f = f.normalized()
	plan := Compile(f)
	items, total, err := s.store.FindPage(ctx, plan)
	if err != nil {
		return Page{}, err
	}
	if _, err := Attach(ctx, s.store, items); err != nil {
		s.log.WithError(err).Warn("Image attachment failed")
	}
	return newPage(items, total, f.Page), nil
}

// AdminGet reads one property by ID, skipping the cache
func (s *Service) AdminGet(ctx context.Context, id string) (*models.Property, error) {
	p, err := s.store.GetPropertyByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, p)
}

func (s *Service) hydrate(ctx context.Context, p *models.Property) (*models.Property, error) {
	withImages, err := Attach(ctx, s.store, []models.Property{*p})
	if err != nil {
		return nil, fmt.Errorf("attach images: %w", err)
	}
	out := withImages[0]

	tags, amenities, err := s.store.LabelsFor(ctx, out.ID)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	out.Tags = tags
	out.Amenities = amenities

	if out.NeighborhoodID != nil {
		n, err := s.store.GetNeighborhood(ctx, *out.NeighborhoodID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("load neighborhood: %w", err)
		}
		out.Neighborhood = n
	}
	return &out, nil
}

// listWith applies query-string options, resolving the barrio refinement to an ID
func (s *Service) listWith(ctx context.Context, shape string, f Filter, opts Options) (Page, error) {
	f.MinRooms = opts.MinRooms
	f.Sort = opts.Sort
	f.Page = opts.Page

	if opts.Neighborhood != "" {
		res, err := s.resolver.ResolveNeighborhood(ctx, opts.Neighborhood)
		if err != nil {
			s.log.WithError(err).WithField("barrio", opts.Neighborhood).Error("Neighborhood resolution failed")
			return emptyPage(opts.Page), nil
		}
		if !res.Found() {
			return Page{}, ErrNotFound
		}
		f.NeighborhoodID = res.Neighborhood.ID
	}

	f = f.normalized()
	key := cache.GenerateKey(shape, f)
	return s.fetch(ctx, shape, key, Compile(f), f.Page, s.cache)
}

// partialPage carries a page whose images could not be attached. It travels
// as an error so the cache never stores it.
type partialPage struct {
	page Page
	err  error
}

func (e *partialPage) Error() string { return "partial page: " + e.err.Error() }
func (e *partialPage) Unwrap() error { return e.err }

func (s *Service) fetch(ctx context.Context, shape, key string, plan query.Plan, pageNum int, c *cache.Cache) (Page, error) {
	page, err := cache.GetOrCompute(ctx, c, key, func(ctx context.Context) (Page, error) {
		start := time.Now()
		items, total, err := s.store.FindPage(ctx, plan)
		metrics.RecordQuery(shape, time.Since(start), err)
		if err != nil {
			return Page{}, err
		}

		page := newPage(items, total, pageNum)
		if _, err := Attach(ctx, s.store, page.Items); err != nil {
			return Page{}, &partialPage{page: page, err: err}
		}
		return page, nil
	}, cache.TagCatalog)
	if err == nil {
		return page, nil
	}

	var partial *partialPage
	if errors.As(err, &partial) {
		s.log.WithError(partial.err).WithFields(logrus.Fields{
			"shape": shape,
			"plan":  plan.String(),
		}).Error("Image attachment failed")
		return partial.page, nil
	}

	s.log.WithError(err).WithFields(logrus.Fields{
		"shape": shape,
		"plan":  plan.String(),
	}).Error("Catalog query failed")
	return emptyPage(pageNum), nil
}

func scoped(op models.Operation, city, typ string) (Filter, error) {
	if !op.Valid() {
		return Filter{}, ErrNotFound
	}
	f := Filter{Operation: op}
	if city != "" {
		c, ok := slug.NormalizeCity(city)
		if !ok {
			return Filter{}, ErrNotFound
		}
		f.City = c
	}
	if typ != "" {
		t, ok := slug.NormalizeType(typ)
		if !ok {
			return Filter{}, ErrNotFound
		}
		f.Type = t
	}
	return f, nil
}

func newPage(items []models.Property, total int64, pageNum int) Page {
	pageNum = max(1, min(pageNum, MaxPage))
	if items == nil {
		items = []models.Property{}
	}
	return Page{
		Items:      items,
		TotalCount: total,
		Page:       pageNum,
		TotalPages: int((total + PageSize - 1) / PageSize),
	}
}

func emptyPage(pageNum int) Page {
	return newPage(nil, 0, pageNum)
}

func heading(op models.Operation, name, city string) string {
	verb := "en venta"
	if op == models.OperationLease {
		verb = "en arriendo"
	}
	if city != "" {
		return fmt.Sprintf("%s %s en %s", name, verb, slug.CityName(city))
	}
	return fmt.Sprintf("%s %s", name, verb)
}

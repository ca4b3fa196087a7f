package search

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/models"
	"time"

	"github.com/goccy/go-json"
	"github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
)

const defaultLimit = 20

// ErrUnavailable is returned while the breaker is open or search is disabled
var ErrUnavailable = errors.New("search: engine unavailable")

// Document is the indexed form of a property
type Document struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"titulo"`
	Description  string   `json:"descripcion,omitempty"`
	Operation    string   `json:"operacion"`
	City         string   `json:"ciudad"`
	Type         string   `json:"tipo"`
	Price        int64    `json:"precio"`
	Rooms        int      `json:"habitaciones"`
	Neighborhood string   `json:"barrio,omitempty"`
	Highlighted  bool     `json:"destacado"`
	Tags         []string `json:"etiquetas,omitempty"`
	CreatedAt    int64    `json:"created_at"`
}

// NewDocument builds the index document of a property
func NewDocument(p *models.Property) Document {
	doc := Document{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.ShortDescription,
		Operation:   string(p.Operation),
		City:        p.City,
		Type:        p.Type,
		Price:       p.Price,
		Rooms:       p.Rooms,
		Highlighted: p.Highlighted,
		Tags:        p.Tags,
		CreatedAt:   p.CreatedAt.Unix(),
	}
	if doc.Description == "" {
		doc.Description = p.Description
	}
	if p.Neighborhood != nil {
		doc.Neighborhood = p.Neighborhood.Name
	}
	return doc
}

// documentIndex is the subset of *meilisearch.Index the client uses
type documentIndex interface {
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	DeleteDocument(identifier string) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// SearchClient talks to Meilisearch behind a circuit breaker
type SearchClient struct {
	client  *meilisearch.Client
	index   documentIndex
	uid     string
	breaker *gobreaker.CircuitBreaker[any]
	log     *logrus.Logger
}

// NewSearchClient creates a client for the configured index
func NewSearchClient(cfg config.MeilisearchConfig, log *logrus.Logger) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:    cfg.Host,
		APIKey:  cfg.APIKey,
		Timeout: 5 * time.Second,
	})
	uid := cfg.Index
	if uid == "" {
		uid = "inmuebles"
	}
	return newSearchClient(client, client.Index(uid), uid, log)
}

func newSearchClient(client *meilisearch.Client, index documentIndex, uid string, log *logrus.Logger) *SearchClient {
	s := &SearchClient{client: client, index: index, uid: uid, log: logging.OrDefault(log)}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "meilisearch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Search circuit breaker state changed")
		},
	})
	return s
}

// call runs fn through the breaker, mapping an open breaker to ErrUnavailable
func (s *SearchClient) call(fn func() (any, error)) (any, error) {
	res, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	return res, err
}

// InitIndex creates the index and configures its attributes
func (s *SearchClient) InitIndex() error {
	if s.client == nil {
		return ErrUnavailable
	}
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.uid,
		PrimaryKey: "id",
	})
	var apiErr *meilisearch.Error
	if err != nil && !(errors.As(err, &apiErr) && apiErr.MeilisearchApiError.Code == "index_already_exists") {
		return fmt.Errorf("failed to create index %s: %w", s.uid, err)
	}

	index := s.client.Index(s.uid)
	if _, err := index.UpdateSearchableAttributes(&[]string{
		"titulo",
		"descripcion",
		"barrio",
		"ciudad",
		"tipo",
		"etiquetas",
	}); err != nil {
		return err
	}
	if _, err := index.UpdateFilterableAttributes(&[]string{
		"operacion",
		"ciudad",
		"tipo",
		"precio",
		"habitaciones",
		"destacado",
	}); err != nil {
		return err
	}
	if _, err := index.UpdateSortableAttributes(&[]string{
		"precio",
		"created_at",
	}); err != nil {
		return err
	}
	return nil
}

// IndexProperty upserts one property document
func (s *SearchClient) IndexProperty(ctx context.Context, p *models.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.call(func() (any, error) {
		return s.index.AddDocuments([]Document{NewDocument(p)}, "id")
	})
	return err
}

// DeleteDocument removes one property document
func (s *SearchClient) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.call(func() (any, error) {
		return s.index.DeleteDocument(id)
	})
	return err
}

// Request is a free-text query with optional filters
type Request struct {
	Query   string
	Filters Filters
	Limit   int64
	Offset  int64
}

// Result holds matching documents in relevance order
type Result struct {
	Hits      []Document
	TotalHits int64
	TookMs    int64
}

// IDs returns the property ids of the hits in order
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search runs a query against the index
func (s *SearchClient) Search(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = defaultLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if filter := req.Filters.Expression(); filter != "" {
		searchReq.Filter = filter
	}
	if sort := req.Filters.SortRule(); sort != "" {
		searchReq.Sort = []string{sort}
	}

	res, err := s.call(func() (any, error) {
		return s.index.Search(req.Query, searchReq)
	})
	if err != nil {
		return nil, err
	}
	resp := res.(*meilisearch.SearchResponse)

	result := &Result{
		Hits:      make([]Document, 0, len(resp.Hits)),
		TotalHits: resp.EstimatedTotalHits,
		TookMs:    resp.ProcessingTimeMs,
	}
	for _, hit := range resp.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil || doc.ID == "" {
			continue
		}
		result.Hits = append(result.Hits, doc)
	}
	return result, nil
}

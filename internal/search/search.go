package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/metrics"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	DefaultIndex      = "customer_documents"
	DefaultMaxResults = 10
)

var (
	ErrSearchFailed  = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound = errors.New("INDEX_NOT_FOUND")
	ErrEmptyQuery    = errors.New("search query is required")
)

var searchFields = []string{"title^3", "content", "customer_name^2", "tags"}

type Query struct {
	Text         string
	CustomerTier string
	DocumentType string
	// Limit overrides the configured maximum when positive and smaller.
	Limit int
}

type Document struct {
	ID           string                 `json:"id"`
	Score        float64                `json:"score"`
	CustomerID   string                 `json:"customerId,omitempty"`
	CustomerTier string                 `json:"customerTier,omitempty"`
	DocumentType string                 `json:"documentType,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Content      string                 `json:"content,omitempty"`
	Source       map[string]interface{} `json:"source,omitempty"`
}

type Result struct {
	Documents []Document `json:"documents"`
	Total     int64      `json:"total"`
	Took      int64      `json:"took"` // milliseconds
}

type Config struct {
	Index      string
	MaxResults int
	Timeout    time.Duration
}

// Searcher runs full-text queries over the customer document index.
type Searcher struct {
	client *elasticsearch.Client
	config Config
	logger logger.Logger
}

func NewSearcher(client *elasticsearch.Client, config Config, log logger.Logger) *Searcher {
	if config.Index == "" {
		config.Index = DefaultIndex
	}
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}
	return &Searcher{
		client: client,
		config: config,
		logger: log.With(map[string]interface{}{"component": "search", "index": config.Index}),
	}
}

func (s *Searcher) Search(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	size := s.config.MaxResults
	if q.Limit > 0 && q.Limit < size {
		size = q.Limit
	}

	body, err := json.Marshal(BuildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrSearchFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.config.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	start := time.Now()
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.SearchQueries.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		metrics.SearchQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		metrics.SearchQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.config.Index)
	}
	if res.IsError() {
		metrics.SearchQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var payload searchResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		metrics.SearchQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	result := &Result{
		Documents: make([]Document, 0, len(payload.Hits.Hits)),
		Total:     payload.Hits.Total.Value,
		Took:      time.Since(start).Milliseconds(),
	}
	for _, hit := range payload.Hits.Hits {
		result.Documents = append(result.Documents, toDocument(hit))
	}

	metrics.SearchQueries.WithLabelValues("ok").Inc()
	s.logger.Debug("document search completed", map[string]interface{}{
		"hits":   len(result.Documents),
		"total":  result.Total,
		"tookMs": result.Took,
	})
	return result, nil
}

// BuildQuery produces the request body: a multi_match over the text fields,
// with exact term filters for tier and document type.
func BuildQuery(q Query) map[string]interface{} {
	must := []interface{}{
		map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": searchFields,
				"type":   "best_fields",
			},
		},
	}

	filters := []interface{}{}
	if q.CustomerTier != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"customer_tier": q.CustomerTier},
		})
	}
	if q.DocumentType != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"document_type": q.DocumentType},
		})
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type searchHit struct {
	ID     string                 `json:"_id"`
	Score  float64                `json:"_score"`
	Source map[string]interface{} `json:"_source"`
}

func toDocument(hit searchHit) Document {
	str := func(key string) string {
		if v, ok := hit.Source[key].(string); ok {
			return v
		}
		return ""
	}
	return Document{
		ID:           hit.ID,
		Score:        hit.Score,
		CustomerID:   str("customer_id"),
		CustomerTier: str("customer_tier"),
		DocumentType: str("document_type"),
		Title:        str("title"),
		Content:      str("content"),
		Source:       hit.Source,
	}
}

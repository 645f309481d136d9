// Package search indexes published videos in Elasticsearch and serves
// full-text queries over them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// IndexVideos is the index published videos are written to
const IndexVideos = "videos"

// IndexVersion is stored in the index _meta; bump it whenever the mapping changes
const IndexVersion = 1

// ErrDisabled is returned when no cluster address was configured
var ErrDisabled = errors.New("search is not configured")

// Indexer keeps the videos index in step with the database
type Indexer interface {
	IndexVideo(ctx context.Context, video *models.Video) error
	DeleteVideo(ctx context.Context, videoID string) error
}

// Searcher runs video queries
type Searcher interface {
	SearchVideos(ctx context.Context, query string, limit, offset int) (*VideoResults, error)
}

var (
	_ Indexer  = (*Client)(nil)
	_ Searcher = (*Client)(nil)
)

// Client wraps the Elasticsearch client with Reelhub-specific functionality
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates an Elasticsearch client. It returns ErrDisabled when no
// address is configured.
func NewClient(cfg config.SearchConfig) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrDisabled
	}
	return newClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: telemetry.NewTransport("elasticsearch", nil),
	})
}

func newClient(cfg elasticsearch.Config) (*Client, error) {
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Ping verifies the cluster is reachable
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch info returned [%s]", res.Status())
	}
	return nil
}

// EnsureIndex creates the videos index with its mapping when missing
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{IndexVideos}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	mappingJSON, err := json.Marshal(videosMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(IndexVideos,
		c.es.Indices.Create.WithBody(bytes.NewReader(mappingJSON)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("creating index", res.Status(), res.Body)
	}
	return nil
}

func videosMapping() map[string]interface{} {
	text := map[string]interface{}{"type": "text", "analyzer": "standard"}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"_meta": map[string]interface{}{"version": IndexVersion},
			"properties": map[string]interface{}{
				"id":          map[string]interface{}{"type": "keyword"},
				"user_id":     map[string]interface{}{"type": "keyword"},
				"username":    map[string]interface{}{"type": "keyword"},
				"title":       text,
				"description": text,
				"tags":        map[string]interface{}{"type": "keyword"},
				"like_count":  map[string]interface{}{"type": "long"},
				"view_count":  map[string]interface{}{"type": "long"},
				"published_at": map[string]interface{}{
					"type": "date",
				},
			},
		},
	}
}

// IndexVideo writes a published video document
func (c *Client) IndexVideo(ctx context.Context, video *models.Video) error {
	start := time.Now()
	ctx, span := telemetry.TraceExternalCall(ctx, "elasticsearch", "index", attribute.String("video.id", video.ID))

	err := c.indexVideo(ctx, video)
	telemetry.End(span, err)
	metrics.RecordSearch(IndexVideos, "index", time.Since(start), err)
	return err
}

func (c *Client) indexVideo(ctx context.Context, video *models.Video) error {
	body, err := json.Marshal(NewVideoDoc(video))
	if err != nil {
		return fmt.Errorf("failed to marshal video document: %w", err)
	}

	res, err := c.es.Index(IndexVideos, bytes.NewReader(body),
		c.es.Index.WithDocumentID(video.ID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index video: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("indexing video", res.Status(), res.Body)
	}
	return nil
}

// DeleteVideo removes a video document. A missing document is not an error.
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	start := time.Now()
	ctx, span := telemetry.TraceExternalCall(ctx, "elasticsearch", "delete", attribute.String("video.id", videoID))

	err := c.deleteVideo(ctx, videoID)
	telemetry.End(span, err)
	metrics.RecordSearch(IndexVideos, "delete", time.Since(start), err)
	return err
}

func (c *Client) deleteVideo(ctx context.Context, videoID string) error {
	res, err := c.es.Delete(IndexVideos, videoID, c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("deleting video", res.Status(), res.Body)
	}
	return nil
}

// VideoResults is one page of video search hits
type VideoResults struct {
	Videos []VideoHit `json:"videos"`
	Total  int        `json:"total"`
}

// VideoHit is a single scored search hit
type VideoHit struct {
	VideoDoc
	Score float64 `json:"score"`
}

// SearchVideos runs a multi-match over title, description and tags
func (c *Client) SearchVideos(ctx context.Context, query string, limit, offset int) (*VideoResults, error) {
	start := time.Now()
	ctx, span := telemetry.TraceExternalCall(ctx, "elasticsearch", "search",
		attribute.String("search.query", query),
		attribute.Int("search.limit", limit),
	)

	results, err := c.searchVideos(ctx, query, limit, offset)
	telemetry.End(span, err)
	metrics.RecordSearch(IndexVideos, "search", time.Since(start), err)
	return results, err
}

func (c *Client) searchVideos(ctx context.Context, query string, limit, offset int) (*VideoResults, error) {
	queryJSON, err := json.Marshal(buildVideoQuery(query, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(IndexVideos),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("searching videos", res.Status(), res.Body)
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string   `json:"_id"`
				Score  float64  `json:"_score"`
				Source VideoDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	videos := make([]VideoHit, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		doc := hit.Source
		if doc.ID == "" {
			doc.ID = hit.ID
		}
		videos = append(videos, VideoHit{VideoDoc: doc, Score: hit.Score})
	}

	return &VideoResults{Videos: videos, Total: searchResp.Hits.Total.Value}, nil
}

func buildVideoQuery(query string, limit, offset int) map[string]interface{} {
	return map[string]interface{}{
		"from": offset,
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^3", "description", "tags^2"},
				"fuzziness": "AUTO",
			},
		},
	}
}

func responseError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error response [%s]", status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}

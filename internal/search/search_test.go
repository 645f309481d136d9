package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeCluster answers like an Elasticsearch node
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	status, payload := http.StatusOK, `{}`
	if f.respond != nil {
		status, payload = f.respond(r)
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func newTestClient(t *testing.T, cluster *fakeCluster) *Client {
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	c, err := newClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return c
}

func TestNewClientDisabled(t *testing.T) {
	_, err := NewClient(config.SearchConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestIndexVideo(t *testing.T) {
	cluster := &fakeCluster{}
	c := newTestClient(t, cluster)

	video := &models.Video{
		ID:          "v1",
		UserID:      "u1",
		User:        &models.User{Username: "alice"},
		Title:       "Sunset timelapse",
		Tags:        []string{"nature"},
		PublishedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.IndexVideo(context.Background(), video))

	require.Len(t, cluster.requests, 1)
	req := cluster.requests[0]
	assert.Equal(t, "/videos/_doc/v1", req.Path)

	var doc VideoDoc
	require.NoError(t, json.Unmarshal([]byte(req.Body), &doc))
	assert.Equal(t, "alice", doc.Username)
	assert.Equal(t, "2025-05-01T12:00:00Z", doc.PublishedAt)
}

func TestDeleteVideoIgnoresMissing(t *testing.T) {
	cluster := &fakeCluster{respond: func(*http.Request) (int, string) {
		return http.StatusNotFound, `{"result":"not_found"}`
	}}
	c := newTestClient(t, cluster)
	assert.NoError(t, c.DeleteVideo(context.Background(), "gone"))
}

func TestSearchVideos(t *testing.T) {
	cluster := &fakeCluster{respond: func(r *http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":2},"hits":[
			{"_id":"v1","_score":3.2,"_source":{"id":"v1","title":"Cat video","user_id":"u1"}},
			{"_id":"v2","_score":1.1,"_source":{"title":"Another cat"}}
		]}}`
	}}
	c := newTestClient(t, cluster)

	results, err := c.SearchVideos(context.Background(), "cat", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, results.Total)
	require.Len(t, results.Videos, 2)
	assert.Equal(t, "Cat video", results.Videos[0].Title)
	assert.Equal(t, "v2", results.Videos[1].ID)

	require.Len(t, cluster.requests, 1)
	assert.Equal(t, "/videos/_search", cluster.requests[0].Path)
	assert.Contains(t, cluster.requests[0].Body, `"multi_match"`)
}

func TestSearchVideosError(t *testing.T) {
	cluster := &fakeCluster{respond: func(*http.Request) (int, string) {
		return http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`
	}}
	c := newTestClient(t, cluster)

	_, err := c.SearchVideos(context.Background(), "cat", 10, 0)
	assert.ErrorContains(t, err, "parsing_exception")
}

func TestEnsureIndexCreatesWhenMissing(t *testing.T) {
	cluster := &fakeCluster{respond: func(r *http.Request) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	}}
	c := newTestClient(t, cluster)

	require.NoError(t, c.EnsureIndex(context.Background()))
	require.Len(t, cluster.requests, 2)
	assert.Equal(t, http.MethodPut, cluster.requests[1].Method)
	assert.True(t, strings.Contains(cluster.requests[1].Body, `"_meta"`))
}

type countingSearcher struct {
	calls int
	err   error
}

func (s *countingSearcher) SearchVideos(_ context.Context, query string, _, _ int) (*VideoResults, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &VideoResults{Total: 1, Videos: []VideoHit{{VideoDoc: VideoDoc{ID: "v1", Title: query}}}}, nil
}

func TestCachedSearcher(t *testing.T) {
	ctx := context.Background()
	next := &countingSearcher{}
	cached := NewCachedSearcher(next, cache.NewMemory(), time.Minute)

	first, err := cached.SearchVideos(ctx, "Cats", 10, 0)
	require.NoError(t, err)
	second, err := cached.SearchVideos(ctx, " cats ", 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Videos[0].ID, second.Videos[0].ID)

	_, err = cached.SearchVideos(ctx, "cats", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	require.NoError(t, cached.Invalidate(ctx))
	_, err = cached.SearchVideos(ctx, "cats", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedSearcherDoesNotCacheErrors(t *testing.T) {
	next := &countingSearcher{err: errors.New("cluster down")}
	cached := NewCachedSearcher(next, cache.NewMemory(), time.Minute)

	_, err := cached.SearchVideos(context.Background(), "x", 10, 0)
	assert.Error(t, err)
	_, err = cached.SearchVideos(context.Background(), "x", 10, 0)
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

type fakeIndexer struct {
	indexed []string
	deleted []string
}

func (f *fakeIndexer) IndexVideo(_ context.Context, v *models.Video) error {
	f.indexed = append(f.indexed, v.ID)
	return nil
}

func (f *fakeIndexer) DeleteVideo(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestReindex(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "indexer")
	live := testutil.CreateVideo(t, db, user.ID, "live")
	removed := testutil.CreateVideo(t, db, user.ID, "removed")
	require.NoError(t, db.Model(removed).Update("status", models.VideoStatusRemoved).Error)
	deleted := testutil.CreateVideo(t, db, user.ID, "deleted")
	require.NoError(t, db.Delete(deleted).Error)

	idx := &fakeIndexer{}
	summary, err := Reindex(context.Background(), db, idx, time.Time{}, 2)
	require.NoError(t, err)

	assert.Equal(t, ReindexSummary{Indexed: 1, Deleted: 2}, summary)
	assert.Equal(t, []string{live.ID}, idx.indexed)
	assert.ElementsMatch(t, []string{removed.ID, deleted.ID}, idx.deleted)
}

package meilisearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/model"
)

const hitsJSON = `{
  "hits": [
    {
      "id": 7,
      "title": "Solar nowcasting with transformers",
      "content": "Full article body about solar nowcasting.",
      "url": "https://example.org/a/7",
      "author": "R. Chen",
      "tags": ["solar", "ml"],
      "_rankingScore": 0.92,
      "_formatted": {"content": "about <em>solar</em> nowcasting"}
    }
  ],
  "estimatedTotalHits": 1,
  "processingTimeMs": 3,
  "query": "solar"
}`

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	raw, err := New(adapter.Settings{Hosts: []string{srv.URL}, IndexPattern: "articles", APIKey: "master"})
	require.NoError(t, err)
	a := raw.(*Adapter)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func healthThen(search http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			fmt.Fprint(w, `{"status":"available"}`)
			return
		}
		search(w, r)
	}
}

func TestInitializeRejectsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"starting"}`)
	}))
	defer srv.Close()
	raw, err := New(adapter.Settings{Hosts: []string{srv.URL}})
	require.NoError(t, err)
	assert.ErrorIs(t, raw.Initialize(context.Background()), adapter.ErrConnect)
}

func TestSearchSendsPayload(t *testing.T) {
	a := testAdapter(t, healthThen(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/articles/search", r.URL.Path)
		assert.Equal(t, "Bearer master", r.Header.Get("Authorization"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "solar", payload["q"])
		assert.Equal(t, float64(10), payload["limit"])
		assert.Equal(t, true, payload["showRankingScore"])
		fmt.Fprint(w, hitsJSON)
	}))
	raw, err := a.Search(context.Background(), "solar", model.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, raw.TotalHits)
	assert.Equal(t, int64(3), raw.Metadata["processing_time_ms"])
}

func TestSearchAppliesRecencyFilter(t *testing.T) {
	a := testAdapter(t, healthThen(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		filter, _ := payload["filter"].(string)
		assert.True(t, strings.HasPrefix(filter, "timestamp > "), filter)
		fmt.Fprint(w, hitsJSON)
	}))
	opts := model.DefaultSearchOptions()
	opts.RecencyFilter = "30d"
	_, err := a.Search(context.Background(), "solar", opts)
	require.NoError(t, err)
}

func TestMapToStandardSchema(t *testing.T) {
	a := testAdapter(t, healthThen(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hitsJSON)
	}))
	raw, err := a.Search(context.Background(), "solar", model.DefaultSearchOptions())
	require.NoError(t, err)
	doc := a.MapToStandardSchema(raw.Documents[0])
	assert.Equal(t, "7", doc.ID)
	assert.Equal(t, "Solar nowcasting with transformers", doc.Title)
	assert.Equal(t, "about <em>solar</em> nowcasting", doc.Snippet)
	assert.Equal(t, 0.92, doc.Score)
	assert.Equal(t, []string{"solar", "ml"}, doc.Metadata.Tags)
	assert.Equal(t, "articles", doc.Metadata.Source)
}

func TestFetchDocumentNotFound(t *testing.T) {
	a := testAdapter(t, healthThen(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := a.FetchDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestRecencyFilter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := recencyFilter("1d", now)
	assert.Equal(t, fmt.Sprintf("timestamp > %d", now.Add(-24*time.Hour).Unix()), f)
	assert.Empty(t, recencyFilter("d", now))
	assert.Empty(t, recencyFilter("xd", now))
	assert.Empty(t, recencyFilter("10q", now))
	assert.NotEmpty(t, recencyFilter("2h", now))
}

func TestHealthCheckDegraded(t *testing.T) {
	calls := 0
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"status":"available"}`)
			return
		}
		fmt.Fprint(w, `{"status":"maintenance"}`)
	})
	h := a.HealthCheck(context.Background())
	assert.Equal(t, adapter.StatusDegraded, h.Status)
}

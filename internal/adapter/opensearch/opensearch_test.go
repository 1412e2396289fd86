package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/model"
)

const hitsJSON = `{
  "took": 5,
  "hits": {
    "total": {"value": 2},
    "hits": [
      {
        "_id": "d1",
        "_index": "docs-2024",
        "_score": 7.3,
        "_source": {
          "title": "Magnetic reconnection",
          "content": "Full text here.",
          "author": "E. Parker",
          "url": "https://example.org/d1",
          "tags": ["plasma"]
        },
        "highlight": {"content": ["<em>reconnection</em> events", "second fragment"]}
      }
    ]
  }
}`

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	raw, err := New(adapter.Settings{
		Hosts:        []string{srv.URL},
		IndexPattern: "docs-*",
		Username:     "admin",
		Password:     "secret",
	})
	require.NoError(t, err)
	a := raw.(*Adapter)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func infoThen(search http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, `{"cluster_name":"test","version":{"number":"2.11.0"}}`)
			return
		}
		search(w, r)
	}
}

func TestSearchBuildsQueryDSL(t *testing.T) {
	a := testAdapter(t, infoThen(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docs-*/_search", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(10), body["size"])
		mm := body["query"].(map[string]any)["multi_match"].(map[string]any)
		assert.Equal(t, "reconnection", mm["query"])
		fmt.Fprint(w, hitsJSON)
	}))
	raw, err := a.Search(context.Background(), "reconnection", model.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, raw.TotalHits)
	assert.Equal(t, int64(5), raw.Metadata["took_os_ms"])
}

func TestSearchWrapsRecencyFilterInBool(t *testing.T) {
	a := testAdapter(t, infoThen(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		boolQ, ok := body["query"].(map[string]any)["bool"].(map[string]any)
		require.True(t, ok, "expected bool query, got %v", body["query"])
		assert.Len(t, boolQ["filter"], 1)
		fmt.Fprint(w, hitsJSON)
	}))
	opts := model.DefaultSearchOptions()
	opts.RecencyFilter = "1y"
	_, err := a.Search(context.Background(), "q", opts)
	require.NoError(t, err)
}

func TestMapToStandardSchema(t *testing.T) {
	a := testAdapter(t, infoThen(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hitsJSON)
	}))
	raw, err := a.Search(context.Background(), "q", model.DefaultSearchOptions())
	require.NoError(t, err)
	doc := a.MapToStandardSchema(raw.Documents[0])
	assert.Equal(t, "d1", doc.ID)
	assert.Equal(t, "Magnetic reconnection", doc.Title)
	assert.Equal(t, 7.3, doc.Score)
	assert.Contains(t, doc.Snippet, "<em>reconnection</em> events")
	assert.Equal(t, "docs-2024", doc.Metadata.Source)
	assert.Equal(t, []string{"plasma"}, doc.Metadata.Tags)
}

func TestMapToStandardSchemaMissingSource(t *testing.T) {
	a := &Adapter{}
	doc := a.MapToStandardSchema(map[string]any{"_id": "x"})
	assert.Equal(t, "Untitled", doc.Title)
	assert.Equal(t, "unknown", doc.Metadata.Source)
}

func TestRecencyFilter(t *testing.T) {
	f := recencyFilter("30d")
	require.NotNil(t, f)
	rng := f["range"].(map[string]any)["@timestamp"].(map[string]any)
	assert.Equal(t, "now-30d/day", rng["gte"])
	assert.Nil(t, recencyFilter("d"))
	assert.Nil(t, recencyFilter("30q"))
}

func TestHealthCheckStatusMapping(t *testing.T) {
	status := "yellow"
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, `{"cluster_name":"test","version":{"number":"2.11.0"}}`)
			return
		}
		fmt.Fprintf(w, `{"status":%q,"cluster_name":"test","number_of_nodes":3}`, status)
	})
	h := a.HealthCheck(context.Background())
	assert.Equal(t, adapter.StatusDegraded, h.Status)
	status = "green"
	h = a.HealthCheck(context.Background())
	assert.Equal(t, adapter.StatusHealthy, h.Status)
}

func TestFetchDocumentNotFound(t *testing.T) {
	a := testAdapter(t, infoThen(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := a.FetchDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, adapter.ErrNotFound)
}

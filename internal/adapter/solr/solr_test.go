package solr

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

const selectJSON = `{
  "responseHeader": {"QTime": 4},
  "response": {
    "numFound": 2,
    "docs": [
      {
        "id": "s1",
        "title": ["Ionospheric disturbances"],
        "content": ["Body text about the ionosphere."],
        "author": ["K. Davies"],
        "url": ["https://example.org/s1"],
        "score": 3.2,
        "tags": ["atmosphere", "radio"]
      },
      {"id": "s2", "title": "Plain string title", "score": 1.1}
    ]
  },
  "highlighting": {
    "s1": {"content": ["about the <em>ionosphere</em>"]}
  }
}`

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	raw, err := New(adapter.Settings{Hosts: []string{srv.URL}, IndexPattern: "articles"})
	require.NoError(t, err)
	a := raw.(*Adapter)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func pingThen(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/articles/admin/ping" {
			fmt.Fprint(w, `{"status":"OK"}`)
			return
		}
		next(w, r)
	}
}

func TestSearchUsesJSONRequestAPI(t *testing.T) {
	a := testAdapter(t, pingThen(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/select", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ionosphere", body["query"])
		params := body["params"].(map[string]any)
		assert.Equal(t, "edismax", params["defType"])
		fmt.Fprint(w, selectJSON)
	}))
	raw, err := a.Search(context.Background(), "ionosphere", model.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, raw.TotalHits)
	assert.Equal(t, int64(4), raw.Metadata["qtime_ms"])
	// Highlighting is attached to the matching document.
	_, ok := raw.Documents[0]["_highlighting"]
	assert.True(t, ok)
	_, ok = raw.Documents[1]["_highlighting"]
	assert.False(t, ok)
}

func TestSearchAppliesRecencyFilter(t *testing.T) {
	a := testAdapter(t, pingThen(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		filters, ok := body["filter"].([]any)
		require.True(t, ok)
		assert.Equal(t, "timestamp:[NOW-14DAYS TO NOW]", filters[0])
		fmt.Fprint(w, selectJSON)
	}))
	opts := model.DefaultSearchOptions()
	opts.RecencyFilter = "2w"
	_, err := a.Search(context.Background(), "q", opts)
	require.NoError(t, err)
}

func TestMapToStandardSchemaUnwrapsLists(t *testing.T) {
	a := testAdapter(t, pingThen(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, selectJSON)
	}))
	raw, err := a.Search(context.Background(), "q", model.DefaultSearchOptions())
	require.NoError(t, err)

	doc := a.MapToStandardSchema(raw.Documents[0])
	assert.Equal(t, "s1", doc.ID)
	assert.Equal(t, "Ionospheric disturbances", doc.Title)
	assert.Equal(t, "Body text about the ionosphere.", doc.Content)
	assert.Contains(t, doc.Snippet, "<em>ionosphere</em>")
	assert.Equal(t, []string{"atmosphere", "radio"}, doc.Metadata.Tags)
	assert.Equal(t, "articles", doc.Metadata.Source)

	plain := a.MapToStandardSchema(raw.Documents[1])
	assert.Equal(t, "Plain string title", plain.Title)
}

func TestFetchDocument(t *testing.T) {
	a := testAdapter(t, pingThen(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/get", r.URL.Path)
		if r.URL.Query().Get("id") == "s1" {
			fmt.Fprint(w, `{"doc":{"id":"s1","title":"found"}}`)
			return
		}
		fmt.Fprint(w, `{"doc":null}`)
	}))
	doc, err := a.FetchDocument(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", doc["id"])

	_, err = a.FetchDocument(context.Background(), "absent")
	assert.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestRecencyFilter(t *testing.T) {
	assert.Equal(t, "timestamp:[NOW-1YEARS TO NOW]", recencyFilter("1y"))
	assert.Equal(t, "timestamp:[NOW-30DAYS TO NOW]", recencyFilter("30d"))
	assert.Equal(t, "timestamp:[NOW-6HOURS TO NOW]", recencyFilter("6h"))
	assert.Empty(t, recencyFilter("y"))
	assert.Empty(t, recencyFilter("5x"))
}

func TestFirstValue(t *testing.T) {
	assert.Equal(t, "a", firstValue("a"))
	assert.Equal(t, "a", firstValue([]any{"a", "b"}))
	assert.Equal(t, "", firstValue([]any{}))
	assert.Equal(t, "", firstValue(nil))
	assert.Equal(t, "3", firstValue(3))
}

func TestInitializeConnectError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	raw, err := New(adapter.Settings{Hosts: []string{srv.URL}})
	require.NoError(t, err)
	assert.ErrorIs(t, raw.Initialize(context.Background()), adapter.ErrConnect)
}

package wikipedia

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/model"
)

const searchJSON = `{
  "query": {
    "search": [
      {
        "title": "Solar flare",
        "pageid": 28744,
        "snippet": "A <span class=\"searchmatch\">solar</span> <span class=\"searchmatch\">flare</span> is an intense burst",
        "size": 48123,
        "wordcount": 6120,
        "timestamp": "2024-11-02T08:15:00Z"
      },
      {
        "title": "Coronal mass ejection",
        "pageid": 61209,
        "snippet": "often associated with solar flares",
        "size": 30111,
        "wordcount": 4100,
        "timestamp": "2024-10-12T10:00:00Z"
      }
    ]
  }
}`

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	raw, err := New(adapter.Settings{Hosts: []string{srv.URL}})
	require.NoError(t, err)
	a := raw.(*Adapter)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func TestSearchParsesResults(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "solar flares", r.URL.Query().Get("srsearch"))
		assert.Equal(t, "10", r.URL.Query().Get("srlimit"))
		fmt.Fprint(w, searchJSON)
	})
	raw, err := a.Search(context.Background(), "solar flares", model.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, raw.TotalHits)
	require.Len(t, raw.Documents, 2)
	assert.Equal(t, "Solar flare", raw.Documents[0]["title"])
	assert.Equal(t, "wiki_en_28744", raw.Documents[0]["id"])
	// First hit scores highest.
	assert.Equal(t, 1.0, raw.Documents[0]["relevance_score"])
}

func TestSearchServerError(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := a.Search(context.Background(), "q", model.DefaultSearchOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrQuery)
}

func TestSearchBeforeInitialize(t *testing.T) {
	raw, err := New(adapter.Settings{})
	require.NoError(t, err)
	_, err = raw.Search(context.Background(), "q", model.DefaultSearchOptions())
	assert.ErrorIs(t, err, adapter.ErrConnect)
}

func TestMapToStandardSchemaStripsMarkup(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchJSON)
	})
	raw, err := a.Search(context.Background(), "solar flares", model.DefaultSearchOptions())
	require.NoError(t, err)
	doc := a.MapToStandardSchema(raw.Documents[0])
	assert.Equal(t, "Solar flare", doc.Title)
	assert.Equal(t, "A solar flare is an intense burst", doc.Snippet)
	assert.Equal(t, "wikipedia_en", doc.Metadata.Source)
	assert.Contains(t, doc.Metadata.URL, "/wiki/Solar_flare")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", StripHTML("plain text"))
	assert.Equal(t, "bold match", StripHTML(`<span class="searchmatch">bold</span> match`))
	assert.Equal(t, "", StripHTML("<br/>"))
}

func TestNewRejectsBadMaxChars(t *testing.T) {
	_, err := New(adapter.Settings{Extra: map[string]string{"max_chars": "zero"}})
	assert.ErrorIs(t, err, adapter.ErrConfig)
}

func TestHealthCheck(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{}}`)
	})
	h := a.HealthCheck(context.Background())
	assert.Equal(t, adapter.StatusHealthy, h.Status)
}

func TestShutdownIdempotent(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, a.Shutdown(context.Background()))
}

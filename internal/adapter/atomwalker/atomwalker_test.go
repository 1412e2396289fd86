package atomwalker

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

const papersJSON = `{
  "papers": [
    {
      "id": "w1",
      "title": "DDES Model for Turbulent Flow",
      "authors": "Zhang; Li",
      "affiliations": "Tsinghua University",
      "conference_journal": "Journal of Fluid Mechanics",
      "conference_journal_type": "journal",
      "doi": "10.1000/jfm.2024.1",
      "publication_date": "2024-03-01",
      "abstract_text": "We study detached eddy simulation.",
      "citation_count": 42,
      "source_url": "https://example.org/p/w1",
      "jcr": {"category": "Q1"},
      "fqb_jcr": {"major_category": "Engineering", "sub_category_1": "Mechanics"}
    },
    {
      "id": "w2",
      "title": "Untyped Paper",
      "abstract_contents": "Fallback abstract field."
    }
  ],
  "pagination": {"total": 2, "has_more": false},
  "meta": {"query": "turbulence", "index": "atomwalker-works", "took_ms": 12}
}`

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	raw, err := New(adapter.Settings{Hosts: []string{srv.URL}, APIKey: "token"})
	require.NoError(t, err)
	a := raw.(*Adapter)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(adapter.Settings{})
	assert.ErrorIs(t, err, adapter.ErrConfig)
}

func TestNewRejectsBadStrategy(t *testing.T) {
	_, err := New(adapter.Settings{APIKey: "k", Extra: map[string]string{"search_strategy": "slow"}})
	assert.ErrorIs(t, err, adapter.ErrConfig)
}

func TestSearchSendsAuthAndParams(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/resource/ScholarSearch/paper/atomwalker-works", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "turbulence", r.URL.Query().Get("search"))
		assert.Equal(t, "fast", r.URL.Query().Get("search_strategy"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		fmt.Fprint(w, papersJSON)
	})
	raw, err := a.Search(context.Background(), "turbulence", model.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, raw.TotalHits)
	assert.Len(t, raw.Documents, 2)
}

func TestSearchPapersMapping(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, papersJSON)
	})
	papers, err := a.SearchPapers(context.Background(), "turbulence", model.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "DDES Model for Turbulent Flow", p.Title)
	// JCR category overrides the raw journal type.
	assert.Equal(t, "Q1", p.ConferenceJournalType)
	// Bare DOI gets the resolver prefix.
	assert.Equal(t, "https://doi.org/10.1000/jfm.2024.1", p.DOI)
	assert.Equal(t, 42, p.CitationCount)
	assert.Equal(t, "https://example.org/p/w1", p.SourceURL)

	// Sparse papers degrade to N/A, and abstract_contents is the fallback.
	q := papers[1]
	assert.Equal(t, "Fallback abstract field.", q.Abstract)
	assert.Equal(t, "N/A", q.Authors)
	assert.Equal(t, "N/A", q.DOI)
}

func TestResearchFieldFromFQB(t *testing.T) {
	p := mapToPaper(map[string]any{
		"title":   "x",
		"fqb_jcr": map[string]any{"major_category": "Physics", "sub_category_1": "Plasma", "sub_category_2": "Solar"},
	})
	assert.Equal(t, "Physics; Plasma; Solar", p.ResearchField)
}

func TestSearchAPIErrorIsQueryError(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"detail":"forbidden"}`)
	})
	_, err := a.Search(context.Background(), "q", model.DefaultSearchOptions())
	assert.ErrorIs(t, err, adapter.ErrQuery)
}

func TestFetchDocumentFallsBackToSearch(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, papersJSON)
	})
	doc, err := a.FetchDocument(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", doc["id"])
}

func TestFetchDocumentNotFound(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"papers": [], "pagination": {"total": 0}, "meta": {}}`)
	})
	_, err := a.FetchDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestMapToStandardSchema(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, papersJSON)
	})
	raw, err := a.Search(context.Background(), "q", model.DefaultSearchOptions())
	require.NoError(t, err)
	doc := a.MapToStandardSchema(raw.Documents[0])
	assert.Equal(t, "Journal of Fluid Mechanics", doc.Metadata.Source)
	assert.Equal(t, "42", doc.Metadata.Extra["citation_count"])
	assert.Equal(t, "We study detached eddy simulation.", doc.Content)
}

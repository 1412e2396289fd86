// Package atomwalker connects to the AtomWalker ScholarSearch API and
// returns academic papers with full bibliographic metadata.
package atomwalker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/model"
)

const (
	defaultBaseURL  = "http://wis-apihub-v2.dev.atominnolab.com"
	defaultIndex    = "atomwalker-works"
	defaultStrategy = "fast"
)

// Adapter searches the ScholarSearch paper index. It implements the
// optional PaperSearcher capability so the pipeline can keep the full
// academic metadata instead of the generic document schema.
type Adapter struct {
	baseURL  string
	apiKey   string
	index    string
	strategy string
	client   *http.Client
}

// New builds the adapter from settings. The API key is required; extra
// keys: "index" and "search_strategy" (fast or comprehensive).
func New(s adapter.Settings) (adapter.SearchAdapter, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: atomwalker requires api_key", adapter.ErrConfig)
	}
	a := &Adapter{
		baseURL:  defaultBaseURL,
		apiKey:   s.APIKey,
		index:    defaultIndex,
		strategy: defaultStrategy,
	}
	if len(s.Hosts) > 0 {
		a.baseURL = strings.TrimRight(s.Hosts[0], "/")
	}
	if v := s.Extra["index"]; v != "" {
		a.index = v
	}
	if v := s.Extra["search_strategy"]; v != "" {
		if v != "fast" && v != "comprehensive" {
			return nil, fmt.Errorf("%w: search_strategy %q", adapter.ErrConfig, v)
		}
		a.strategy = v
	}
	return a, nil
}

func (a *Adapter) Name() string { return "atomwalker" }

func (a *Adapter) Initialize(ctx context.Context) error {
	a.client = &http.Client{Timeout: 30 * time.Second}
	log.Info().Str("index", a.index).Str("strategy", a.strategy).Msg("atomwalker adapter initialized")
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.client = nil
	return nil
}

type apiResponse struct {
	Papers     []map[string]any `json:"papers"`
	Pagination struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	} `json:"pagination"`
	Meta struct {
		Query  string `json:"query"`
		Index  string `json:"index"`
		TookMS int64  `json:"took_ms"`
	} `json:"meta"`
}

func (a *Adapter) Search(ctx context.Context, query string, opts model.SearchOptions) (adapter.RawResults, error) {
	resp, tookMS, err := a.doSearch(ctx, query, opts.MaxResults)
	if err != nil {
		return adapter.RawResults{}, err
	}
	log.Debug().
		Str("query", query).
		Int("results", len(resp.Papers)).
		Int64("took_ms", tookMS).
		Int64("api_took_ms", resp.Meta.TookMS).
		Msg("atomwalker search")
	total := resp.Pagination.Total
	if total == 0 {
		total = len(resp.Papers)
	}
	return adapter.RawResults{
		TotalHits: total,
		Documents: resp.Papers,
		Metadata: map[string]any{
			"query":       resp.Meta.Query,
			"index":       a.index,
			"api_took_ms": resp.Meta.TookMS,
			"has_more":    resp.Pagination.HasMore,
		},
		TookMS: tookMS,
	}, nil
}

// SearchPapers returns PaperInfo directly, preserving journal rankings and
// citation data that the generic schema would drop.
func (a *Adapter) SearchPapers(ctx context.Context, query string, opts model.SearchOptions) ([]model.PaperInfo, error) {
	resp, _, err := a.doSearch(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, err
	}
	papers := make([]model.PaperInfo, 0, len(resp.Papers))
	for _, raw := range resp.Papers {
		papers = append(papers, mapToPaper(raw))
	}
	return papers, nil
}

func (a *Adapter) doSearch(ctx context.Context, query string, size int) (apiResponse, int64, error) {
	var out apiResponse
	if a.client == nil {
		return out, 0, fmt.Errorf("%w: atomwalker client not initialized", adapter.ErrConnect)
	}
	params := url.Values{
		"search":          {query},
		"search_strategy": {a.strategy},
		"size":            {strconv.Itoa(size)},
	}
	endpoint := fmt.Sprintf("%s/api/v1/resource/ScholarSearch/paper/%s?%s", a.baseURL, a.index, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return out, 0, fmt.Errorf("%w: %v", adapter.ErrConnect, err)
	}
	defer resp.Body.Close()
	tookMS := time.Since(start).Milliseconds()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return out, tookMS, fmt.Errorf("%w: atomwalker HTTP %d: %s", adapter.ErrQuery, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, tookMS, fmt.Errorf("%w: decode: %v", adapter.ErrQuery, err)
	}
	return out, tookMS, nil
}

// FetchDocument falls back to a size-1 search, since ScholarSearch exposes
// no single-document endpoint.
func (a *Adapter) FetchDocument(ctx context.Context, id string) (map[string]any, error) {
	resp, _, err := a.doSearch(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if len(resp.Papers) == 0 {
		return nil, fmt.Errorf("%w: paper %q", adapter.ErrNotFound, id)
	}
	return resp.Papers[0], nil
}

func (a *Adapter) MapToStandardSchema(raw map[string]any) model.StandardDocument {
	abstract := str(raw["abstract_text"])
	if abstract == "" {
		abstract = str(raw["abstract_contents"])
	}
	snippet := abstract
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	score, _ := raw["score"].(float64)
	source := str(raw["conference_journal"])
	if source == "" {
		source = "atomwalker"
	}
	pageURL := str(raw["url"])
	if pageURL == "" {
		pageURL = str(raw["source_url"])
	}
	return model.StandardDocument{
		ID:      str(raw["id"]),
		Title:   str(raw["title"]),
		Content: abstract,
		Snippet: snippet,
		Score:   score,
		Metadata: model.DocumentMetadata{
			Source:        source,
			URL:           pageURL,
			PublishedDate: str(raw["publication_date"]),
			Author:        str(raw["authors"]),
			Extra: map[string]string{
				"doi":            str(raw["doi"]),
				"citation_count": strconv.Itoa(intOf(raw["citation_count"])),
			},
		},
	}
}

// mapToPaper converts one raw API paper into PaperInfo without loss. The
// journal type prefers the JCR category when present; the research field
// falls back to the FQB/JCR classification chain; bare DOIs get the
// https://doi.org/ prefix.
func mapToPaper(raw map[string]any) model.PaperInfo {
	journalType := orNA(str(raw["conference_journal_type"]))
	if jcr, ok := raw["jcr"].(map[string]any); ok {
		if cat := str(jcr["category"]); cat != "" {
			journalType = cat
		}
	}

	field := str(raw["research_field"])
	if field == "" {
		if fqb, ok := raw["fqb_jcr"].(map[string]any); ok {
			var parts []string
			if major := str(fqb["major_category"]); major != "" {
				parts = append(parts, major)
			}
			for i := 1; i <= 6; i++ {
				if sub := str(fqb[fmt.Sprintf("sub_category_%d", i)]); sub != "" {
					parts = append(parts, sub)
				}
			}
			field = strings.Join(parts, "; ")
		}
	}

	doi := str(raw["doi"])
	if doi != "" && !strings.HasPrefix(doi, "http") {
		doi = "https://doi.org/" + doi
	}

	abstract := str(raw["abstract_text"])
	if abstract == "" {
		abstract = str(raw["abstract_contents"])
	}
	sourceURL := str(raw["source_url"])
	if sourceURL == "" {
		sourceURL = str(raw["url"])
	}

	return model.PaperInfo{
		Title:                 orNA(str(raw["title"])),
		Authors:               orNA(str(raw["authors"])),
		Affiliations:          orNA(str(raw["affiliations"])),
		ConferenceJournal:     orNA(str(raw["conference_journal"])),
		ConferenceJournalType: journalType,
		ResearchField:         orNA(field),
		DOI:                   orNA(doi),
		PublicationDate:       orNA(str(raw["publication_date"])),
		Abstract:              orNA(abstract),
		CitationCount:         intOf(raw["citation_count"]),
		SourceURL:             orNA(sourceURL),
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) adapter.Health {
	if a.client == nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, Message: "client not initialized"}
	}
	start := time.Now()
	_, _, err := a.doSearch(ctx, "test", 1)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.Health{Status: adapter.StatusDegraded, LatencyMS: latency, Message: err.Error()}
	}
	return adapter.Health{
		Status:    adapter.StatusHealthy,
		LatencyMS: latency,
		LastCheck: time.Now().UTC().Format(time.RFC3339),
		Message:   "index: " + a.index,
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Package wikipedia searches Wikipedia articles through the MediaWiki
// full-text search API (action=query&list=search, backed by CirrusSearch).
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/model"
)

const (
	defaultLanguage = "en"
	defaultMaxChars = 2000
	userAgent       = "OpenSift/0.1 (https://github.com/atominnolab/opensift)"
)

// Adapter queries Wikipedia. The language edition and summary length are
// configurable through the adapter's extra settings.
type Adapter struct {
	language string
	maxChars int
	baseURL  string
	client   *http.Client
}

// New builds the adapter from settings. Extra keys: "language" (edition
// code, default en) and "max_chars" (summary cap).
func New(s adapter.Settings) (adapter.SearchAdapter, error) {
	a := &Adapter{
		language: defaultLanguage,
		maxChars: defaultMaxChars,
	}
	if v := s.Extra["language"]; v != "" {
		a.language = v
	}
	if v := s.Extra["max_chars"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: max_chars %q", adapter.ErrConfig, v)
		}
		a.maxChars = n
	}
	if len(s.Hosts) > 0 {
		a.baseURL = strings.TrimRight(s.Hosts[0], "/")
	} else {
		a.baseURL = fmt.Sprintf("https://%s.wikipedia.org", a.language)
	}
	return a, nil
}

func (a *Adapter) Name() string { return "wikipedia" }

func (a *Adapter) Initialize(ctx context.Context) error {
	a.client = &http.Client{Timeout: 15 * time.Second}
	log.Info().Str("language", a.language).Int("max_chars", a.maxChars).Msg("wikipedia adapter initialized")
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.client = nil
	return nil
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title     string `json:"title"`
			PageID    int    `json:"pageid"`
			Snippet   string `json:"snippet"`
			Size      int    `json:"size"`
			WordCount int    `json:"wordcount"`
			Timestamp string `json:"timestamp"`
		} `json:"search"`
	} `json:"query"`
}

func (a *Adapter) Search(ctx context.Context, query string, opts model.SearchOptions) (adapter.RawResults, error) {
	if a.client == nil {
		return adapter.RawResults{}, fmt.Errorf("%w: wikipedia adapter not initialized", adapter.ErrConnect)
	}

	params := url.Values{
		"action":      {"query"},
		"list":        {"search"},
		"srsearch":    {query},
		"srlimit":     {strconv.Itoa(opts.MaxResults)},
		"srprop":      {"snippet|size|wordcount|timestamp"},
		"srnamespace": {"0"},
		"format":      {"json"},
	}
	start := time.Now()
	var sr searchResponse
	if err := a.getJSON(ctx, "/w/api.php?"+params.Encode(), &sr); err != nil {
		return adapter.RawResults{}, fmt.Errorf("%w: wikipedia search: %v", adapter.ErrQuery, err)
	}
	tookMS := time.Since(start).Milliseconds()

	total := len(sr.Query.Search)
	docs := make([]map[string]any, 0, total)
	for rank, r := range sr.Query.Search {
		pageURL := fmt.Sprintf("%s/wiki/%s", a.baseURL, url.PathEscape(strings.ReplaceAll(r.Title, " ", "_")))
		docs = append(docs, map[string]any{
			"id":              fmt.Sprintf("wiki_%s_%d", a.language, r.PageID),
			"title":           r.Title,
			"search_snippet":  r.Snippet,
			"url":             pageURL,
			"language":        a.language,
			"word_count":      r.WordCount,
			"last_edited":     r.Timestamp,
			"relevance_score": round4(1.0 - float64(rank)/float64(max(total, 1))),
		})
	}
	log.Debug().Str("query", query).Int("results", len(docs)).Int64("took_ms", tookMS).Msg("wikipedia search")
	return adapter.RawResults{
		TotalHits: total,
		Documents: docs,
		Metadata:  map[string]any{"language": a.language, "query": query},
		TookMS:    tookMS,
	}, nil
}

// FetchDocument retrieves a page extract by title using the TextExtracts
// API.
func (a *Adapter) FetchDocument(ctx context.Context, id string) (map[string]any, error) {
	if a.client == nil {
		return nil, fmt.Errorf("%w: wikipedia adapter not initialized", adapter.ErrConnect)
	}
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|info"},
		"titles":      {id},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"inprop":      {"url"},
		"format":      {"json"},
	}
	var resp struct {
		Query struct {
			Pages map[string]struct {
				PageID  int    `json:"pageid"`
				Title   string `json:"title"`
				Extract string `json:"extract"`
				FullURL string `json:"fullurl"`
				Missing *any   `json:"missing,omitempty"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := a.getJSON(ctx, "/w/api.php?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("%w: wikipedia fetch: %v", adapter.ErrQuery, err)
	}
	for key, page := range resp.Query.Pages {
		if key == "-1" || page.Missing != nil {
			break
		}
		summary := page.Extract
		if len(summary) > a.maxChars {
			summary = summary[:a.maxChars] + "…"
		}
		return map[string]any{
			"id":       fmt.Sprintf("wiki_%s_%d", a.language, page.PageID),
			"title":    page.Title,
			"summary":  summary,
			"url":      page.FullURL,
			"language": a.language,
		}, nil
	}
	return nil, fmt.Errorf("%w: wikipedia page %q", adapter.ErrNotFound, id)
}

func (a *Adapter) MapToStandardSchema(raw map[string]any) model.StandardDocument {
	snippet := StripHTML(str(raw["search_snippet"]))
	content := str(raw["summary"])
	if content == "" {
		content = snippet
	}
	score, _ := raw["relevance_score"].(float64)
	return model.StandardDocument{
		ID:      str(raw["id"]),
		Title:   str(raw["title"]),
		Content: content,
		Snippet: snippet,
		Score:   score,
		Metadata: model.DocumentMetadata{
			Source:        "wikipedia_" + str(raw["language"]),
			URL:           str(raw["url"]),
			PublishedDate: str(raw["last_edited"]),
			Language:      str(raw["language"]),
		},
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) adapter.Health {
	if a.client == nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, Message: "client not initialized"}
	}
	params := url.Values{
		"action": {"query"},
		"meta":   {"siteinfo"},
		"format": {"json"},
	}
	start := time.Now()
	var resp map[string]any
	err := a.getJSON(ctx, "/w/api.php?"+params.Encode(), &resp)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, LatencyMS: latency, Message: err.Error()}
	}
	return adapter.Health{
		Status:    adapter.StatusHealthy,
		LatencyMS: latency,
		LastCheck: time.Now().UTC().Format(time.RFC3339),
		Message:   fmt.Sprintf("wikipedia (%s) reachable", a.language),
	}
}

func (a *Adapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StripHTML flattens the markup MediaWiki embeds in search snippets
// (searchmatch spans) down to plain text.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var sb strings.Builder
	tok := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(tok.Text())
		}
	}
}

func round4(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

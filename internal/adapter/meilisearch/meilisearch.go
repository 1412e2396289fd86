// Package meilisearch connects to a MeiliSearch instance over its REST API.
package meilisearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/model"
)

const (
	defaultBaseURL = "http://localhost:7700"
	defaultIndex   = "documents"
)

// Adapter searches one MeiliSearch index.
type Adapter struct {
	baseURL string
	index   string
	apiKey  string
	client  *http.Client
}

// New builds the adapter from settings. Hosts[0] is the instance URL,
// IndexPattern the index UID, APIKey the master or search key.
func New(s adapter.Settings) (adapter.SearchAdapter, error) {
	a := &Adapter{
		baseURL: defaultBaseURL,
		index:   defaultIndex,
		apiKey:  s.APIKey,
	}
	if len(s.Hosts) > 0 {
		a.baseURL = strings.TrimRight(s.Hosts[0], "/")
	}
	if s.IndexPattern != "" {
		a.index = s.IndexPattern
	}
	return a, nil
}

func (a *Adapter) Name() string { return "meilisearch" }

// Initialize verifies the instance reports itself available.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.client = &http.Client{Timeout: 30 * time.Second}
	var health struct {
		Status string `json:"status"`
	}
	if err := a.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return fmt.Errorf("%w: meilisearch: %v", adapter.ErrConnect, err)
	}
	if health.Status != "available" {
		return fmt.Errorf("%w: meilisearch status %q", adapter.ErrConnect, health.Status)
	}
	log.Info().Str("base_url", a.baseURL).Str("index", a.index).Msg("connected to meilisearch")
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.client = nil
	return nil
}

type searchResponse struct {
	Hits               []map[string]any `json:"hits"`
	EstimatedTotalHits int              `json:"estimatedTotalHits"`
	TotalHits          int              `json:"totalHits"`
	ProcessingTimeMS   int64            `json:"processingTimeMs"`
	Query              string           `json:"query"`
}

func (a *Adapter) Search(ctx context.Context, query string, opts model.SearchOptions) (adapter.RawResults, error) {
	if a.client == nil {
		return adapter.RawResults{}, fmt.Errorf("%w: meilisearch client not initialized", adapter.ErrConnect)
	}
	payload := map[string]any{
		"q":                     query,
		"limit":                 opts.MaxResults,
		"offset":                0,
		"attributesToHighlight": []string{"title", "content"},
		"highlightPreTag":       "<em>",
		"highlightPostTag":      "</em>",
		"attributesToCrop":      []string{"content"},
		"cropLength":            200,
		"showRankingScore":      true,
	}
	if opts.RecencyFilter != "" {
		if f := recencyFilter(opts.RecencyFilter, time.Now()); f != "" {
			payload["filter"] = f
		}
	}

	start := time.Now()
	var sr searchResponse
	if err := a.do(ctx, http.MethodPost, "/indexes/"+a.index+"/search", payload, &sr); err != nil {
		return adapter.RawResults{}, fmt.Errorf("%w: meilisearch query: %v", adapter.ErrQuery, err)
	}
	tookMS := time.Since(start).Milliseconds()

	total := sr.EstimatedTotalHits
	if total == 0 {
		total = sr.TotalHits
	}
	if total == 0 {
		total = len(sr.Hits)
	}
	return adapter.RawResults{
		TotalHits: total,
		Documents: sr.Hits,
		Metadata: map[string]any{
			"processing_time_ms": sr.ProcessingTimeMS,
			"query":              sr.Query,
		},
		TookMS: tookMS,
	}, nil
}

func (a *Adapter) FetchDocument(ctx context.Context, id string) (map[string]any, error) {
	if a.client == nil {
		return nil, fmt.Errorf("%w: meilisearch client not initialized", adapter.ErrConnect)
	}
	var doc map[string]any
	err := a.do(ctx, http.MethodGet, "/indexes/"+a.index+"/documents/"+id, nil, &doc)
	if err != nil {
		if strings.Contains(err.Error(), "HTTP 404") {
			return nil, fmt.Errorf("%w: document %q", adapter.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: meilisearch fetch: %v", adapter.ErrQuery, err)
	}
	return doc, nil
}

func (a *Adapter) MapToStandardSchema(raw map[string]any) model.StandardDocument {
	content := firstString(raw, "content", "body", "text")
	snippet := ""
	if formatted, ok := raw["_formatted"].(map[string]any); ok {
		snippet = firstString(formatted, "content", "body")
	}
	score, _ := raw["_rankingScore"].(float64)
	tags := stringList(raw["tags"])
	title := str(raw["title"])
	if title == "" {
		title = "Untitled"
	}
	return model.StandardDocument{
		ID:      anyString(raw["id"]),
		Title:   title,
		Content: content,
		Snippet: snippet,
		Score:   score,
		Metadata: model.DocumentMetadata{
			Source:        a.index,
			URL:           str(raw["url"]),
			PublishedDate: firstString(raw, "published_date", "date", "timestamp"),
			Author:        str(raw["author"]),
			Tags:          tags,
			Extra:         map[string]string{"meili_index": a.index},
		},
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) adapter.Health {
	if a.client == nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, Message: "client not initialized"}
	}
	start := time.Now()
	var health struct {
		Status string `json:"status"`
	}
	err := a.do(ctx, http.MethodGet, "/health", nil, &health)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, LatencyMS: latency, Message: err.Error()}
	}
	status := adapter.StatusHealthy
	if health.Status != "available" {
		status = adapter.StatusDegraded
	}
	return adapter.Health{
		Status:    status,
		LatencyMS: latency,
		LastCheck: time.Now().UTC().Format(time.RFC3339),
		Message:   fmt.Sprintf("index: %s, status: %s", a.index, health.Status),
	}
}

func (a *Adapter) do(ctx context.Context, method, path string, body, out any) error {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// recencyFilter converts a recency string like "30d" or "1y" into a
// timestamp filter expression, since MeiliSearch filters compare numbers.
func recencyFilter(recency string, now time.Time) string {
	if len(recency) < 2 {
		return ""
	}
	value, err := strconv.Atoi(recency[:len(recency)-1])
	if err != nil {
		return ""
	}
	var d time.Duration
	switch strings.ToLower(recency[len(recency)-1:]) {
	case "y":
		d = time.Duration(value) * 365 * 24 * time.Hour
	case "m":
		d = time.Duration(value) * 30 * 24 * time.Hour
	case "w":
		d = time.Duration(value) * 7 * 24 * time.Hour
	case "d":
		d = time.Duration(value) * 24 * time.Hour
	case "h":
		d = time.Duration(value) * time.Hour
	default:
		return ""
	}
	return fmt.Sprintf("timestamp > %d", now.Add(-d).Unix())
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func anyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s := str(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}

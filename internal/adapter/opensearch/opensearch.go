// Package opensearch connects to an OpenSearch (v2+) cluster through the
// query DSL REST endpoints.
package opensearch

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

const defaultHost = "https://localhost:9200"

// Adapter runs BM25 full-text queries against an index pattern.
type Adapter struct {
	host         string
	indexPattern string
	username     string
	password     string
	client       *http.Client
}

// New builds the adapter from settings.
func New(s adapter.Settings) (adapter.SearchAdapter, error) {
	a := &Adapter{
		host:         defaultHost,
		indexPattern: "*",
		username:     s.Username,
		password:     s.Password,
	}
	if len(s.Hosts) > 0 {
		a.host = strings.TrimRight(s.Hosts[0], "/")
	}
	if s.IndexPattern != "" {
		a.indexPattern = s.IndexPattern
	}
	return a, nil
}

func (a *Adapter) Name() string { return "opensearch" }

// Initialize verifies cluster reachability via the root info endpoint.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.client = &http.Client{Timeout: 30 * time.Second}
	var info struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := a.do(ctx, http.MethodGet, "/", nil, &info); err != nil {
		return fmt.Errorf("%w: opensearch: %v", adapter.ErrConnect, err)
	}
	log.Info().
		Str("cluster", info.ClusterName).
		Str("version", info.Version.Number).
		Msg("connected to opensearch")
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.client = nil
	return nil
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []map[string]any `json:"hits"`
	} `json:"hits"`
}

func (a *Adapter) Search(ctx context.Context, query string, opts model.SearchOptions) (adapter.RawResults, error) {
	if a.client == nil {
		return adapter.RawResults{}, fmt.Errorf("%w: opensearch client not initialized", adapter.ErrConnect)
	}

	match := map[string]any{
		"multi_match": map[string]any{
			"query":     query,
			"fields":    []string{"title^2", "content", "description"},
			"type":      "best_fields",
			"fuzziness": "AUTO",
		},
	}
	body := map[string]any{
		"query": match,
		"size":  opts.MaxResults,
		"highlight": map[string]any{
			"fields": map[string]any{
				"content": map[string]any{"fragment_size": 200, "number_of_fragments": 3},
				"title":   map[string]any{},
			},
		},
		"_source": true,
	}
	if opts.RecencyFilter != "" {
		if rf := recencyFilter(opts.RecencyFilter); rf != nil {
			body["query"] = map[string]any{
				"bool": map[string]any{
					"must":   []any{match},
					"filter": []any{rf},
				},
			}
		}
	}

	start := time.Now()
	var sr searchResponse
	if err := a.do(ctx, http.MethodPost, "/"+a.indexPattern+"/_search", body, &sr); err != nil {
		return adapter.RawResults{}, fmt.Errorf("%w: opensearch query: %v", adapter.ErrQuery, err)
	}
	tookMS := time.Since(start).Milliseconds()

	return adapter.RawResults{
		TotalHits: sr.Hits.Total.Value,
		Documents: sr.Hits.Hits,
		Metadata:  map[string]any{"took_os_ms": sr.Took},
		TookMS:    tookMS,
	}, nil
}

func (a *Adapter) FetchDocument(ctx context.Context, id string) (map[string]any, error) {
	if a.client == nil {
		return nil, fmt.Errorf("%w: opensearch client not initialized", adapter.ErrConnect)
	}
	var doc map[string]any
	err := a.do(ctx, http.MethodGet, "/"+a.indexPattern+"/_doc/"+id, nil, &doc)
	if err != nil {
		if strings.Contains(err.Error(), "HTTP 404") {
			return nil, fmt.Errorf("%w: document %q", adapter.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: opensearch fetch: %v", adapter.ErrQuery, err)
	}
	return doc, nil
}

func (a *Adapter) MapToStandardSchema(raw map[string]any) model.StandardDocument {
	source, _ := raw["_source"].(map[string]any)
	if source == nil {
		source = map[string]any{}
	}

	var snippetParts []string
	if highlight, ok := raw["highlight"].(map[string]any); ok {
		for _, v := range highlight {
			if frags, ok := v.([]any); ok {
				for _, f := range frags {
					if s := str(f); s != "" {
						snippetParts = append(snippetParts, s)
					}
				}
			}
		}
	}

	score, _ := raw["_score"].(float64)
	title := str(source["title"])
	if title == "" {
		title = "Untitled"
	}
	index := str(raw["_index"])
	if index == "" {
		index = "unknown"
	}
	return model.StandardDocument{
		ID:      str(raw["_id"]),
		Title:   title,
		Content: firstString(source, "content", "body", "text"),
		Snippet: strings.Join(snippetParts, " ... "),
		Score:   score,
		Metadata: model.DocumentMetadata{
			Source:        index,
			URL:           str(source["url"]),
			PublishedDate: firstString(source, "published_date", "date", "@timestamp"),
			Author:        str(source["author"]),
			Tags:          stringList(source["tags"]),
			Extra:         map[string]string{"os_index": index},
		},
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) adapter.Health {
	if a.client == nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, Message: "client not initialized"}
	}
	start := time.Now()
	var health struct {
		Status        string `json:"status"`
		ClusterName   string `json:"cluster_name"`
		NumberOfNodes int    `json:"number_of_nodes"`
	}
	err := a.do(ctx, http.MethodGet, "/_cluster/health", nil, &health)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, LatencyMS: latency, Message: err.Error()}
	}
	status := adapter.StatusUnhealthy
	switch health.Status {
	case "green":
		status = adapter.StatusHealthy
	case "yellow":
		status = adapter.StatusDegraded
	}
	return adapter.Health{
		Status:    status,
		LatencyMS: latency,
		LastCheck: time.Now().UTC().Format(time.RFC3339),
		Message:   fmt.Sprintf("cluster: %s, nodes: %d", health.ClusterName, health.NumberOfNodes),
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
	req, err := http.NewRequestWithContext(ctx, method, a.host+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.username != "" && a.password != "" {
		req.SetBasicAuth(a.username, a.password)
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

// recencyFilter parses "1y" / "30d" style strings into a date range filter
// on @timestamp using date math.
func recencyFilter(recency string) map[string]any {
	if len(recency) < 2 {
		return nil
	}
	value, err := strconv.Atoi(recency[:len(recency)-1])
	if err != nil {
		return nil
	}
	unit := strings.ToLower(recency[len(recency)-1:])
	rounding := map[string]string{"y": "year", "m": "month", "w": "week", "d": "day", "h": "hour"}[unit]
	if rounding == "" {
		return nil
	}
	return map[string]any{
		"range": map[string]any{
			"@timestamp": map[string]any{
				"gte": fmt.Sprintf("now-%d%s/%s", value, unit, rounding),
			},
		},
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
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

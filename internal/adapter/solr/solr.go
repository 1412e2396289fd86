// Package solr connects to Apache Solr (v8+) through the JSON Request API.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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
	defaultBaseURL    = "http://localhost:8983/solr"
	defaultCollection = "documents"
)

// Adapter searches one Solr collection with the edismax parser.
type Adapter struct {
	baseURL    string
	collection string
	username   string
	password   string
	client     *http.Client
}

// New builds the adapter from settings. Hosts[0] is the Solr base URL and
// IndexPattern the collection name.
func New(s adapter.Settings) (adapter.SearchAdapter, error) {
	a := &Adapter{
		baseURL:    defaultBaseURL,
		collection: defaultCollection,
		username:   s.Username,
		password:   s.Password,
	}
	if len(s.Hosts) > 0 {
		a.baseURL = strings.TrimRight(s.Hosts[0], "/")
	}
	if s.IndexPattern != "" {
		a.collection = s.IndexPattern
	}
	return a, nil
}

func (a *Adapter) Name() string { return "solr" }

// Initialize pings the collection admin endpoint.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.client = &http.Client{Timeout: 30 * time.Second}
	var ping map[string]any
	if err := a.do(ctx, http.MethodGet, "/"+a.collection+"/admin/ping", nil, &ping); err != nil {
		return fmt.Errorf("%w: solr: %v", adapter.ErrConnect, err)
	}
	log.Info().Str("collection", a.collection).Str("base_url", a.baseURL).Msg("connected to solr")
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.client = nil
	return nil
}

type selectResponse struct {
	ResponseHeader struct {
		QTime int64 `json:"QTime"`
	} `json:"responseHeader"`
	Response struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	Highlighting map[string]map[string][]string `json:"highlighting"`
}

func (a *Adapter) Search(ctx context.Context, query string, opts model.SearchOptions) (adapter.RawResults, error) {
	if a.client == nil {
		return adapter.RawResults{}, fmt.Errorf("%w: solr client not initialized", adapter.ErrConnect)
	}

	body := map[string]any{
		"query":  query,
		"limit":  opts.MaxResults,
		"offset": 0,
		"params": map[string]any{
			"defType":     "edismax",
			"qf":          "title^2 content description",
			"fl":          "*, score",
			"hl":          "true",
			"hl.fl":       "title,content",
			"hl.fragsize": 200,
			"hl.snippets": 3,
		},
	}
	if opts.RecencyFilter != "" {
		if fq := recencyFilter(opts.RecencyFilter); fq != "" {
			body["filter"] = []string{fq}
		}
	}

	start := time.Now()
	var sr selectResponse
	if err := a.do(ctx, http.MethodPost, "/"+a.collection+"/select", body, &sr); err != nil {
		return adapter.RawResults{}, fmt.Errorf("%w: solr query: %v", adapter.ErrQuery, err)
	}
	tookMS := time.Since(start).Milliseconds()

	// Attach highlighting fragments to their documents so the schema
	// mapper sees one flat object per hit.
	for _, doc := range sr.Response.Docs {
		id := firstValue(doc["id"])
		if hl, ok := sr.Highlighting[id]; ok {
			doc["_highlighting"] = hl
		}
	}

	return adapter.RawResults{
		TotalHits: sr.Response.NumFound,
		Documents: sr.Response.Docs,
		Metadata:  map[string]any{"qtime_ms": sr.ResponseHeader.QTime},
		TookMS:    tookMS,
	}, nil
}

func (a *Adapter) FetchDocument(ctx context.Context, id string) (map[string]any, error) {
	if a.client == nil {
		return nil, fmt.Errorf("%w: solr client not initialized", adapter.ErrConnect)
	}
	var resp struct {
		Doc map[string]any `json:"doc"`
	}
	path := "/" + a.collection + "/get?" + url.Values{"id": {id}}.Encode()
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: solr fetch: %v", adapter.ErrQuery, err)
	}
	if resp.Doc == nil {
		return nil, fmt.Errorf("%w: document %q", adapter.ErrNotFound, id)
	}
	return resp.Doc, nil
}

// MapToStandardSchema flattens a Solr document. Single-valued fields may
// arrive as one-element lists, so every scalar goes through firstValue.
func (a *Adapter) MapToStandardSchema(raw map[string]any) model.StandardDocument {
	var snippetParts []string
	if hl, ok := raw["_highlighting"].(map[string][]string); ok {
		for _, frags := range hl {
			snippetParts = append(snippetParts, frags...)
		}
	} else if hl, ok := raw["_highlighting"].(map[string]any); ok {
		for _, v := range hl {
			if frags, ok := v.([]any); ok {
				for _, f := range frags {
					if s, ok := f.(string); ok {
						snippetParts = append(snippetParts, s)
					}
				}
			}
		}
	}

	score, _ := raw["score"].(float64)
	title := firstValue(raw["title"])
	if title == "" {
		title = "Untitled"
	}
	content := firstValue(raw["content"])
	if content == "" {
		content = firstValue(raw["body"])
	}
	if content == "" {
		content = firstValue(raw["text"])
	}

	tags := stringList(raw["tags"])
	if len(tags) == 0 {
		tags = stringList(raw["category"])
	}

	return model.StandardDocument{
		ID:      firstValue(raw["id"]),
		Title:   title,
		Content: content,
		Snippet: strings.Join(snippetParts, " ... "),
		Score:   score,
		Metadata: model.DocumentMetadata{
			Source:        a.collection,
			URL:           firstValue(raw["url"]),
			PublishedDate: firstValue(raw["published_date"]),
			Author:        firstValue(raw["author"]),
			Tags:          tags,
			Extra:         map[string]string{"solr_collection": a.collection},
		},
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) adapter.Health {
	if a.client == nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, Message: "client not initialized"}
	}
	start := time.Now()
	var ping struct {
		Status string `json:"status"`
	}
	err := a.do(ctx, http.MethodGet, "/"+a.collection+"/admin/ping", nil, &ping)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.Health{Status: adapter.StatusUnhealthy, LatencyMS: latency, Message: err.Error()}
	}
	status := adapter.StatusHealthy
	if ping.Status != "OK" {
		status = adapter.StatusDegraded
	}
	return adapter.Health{
		Status:    status,
		LatencyMS: latency,
		LastCheck: time.Now().UTC().Format(time.RFC3339),
		Message:   fmt.Sprintf("collection: %s, status: %s", a.collection, ping.Status),
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
	if a.username != "" && a.password != "" {
		req.SetBasicAuth(a.username, a.password)
	}
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

// recencyFilter converts "1y" / "30d" style strings to a timestamp fq
// clause using Solr date math. Weeks convert to days.
func recencyFilter(recency string) string {
	if len(recency) < 2 {
		return ""
	}
	value, err := strconv.Atoi(recency[:len(recency)-1])
	if err != nil {
		return ""
	}
	unit := strings.ToLower(recency[len(recency)-1:])
	solrUnit := map[string]string{"y": "YEAR", "m": "MONTH", "w": "DAY", "d": "DAY", "h": "HOUR"}[unit]
	if solrUnit == "" {
		return ""
	}
	if unit == "w" {
		value *= 7
	}
	return fmt.Sprintf("timestamp:[NOW-%d%sS TO NOW]", value, solrUnit)
}

// firstValue unwraps Solr's habit of returning single-valued fields as
// one-element arrays.
func firstValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) == 0 {
			return ""
		}
		return firstValue(t[0])
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	}
	return nil
}

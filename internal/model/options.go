package model

import (
	"encoding/json"
	"time"
)

// SearchOptions are the per-request knobs controlling pipeline behavior.
// Decompose, Verify and Classify default to true when omitted from the
// request body; MaxResults is clamped to [1, 100].
type SearchOptions struct {
	Decompose      bool     `json:"decompose"`
	Verify         bool     `json:"verify"`
	Classify       bool     `json:"classify"`
	Stream         bool     `json:"stream"`
	MaxResults     int      `json:"max_results"`
	RecencyFilter  string   `json:"recency_filter,omitempty"`
	Adapters       []string `json:"adapters,omitempty"`
	TimeoutSeconds float64  `json:"timeout_seconds"`
}

// DefaultSearchOptions returns the options applied when a request omits them.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Decompose:      true,
		Verify:         true,
		Classify:       true,
		MaxResults:     10,
		TimeoutSeconds: 30,
	}
}

// UnmarshalJSON overlays the request body onto the defaults so that omitted
// boolean knobs keep their default-true semantics.
func (o *SearchOptions) UnmarshalJSON(b []byte) error {
	type alias SearchOptions
	a := alias(DefaultSearchOptions())
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*o = SearchOptions(a)
	o.clamp()
	return nil
}

func (o *SearchOptions) clamp() {
	if o.MaxResults < 1 {
		o.MaxResults = 1
	}
	if o.MaxResults > 100 {
		o.MaxResults = 100
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 30
	}
}

// Timeout returns the end-to-end processing deadline as a duration.
func (o SearchOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds * float64(time.Second))
}

// SearchContext carries optional hints that refine search behavior. The core
// pipeline treats it as opaque; adapters may consult it.
type SearchContext struct {
	UserDomain       string            `json:"user_domain,omitempty"`
	PreferredSources []string          `json:"preferred_sources,omitempty"`
	ExcludedSources  []string          `json:"excluded_sources,omitempty"`
	Language         string            `json:"language,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// SearchRequest is an incoming search or plan request.
type SearchRequest struct {
	Query   string         `json:"query"`
	Options *SearchOptions `json:"options,omitempty"`
	Context *SearchContext `json:"context,omitempty"`
}

// Opts returns the request options, substituting defaults when absent.
func (r SearchRequest) Opts() SearchOptions {
	if r.Options == nil {
		return DefaultSearchOptions()
	}
	o := *r.Options
	o.clamp()
	return o
}

// BatchSearchRequest runs several queries through the funnel with shared
// options. At most 20 queries per batch.
type BatchSearchRequest struct {
	Queries      []string       `json:"queries"`
	Options      *SearchOptions `json:"options,omitempty"`
	Context      *SearchContext `json:"context,omitempty"`
	ExportFormat string         `json:"export_format,omitempty"`
}

// MaxBatchQueries bounds the number of queries accepted in one batch request.
const MaxBatchQueries = 20

package adapter

import (
	"context"

	"github.com/atominnolab/opensift/internal/model"
)

// Health statuses reported by adapters.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is the result of an adapter probe.
type Health struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	LastCheck string `json:"last_check,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RawResults are backend hits before normalization.
type RawResults struct {
	TotalHits int              `json:"total_hits"`
	Documents []map[string]any `json:"documents"`
	Metadata  map[string]any   `json:"metadata"`
	TookMS    int64            `json:"took_ms"`
}

// Settings is the per-adapter configuration block.
type Settings struct {
	Enabled      bool
	Hosts        []string
	IndexPattern string
	Username     string
	Password     string
	APIKey       string
	Extra        map[string]string
}

// SearchAdapter is the contract every search backend connector implements.
// Adapters must be safe under concurrent invocation by multiple in-flight
// requests; connection pooling is the adapter's own responsibility.
type SearchAdapter interface {
	// Name returns the stable adapter identifier.
	Name() string

	// Initialize acquires clients and verifies reachability. Called once at
	// startup.
	Initialize(ctx context.Context) error

	// Shutdown releases resources. Must be idempotent.
	Shutdown(ctx context.Context) error

	// Search executes one query against the backend.
	Search(ctx context.Context, query string, opts model.SearchOptions) (RawResults, error)

	// FetchDocument retrieves a single raw document by ID.
	FetchDocument(ctx context.Context, id string) (map[string]any, error)

	// MapToStandardSchema normalizes one raw backend hit. Pure; must never
	// fail. Unknown fields degrade to zero values.
	MapToStandardSchema(raw map[string]any) model.StandardDocument

	// HealthCheck probes the backend.
	HealthCheck(ctx context.Context) Health
}

// PaperSearcher is the optional academic capability. Adapters whose native
// shape is scholarly implement it to return PaperInfo directly, bypassing
// the lossy generic schema. The engine detects it by type assertion.
type PaperSearcher interface {
	SearchPapers(ctx context.Context, query string, opts model.SearchOptions) ([]model.PaperInfo, error)
}

// SearchAndNormalize runs Search and maps every hit to the standard schema.
func SearchAndNormalize(ctx context.Context, a SearchAdapter, query string, opts model.SearchOptions) ([]model.StandardDocument, error) {
	raw, err := a.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	docs := make([]model.StandardDocument, 0, len(raw.Documents))
	for _, d := range raw.Documents {
		docs = append(docs, a.MapToStandardSchema(d))
	}
	return docs, nil
}

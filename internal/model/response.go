package model

// Statuses reported by engine responses.
const (
	StatusCompleted = "completed"
	StatusNoResults = "no_results"
	StatusError     = "error"
)

// RawVerifiedResult is a result with its verification but no classification;
// returned when classify=false.
type RawVerifiedResult struct {
	Result     ResultItem       `json:"result"`
	Validation ValidationResult `json:"validation"`
}

// PlanResponse is the output of a plan-only request.
type PlanResponse struct {
	RequestID        string         `json:"request_id"`
	Query            string         `json:"query"`
	CriteriaResult   CriteriaResult `json:"criteria_result"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
}

// SearchResponse is the complete-mode output of the filtering funnel.
// With classify=true, results split into perfect/partial with a rejected
// count; with classify=false, RawResults holds every verified item in
// retrieval order.
type SearchResponse struct {
	RequestID        string         `json:"request_id"`
	Status           string         `json:"status"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	Query            string         `json:"query"`
	CriteriaResult   CriteriaResult `json:"criteria_result"`

	PerfectResults []ScoredResult `json:"perfect_results"`
	PartialResults []ScoredResult `json:"partial_results"`
	RejectedCount  int            `json:"rejected_count"`

	RawResults []RawVerifiedResult `json:"raw_results"`

	TotalScanned int `json:"total_scanned"`
}

// StreamEvent is one unit of the SSE protocol emitted in streaming mode.
// Event types: criteria, search_complete, result, done, error.
type StreamEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// BatchSearchResponse aggregates per-query responses for a batch request.
type BatchSearchResponse struct {
	Status           string           `json:"status"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	TotalQueries     int              `json:"total_queries"`
	Results          []SearchResponse `json:"results"`
	ExportFormat     string           `json:"export_format,omitempty"`
	ExportData       string           `json:"export_data,omitempty"`
}

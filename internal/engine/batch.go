package engine

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atominnolab/opensift/internal/model"
)

// Export formats accepted by batch requests.
const (
	ExportCSV  = "csv"
	ExportJSON = "json"
)

// BatchSearch runs every query through the complete funnel concurrently and
// aggregates the responses in input order. A failed query degrades to an
// error-status entry instead of failing the batch. When an export format is
// requested, the accepted results are additionally rendered into ExportData.
func (e *Engine) BatchSearch(ctx context.Context, req model.BatchSearchRequest) (model.BatchSearchResponse, error) {
	if len(req.Queries) == 0 {
		return model.BatchSearchResponse{}, fmt.Errorf("batch requires at least one query")
	}
	if len(req.Queries) > model.MaxBatchQueries {
		return model.BatchSearchResponse{}, fmt.Errorf("batch accepts at most %d queries, got %d", model.MaxBatchQueries, len(req.Queries))
	}
	if req.ExportFormat != "" && req.ExportFormat != ExportCSV && req.ExportFormat != ExportJSON {
		return model.BatchSearchResponse{}, fmt.Errorf("unsupported export format %q", req.ExportFormat)
	}

	start := time.Now()
	responses := make([]model.SearchResponse, len(req.Queries))
	var wg sync.WaitGroup
	for i, q := range req.Queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			resp, err := e.Search(ctx, model.SearchRequest{
				Query:   q,
				Options: req.Options,
				Context: req.Context,
			})
			if err != nil {
				log.Warn().Str("query", q).Err(err).Msg("batch query failed")
				responses[i] = model.SearchResponse{
					RequestID:      resp.RequestID,
					Status:         model.StatusError,
					Query:          q,
					PerfectResults: []model.ScoredResult{},
					PartialResults: []model.ScoredResult{},
					RawResults:     []model.RawVerifiedResult{},
				}
				return
			}
			responses[i] = resp
		}(i, q)
	}
	wg.Wait()

	out := model.BatchSearchResponse{
		Status:           model.StatusCompleted,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		TotalQueries:     len(req.Queries),
		Results:          responses,
	}
	if req.ExportFormat != "" {
		data, err := exportResults(req.ExportFormat, responses)
		if err != nil {
			return model.BatchSearchResponse{}, fmt.Errorf("export: %w", err)
		}
		out.ExportFormat = req.ExportFormat
		out.ExportData = data
	}
	return out, nil
}

// exportRow is one flattened accepted result for export.
type exportRow struct {
	Query          string  `json:"query"`
	Classification string  `json:"classification"`
	WeightedScore  float64 `json:"weighted_score"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	SourceURL      string  `json:"source_url"`
	Summary        string  `json:"summary"`
}

// exportResults flattens perfect and partial results across the batch into
// the requested format. Content is truncated to keep rows spreadsheet-sized.
func exportResults(format string, responses []model.SearchResponse) (string, error) {
	var rows []exportRow
	for _, resp := range responses {
		for _, s := range append(append([]model.ScoredResult{}, resp.PerfectResults...), resp.PartialResults...) {
			rows = append(rows, exportRow{
				Query:          resp.Query,
				Classification: string(s.Classification),
				WeightedScore:  s.WeightedScore,
				Title:          s.Result.Title,
				Content:        truncate(s.Result.Content, 200),
				SourceURL:      s.Result.SourceURL,
				Summary:        s.Validation.Summary,
			})
		}
	}

	switch format {
	case ExportJSON:
		b, err := json.Marshal(rows)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ExportCSV:
		var sb strings.Builder
		w := csv.NewWriter(&sb)
		if err := w.Write([]string{"query", "classification", "weighted_score", "title", "content", "source_url", "summary"}); err != nil {
			return "", err
		}
		for _, r := range rows {
			rec := []string{
				r.Query,
				r.Classification,
				strconv.FormatFloat(r.WeightedScore, 'f', -1, 64),
				r.Title,
				r.Content,
				r.SourceURL,
				r.Summary,
			}
			if err := w.Write(rec); err != nil {
				return "", err
			}
		}
		w.Flush()
		return sb.String(), w.Error()
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/classify"
	"github.com/atominnolab/opensift/internal/model"
	"github.com/atominnolab/opensift/internal/planner"
	"github.com/atominnolab/opensift/internal/verifier"
)

// Stream event types.
const (
	EventCriteria       = "criteria"
	EventSearchComplete = "search_complete"
	EventResult         = "result"
	EventDone           = "done"
	EventError          = "error"
)

// defaultMaxConcurrentQueries caps parallel adapter search calls per request.
const defaultMaxConcurrentQueries = 10

// Engine orchestrates the filtering funnel: plan, fan out searches across
// the selected adapters, deduplicate, verify, classify. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	Planner  *planner.Planner
	Verifier *verifier.Verifier
	Registry *adapter.Registry

	// MaxConcurrentQueries limits simultaneous adapter calls within one
	// request. Zero means the default.
	MaxConcurrentQueries int64
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// Plan runs only the decomposition stage and returns the generated plan.
func (e *Engine) Plan(ctx context.Context, req model.SearchRequest) model.PlanResponse {
	start := time.Now()
	criteria := e.Planner.Plan(ctx, req)
	return model.PlanResponse{
		RequestID:        newID("plan_"),
		Query:            req.Query,
		CriteriaResult:   criteria,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

// Search runs the complete funnel and returns the full response at once.
// The per-request timeout from the options bounds the whole pipeline.
func (e *Engine) Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	opts := req.Opts()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()

	start := time.Now()
	requestID := newID("req_")
	resp := model.SearchResponse{
		RequestID:      requestID,
		Query:          req.Query,
		PerfectResults: []model.ScoredResult{},
		PartialResults: []model.ScoredResult{},
		RawResults:     []model.RawVerifiedResult{},
	}

	criteria := e.Planner.Plan(ctx, req)
	resp.CriteriaResult = criteria

	items := e.executeSearches(ctx, criteria.SearchQueries, opts)
	if err := ctx.Err(); err != nil {
		return resp, fmt.Errorf("search timed out after %s: %w", opts.Timeout(), err)
	}
	resp.TotalScanned = len(items)
	if len(items) == 0 {
		resp.Status = model.StatusNoResults
		resp.ProcessingTimeMS = time.Since(start).Milliseconds()
		log.Info().Str("request_id", requestID).Str("query", req.Query).Msg("no results from any adapter")
		return resp, nil
	}

	verified := e.verifyAll(ctx, items, criteria.Criteria, req.Query, opts)

	if opts.Classify {
		scored := classify.ClassifyBatch(verified, criteria.Criteria)
		for _, s := range scored {
			switch s.Classification {
			case model.ClassificationPerfect:
				resp.PerfectResults = append(resp.PerfectResults, s)
			case model.ClassificationPartial:
				resp.PartialResults = append(resp.PartialResults, s)
			default:
				resp.RejectedCount++
			}
		}
	} else {
		resp.RawResults = verified
	}

	resp.Status = model.StatusCompleted
	resp.ProcessingTimeMS = time.Since(start).Milliseconds()
	log.Info().
		Str("request_id", requestID).
		Str("query", req.Query).
		Int("total_scanned", resp.TotalScanned).
		Int("perfect", len(resp.PerfectResults)).
		Int("partial", len(resp.PartialResults)).
		Int("rejected", resp.RejectedCount).
		Int64("elapsed_ms", resp.ProcessingTimeMS).
		Msg("search completed")
	return resp, nil
}

// verifyAll pairs every item with its validation. When verification is
// disabled the neutral fallback assessment is attached so downstream
// consumers always see a complete validation.
func (e *Engine) verifyAll(ctx context.Context, items []model.ResultItem, criteria []model.Criterion, query string, opts model.SearchOptions) []model.RawVerifiedResult {
	out := make([]model.RawVerifiedResult, len(items))
	if !opts.Verify {
		for i, item := range items {
			out[i] = model.RawVerifiedResult{Result: item, Validation: verifier.FallbackValidation(criteria)}
		}
		return out
	}
	validations := e.Verifier.VerifyBatch(ctx, items, criteria, query)
	for i, item := range items {
		out[i] = model.RawVerifiedResult{Result: item, Validation: validations[i]}
	}
	return out
}

// SearchStream runs the funnel and emits progress events on the returned
// channel: criteria, search_complete, one result per verified item in
// completion order (scored when classification is on, raw otherwise), then
// done. A timeout ends the stream with a single error event instead. The
// channel is unbuffered so a slow consumer applies back-pressure, and it is
// always closed.
func (e *Engine) SearchStream(ctx context.Context, req model.SearchRequest) <-chan model.StreamEvent {
	events := make(chan model.StreamEvent)
	go func() {
		defer close(events)
		opts := req.Opts()
		ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
		defer cancel()

		start := time.Now()
		requestID := newID("req_")

		emit := func(ev model.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		criteria := e.Planner.Plan(ctx, req)
		if !emit(model.StreamEvent{Event: EventCriteria, Data: map[string]any{
			"request_id":      requestID,
			"query":           req.Query,
			"criteria_result": criteria,
		}}) {
			return
		}

		items := e.executeSearches(ctx, criteria.SearchQueries, opts)
		if err := ctx.Err(); err != nil {
			emitFinal(events, model.StreamEvent{Event: EventError, Data: map[string]any{
				"request_id":         requestID,
				"error":              fmt.Sprintf("search timed out after %s", opts.Timeout()),
				"processing_time_ms": time.Since(start).Milliseconds(),
			}})
			return
		}
		if !emit(model.StreamEvent{Event: EventSearchComplete, Data: map[string]any{
			"request_id":           requestID,
			"total_results":        len(items),
			"search_queries_count": len(criteria.SearchQueries),
			"results":              items,
		}}) {
			return
		}

		if len(items) == 0 {
			emitFinal(events, model.StreamEvent{Event: EventDone, Data: map[string]any{
				"request_id":         requestID,
				"status":             model.StatusNoResults,
				"total_scanned":      0,
				"perfect_count":      0,
				"partial_count":      0,
				"rejected_count":     0,
				"processing_time_ms": time.Since(start).Milliseconds(),
			}})
			return
		}

		// Verify concurrently and stream each result as its validation
		// lands, in completion order.
		verifiedCh := make(chan model.RawVerifiedResult, len(items))
		go func() {
			defer close(verifiedCh)
			var wg sync.WaitGroup
			limit := e.Verifier.MaxConcurrent
			if limit <= 0 {
				limit = defaultMaxConcurrentQueries
			}
			sem := semaphore.NewWeighted(limit)
			for _, item := range items {
				if err := sem.Acquire(ctx, 1); err != nil {
					break
				}
				wg.Add(1)
				go func(item model.ResultItem) {
					defer wg.Done()
					defer sem.Release(1)
					var validation model.ValidationResult
					if opts.Verify {
						validation = e.Verifier.Verify(ctx, item, criteria.Criteria, req.Query)
					} else {
						validation = verifier.FallbackValidation(criteria.Criteria)
					}
					verifiedCh <- model.RawVerifiedResult{Result: item, Validation: validation}
				}(item)
			}
			wg.Wait()
		}()

		perfect, partial, rejected := 0, 0, 0
		index := 0
		for r := range verifiedCh {
			if ctx.Err() != nil {
				break
			}
			index++
			data := map[string]any{
				"request_id": requestID,
				"index":      index,
				"total":      len(items),
			}
			if opts.Classify {
				s := classify.Classify(r.Result, r.Validation, criteria.Criteria)
				switch s.Classification {
				case model.ClassificationPerfect:
					perfect++
				case model.ClassificationPartial:
					partial++
				default:
					rejected++
				}
				data["scored_result"] = s
			} else {
				data["raw_result"] = r
			}
			if !emit(model.StreamEvent{Event: EventResult, Data: data}) {
				break
			}
		}

		// A timeout mid-verification truncates the result sequence; the
		// stream must then end in error, never in a completed done.
		if ctx.Err() != nil {
			emitFinal(events, model.StreamEvent{Event: EventError, Data: map[string]any{
				"request_id":         requestID,
				"error":              fmt.Sprintf("verification timed out after %s", opts.Timeout()),
				"processing_time_ms": time.Since(start).Milliseconds(),
			}})
			return
		}

		emitFinal(events, model.StreamEvent{Event: EventDone, Data: map[string]any{
			"request_id":         requestID,
			"status":             model.StatusCompleted,
			"total_scanned":      len(items),
			"perfect_count":      perfect,
			"partial_count":      partial,
			"rejected_count":     rejected,
			"processing_time_ms": time.Since(start).Milliseconds(),
		}})
	}()
	return events
}

// emitFinal delivers a terminal event without blocking forever on a gone
// consumer.
func emitFinal(events chan<- model.StreamEvent, ev model.StreamEvent) {
	select {
	case events <- ev:
	case <-time.After(5 * time.Second):
	}
}

// executeSearches fans the planned queries out across every selected
// adapter, normalizes the hits, and deduplicates by title. Task order is
// deterministic (query-major) so the first writer for a duplicate title is
// stable. Individual task failures degrade to zero items.
func (e *Engine) executeSearches(ctx context.Context, queries []string, opts model.SearchOptions) []model.ResultItem {
	adapters := e.Registry.GetAdapters(opts.Adapters)
	if len(adapters) == 0 {
		log.Warn().Msg("no active adapters, search returns nothing")
		return nil
	}

	type task struct {
		query string
		a     adapter.SearchAdapter
	}
	tasks := make([]task, 0, len(queries)*len(adapters))
	for _, q := range queries {
		for _, a := range adapters {
			tasks = append(tasks, task{query: q, a: a})
		}
	}

	limit := e.MaxConcurrentQueries
	if limit <= 0 {
		limit = defaultMaxConcurrentQueries
	}
	sem := semaphore.NewWeighted(limit)
	results := make([][]model.ResultItem, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			defer sem.Release(1)
			items, err := searchOne(ctx, t.a, t.query, opts)
			if err != nil {
				log.Warn().
					Str("adapter", t.a.Name()).
					Str("query", t.query).
					Err(err).
					Msg("adapter search failed")
				return
			}
			results[i] = items
		}(i, t)
	}
	wg.Wait()

	seen := map[string]struct{}{}
	var merged []model.ResultItem
	for _, items := range results {
		for _, item := range items {
			key := item.DedupeKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

// searchOne runs one query against one adapter, preferring the academic
// paper path when the adapter offers it.
func searchOne(ctx context.Context, a adapter.SearchAdapter, query string, opts model.SearchOptions) ([]model.ResultItem, error) {
	if ps, ok := a.(adapter.PaperSearcher); ok {
		papers, err := ps.SearchPapers(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		items := make([]model.ResultItem, 0, len(papers))
		for _, p := range papers {
			item := p.ToResultItem()
			item.SourceAdapter = a.Name()
			items = append(items, item)
		}
		return items, nil
	}
	docs, err := adapter.SearchAndNormalize(ctx, a, query, opts)
	if err != nil {
		return nil, err
	}
	items := make([]model.ResultItem, 0, len(docs))
	for _, d := range docs {
		item := d.ToResultItem()
		item.SourceAdapter = a.Name()
		items = append(items, item)
	}
	return items, nil
}

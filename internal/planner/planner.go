package planner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atominnolab/opensift/internal/llm"
	"github.com/atominnolab/opensift/internal/model"
)

// weightTolerance is the allowed drift of the criterion weight sum before
// normalization kicks in.
const weightTolerance = 0.05

// Planner turns a natural-language query into a CriteriaResult: search
// queries for retrieval plus weighted screening criteria for filtering.
//
// The LLM path enforces a JSON-only contract through the gateway's repairing
// parser. When decomposition is disabled, no gateway is configured, or the
// call fails for any reason, a deterministic heuristic plan takes over, so
// planning itself never fails.
type Planner struct {
	Gateway    *llm.Gateway
	Model      string
	MaxRetries int
}

// Plan generates the CriteriaResult for a request. Every path returns a
// usable plan; LLM failures are logged at warn level.
func (p *Planner) Plan(ctx context.Context, req model.SearchRequest) model.CriteriaResult {
	opts := req.Opts()
	if !opts.Decompose || p.Gateway == nil || p.Gateway.APIKey == "" {
		return HeuristicPlan(req.Query)
	}

	start := time.Now()
	result, err := p.generateWithLLM(ctx, req.Query)
	if err != nil {
		log.Warn().
			Str("model", p.Model).
			Err(err).
			Msg("LLM criteria generation failed, falling back to heuristic plan")
		return HeuristicPlan(req.Query)
	}
	log.Info().
		Int("search_queries", len(result.SearchQueries)).
		Int("criteria", len(result.Criteria)).
		Dur("elapsed", time.Since(start)).
		Msg("criteria generated via LLM")
	return result
}

func (p *Planner) generateWithLLM(ctx context.Context, query string) (model.CriteriaResult, error) {
	user := llm.CriteriaUserPrompt(time.Now().Format("2006-01-02 15:04:05"), query)
	raw, err := p.Gateway.ChatJSON(ctx, llm.CriteriaSystemPrompt, user, llm.ChatParams{
		Model:       p.Model,
		Temperature: 0.6,
	}, p.MaxRetries)
	if err != nil {
		return model.CriteriaResult{}, err
	}
	return parseCriteriaResponse(raw)
}

// parseCriteriaResponse validates the raw LLM object and normalizes it into
// a CriteriaResult: missing IDs become criterion_<n>, missing attributes
// clamp to defaults, and weights are renormalized to sum to exactly 1.0.
func parseCriteriaResponse(raw map[string]any) (model.CriteriaResult, error) {
	queries, err := stringSlice(raw["search_queries"])
	if err != nil || len(queries) == 0 {
		return model.CriteriaResult{}, fmt.Errorf("missing or invalid 'search_queries'")
	}
	rawCriteria, ok := raw["criteria"].([]any)
	if !ok || len(rawCriteria) == 0 {
		return model.CriteriaResult{}, fmt.Errorf("missing or invalid 'criteria'")
	}

	criteria := make([]model.Criterion, 0, len(rawCriteria))
	for i, rc := range rawCriteria {
		obj, ok := rc.(map[string]any)
		if !ok {
			return model.CriteriaResult{}, fmt.Errorf("criterion %d is not an object", i+1)
		}
		criteria = append(criteria, model.Criterion{
			CriterionID: stringOr(obj["criterion_id"], fmt.Sprintf("criterion_%d", i+1)),
			Type:        stringOr(obj["type"], "topic"),
			Name:        stringOr(obj["name"], fmt.Sprintf("Criterion %d", i+1)),
			Description: stringOr(obj["description"], ""),
			Weight:      floatOr(obj["weight"], 0),
		})
	}
	normalizeWeights(criteria)

	return model.CriteriaResult{SearchQueries: queries, Criteria: criteria}, nil
}

// normalizeWeights rescales criterion weights when their sum drifts more
// than the tolerance from 1.0, then adjusts the last criterion so the sum is
// exact.
func normalizeWeights(criteria []model.Criterion) {
	total := 0.0
	for _, c := range criteria {
		total += c.Weight
	}
	if math.Abs(total-1.0) <= weightTolerance || total <= 0 {
		return
	}
	log.Warn().Float64("sum", total).Msg("criteria weights do not sum to 1.0, normalizing")
	sum := 0.0
	for i := range criteria {
		criteria[i].Weight = round2(criteria[i].Weight / total)
		sum += criteria[i].Weight
	}
	last := len(criteria) - 1
	criteria[last].Weight = round2(criteria[last].Weight + (1.0 - sum))
}

// HeuristicPlan is the deterministic fallback: the original query plus one
// or two variations derived from its token sequence, deduplicated
// case-insensitively, with a single full-weight topical criterion.
func HeuristicPlan(query string) model.CriteriaResult {
	queries := []string{query}
	tokens := strings.Fields(query)
	switch {
	case len(tokens) >= 4:
		mid := len(tokens) / 2
		queries = append(queries, strings.Join(tokens[:mid], " "), strings.Join(tokens[mid:], " "))
	case len(tokens) >= 2:
		rev := make([]string, len(tokens))
		for i, t := range tokens {
			rev[len(tokens)-1-i] = t
		}
		queries = append(queries, strings.Join(rev, " "))
	default:
		queries = append(queries, query+" overview")
	}

	seen := map[string]struct{}{}
	unique := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, q)
	}
	if len(unique) == 0 {
		unique = []string{query}
	}

	return model.CriteriaResult{
		SearchQueries: unique,
		Criteria: []model.Criterion{{
			CriterionID: "criterion_1",
			Type:        "topic",
			Name:        "Query relevance",
			Description: "The result is directly relevant to: " + query,
			Weight:      1.0,
		}},
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func stringSlice(v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not an array")
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("non-string entry")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

func floatOr(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

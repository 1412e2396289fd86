package verifier

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/atominnolab/opensift/internal/llm"
	"github.com/atominnolab/opensift/internal/model"
)

// defaultMaxConcurrent caps parallel LLM validation calls per batch.
const defaultMaxConcurrent = 10

// Verifier runs an evidence-based LLM validation pass over search results,
// assessing each result against the plan's screening criteria. It degrades
// per item: any failure yields a neutral fallback assessment instead of
// failing the request.
type Verifier struct {
	Gateway    *llm.Gateway
	Model      string
	MaxRetries int

	// MaxConcurrent limits in-flight LLM calls during VerifyBatch. Zero
	// means the default.
	MaxConcurrent int64
}

// Verify assesses one result against the criteria. The prompt template is
// selected by result type: academic papers get the richer paper-validation
// template, everything else the generic one. On any LLM or parse failure the
// fallback validation is returned.
func (v *Verifier) Verify(ctx context.Context, item model.ResultItem, criteria []model.Criterion, query string) model.ValidationResult {
	if v.Gateway == nil || v.Gateway.APIKey == "" {
		return FallbackValidation(criteria)
	}

	descriptions := make([]string, 0, len(criteria))
	for _, c := range criteria {
		descriptions = append(descriptions, c.Description)
	}
	criteriaXML := llm.FormatCriteriaXML(descriptions)
	now := time.Now().Format("2006-01-02 15:04:05")
	lang := DetectLanguage(query)

	var system, user string
	if item.ResultType == model.ResultTypePaper {
		system = llm.PaperValidationSystemPrompt
		user = llm.PaperValidationUserPrompt(now, query, criteriaXML, paperXML(item), lang)
	} else {
		system = llm.ValidationSystemPrompt
		user = llm.ValidationUserPrompt(now, query, criteriaXML, item.ToPromptXML(), lang)
	}

	raw, err := v.Gateway.ChatJSON(ctx, system, user, llm.ChatParams{
		Model:       v.Model,
		Temperature: 0.2,
	}, v.MaxRetries)
	if err != nil {
		log.Warn().
			Str("title", item.Title).
			Err(err).
			Msg("result validation failed, using fallback assessment")
		return FallbackValidation(criteria)
	}
	return parseValidationResponse(raw, criteria)
}

// VerifyBatch validates items concurrently, bounded by MaxConcurrent. The
// output is index-aligned with the input; individual failures degrade to the
// fallback assessment without affecting siblings.
func (v *Verifier) VerifyBatch(ctx context.Context, items []model.ResultItem, criteria []model.Criterion, query string) []model.ValidationResult {
	out := make([]model.ValidationResult, len(items))
	limit := v.MaxConcurrent
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}
	sem := semaphore.NewWeighted(limit)
	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: fill the rest with fallbacks.
			for j := i; j < len(items); j++ {
				out[j] = FallbackValidation(criteria)
			}
			break
		}
		go func(i int) {
			defer sem.Release(1)
			out[i] = v.Verify(ctx, items[i], criteria, query)
		}(i)
	}
	// Wait for in-flight validations.
	_ = sem.Acquire(context.Background(), limit)
	return out
}

// FallbackValidation is the neutral assessment used when no LLM is available
// or a validation call fails: every criterion is marked
// insufficient_information with an empty explanation so downstream
// classification stays conservative.
func FallbackValidation(criteria []model.Criterion) model.ValidationResult {
	assessments := make([]model.CriterionAssessment, 0, len(criteria))
	for _, c := range criteria {
		assessments = append(assessments, model.CriterionAssessment{
			CriterionID: c.CriterionID,
			Assessment:  model.AssessmentInsufficientInformation,
		})
	}
	return model.ValidationResult{
		CriteriaAssessment: assessments,
		Summary:            "Verification failed.",
	}
}

// parseValidationResponse coerces the raw LLM object into a ValidationResult
// aligned with the criteria declaration order: unknown assessment values
// become insufficient_information, missing criteria are filled in, extra
// entries are discarded.
func parseValidationResponse(raw map[string]any, criteria []model.Criterion) model.ValidationResult {
	byID := map[string]model.CriterionAssessment{}
	if list, ok := raw["criteria_assessment"].([]any); ok {
		for _, e := range list {
			obj, ok := e.(map[string]any)
			if !ok {
				continue
			}
			a := model.CriterionAssessment{
				CriterionID: asString(obj["criterion_id"]),
				Assessment:  model.AssessmentType(asString(obj["assessment"])),
				Explanation: asString(obj["explanation"]),
				Evidence:    parseEvidence(obj["evidence"]),
			}
			if !model.ValidAssessment(a.Assessment) {
				a.Assessment = model.AssessmentInsufficientInformation
			}
			if a.CriterionID != "" {
				byID[a.CriterionID] = a
			}
		}
	}

	assessments := make([]model.CriterionAssessment, 0, len(criteria))
	for _, c := range criteria {
		if a, ok := byID[c.CriterionID]; ok {
			assessments = append(assessments, a)
			continue
		}
		assessments = append(assessments, model.CriterionAssessment{
			CriterionID: c.CriterionID,
			Assessment:  model.AssessmentInsufficientInformation,
		})
	}

	summary := asString(raw["summary"])
	if summary == "" {
		summary = "No summary provided."
	}
	return model.ValidationResult{CriteriaAssessment: assessments, Summary: summary}
}

func parseEvidence(v any) []model.Evidence {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Evidence, 0, len(list))
	for _, e := range list {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		ev := model.Evidence{Source: asString(obj["source"]), Text: asString(obj["text"])}
		if ev.Text != "" {
			out = append(out, ev)
		}
	}
	return out
}

// paperXML rebuilds the paper-info prompt fragment from a paper-typed
// ResultItem, restoring "N/A" for fields the adapter left unset.
func paperXML(item model.ResultItem) string {
	f := func(key string) string {
		if v, ok := item.Fields[key]; ok && v != "" {
			return v
		}
		return "N/A"
	}
	citations := f("citation_count")
	if citations == "N/A" {
		citations = "0"
	}
	return llm.PaperInfoXML(
		item.Title,
		f("authors"),
		f("affiliations"),
		f("conference_journal"),
		f("conference_journal_type"),
		f("research_field"),
		f("doi"),
		f("publication_date"),
		item.Content,
		citations,
		item.SourceURL,
	)
}

// DetectLanguage picks the answer language for validation explanations. A
// query whose CJK-ideograph share exceeds 10% is treated as Chinese.
func DetectLanguage(query string) string {
	total, cjk := 0, 0
	for _, r := range query {
		total++
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		}
	}
	if total > 0 && float64(cjk)/float64(total) > 0.10 {
		return "中文"
	}
	return "English"
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

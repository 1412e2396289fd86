package classify

import (
	"math"
	"sort"

	"github.com/atominnolab/opensift/internal/model"
)

// assessmentScore maps assessments to the numeric contribution used for the
// weighted score. Reject and insufficient_information contribute nothing.
func assessmentScore(a model.AssessmentType) float64 {
	switch a {
	case model.AssessmentSupport:
		return 1.0
	case model.AssessmentSomewhatSupport:
		return 0.5
	default:
		return 0.0
	}
}

// Classify buckets one verified result as perfect, partial, or reject and
// computes its weighted score.
//
// With a single criterion the assessment maps directly: support is perfect,
// somewhat_support is partial, anything else rejects. With multiple criteria
// a result is perfect only when every criterion is supported; it is partial
// when at least one non-time criterion is at least somewhat supported. Time
// criteria alone cannot rescue a result, since a match on recency says
// nothing about relevance.
func Classify(item model.ResultItem, validation model.ValidationResult, criteria []model.Criterion) model.ScoredResult {
	typeByID := make(map[string]string, len(criteria))
	weightByID := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		typeByID[c.CriterionID] = c.Type
		weightByID[c.CriterionID] = c.Weight
	}

	score := 0.0
	for _, a := range validation.CriteriaAssessment {
		score += assessmentScore(a.Assessment) * weightByID[a.CriterionID]
	}
	score = math.Min(score, 1.0)
	score = math.Round(score*10000) / 10000

	classification := classify(validation.CriteriaAssessment, typeByID)
	return model.ScoredResult{
		Result:         item,
		Validation:     validation,
		Classification: classification,
		WeightedScore:  score,
	}
}

func classify(assessments []model.CriterionAssessment, typeByID map[string]string) model.ResultClassification {
	if len(assessments) == 0 {
		return model.ClassificationReject
	}
	if len(assessments) == 1 {
		switch assessments[0].Assessment {
		case model.AssessmentSupport:
			return model.ClassificationPerfect
		case model.AssessmentSomewhatSupport:
			return model.ClassificationPartial
		default:
			return model.ClassificationReject
		}
	}

	allSupport := true
	partialEvidence := false
	for _, a := range assessments {
		if a.Assessment != model.AssessmentSupport {
			allSupport = false
		}
		supported := a.Assessment == model.AssessmentSupport || a.Assessment == model.AssessmentSomewhatSupport
		if supported && typeByID[a.CriterionID] != "time" {
			partialEvidence = true
		}
	}
	if allSupport {
		return model.ClassificationPerfect
	}
	if partialEvidence {
		return model.ClassificationPartial
	}
	return model.ClassificationReject
}

// ClassifyBatch classifies each verified result and orders the output by
// classification priority (perfect, partial, reject) and descending score.
// The sort is stable, so results that tie keep their arrival order.
func ClassifyBatch(results []model.RawVerifiedResult, criteria []model.Criterion) []model.ScoredResult {
	scored := make([]model.ScoredResult, 0, len(results))
	for _, r := range results {
		scored = append(scored, Classify(r.Result, r.Validation, criteria))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		pi, pj := priority(scored[i].Classification), priority(scored[j].Classification)
		if pi != pj {
			return pi < pj
		}
		return scored[i].WeightedScore > scored[j].WeightedScore
	})
	return scored
}

func priority(c model.ResultClassification) int {
	switch c {
	case model.ClassificationPerfect:
		return 0
	case model.ClassificationPartial:
		return 1
	default:
		return 2
	}
}

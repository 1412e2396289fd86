package model

// AssessmentType is the verifier's judgment of one criterion on one result.
type AssessmentType string

const (
	AssessmentSupport                 AssessmentType = "support"
	AssessmentSomewhatSupport         AssessmentType = "somewhat_support"
	AssessmentInsufficientInformation AssessmentType = "insufficient_information"
	AssessmentReject                  AssessmentType = "reject"
)

// ValidAssessment reports whether s is one of the four enum values.
func ValidAssessment(s AssessmentType) bool {
	switch s {
	case AssessmentSupport, AssessmentSomewhatSupport,
		AssessmentInsufficientInformation, AssessmentReject:
		return true
	}
	return false
}

// Evidence is a verbatim excerpt backing an assessment.
type Evidence struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// CriterionAssessment is the judgment of a single criterion.
type CriterionAssessment struct {
	CriterionID string         `json:"criterion_id"`
	Assessment  AssessmentType `json:"assessment"`
	Explanation string         `json:"explanation"`
	Evidence    []Evidence     `json:"evidence"`
}

// ValidationResult is the complete verification output for one result item:
// one assessment per criterion, in criteria declaration order, plus an
// overall prose summary.
type ValidationResult struct {
	CriteriaAssessment []CriterionAssessment `json:"criteria_assessment"`
	Summary            string                `json:"summary"`
}

// ResultClassification is the classifier's final label for a result.
type ResultClassification string

const (
	ClassificationPerfect ResultClassification = "perfect"
	ClassificationPartial ResultClassification = "partial"
	ClassificationReject  ResultClassification = "reject"
)

// ScoredResult pairs a result with its validation, final classification and
// weighted score in [0, 1] rounded to 4 decimals.
type ScoredResult struct {
	Result         ResultItem           `json:"result"`
	Validation     ValidationResult     `json:"validation"`
	Classification ResultClassification `json:"classification"`
	WeightedScore  float64              `json:"weighted_score"`
}

package model

// Criterion is a single screening rule generated by the planner. Each
// criterion is an independent, actionable rule that the verifier checks
// against a result's title/content/metadata.
type Criterion struct {
	CriterionID string  `json:"criterion_id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// CriteriaResult is the planner's output: search queries for retrieval plus
// weighted screening criteria for filtering. Criterion weights sum to 1.0
// after normalization.
type CriteriaResult struct {
	SearchQueries []string    `json:"search_queries"`
	Criteria      []Criterion `json:"criteria"`
}

// CriterionIDs returns the criterion IDs in declaration order.
func (c CriteriaResult) CriterionIDs() []string {
	ids := make([]string, 0, len(c.Criteria))
	for _, cr := range c.Criteria {
		ids = append(ids, cr.CriterionID)
	}
	return ids
}

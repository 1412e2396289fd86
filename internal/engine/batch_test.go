package engine

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/atominnolab/opensift/internal/model"
)

func exportFixture() []model.SearchResponse {
	return []model.SearchResponse{
		{
			Query: "turbulence",
			PerfectResults: []model.ScoredResult{{
				Result: model.ResultItem{
					Title:     "DDES for Turbulent Flow",
					Content:   strings.Repeat("x", 300),
					SourceURL: "https://example.org/1",
				},
				Validation:     model.ValidationResult{Summary: "Strong match."},
				Classification: model.ClassificationPerfect,
				WeightedScore:  1.0,
			}},
			PartialResults: []model.ScoredResult{{
				Result:         model.ResultItem{Title: "RANS, revisited"},
				Validation:     model.ValidationResult{Summary: "Partial match."},
				Classification: model.ClassificationPartial,
				WeightedScore:  0.5,
			}},
		},
	}
}

func TestExportResultsCSV(t *testing.T) {
	out, err := exportResults(ExportCSV, exportFixture())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "query,classification,weighted_score,title") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "perfect") || !strings.Contains(lines[2], "partial") {
		t.Fatalf("rows out of order: %q", out)
	}
	// Commas in titles must stay quoted.
	if !strings.Contains(lines[2], `"RANS, revisited"`) {
		t.Fatalf("csv quoting broken: %q", lines[2])
	}
}

func TestExportResultsJSON(t *testing.T) {
	out, err := exportResults(ExportJSON, exportFixture())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["query"] != "turbulence" || rows[0]["classification"] != "perfect" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	content, _ := rows[0]["content"].(string)
	if len(content) != 200 {
		t.Fatalf("content must be truncated to 200 runes, got %d", len(content))
	}
}

func TestTruncateUnicodeSafe(t *testing.T) {
	s := strings.Repeat("语", 250)
	got := truncate(s, 200)
	if len([]rune(got)) != 200 {
		t.Fatalf("got %d runes", len([]rune(got)))
	}
}

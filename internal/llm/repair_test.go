package llm

import "testing"

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := StripCodeFences(tc.in); got != tc.want {
			t.Fatalf("StripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseValidJSONUntouched(t *testing.T) {
	obj, err := ParseJSONWithRepair(`{"search_queries": ["a"], "criteria": []}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(obj["search_queries"].([]any)) != 1 {
		t.Fatalf("unexpected object %v", obj)
	}
}

func TestParseLeadingProse(t *testing.T) {
	obj, err := ParseJSONWithRepair(`Here is the JSON you asked for: {"a": 1}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["a"].(float64) != 1 {
		t.Fatalf("got %v", obj)
	}
}

func TestParseTruncatedObject(t *testing.T) {
	obj, err := ParseJSONWithRepair(`{"a": {"b": [1, 2`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	inner := obj["a"].(map[string]any)
	if len(inner["b"].([]any)) != 2 {
		t.Fatalf("got %v", obj)
	}
}

func TestParseTruncatedAfterComma(t *testing.T) {
	obj, err := ParseJSONWithRepair(`{"a": 1,`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["a"].(float64) != 1 {
		t.Fatalf("got %v", obj)
	}
}

func TestParseTrailingComma(t *testing.T) {
	obj, err := ParseJSONWithRepair(`{"a": [1, 2,], "b": 3,}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["b"].(float64) != 3 {
		t.Fatalf("got %v", obj)
	}
}

func TestParseRawTabs(t *testing.T) {
	obj, err := ParseJSONWithRepair("{\"a\": \"x\ty\"}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["a"].(string) != "x\ty" {
		t.Fatalf("got %q", obj["a"])
	}
}

func TestParseMissingCommaBetweenStrings(t *testing.T) {
	obj, err := ParseJSONWithRepair("{\"a\": \"one\"\n\"b\": \"two\"}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["b"].(string) != "two" {
		t.Fatalf("got %v", obj)
	}
}

func TestParseMissingCommaBetweenObjects(t *testing.T) {
	obj, err := ParseJSONWithRepair(`{"list": [{"a": 1} {"a": 2}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(obj["list"].([]any)) != 2 {
		t.Fatalf("got %v", obj)
	}
}

func TestParseRawNewlineInString(t *testing.T) {
	obj, err := ParseJSONWithRepair("{\"summary\": \"line one\nline two\"}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["summary"].(string) != "line one\nline two" {
		t.Fatalf("got %q", obj["summary"])
	}
}

func TestParseHopelessInput(t *testing.T) {
	if _, err := ParseJSONWithRepair("not json at all"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCloseUnbalancedIgnoresBracesInStrings(t *testing.T) {
	obj, err := ParseJSONWithRepair(`{"a": "value with { and [", "b": 1`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["b"].(float64) != 1 {
		t.Fatalf("got %v", obj)
	}
}

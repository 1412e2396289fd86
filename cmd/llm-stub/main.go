// Command llm-stub is a local OpenAI-compatible endpoint for developing
// opensift without a real model. It recognizes the planner and verifier
// system prompts and answers with deterministic, well-formed JSON, so the
// full funnel can run end to end offline.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "stub-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys, user := "", ""
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				sys = m.Content
			case "user":
				user = m.Content
			}
		}

		var content string
		switch {
		case strings.Contains(sys, "literature screening"):
			content = criteriaJSON(user)
		case strings.Contains(sys, "Evidence is King"):
			content = validationJSON(user)
		default:
			content = `{"ok": true}`
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "stub-1",
			"object":  "chat.completion",
			"model":   model,
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	})

	log.Printf("llm-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// criteriaJSON fabricates a two-query, two-criterion plan around whatever
// query appears in the user prompt.
func criteriaJSON(user string) string {
	query := lastLine(user)
	plan := map[string]any{
		"search_queries": []string{query, query + " review"},
		"criteria": []map[string]any{
			{
				"criterion_id": "criterion_1",
				"type":         "topic",
				"name":         "Topical relevance",
				"description":  "The result is directly about: " + query,
				"weight":       0.7,
			},
			{
				"criterion_id": "criterion_2",
				"type":         "quality",
				"name":         "Substantive content",
				"description":  "The result contains substantive detail rather than a passing mention.",
				"weight":       0.3,
			},
		},
	}
	b, _ := json.Marshal(plan)
	return string(b)
}

// validationJSON marks every result as supporting criterion_1 and somewhat
// supporting criterion_2, which drives the classifier down the partial
// path; useful for exercising all buckets.
func validationJSON(string) string {
	res := map[string]any{
		"criteria_assessment": []map[string]any{
			{
				"criterion_id": "criterion_1",
				"assessment":   "support",
				"explanation":  "The result addresses the topic directly.",
				"evidence":     []map[string]string{{"source": "title", "text": "stubbed evidence"}},
			},
			{
				"criterion_id": "criterion_2",
				"assessment":   "somewhat_support",
				"explanation":  "The result has moderate depth.",
			},
		},
		"summary": "Stubbed validation: on-topic with moderate depth.",
	}
	b, _ := json.Marshal(res)
	return string(b)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			if _, after, found := strings.Cut(l, ":"); found {
				return strings.TrimSpace(after)
			}
			return l
		}
	}
	return "example query"
}

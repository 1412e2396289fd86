package model

import (
	"sort"
	"strings"
)

// Result types with dedicated verifier prompt templates.
const (
	ResultTypePaper   = "paper"
	ResultTypeGeneric = "generic"
)

// ResultItem is the generic, domain-agnostic search result the verifier
// operates on. It has three common fields (title, content, source URL) plus
// a free-form Fields map for any domain-specific metadata (authors, DOI,
// tags, price, ...).
//
// ResultType selects the verifier prompt template: "paper" uses the fixed
// <paper_info> academic template, anything else the generic <result_info>
// template that renders all entries from Fields.
type ResultItem struct {
	ResultType    string            `json:"result_type"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	SourceURL     string            `json:"source_url"`
	Fields        map[string]string `json:"fields"`
	SourceAdapter string            `json:"source_adapter,omitempty"`
}

// ToPromptXML renders the item as a <result_info> fragment for the generic
// verification prompt. Empty and "N/A" values are omitted; field tags are
// emitted in sorted order so prompts are deterministic.
func (r ResultItem) ToPromptXML() string {
	var sb strings.Builder
	sb.WriteString("<result_info>\n")
	sb.WriteString("    <title>" + r.Title + "</title>\n")
	sb.WriteString("    <content>" + r.Content + "</content>\n")
	if r.SourceURL != "" && r.SourceURL != "N/A" {
		sb.WriteString("    <source_url>" + r.SourceURL + "</source_url>\n")
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.TrimSpace(r.Fields[k])
		if v == "" || v == "N/A" {
			continue
		}
		sb.WriteString("    <" + k + ">" + v + "</" + k + ">\n")
	}
	sb.WriteString("</result_info>")
	return sb.String()
}

// DedupeKey is the cross-adapter duplicate key: a case-insensitive trim of
// the title. Deliberately coarse, since adapters vary wildly in ID schemes.
func (r ResultItem) DedupeKey() string {
	return strings.ToLower(strings.TrimSpace(r.Title))
}

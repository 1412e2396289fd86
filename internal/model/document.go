package model

import (
	"strings"
	"time"
)

// DocumentMetadata carries provenance for a normalized document.
type DocumentMetadata struct {
	Source        string            `json:"source"`
	URL           string            `json:"url,omitempty"`
	PublishedDate string            `json:"published_date,omitempty"`
	Author        string            `json:"author,omitempty"`
	Language      string            `json:"language,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// StandardDocument is the normalized mapping target every adapter converts
// its raw backend hits into, ensuring consistent processing in the engine.
type StandardDocument struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Snippet     string           `json:"snippet,omitempty"`
	Score       float64          `json:"score"`
	Metadata    DocumentMetadata `json:"metadata"`
	RetrievedAt time.Time        `json:"retrieved_at"`
}

// ToResultItem projects the document onto the generic ResultItem shape.
// Non-empty author/source/published_date/tags and all extra metadata are
// carried into Fields.
func (d StandardDocument) ToResultItem() ResultItem {
	fields := map[string]string{}
	if d.Metadata.Author != "" && d.Metadata.Author != "N/A" {
		fields["author"] = d.Metadata.Author
	}
	if d.Metadata.Source != "" && d.Metadata.Source != "N/A" {
		fields["source"] = d.Metadata.Source
	}
	if d.Metadata.PublishedDate != "" {
		fields["published_date"] = d.Metadata.PublishedDate
	}
	if len(d.Metadata.Tags) > 0 {
		fields["tags"] = strings.Join(d.Metadata.Tags, "; ")
	}
	for k, v := range d.Metadata.Extra {
		if v != "" && v != "N/A" {
			fields[k] = v
		}
	}
	return ResultItem{
		ResultType: ResultTypeGeneric,
		Title:      orNA(d.Title),
		Content:    orNA(d.Content),
		SourceURL:  orNA(d.Metadata.URL),
		Fields:     fields,
	}
}

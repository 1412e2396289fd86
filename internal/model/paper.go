package model

import "strconv"

// PaperInfo is the rich academic-paper schema returned by scholarly search
// adapters. Unknown fields are "N/A". Adapters whose native shape is
// academic produce PaperInfo directly and convert to ResultItem with
// result_type "paper", bypassing the lossy generic document schema.
type PaperInfo struct {
	Title                  string `json:"title"`
	Authors                string `json:"authors"`
	Affiliations           string `json:"affiliations"`
	ConferenceJournal      string `json:"conference_journal"`
	ConferenceJournalType  string `json:"conference_journal_type"`
	ResearchField          string `json:"research_field"`
	DOI                    string `json:"doi"`
	PublicationDate        string `json:"publication_date"`
	Abstract               string `json:"abstract"`
	CitationCount          int    `json:"citation_count"`
	SourceURL              string `json:"source_url"`
}

// ToResultItem converts the paper to the generic ResultItem shape consumed
// by the verification pipeline, mapping academic fields into Fields.
func (p PaperInfo) ToResultItem() ResultItem {
	fields := map[string]string{}
	put := func(k, v string) {
		if v != "" && v != "N/A" {
			fields[k] = v
		}
	}
	put("authors", p.Authors)
	put("affiliations", p.Affiliations)
	put("conference_journal", p.ConferenceJournal)
	put("conference_journal_type", p.ConferenceJournalType)
	put("research_field", p.ResearchField)
	put("doi", p.DOI)
	put("publication_date", p.PublicationDate)
	if p.CitationCount > 0 {
		fields["citation_count"] = strconv.Itoa(p.CitationCount)
	}
	return ResultItem{
		ResultType: ResultTypePaper,
		Title:      orNA(p.Title),
		Content:    orNA(p.Abstract),
		SourceURL:  orNA(p.SourceURL),
		Fields:     fields,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

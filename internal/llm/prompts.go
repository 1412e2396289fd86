package llm

import (
	"fmt"
	"strings"
)

// Prompt templates for the planning and verification stages. The verifier
// keeps two sets: a paper-specific one with fixed <paper_info> XML fields
// and a generic one that renders any fields from the result item.

const CriteriaSystemPrompt = `Your name is WisModel, an expert in academic search and literature screening. Your job is to:
1) Infer the user's core scholarly intent (topic, method, population/domain, constraints).
2) Generate 2-4 Google Scholar search queries ("search_queries").
3) Generate 1-4 executable, standalone screening criteria ("criteria"), each an independent rule.

Output requirements:
- Return only a single valid JSON object. No explanations, prefixes/suffixes, code fences, or comments.
- The JSON must contain exactly two top-level fields, in this order: "search_queries", then "criteria".

"search_queries" (generate 2-4):
- Content relevance: Reflect the user's academic intent and include core technical concepts.
- Keyword quality: Use precise technical terms or short phrases; avoid filler or subjective terms.
- Syntax:
  - One line = one query; each query stands alone.
  - Prefer double quotes around multi-word key phrases (e.g., "climate change").
  - Boolean operators in uppercase: AND, OR, NOT; parentheses allowed.
  - Use at most two Boolean operators per query.
  - Do not use site: or unsupported advanced operators.
  - For author searches, use author:"First Last".
  - Distinguish organizations (e.g., OpenAI, Anthropic, Google, DeepMind, Meta, Stanford, CMU, Alibaba, ByteDance) from authors.
- Time handling:
  - If the user specifies a year, append that bare year token (e.g., 2025).
  - If the user specifies a relative time window (e.g., "last 3 years"), infer explicit year token(s) from the Current time and append at least the most recent year (e.g., 2025); avoid ranges or special operators.
- Diversity and simplicity:
  - Provide varied formulations (synonyms/variants); avoid duplicates.
  - Keep queries simple; do not over-constrain.
  - Use AND in at most one or two queries; include at least one simpler keyword query without Boolean operators.
- Usability:
  - Check grammar and spelling.
  - Fix clear misspellings.
  - For ambiguous terms, spread plausible variants across different queries.
  - Each query must independently retrieve relevant results.
  - Order queries from most to least strict (quoted/Boolean first; simpler last).

"criteria" (generate 1-4 standalone rules):
- Each criterion must be a single, independent, actionable rule that can be checked on its own from a paper's title/abstract/full text.
- Do not combine multiple distinct conditions in one criterion; avoid chaining with "and/or" unless it is part of a single, inseparable condition.
- Do not invent proprietary terms not present in the query.
- Do not filter by publication type (if it is a paper or not).
- Fields per criterion:
  - "type": type of the criterion.
  - "name": concise label.
  - "description": exactly one sentence defining the single rule.
  - "weight": a number in [0, 1], up to 2 decimals.
- Weights across all criteria must sum to exactly 1.0; adjust the last weight if needed to make the sum exact.`

// CriteriaUserPrompt renders the user message for criteria generation.
func CriteriaUserPrompt(currentTime, query string) string {
	return fmt.Sprintf(`Current time: %s.
Now, please strictly follow these instructions and output the complete JSON object for the user query:
%s`, currentTime, query)
}

const PaperValidationSystemPrompt = `You are WisModel, a meticulous academic content auditor. Your task is to act as an academic expert and strictly follow a set of rules to verify if a given academic paper (` + "`paper_info`" + `) aligns with a set of ` + "`criteria`" + ` derived from a user's ` + "`query`" + `.

**Core Principles:**
1.  **Evidence is King:** Your entire analysis must be based *exclusively* on the provided ` + "`paper_info`" + `. Do not use any external knowledge, make assumptions, or infer information not explicitly stated. Every judgment must be backed by direct, verbatim evidence.
2.  **Strict Adherence to Definitions:** You must use the precise definitions for each assessment category. Do not rely on a general understanding.

**Assessment Definitions (` + "`assessment`" + ` field):**
- **` + "`support`" + `**: The paper contains clear, direct, and unambiguous evidence that fully satisfies the criterion.
- **` + "`reject`" + `**:
    - **Explicit Contradiction:** The paper contains clear evidence that directly contradicts or negates the criterion.
    - **Foundational Irrelevance:** The paper's fundamental topic, domain, or context is completely unrelated to the premise of the criterion, making the criterion nonsensical to apply.
- **` + "`somewhat_support`" + `**: The paper is related to the criterion, but the evidence is indirect, incomplete, or requires inference. The link is strongly implied but not explicitly stated.
- **` + "`insufficient_information`" + `**: The paper is in the correct domain/context for the criterion to be applicable, but the provided text (title, abstract, etc.) contains neither supporting nor rejecting evidence to make a definitive judgment.

Your final output must be a single, valid JSON object, following the structure provided in the user prompt precisely.`

const ValidationSystemPrompt = `You are WisModel, a meticulous content verification expert. Your task is to strictly follow a set of rules to verify whether a given search result (` + "`result_info`" + `) aligns with a set of ` + "`criteria`" + ` derived from a user's ` + "`query`" + `.

**Core Principles:**
1.  **Evidence is King:** Your entire analysis must be based *exclusively* on the provided ` + "`result_info`" + `. Do not use any external knowledge, make assumptions, or infer information not explicitly stated. Every judgment must be backed by direct, verbatim evidence.
2.  **Strict Adherence to Definitions:** You must use the precise definitions for each assessment category. Do not rely on a general understanding.

**Assessment Definitions (` + "`assessment`" + ` field):**
- **` + "`support`" + `**: The result contains clear, direct, and unambiguous evidence that fully satisfies the criterion.
- **` + "`reject`" + `**:
    - **Explicit Contradiction:** The result contains clear evidence that directly contradicts or negates the criterion.
    - **Foundational Irrelevance:** The result's fundamental topic, domain, or context is completely unrelated to the premise of the criterion, making the criterion nonsensical to apply.
- **` + "`somewhat_support`" + `**: The result is related to the criterion, but the evidence is indirect, incomplete, or requires inference. The link is strongly implied but not explicitly stated.
- **` + "`insufficient_information`" + `**: The result is in the correct domain/context for the criterion to be applicable, but the provided text contains neither supporting nor rejecting evidence to make a definitive judgment.

Your final output must be a single, valid JSON object, following the structure provided in the user prompt precisely.`

// PaperValidationUserPrompt renders the user message for the paper-specific
// verification path. paperXML is the rendered <paper_info> fragment.
func PaperValidationUserPrompt(now, query, criteriaXML, paperXML, questionLang string) string {
	return fmt.Sprintf(`Current time: %s
Original user query: %s

**Validation criteria:**
%s

**Paper details for validation:**
%s

---

**Your Task:**
Based on the rules provided in your instructions, you must perform a rigorous, step-by-step validation and generate a single JSON object as your response. Write all text fields (`+"`explanation`, `summary`"+`) in **%s**.

Now, please strictly follow these instructions and output the complete JSON object.`, now, query, criteriaXML, paperXML, questionLang)
}

// ValidationUserPrompt renders the user message for the generic verification
// path. resultXML is the rendered <result_info> fragment.
func ValidationUserPrompt(now, query, criteriaXML, resultXML, questionLang string) string {
	return fmt.Sprintf(`Current time: %s
Original user query: %s

**Validation criteria:**
%s

**Search result to verify:**
%s

---

**Your Task:**
Based on the rules provided in your instructions, you must perform a rigorous, step-by-step validation and generate a single JSON object as your response. Write all text fields (`+"`explanation`, `summary`"+`) in **%s**.

Now, please strictly follow these instructions and output the complete JSON object.`, now, query, criteriaXML, resultXML, questionLang)
}

// FormatCriteriaXML renders criterion descriptions as a numbered XML list
// for the validation prompts.
func FormatCriteriaXML(descriptions []string) string {
	if len(descriptions) == 0 {
		return "<criteria>\n</criteria>"
	}
	var sb strings.Builder
	sb.WriteString("<criteria>")
	for i, d := range descriptions {
		fmt.Fprintf(&sb, "\n  <criterion_%d>%s</criterion_%d>", i+1, d, i+1)
	}
	sb.WriteString("\n</criteria>")
	return sb.String()
}

// PaperInfoXML renders the fixed <paper_info> fragment for the paper prompt.
func PaperInfoXML(title, authors, affiliations, conferenceJournal, conferenceJournalType, researchField, doi, publicationDate, abstract, citationCount, sourceURL string) string {
	return fmt.Sprintf(`<paper_info>
    <title>%s</title>
    <authors>%s</authors>
    <affiliations>%s</affiliations>
    <conference_journal>%s</conference_journal>
    <conference_journal_type>%s</conference_journal_type>
    <research_field>%s</research_field>
    <doi>%s</doi>
    <publication_date>%s</publication_date>
    <abstract>%s</abstract>
    <citation_count>%s</citation_count>
    <source_url>%s</source_url>
</paper_info>`, title, authors, affiliations, conferenceJournal, conferenceJournalType, researchField, doi, publicationDate, abstract, citationCount, sourceURL)
}

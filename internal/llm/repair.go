package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StripCodeFences removes a surrounding markdown code fence, with an optional
// language tag on the opening line.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl != -1 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseJSONWithRepair parses text as a JSON object, applying a ladder of
// mechanical repairs for the malformations models actually produce. Each
// repair step is applied cumulatively and a parse is attempted after each.
// Valid JSON passes through untouched, so repair is idempotent on it.
func ParseJSONWithRepair(text string) (map[string]any, error) {
	text = StripCodeFences(text)

	if obj, err := tryParse(text); err == nil {
		return obj, nil
	}

	steps := []func(string) string{
		trimBeforeBrace,
		closeUnbalanced,
		dropTrailingCommas,
		escapeTabs,
		insertMissingCommas,
		escapeNewlinesInStrings,
	}
	var lastErr error
	for _, step := range steps {
		text = step(text)
		obj, err := tryParse(text)
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func tryParse(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func trimBeforeBrace(text string) string {
	if i := strings.IndexByte(text, '{'); i > 0 {
		return text[i:]
	}
	return text
}

// closeUnbalanced appends missing closers when the model truncated its
// output mid-object. Nesting is tracked outside string literals so closers
// come out in the right order.
func closeUnbalanced(text string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return text
	}
	text = strings.TrimRight(text, " \t\r\n")
	text = strings.TrimSuffix(text, ",")
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			text += "}"
		} else {
			text += "]"
		}
	}
	return text
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

func dropTrailingCommas(text string) string {
	return trailingCommaRe.ReplaceAllString(text, "$1")
}

func escapeTabs(text string) string {
	return strings.ReplaceAll(text, "\t", `\t`)
}

var (
	strThenOpenRe = regexp.MustCompile(`"(\s*\n\s*)(["{\[])`)
	objThenObjRe  = regexp.MustCompile(`\}(\s*)\{`)
	arrThenArrRe  = regexp.MustCompile(`\](\s*)\[`)
)

func insertMissingCommas(text string) string {
	text = strThenOpenRe.ReplaceAllString(text, `",$1$2`)
	text = objThenObjRe.ReplaceAllString(text, `},$1{`)
	text = arrThenArrRe.ReplaceAllString(text, `],$1[`)
	return text
}

// escapeNewlinesInStrings walks the text tracking whether the position is
// inside an unescaped string literal and escapes raw newlines found there.
func escapeNewlinesInStrings(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				sb.WriteString(`\n`)
				continue
			case c == '\r':
				continue
			}
		} else if c == '"' {
			inString = true
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

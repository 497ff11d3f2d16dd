package planner

import (
	"regexp"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractionStrategy tries to carve a JSON object out of raw model output.
// It returns ok=false if it cannot find a plausible candidate; the caller
// is responsible for actually parsing the result.
type extractionStrategy func(text string) (string, bool)

// strategies are tried in order until one yields valid JSON with a
// non-empty steps array of known tools (§4.6).
var strategies = []extractionStrategy{
	balancedBraceSlice,
	fencedBlock,
	prefixToLastBrace,
}

// balancedBraceSlice finds the first "{" and returns the substring up to
// its matching closing brace, tracking string literals so braces inside
// quoted text don't confuse the count.
func balancedBraceSlice(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// fencedBlock extracts the first fenced code block containing a JSON
// object, tolerating surrounding prose.
func fencedBlock(text string) (string, bool) {
	m := fencedBlockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// prefixToLastBrace is the most permissive fallback: from the first "{" to
// the very last "}" in the text, regardless of balance.
func prefixToLastBrace(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

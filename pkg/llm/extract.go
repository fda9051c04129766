package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractStrategy attempts to pull a JSON document out of free-form model
// output. It returns the candidate text and whether it found one.
type extractStrategy func(text string) (string, bool)

// extractStrategies are tried in order until one yields text that
// unmarshals. Model output is heuristic; the chain starts with the strictest
// interpretation and loosens from there.
var extractStrategies = []extractStrategy{
	extractVerbatim,
	extractFencedBlock,
	extractBracketSpan,
}

// ExtractJSON unmarshals the first valid JSON document found in text into
// out.
func ExtractJSON(text string, out any) error {
	var lastErr error
	for _, strategy := range extractStrategies {
		candidate, ok := strategy(text)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("no strategy produced valid JSON: %w", lastErr)
	}
	return fmt.Errorf("no JSON document found in response")
}

// extractVerbatim treats the whole trimmed text as JSON.
func extractVerbatim(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// extractFencedBlock pulls the body of the first ```json or ``` fence.
func extractFencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line (e.g. "json").
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	if body == "" {
		return "", false
	}
	return body, true
}

// extractBracketSpan takes the span from the first opening brace or bracket
// to its matching closer, tracking strings so braces inside values do not
// confuse the balance.
func extractBracketSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}

	open := text[start]
	var closeCh byte = '}'
	if open == '[' {
		closeCh = ']'
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
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

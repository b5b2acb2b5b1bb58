package llm

import (
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON object out of an LLM response. Models often wrap
// JSON in markdown fences or surround it with prose; this finds the first
// balanced top-level object and returns it.
func ExtractJSON(response string) (string, error) {
	cleaned := strings.TrimSpace(response)

	// Strip markdown code fences if present.
	if idx := strings.Index(cleaned, "```"); idx != -1 {
		rest := cleaned[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end != -1 {
			cleaned = strings.TrimSpace(rest[:end])
		} else {
			cleaned = strings.TrimSpace(rest)
		}
	}

	start := strings.Index(cleaned, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return cleaned[start : i+1], nil
				}
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in response")
}

// StripSQLFences removes markdown code fences and a leading "sql" language
// tag from a generated statement.
func StripSQLFences(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "sql")
		cleaned = strings.TrimPrefix(cleaned, "SQL")
		if end := strings.Index(cleaned, "```"); end != -1 {
			cleaned = cleaned[:end]
		}
	}

	return strings.TrimSpace(cleaned)
}

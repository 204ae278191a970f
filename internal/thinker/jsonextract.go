package thinker

import (
	"fmt"
	"strings"
)

// extractBalanced does a balanced-delimiter scan for the first complete
// open/close span in text, tolerant of leading/trailing prose — the same
// technique blockexec.extractJSONObject uses for `{`/`}`, generalized here
// to also cover `[`/`]` since the Decompose stage's output is a JSON array
// rather than a single object.
func extractBalanced(text string, open, close byte) (string, error) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", fmt.Errorf("no %c...%c span found in response", open, close)
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, delimiters don't count
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced %c...%c span in response", open, close)
}

func extractJSONArray(text string) (string, error) {
	return extractBalanced(text, '[', ']')
}

func extractJSONObject(text string) (string, error) {
	return extractBalanced(text, '{', '}')
}

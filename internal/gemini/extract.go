package gemini

// ExtractJSON returns the longest balanced-brace substring of text. Braces
// inside JSON string literals are ignored. The second result is false when
// text holds no balanced object.
func ExtractJSON(text string) (string, bool) {
	best := ""
	for i := 0; i < len(text); {
		if text[i] != '{' {
			i++
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			i++
			continue
		}
		if end+1-i > len(best) {
			best = text[i : end+1]
		}
		i = end + 1
	}
	return best, best != ""
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

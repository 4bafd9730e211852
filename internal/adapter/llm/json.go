package llm

import "strings"

// CleanJSON strips a surrounding markdown code fence, with or without a
// language tag, from a model response.
func CleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	if strings.HasPrefix(strings.ToLower(s), "json") {
		s = s[len("json"):]
	}
	return strings.TrimSpace(s)
}

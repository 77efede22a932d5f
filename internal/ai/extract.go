package ai

import (
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// extractJSON pulls the JSON document out of a model completion: a ```json fenced block
// if present, else the span from the first '{' to the last '}', else the text unchanged.
func extractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil && m[1] != "" {
		return m[1]
	}
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last > first {
		return text[first : last+1]
	}
	return text
}

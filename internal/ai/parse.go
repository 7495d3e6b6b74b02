package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON returns the JSON object inside a fenced code block, else the
// outermost braces of the text, else the trimmed text.
func ExtractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	text = strings.TrimSpace(text)
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		return text[i : j+1]
	}
	return text
}

// DecodeJSON extracts and decodes the object in text into v.
func DecodeJSON(text string, v any) error {
	return json.Unmarshal([]byte(ExtractJSON(text)), v)
}

// FormatPrompt replaces {name} placeholders with vars. Unknown placeholders
// are left as they are.
func FormatPrompt(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

package security

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is dropped along with the tags
var droppedElements = map[string]bool{
	"script": true,
	"style":  true,
	"iframe": true,
}

var scriptScheme = regexp.MustCompile(`(?i)javascript\s*:`)

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// Sanitize strips markup from user text. Tags are removed, script and style
// bodies are dropped, stray angle brackets and javascript: schemes are removed
// and the result is trimmed. Entities are kept verbatim, so sanitizing the
// output again returns it unchanged.
func Sanitize(input string) string {
	if !strings.ContainsAny(input, "<>") && !scriptScheme.MatchString(input) {
		return strings.TrimSpace(input)
	}

	out := angleBrackets.Replace(stripTags(input))

	// Removing a scheme can join the halves into a new one
	for scriptScheme.MatchString(out) {
		out = scriptScheme.ReplaceAllString(out, "")
	}

	return strings.TrimSpace(out)
}

func stripTags(input string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if droppedElements[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if droppedElements[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		}
	}
}

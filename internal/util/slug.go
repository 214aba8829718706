// slug.go derives record titles from free text. Discovery records are
// titled by their finding, so the slug has to stay readable and short.

package util

import "strings"

// slugStopWords are dropped from slugs; they carry no meaning in a title.
var slugStopWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "as": true,
	"and": true, "or": true, "but": true, "nor": true,
	"is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true,
	"should": true, "would": true, "could": true,
	"how": true, "what": true, "which": true, "who": true,
	"we": true, "i": true, "you": true, "they": true,
}

// GenerateSlug converts free text to a slug: lowercased, stop words
// removed, non-alphanumerics collapsed to underscores, truncated at a
// word boundary around 40 chars.
func GenerateSlug(text string) string {
	if text == "" {
		return "untitled"
	}

	slug := strings.ToLower(text)

	var result []rune
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result = append(result, r)
		} else {
			result = append(result, ' ')
		}
	}
	slug = string(result)

	words := strings.Fields(slug)
	var filtered []string
	for _, word := range words {
		if !slugStopWords[word] {
			filtered = append(filtered, word)
		}
	}

	// Everything was a stop word; keep the first word rather than nothing.
	if len(filtered) == 0 && len(words) > 0 {
		filtered = []string{words[0]}
	}

	slug = strings.Join(filtered, "_")

	if len(slug) > 0 && (slug[0] >= '0' && slug[0] <= '9') {
		slug = "n" + slug
	}

	// Truncate to 40 chars at a word boundary.
	if len(slug) > 40 {
		truncated := slug[:40]
		if lastUnderscore := strings.LastIndex(truncated, "_"); lastUnderscore > 20 {
			truncated = truncated[:lastUnderscore]
		}
		slug = truncated
	}

	if len(slug) < 3 {
		slug = slug + strings.Repeat("x", 3-len(slug))
	}

	return strings.Trim(slug, "_")
}

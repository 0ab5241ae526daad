package rag

import (
	"regexp"
	"strings"
	"unicode"
)

// maxSnippetChars caps the returned content snippet.
const maxSnippetChars = 300

// minTokenLen skips articles and other short stopwords.
const minTokenLen = 3

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// highlightMatches wraps content words that appear in the query in
// markdown bold markers. Matching is case-insensitive and ignores
// query tokens shorter than three characters.
func highlightMatches(content, query string) string {
	if content == "" || query == "" {
		return content
	}

	tokens := make(map[string]struct{})
	for _, token := range wordPattern.FindAllString(query, -1) {
		if len([]rune(token)) >= minTokenLen {
			tokens[strings.ToLower(token)] = struct{}{}
		}
	}
	if len(tokens) == 0 {
		return content
	}

	return wordPattern.ReplaceAllStringFunc(content, func(word string) string {
		if _, ok := tokens[strings.ToLower(word)]; ok {
			return "**" + word + "**"
		}
		return word
	})
}

// truncateOnWordBoundary cuts text to at most limit runes, backing up
// to the previous word break so no word is split, and appends an
// ellipsis when anything was removed.
func truncateOnWordBoundary(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	cut := limit
	for cut > 0 && !unicode.IsSpace(runes[cut-1]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n") + "..."
}

package summarize

import (
	"regexp"
	"strings"
)

const (
	fallbackExcerptLimit = 800
	fallbackMaxSentences = 4
)

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// Sentences splits text on sentence-ending punctuation followed by
// whitespace. The punctuation stays attached to its sentence.
func Sentences(text string) []string {
	marked := sentenceEndRe.ReplaceAllString(text, "$1\x00")
	return strings.Split(marked, "\x00")
}

// Fallback builds an extractive summary with no network access: the leading
// sentences of the text rendered as bulleted lines. It is deterministic and
// never fails; empty input yields an empty string.
func Fallback(text string) string {
	if text == "" {
		return ""
	}

	excerpt := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if runes := []rune(excerpt); len(runes) > fallbackExcerptLimit {
		excerpt = string(runes[:fallbackExcerptLimit]) + "..."
	}

	sentences := Sentences(excerpt)
	if len(sentences) > fallbackMaxSentences {
		sentences = sentences[:fallbackMaxSentences]
	}

	var lines []string
	for _, s := range sentences {
		if strings.TrimSpace(s) == "" {
			continue
		}
		lines = append(lines, "- "+s)
	}
	return strings.Join(lines, "\n")
}

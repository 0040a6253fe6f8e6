package redact

import (
	"regexp"
	"strings"
)

// ExtraMask is a caller-supplied pattern applied after the built-in
// categories. Its substitutions tally under the placeholder string.
type ExtraMask struct {
	Pattern     *regexp.Regexp
	Placeholder string
}

// Result of a redaction pass over one text blob.
//
// Confidential is true iff Markers is non-empty. It reflects the keyword scan
// of the original text only and is independent of the tally: a message with
// zero substitutions can still be confidential, and vice versa.
type Result struct {
	Text         string
	Tally        map[string]int
	Confidential bool
	Markers      []string
}

// TotalRedactions sums the substitution counts across all categories.
func (r Result) TotalRedactions() int {
	total := 0
	for _, n := range r.Tally {
		total += n
	}
	return total
}

// Redactor masks sensitive substrings and flags confidentiality markers.
type Redactor struct {
	keywords []string // lowercase, trimmed, empties dropped
}

// New creates a Redactor from a comma-separated, case-insensitive keyword
// list. An empty list disables keyword flagging but not masking.
func New(keywordCSV string) *Redactor {
	var keywords []string
	for _, k := range strings.Split(keywordCSV, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Redactor{keywords: keywords}
}

// Redact applies the pattern library to text, replacing matches with typed
// placeholders. Empty input yields a zero Result. The keyword scan runs
// against the original text before any replacement, so masking can never hide
// a marker.
func (r *Redactor) Redact(text string, extra ...ExtraMask) Result {
	res := Result{
		Text:  text,
		Tally: make(map[string]int, len(patterns)),
	}
	for _, p := range patterns {
		res.Tally[p.category] = 0
	}
	if text == "" {
		return res
	}

	res.Markers = r.findMarkers(text)
	res.Confidential = len(res.Markers) > 0

	for _, p := range patterns {
		var n int
		res.Text, n = replaceCount(p.re, res.Text, p.placeholder)
		res.Tally[p.category] += n
	}

	for _, m := range extra {
		var n int
		res.Text, n = replaceCount(m.Pattern, res.Text, m.Placeholder)
		res.Tally[m.Placeholder] += n
	}

	return res
}

// findMarkers returns the configured keywords contained in text,
// case-insensitively, in configuration order.
func (r *Redactor) findMarkers(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, k := range r.keywords {
		if strings.Contains(lower, k) {
			found = append(found, k)
		}
	}
	return found
}

func replaceCount(re *regexp.Regexp, s, placeholder string) (string, int) {
	n := 0
	out := re.ReplaceAllStringFunc(s, func(string) string {
		n++
		return placeholder
	})
	return out, n
}

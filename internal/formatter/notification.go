package formatter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/varezhka/mailwarden/internal/redact"
)

const (
	protectionNotice = "Protected: no content was sent to any external API"
	neutralNotice    = "Thank you"
)

var (
	boldRe        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe      = regexp.MustCompile(`\*([^*]+)\*`)
	underBoldRe   = regexp.MustCompile(`__([^_]+)__`)
	underItalicRe = regexp.MustCompile(`_([^_]+)_`)
)

// Formatter renders the outbound plain-text notification. It never truncates:
// the delivery boundary owns the payload size limit.
type Formatter struct{}

// New creates a notification formatter.
func New() *Formatter {
	return &Formatter{}
}

// Format renders the notification for one processed message.
func (f *Formatter) Format(sender, subject, summary string, blocked bool, tally map[string]int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\n", sender))
	sb.WriteString(fmt.Sprintf("Subject: %s\n\n", subject))
	sb.WriteString("Summary:\n")
	sb.WriteString(f.StripMarkdown(summary))
	sb.WriteString("\n\n")
	if blocked {
		sb.WriteString(protectionNotice)
	} else {
		sb.WriteString(neutralNotice)
	}
	sb.WriteString("\nRedactions: ")
	sb.WriteString(f.tallyLine(tally))
	return sb.String()
}

// StripMarkdown removes bold/italic emphasis markers, keeping the inner text.
// Summaries go out as plain text, so stray model markup would only confuse.
func (f *Formatter) StripMarkdown(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	s = underBoldRe.ReplaceAllString(s, "$1")
	s = underItalicRe.ReplaceAllString(s, "$1")
	return s
}

// tallyLine renders non-zero counts as "category: n" pairs in the fixed
// category order, with any extra-mask keys sorted after them.
func (f *Formatter) tallyLine(tally map[string]int) string {
	fixed := redact.Categories()
	var parts []string
	seen := make(map[string]bool, len(fixed))
	for _, cat := range fixed {
		seen[cat] = true
		if n := tally[cat]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", cat, n))
		}
	}

	var extras []string
	for key, n := range tally {
		if !seen[key] && n > 0 {
			extras = append(extras, fmt.Sprintf("%s: %d", key, n))
		}
	}
	sort.Strings(extras)
	parts = append(parts, extras...)

	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, ", ")
}

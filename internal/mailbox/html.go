package mailbox

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlExtractor converts HTML-only email bodies to readable plain text so the
// redactor and summarizer work on clean input.
type htmlExtractor struct {
	whitespaceRe *regexp.Regexp
	newlineRe    *regexp.Regexp
	invisibleRe  *regexp.Regexp
}

func newHTMLExtractor() *htmlExtractor {
	return &htmlExtractor{
		whitespaceRe: regexp.MustCompile(`[^\S\n]+`),
		newlineRe:    regexp.MustCompile(`\n{3,}`),
		// Zero-width and other invisible Unicode characters, common in
		// marketing mail.
		invisibleRe: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}]+`),
	}
}

// Extract renders HTML as plain text, one line per block element.
func (e *htmlExtractor) Extract(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()
	text = e.invisibleRe.ReplaceAllString(text, "")
	text = e.whitespaceRe.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	text = strings.Join(lines, "\n")
	text = e.newlineRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}

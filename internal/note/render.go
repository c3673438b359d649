package note

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"gopkg.in/yaml.v3"

	"github.com/user/sessionlog/internal/summary"
)

const (
	dateLayout     = "2006-01-02"
	maxTitleRunes  = 100
	entryMarker    = "🤖"
	defaultNoteTag = "claude-code"
)

// RenderEntries formats daily-log entries, one bullet line each.
func RenderEntries(entries []summary.Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		tags := make([]string, len(e.Tags))
		for j, t := range e.Tags {
			tags[j] = "#" + t
		}
		line := fmt.Sprintf("- %s [%s] **%s**: %s %s", entryMarker, e.Time, e.Project, e.Summary, strings.Join(tags, " "))
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

// InstantiateTemplate fills the date tokens of a daily-note template.
func InstantiateTemplate(tpl string, date time.Time) string {
	return strings.NewReplacer(
		"{{DATE:YYYY-MM-DD}}", date.Format(dateLayout),
		"{{date:YYYY-MM-DD|offset:-1d}}", date.AddDate(0, 0, -1).Format(dateLayout),
		"{{date:YYYY-MM-DD|offset:1d}}", date.AddDate(0, 0, 1).Format(dateLayout),
	).Replace(tpl)
}

// DailyNotePath substitutes {year}, {month} and {date} in pattern.
func DailyNotePath(pattern string, date time.Time) string {
	return strings.NewReplacer(
		"{year}", date.Format("2006"),
		"{month}", date.Format("01"),
		"{date}", date.Format(dateLayout),
	).Replace(pattern)
}

var unsafeTitleChars = regexp.MustCompile(`[/\\?%*:|"<>]`)

// SanitizeTitle replaces characters that are unsafe in file names and caps
// the result at 100 runes.
func SanitizeTitle(title string) string {
	safe := []rune(unsafeTitleChars.ReplaceAllString(title, "-"))
	if len(safe) > maxTitleRunes {
		safe = safe[:maxTitleRunes]
	}
	return string(safe)
}

// KnowledgePath returns <base>/<date>-<title>.md with a sanitized title.
func KnowledgePath(base, title string, date time.Time) string {
	name := date.Format(dateLayout) + "-" + SanitizeTitle(title) + ".md"
	if base == "" {
		return name
	}
	return strings.TrimRight(base, "/") + "/" + name
}

type frontMatter struct {
	Date string   `yaml:"date"`
	Tags []string `yaml:"tags"`
}

// KnowledgeDocument prefixes body with YAML front matter carrying the date
// and tag. The body is written as given unless it is an HTML document,
// which is converted to markdown first.
func KnowledgeDocument(body, tag string, date time.Time) (string, error) {
	if tag == "" {
		tag = defaultNoteTag
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(frontMatter{Date: date.Format(dateLayout), Tags: []string{tag}}); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}

	md, err := toMarkdown(body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("---\n%s---\n\n%s", buf.String(), md), nil
}

var (
	htmlLeadRe      = regexp.MustCompile(`(?i)^<(p|div|h[1-6]|ul|ol|pre|table|blockquote|section|article)\b[^>]*>`)
	markdownBlockRe = regexp.MustCompile("(?m)^(```|~~~|#{1,6}\\s|[-*+]\\s|\\d+\\.\\s|>)")
)

// isHTMLDocument reports whether body is HTML as a whole: it opens with a
// block tag and has no markdown fences, headings, list items or quotes.
// Markdown that merely shows tags, e.g. inside a code fence, is not HTML.
func isHTMLDocument(body string) bool {
	trimmed := strings.TrimSpace(body)
	return htmlLeadRe.MatchString(trimmed) && !markdownBlockRe.MatchString(trimmed)
}

func toMarkdown(body string) (string, error) {
	if !isHTMLDocument(body) {
		return body, nil
	}
	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return md, nil
}

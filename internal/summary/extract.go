package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	ErrNoStructuredData = errors.New("no structured data in model output")
	ErrUnrepairable     = errors.New("model output could not be parsed")
)

// Summary is the structured result the model is asked to produce.
// Fields are pointers so that a missing section can be told apart from an
// empty one.
type Summary struct {
	DailyLog  *DailyLog  `json:"dailyLog"`
	Knowledge *Knowledge `json:"knowledge"`
}

type DailyLog struct {
	Entries []Entry `json:"entries"`
}

type Entry struct {
	Time    string   `json:"time"`
	Project string   `json:"project"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

type Knowledge struct {
	ShouldCreate bool   `json:"shouldCreate"`
	Title        string `json:"title"`
	Content      string `json:"content"`
}

// Extractor pulls a candidate JSON document out of free-form model output.
type Extractor func(text string) (string, bool)

// Repair rewrites a candidate JSON document to fix a known model mistake.
type Repair func(text string) string

var (
	fencedBlockRe   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	braceSpanRe     = regexp.MustCompile(`(?s)\{.*\}`)
	boolPlaceRe     = regexp.MustCompile(`:\s*true/false`)
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
)

// FencedBlock returns the trimmed body of the first fenced code block.
func FencedBlock(text string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// BraceSpan returns everything from the first '{' to the last '}'.
func BraceSpan(text string) (string, bool) {
	m := braceSpanRe.FindString(text)
	return m, m != ""
}

// RepairBooleanPlaceholder turns the template's literal "true/false" into false.
func RepairBooleanPlaceholder(text string) string {
	return boolPlaceRe.ReplaceAllString(text, ": false")
}

// RepairTrailingCommas drops commas directly before a closing bracket or brace.
func RepairTrailingCommas(text string) string {
	return trailingCommaRe.ReplaceAllString(text, "$1")
}

// DefaultExtractors are tried in order; the first match wins.
var DefaultExtractors = []Extractor{FencedBlock, BraceSpan}

// DefaultRepairs are applied together before the single retry.
var DefaultRepairs = []Repair{RepairBooleanPlaceholder, RepairTrailingCommas}

// Parse extracts and decodes a Summary from model output. Success means the
// extracted text is valid JSON, possibly after repair. Fields whose JSON type
// does not match are left empty and the rest of the value is kept; checking
// that the result is usable is left to the caller.
func Parse(text string) (*Summary, error) {
	var candidate string
	found := false
	for _, extract := range DefaultExtractors {
		if candidate, found = extract(text); found {
			break
		}
	}
	if !found || candidate == "" {
		return nil, ErrNoStructuredData
	}

	if !json.Valid([]byte(candidate)) {
		for _, repair := range DefaultRepairs {
			candidate = repair(candidate)
		}
		if !json.Valid([]byte(candidate)) {
			var v any
			err := json.Unmarshal([]byte(candidate), &v)
			return nil, fmt.Errorf("%w: %v", ErrUnrepairable, err)
		}
	}

	var s Summary
	if err := json.Unmarshal([]byte(candidate), &s); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrUnrepairable, err)
		}
		slog.Warn("model output has fields of unexpected type, keeping the rest", "error", err)
	}
	return &s, nil
}

// Package note merges summaries into vault documents: it renders daily-log
// entries, inserts them into a named section of a daily note, instantiates
// the daily-note template and writes knowledge notes.
package note

import (
	"regexp"
	"strings"
)

// State is the position of the insertion scan relative to the target section.
type State int

const (
	Scanning State = iota
	InSection
	Done
)

// Outcome records where a block ended up.
type Outcome int

const (
	SectionMissing Outcome = iota
	Placeholder
	BeforeHeading
	AppendedAtEnd
)

func (o Outcome) String() string {
	switch o {
	case Placeholder:
		return "placeholder"
	case BeforeHeading:
		return "before_heading"
	case AppendedAtEnd:
		return "appended_at_end"
	default:
		return "section_missing"
	}
}

// Inserted reports whether the document was changed.
func (o Outcome) Inserted() bool { return o != SectionMissing }

var nextHeadingRe = regexp.MustCompile(`^##\s+`)

// HeadingPattern builds the case-insensitive level-2 heading matcher for a
// section name. Whitespace inside the name is optional, so "Session Talk"
// also matches "## SessionTalk".
func HeadingPattern(section string) *regexp.Regexp {
	words := strings.Fields(section)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)^##\s+` + strings.Join(words, `\s*`))
}

// Insert places block inside the section whose heading matches heading.
// Within the section the block replaces the first placeholder line ("-"),
// or is inserted before the next level-2 heading followed by a blank line,
// or is appended when the document ends. Only the first opportunity is
// used. If the heading never appears, doc is returned unchanged.
func Insert(doc, block string, heading *regexp.Regexp) (string, Outcome) {
	lines := strings.Split(doc, "\n")
	out := make([]string, 0, len(lines)+2)
	state := Scanning
	outcome := SectionMissing

	for _, line := range lines {
		if heading.MatchString(line) {
			if state == Scanning {
				state = InSection
			}
			out = append(out, line)
			continue
		}

		if state == InSection {
			if nextHeadingRe.MatchString(line) {
				out = append(out, block, "")
				state, outcome = Done, BeforeHeading
			} else if strings.TrimSpace(line) == "-" {
				out = append(out, block)
				state, outcome = Done, Placeholder
				continue
			}
		}

		out = append(out, line)
	}

	if state == InSection {
		out = append(out, block)
		outcome = AppendedAtEnd
	}
	return strings.Join(out, "\n"), outcome
}

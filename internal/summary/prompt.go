package summary

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/user/sessionlog/internal/transcript"
)

// DefaultPrompt is the built-in summary prompt. It uses Go text/template
// syntax with PromptData fields: .Date, .Language, .Sessions
const DefaultPrompt = `Below are the conversation histories of today's Claude Code sessions ({{.Date}}). Produce two summaries in JSON format.

## Conversation history
{{.Sessions}}

## Output format
Output JSON in the following shape:

` + "```json" + `
{
  "dailyLog": {
    "entries": [
      {
        "time": "HH:MM",
        "project": "project name",
        "summary": "one concise line describing what was done",
        "tags": ["tag1", "tag2"]
      }
    ]
  },
  "knowledge": {
    "shouldCreate": true/false,
    "title": "knowledge note title (when there is important technical content)",
    "content": "detailed explanation in markdown"
  }
}
` + "```" + `

Rules:
- dailyLog.entries summarizes each session in chronological order
- write summary concisely in {{.Language}}
- set knowledge.shouldCreate to true only when code was generated or there is important technical content
- output JSON only`

// PromptData holds the values substituted into the prompt template.
type PromptData struct {
	Date     string
	Language string
	Sessions string
}

var promptTemplate = template.Must(template.New("summary").Parse(DefaultPrompt))

// RenderSessions joins compacted sessions into the prompt's history block.
func RenderSessions(sessions []*transcript.Compacted) string {
	parts := make([]string, len(sessions))
	for i, s := range sessions {
		parts[i] = fmt.Sprintf("### %s - %s\n\n%s", s.DisplayTime, s.ProjectName, s.Excerpt)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// BuildPrompt renders the summary prompt for one day.
func BuildPrompt(date, language string, sessions []*transcript.Compacted) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, PromptData{
		Date:     date,
		Language: language,
		Sessions: RenderSessions(sessions),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

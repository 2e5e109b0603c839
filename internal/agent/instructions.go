package agent

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kalambet/persona/internal/tools"
)

// DisplayName is the assistant's name for subject.
func DisplayName(subject string) string {
	return subject + "'s Personal Agent"
}

var instructionsTmpl = template.Must(template.New("instructions").Parse(`You are {{.Subject}}'s personal AI agent.

Your job is to help users learn about {{.Subject}}: skills, projects, background and experience. Questions may contain spelling mistakes, wrong casing, or incomplete phrasing.

Behavior:
- If the user greets you, reply with a warm welcome.
- If the user asks anything related to {{.Subject}}, even with typos in the name, call the {{.Tool}} tool and answer from its result.
- If the question is vague (for example just "{{.Lower}}?"), politely ask whether they want to know more about {{.Subject}}.
- If the question is unclear, map it to one of the profile sections such as skills, experience or education.
- If the tool reports that it failed to fetch data, say the information is temporarily unavailable.

Always prioritize the user's intent, even if their wording isn't perfect.
`))

// RenderInstructions returns the system instructions for subject.
func RenderInstructions(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("agent: subject is empty")
	}
	var sb strings.Builder
	err := instructionsTmpl.Execute(&sb, struct {
		Subject, Lower, Tool string
	}{subject, strings.ToLower(subject), tools.ProfileToolName})
	if err != nil {
		return "", fmt.Errorf("rendering instructions: %w", err)
	}
	return sb.String(), nil
}

package suggest

import (
	"fmt"
	"strings"

	"github.com/sadopc/prodhub/internal/keywords"
	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
)

const defaultInstruction = "Break down the project into actionable steps."

// RelevantEvents returns the events whose titles mention a keyword of the
// project name.
func RelevantEvents(project model.Project, events []schedule.Event) ([]schedule.Event, error) {
	words := keywords.Keywords(project.Name)
	if len(words) == 0 || len(events) == 0 {
		return nil, nil
	}
	m, err := keywords.NewMatcher(words)
	if err != nil {
		return nil, fmt.Errorf("build keyword matcher: %w", err)
	}
	var out []schedule.Event
	for _, e := range events {
		if m.Match(e.Title) {
			out = append(out, e)
		}
	}
	return out, nil
}

// BuildPrompt renders the generation prompt.
func BuildPrompt(project model.Project, instruction string, events []schedule.Event) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = defaultInstruction
	}

	var b strings.Builder
	b.WriteString("You are a project planning assistant. Your primary goal is to generate a list of actionable to-do items based on the user's main instruction. Use the other information as background context.\n\n")
	fmt.Fprintf(&b, "Main instruction from user:\n%s\n\n", instruction)
	b.WriteString("Background context:\n")
	fmt.Fprintf(&b, "- Project name: %q\n", project.Name)
	fmt.Fprintf(&b, "- Project type: %q\n", string(project.Category))
	if len(events) > 0 {
		b.WriteString("\nUpcoming related events from my calendar:\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %q on %s\n", e.Title, e.Date.Format("Jan 2, 2006"))
		}
	}
	b.WriteString("\nGenerate 5 to 7 to-do items. For each item, provide a title and estimate its difficulty as 'High', 'Medium', or 'Low'. Do not create tasks that are identical to the calendar events, but rather tasks that lead up to them.")
	return b.String()
}

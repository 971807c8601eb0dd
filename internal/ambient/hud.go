package ambient

import "strings"

// HUD holds the gathered sections. Empty sections are omitted from the
// rendered output rather than shown as errors; a section that failed to
// gather simply disappears until the next refresh.
type HUD struct {
	GatheredAt string
	Weather    string
	Calendar   string
	Todos      string
}

// Render formats the HUD as markdown for inclusion in a system prompt.
func (h HUD) Render() string {
	var lines []string

	lines = append(lines, "*Refreshed "+h.GatheredAt+"*", "")

	if h.Weather != "" {
		lines = append(lines, h.Weather, "")
	}
	if h.Calendar != "" {
		lines = append(lines, h.Calendar, "")
	}
	if h.Todos != "" {
		lines = append(lines, "**Todos**", h.Todos, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

package reflect

import (
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/cadence/internal/continuity"
)

// Memory is one log entry as presented to the backend. When carries the
// reference timezone so display times read as local times.
type Memory struct {
	When    time.Time
	Content string
}

const clockLayout = "3:04 PM"

// BuildCapsulePrompt composes the request for a period summary: the
// ordered memories tagged with local display times, the count, prior
// periods' summaries for continuity, and the narrative instruction.
// Memory content is never truncated here; payload size is the backend's
// concern.
func BuildCapsulePrompt(memories []Memory, label string, prior []continuity.Entry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are writing a first-person summary of %s.\n\n", label)

	if len(prior) > 0 {
		sb.WriteString("What came before:\n\n")
		for _, entry := range prior {
			fmt.Fprintf(&sb, "%s:\n%s\n\n", entry.Label, entry.Text)
		}
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "Here are the memories from %s:\n\n---\n\n", label)
	sb.WriteString(joinMemories(memories))
	fmt.Fprintf(&sb, "\n\n---\n\nThat's %d memories.\n\n", len(memories))

	sb.WriteString("Recount the events of the period chronologically, in the first person. " +
		"Say what happened and what it meant. Be concise but include everything important.\n\n" +
		"At the end, note anything unfinished or carrying forward—threads the next " +
		"period should know about.\n\n" +
		"Write in past tense. No headers, no sections. Just the handoff.")

	return sb.String()
}

// BuildRollingPrompt composes the request for the rolling "today so far"
// summary ending at now.
func BuildRollingPrompt(memories []Memory, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "It's %s on %s. Here's everything stored since 6 AM today:\n\n---\n\n",
		now.Format(clockLayout), now.Format("Monday, January 2"))
	sb.WriteString(joinMemories(memories))
	fmt.Fprintf(&sb, "\n\n---\n\nThat's %d memories from today so far.\n\n", len(memories))

	sb.WriteString("Write a brief first-person summary of today so far—what's happened, " +
		"what matters, what's still in motion. Someone waking up right now with no " +
		"memory of today should feel oriented after reading it.\n\n" +
		"Present tense for the current state, past tense for completed things. " +
		"A paragraph or two. No headers, no bullet points.")

	return sb.String()
}

func joinMemories(memories []Memory) string {
	parts := make([]string, len(memories))
	for i, m := range memories {
		parts[i] = fmt.Sprintf("[%s]\n%s", m.When.Format(clockLayout), m.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

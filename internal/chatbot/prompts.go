package chatbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/Folken2/ag-ui-research/internal/session"
)

// chatSystemPrompt is the system prompt for plain conversational turns.
func chatSystemPrompt() string {
	return fmt.Sprintf(`You are a friendly, knowledgeable AI companion. If the user needs
real-time data, politely suggest they ask for a search.

Be engaging and friendly.

The current time is %s.`, time.Now().Format("2006-01-02 15:04:05"))
}

// synthesisPrompt builds the system prompt that turns a research result into
// the final user-facing answer.
func synthesisPrompt(message string, research *session.ResearchResult) string {
	var b strings.Builder
	b.WriteString(`You are an expert research assistant. Create a clean, informative response
based on the research summary, sources and citations.

Research Summary:
`)
	b.WriteString(research.Summary)

	b.WriteString("\n\nSources:\n")
	for _, src := range research.Sources {
		fmt.Fprintf(&b, "- %s (%s)\n", src.Title, src.URL)
	}

	if len(research.Citations) > 0 {
		b.WriteString("\nCitations:\n")
		for _, c := range research.Citations {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	fmt.Fprintf(&b, "\nUser Question: %s\n", message)
	b.WriteString(`
Format your response as clean markdown with proper headers, bullet points,
and emphasis. Do not include any source references or URLs.`)
	return b.String()
}

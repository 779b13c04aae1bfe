package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Folken2/ag-ui-research/internal/session"
)

const summarizeTimeout = 60 * time.Second

// GenkitSummarizer condenses search material into a research summary with a
// single LLM call.
type GenkitSummarizer struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitSummarizer creates a summarizer bound to the given Genkit instance
// and provider-qualified model name.
func NewGenkitSummarizer(g *genkit.Genkit, modelName string) *GenkitSummarizer {
	return &GenkitSummarizer{g: g, modelName: modelName}
}

// Summarize implements the Summarizer interface.
func (s *GenkitSummarizer) Summarize(ctx context.Context, query, answer string, sources []session.Source) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithSystem(summarySystemPrompt),
		ai.WithPrompt("%s", summaryPrompt(query, answer, sources)),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: 0.3}),
	}
	if s.modelName != "" {
		opts = append(opts, ai.WithModelName(s.modelName))
	}

	resp, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty summary for query %q", query)
	}
	return text, nil
}

const summarySystemPrompt = `You are a research analyst. Write a well-organized research summary
from the provided web sources.

Requirements:
- Lead with the key finding, then supporting details.
- Use short paragraphs; use bullet points for enumerations.
- Stick to what the sources say. Do not invent facts or numbers.
- Mention conflicting information between sources when it exists.`

// summaryPrompt assembles the user prompt: the query, the direct answer when
// one was found, and the gathered source material.
func summaryPrompt(query, answer string, sources []session.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n", query)

	if answer != "" {
		b.WriteString("\nDirect answer from search engine:\n")
		b.WriteString(answer)
		b.WriteString("\n")
	}

	b.WriteString("\nSources:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, src.Title, src.URL)
		if src.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", src.Snippet)
		}
	}

	b.WriteString("\nWrite the research summary now.")
	return b.String()
}

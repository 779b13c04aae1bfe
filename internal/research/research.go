// Package research implements the multi-step research pipeline ("crew")
// behind SEARCH turns.
//
// A run is a fixed sequence of steps: web search (Exa, with Serper as a
// supplementary provider when configured), direct answer lookup, source-page
// metadata enrichment, and an LLM summary pass. Every step reports its
// lifecycle to the event bus so the client sees progress while the blocking
// network calls execute.
//
// The orchestrator depends only on the result shape, never on how it is
// produced.
package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Folken2/ag-ui-research/internal/bus"
	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/session"
)

// ErrNoResults indicates the search providers returned nothing usable.
var ErrNoResults = errors.New("no search results")

// SearchProvider finds web sources for a query.
type SearchProvider interface {
	Search(ctx context.Context, query string, numResults int) ([]session.Source, error)
}

// AnswerProvider returns a direct answer with citations for a query.
type AnswerProvider interface {
	Answer(ctx context.Context, query string) (string, []string, error)
}

// Enricher fills in missing source metadata (title, image, snippet) by
// fetching the source pages. Best-effort: it mutates the slice in place and
// never fails the run.
type Enricher interface {
	Enrich(ctx context.Context, sources []session.Source)
}

// Summarizer condenses the gathered material into a research summary.
type Summarizer interface {
	Summarize(ctx context.Context, query, answer string, sources []session.Source) (string, error)
}

// Config assembles a Crew.
type Config struct {
	Search     SearchProvider
	Supplement SearchProvider // optional second provider (news results)
	Answer     AnswerProvider // optional
	Enricher   Enricher       // optional
	Summarizer Summarizer
	Bus        *bus.Bus
	Logger     log.Logger

	// NumResults is how many sources to request per provider (default 5).
	NumResults int
}

// Crew executes research runs. Safe for sequential use by one orchestrator;
// runs themselves must not overlap (the caller serializes turns).
type Crew struct {
	search     SearchProvider
	supplement SearchProvider
	answer     AnswerProvider
	enricher   Enricher
	summarizer Summarizer
	events     *bus.Bus
	logger     log.Logger
	numResults int
}

// NewCrew validates required collaborators and builds a Crew.
func NewCrew(cfg Config) (*Crew, error) {
	if cfg.Search == nil {
		return nil, errors.New("search provider is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("event bus is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	numResults := cfg.NumResults
	if numResults <= 0 {
		numResults = 5
	}
	return &Crew{
		search:     cfg.Search,
		supplement: cfg.Supplement,
		answer:     cfg.Answer,
		enricher:   cfg.Enricher,
		summarizer: cfg.Summarizer,
		events:     cfg.Bus,
		logger:     logger,
		numResults: numResults,
	}, nil
}

// Run executes the full pipeline for one query.
func (c *Crew) Run(ctx context.Context, query string) (*session.ResearchResult, error) {
	started := time.Now()
	agentID := uuid.NewString()

	c.events.Emit(bus.StreamEvent{
		Type: bus.KindCrewStarted,
		Data: map[string]any{"message": "Starting research...", "status": "executing"},
	})
	c.events.Emit(bus.StreamEvent{
		Type:    bus.KindAgentStarted,
		AgentID: agentID,
		Data: map[string]any{
			"agent_role": "Research Agent",
			"message":    "Research agent thinking...",
			"status":     "executing",
		},
	})

	result, err := c.run(ctx, query)
	if err != nil {
		c.events.Emit(bus.StreamEvent{
			Type:    bus.KindAgentError,
			AgentID: agentID,
			Data:    map[string]any{"agent_role": "Research Agent", "error": err.Error()},
		})
		return nil, err
	}

	c.events.Emit(bus.StreamEvent{
		Type:    bus.KindAgentFinished,
		AgentID: agentID,
		Data: map[string]any{
			"agent_role": "Research Agent",
			"message":    "Gathering final thoughts...",
			"status":     "finished",
		},
	})
	c.events.Emit(bus.StreamEvent{
		Type: bus.KindCrewCompleted,
		Data: map[string]any{"status": "completed", "duration": time.Since(started).String()},
	})

	return result, nil
}

// run performs the pipeline steps. Search failure is fatal; answer lookup and
// enrichment are best-effort.
func (c *Crew) run(ctx context.Context, query string) (*session.ResearchResult, error) {
	sources, err := step(ctx, c, "web_search", func(ctx context.Context) ([]session.Source, error) {
		return c.search.Search(ctx, query, c.numResults)
	})
	if err != nil {
		return nil, fmt.Errorf("searching web: %w", err)
	}

	if c.supplement != nil {
		extra, serr := step(ctx, c, "news_search", func(ctx context.Context) ([]session.Source, error) {
			return c.supplement.Search(ctx, query, c.numResults)
		})
		if serr != nil {
			c.logger.Debug("supplementary search failed", "error", serr)
		} else {
			sources = mergeSources(sources, extra, c.numResults*2)
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w for query %q", ErrNoResults, query)
	}

	var answer string
	var citations []string
	if c.answer != nil {
		type answerOut struct {
			text      string
			citations []string
		}
		out, aerr := step(ctx, c, "direct_answer", func(ctx context.Context) (answerOut, error) {
			text, cites, err := c.answer.Answer(ctx, query)
			return answerOut{text, cites}, err
		})
		if aerr != nil {
			c.logger.Debug("direct answer lookup failed", "error", aerr)
		} else {
			answer = out.text
			citations = out.citations
		}
	}

	if c.enricher != nil {
		_, _ = step(ctx, c, "source_enrichment", func(ctx context.Context) (struct{}, error) {
			c.enricher.Enrich(ctx, sources)
			return struct{}{}, nil
		})
	}

	c.events.Emit(bus.StreamEvent{
		Type: bus.KindLLMStarted,
		Data: map[string]any{"message": "Summarizing findings...", "status": "executing"},
	})
	summary, err := c.summarizer.Summarize(ctx, query, answer, sources)
	if err != nil {
		c.events.Emit(bus.StreamEvent{
			Type: bus.KindLLMError,
			Data: map[string]any{"error": err.Error()},
		})
		return nil, fmt.Errorf("summarizing research: %w", err)
	}
	c.events.Emit(bus.StreamEvent{
		Type: bus.KindLLMCompleted,
		Data: map[string]any{"status": "completed"},
	})

	return &session.ResearchResult{Summary: summary, Sources: sources, Citations: citations}, nil
}

// step wraps one tool invocation with TOOL_STARTED / TOOL_COMPLETED /
// TOOL_ERROR events.
func step[T any](ctx context.Context, c *Crew, name string, fn func(context.Context) (T, error)) (T, error) {
	c.events.Emit(bus.StreamEvent{
		Type: bus.KindToolStarted,
		Data: map[string]any{"tool": name, "status": "executing"},
	})

	out, err := fn(ctx)
	if err != nil {
		c.events.Emit(bus.StreamEvent{
			Type: bus.KindToolError,
			Data: map[string]any{"tool": name, "error": err.Error()},
		})
		return out, err
	}

	c.events.Emit(bus.StreamEvent{
		Type: bus.KindToolCompleted,
		Data: map[string]any{"tool": name, "status": "completed"},
	})
	return out, nil
}

// mergeSources appends extras that bring a new URL, capped at limit.
func mergeSources(base, extra []session.Source, limit int) []session.Source {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s.URL] = true
	}
	for _, s := range extra {
		if len(base) >= limit {
			break
		}
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		base = append(base, s)
	}
	return base
}

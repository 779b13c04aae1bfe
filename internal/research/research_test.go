package research

import (
	"context"
	"errors"
	"testing"

	"github.com/Folken2/ag-ui-research/internal/bus"
	"github.com/Folken2/ag-ui-research/internal/session"
)

type fakeSearch struct {
	sources []session.Source
	err     error
}

func (f *fakeSearch) Search(_ context.Context, _ string, _ int) ([]session.Source, error) {
	return f.sources, f.err
}

type fakeAnswer struct {
	answer    string
	citations []string
	err       error
}

func (f *fakeAnswer) Answer(_ context.Context, _ string) (string, []string, error) {
	return f.answer, f.citations, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _, _ string, _ []session.Source) (string, error) {
	return f.summary, f.err
}

func eventTypes(events []bus.StreamEvent) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestCrewRun_Success(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	crew, err := NewCrew(Config{
		Search:     &fakeSearch{sources: []session.Source{{URL: "https://a.com", Title: "A"}}},
		Answer:     &fakeAnswer{answer: "42", citations: []string{"https://a.com"}},
		Summarizer: &fakeSummarizer{summary: "the summary"},
		Bus:        b,
	})
	if err != nil {
		t.Fatalf("NewCrew() error = %v", err)
	}

	result, err := crew.Run(context.Background(), "meaning of life")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Summary != "the summary" {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(result.Sources) != 1 || result.Sources[0].URL != "https://a.com" {
		t.Errorf("Sources = %v", result.Sources)
	}
	if len(result.Citations) != 1 {
		t.Errorf("Citations = %v", result.Citations)
	}

	got := eventTypes(b.Drain())
	want := []string{
		bus.KindCrewStarted,
		bus.KindAgentStarted,
		bus.KindToolStarted, bus.KindToolCompleted, // web_search
		bus.KindToolStarted, bus.KindToolCompleted, // direct_answer
		bus.KindLLMStarted, bus.KindLLMCompleted,
		bus.KindAgentFinished,
		bus.KindCrewCompleted,
	}
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCrewRun_SearchFailure(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	crew, err := NewCrew(Config{
		Search:     &fakeSearch{err: errors.New("boom")},
		Summarizer: &fakeSummarizer{summary: "unused"},
		Bus:        b,
	})
	if err != nil {
		t.Fatalf("NewCrew() error = %v", err)
	}

	if _, err := crew.Run(context.Background(), "q"); err == nil {
		t.Fatal("Run() error = nil, want search failure")
	}

	got := eventTypes(b.Drain())
	want := []string{
		bus.KindCrewStarted,
		bus.KindAgentStarted,
		bus.KindToolStarted, bus.KindToolError,
		bus.KindAgentError,
	}
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCrewRun_EmptyResults(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	crew, err := NewCrew(Config{
		Search:     &fakeSearch{},
		Summarizer: &fakeSummarizer{summary: "unused"},
		Bus:        b,
	})
	if err != nil {
		t.Fatalf("NewCrew() error = %v", err)
	}

	_, err = crew.Run(context.Background(), "obscure")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("Run() error = %v, want ErrNoResults", err)
	}
}

func TestCrewRun_AnswerFailureIsNotFatal(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	crew, err := NewCrew(Config{
		Search:     &fakeSearch{sources: []session.Source{{URL: "https://a.com"}}},
		Answer:     &fakeAnswer{err: errors.New("quota exceeded")},
		Summarizer: &fakeSummarizer{summary: "still works"},
		Bus:        b,
	})
	if err != nil {
		t.Fatalf("NewCrew() error = %v", err)
	}

	result, err := crew.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (answer lookup is best-effort)", err)
	}
	if result.Summary != "still works" {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(result.Citations) != 0 {
		t.Errorf("Citations = %v, want none", result.Citations)
	}
}

func TestMergeSources(t *testing.T) {
	base := []session.Source{{URL: "https://a.com"}, {URL: "https://b.com"}}
	extra := []session.Source{
		{URL: "https://a.com"}, // duplicate
		{URL: ""},              // no URL
		{URL: "https://c.com"},
		{URL: "https://d.com"},
	}

	merged := mergeSources(base, extra, 3)
	if len(merged) != 3 {
		t.Fatalf("mergeSources() = %d sources, want 3", len(merged))
	}
	if merged[2].URL != "https://c.com" {
		t.Errorf("merged[2].URL = %q, want https://c.com", merged[2].URL)
	}
}

// Package chatbot implements the chat orchestrator: the state machine that
// routes one user message through intent classification into a chat reply, a
// research run, or session termination.
package chatbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/Folken2/ag-ui-research/internal/intent"
	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/session"
)

// farewell is returned on EXIT and on every turn after it.
const farewell = "👋 Session ended. Feel free to start a new one whenever you like!"

// Runner executes a research run for a self-contained query.
type Runner interface {
	Run(ctx context.Context, query string) (*session.ResearchResult, error)
}

// Responder generates the LLM responses for chat and research turns.
type Responder interface {
	// Reply produces a conversational answer from recent history and the
	// current message.
	Reply(ctx context.Context, history []session.Turn, message string) (string, error)
	// Synthesize turns a completed research result into the final answer for
	// the user's original message.
	Synthesize(ctx context.Context, message string, research *session.ResearchResult) (string, error)
}

// Outcome is the result of processing one message.
type Outcome struct {
	Intent   intent.Intent    `json:"intent"`
	Response string           `json:"response"`
	Sources  []session.Source `json:"sources,omitempty"`
}

// Session owns one conversation. ProcessMessage is safe for concurrent use;
// overlapping calls serialize so at most one turn executes at a time.
type Session struct {
	mu sync.Mutex

	state      *session.State
	classifier intent.Classifier
	crew       Runner
	responder  Responder
	logger     log.Logger
}

// New creates a session with empty state.
func New(classifier intent.Classifier, crew Runner, responder Responder, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Session{
		state:      session.NewState(),
		classifier: classifier,
		crew:       crew,
		responder:  responder,
		logger:     logger,
	}
}

// ProcessMessage runs one turn of the conversation.
//
// History is appended only on a CHAT turn or a successful SEARCH turn. EXIT
// and failed SEARCH turns leave history untouched; the latter is how a retry
// of the same question stays a first-class turn rather than a follow-up to a
// half-recorded one.
func (s *Session) ProcessMessage(ctx context.Context, message string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ended sessions absorb everything without classifying.
	if s.state.Ended() {
		return &Outcome{Intent: intent.Exit, Response: farewell}, nil
	}

	s.state.SetCurrentInput(message)

	detected, query := s.classifier.Classify(ctx, message, s.state.History())
	s.logger.Debug("classified message", "intent", string(detected), "query", query)

	switch detected {
	case intent.Exit:
		s.state.End()
		return &Outcome{Intent: intent.Exit, Response: farewell}, nil

	case intent.Search:
		return s.processSearch(ctx, message, query)

	default:
		reply, err := s.responder.Reply(ctx, s.state.History(), message)
		if err != nil {
			return nil, fmt.Errorf("generating chat reply: %w", err)
		}
		s.state.AppendTurn(session.Turn{
			Input:    message,
			Response: reply,
			Type:     session.TurnTypeChat,
		})
		return &Outcome{Intent: intent.Chat, Response: reply}, nil
	}
}

func (s *Session) processSearch(ctx context.Context, message, query string) (*Outcome, error) {
	research, err := s.crew.Run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("running research: %w", err)
	}

	s.state.StageResearch(research)

	answer, err := s.responder.Synthesize(ctx, message, research)
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}
	s.state.TakeResearch()

	s.state.AppendTurn(session.Turn{
		Input:    message,
		Response: answer,
		Type:     session.TurnTypeResearch,
		Sources:  research.Sources,
	})
	return &Outcome{Intent: intent.Search, Response: answer, Sources: research.Sources}, nil
}

// Active reports whether the session still accepts productive turns.
func (s *Session) Active() bool {
	return !s.state.Ended()
}

// TurnCount returns the number of recorded history turns.
func (s *Session) TurnCount() int {
	return s.state.TurnCount()
}

// History returns a copy of the conversation history.
func (s *Session) History() []session.Turn {
	return s.state.History()
}

// SeedHistory installs client-folded prior turns when the session has no
// history of its own.
func (s *Session) SeedHistory(turns []session.Turn) {
	s.state.SeedIfEmpty(turns)
}

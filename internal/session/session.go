// Package session holds the mutable per-conversation state for the chatbot.
//
// One State instance is owned by exactly one orchestrator session. It is
// mutated only from the orchestrator's turn execution; the streaming side
// reads the turn's return value, never live state, so access needs no
// coordination beyond the orchestrator's one-turn-at-a-time guarantee.
// Methods still lock internally so that auxiliary read-only endpoints
// (/flow/status) can snapshot counters while a turn is in flight.
package session

import "sync"

// Turn types recorded in conversation history.
const (
	TurnTypeChat     = "chat"
	TurnTypeResearch = "research_enhanced"
)

// Source describes one web source backing a research answer.
type Source struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// Turn is one completed exchange: the user input and the assistant response.
type Turn struct {
	Input    string   `json:"input"`
	Response string   `json:"response"`
	Type     string   `json:"type"`
	Sources  []Source `json:"sources,omitempty"`
}

// ResearchResult is the staged output of a completed research run, held until
// synthesis consumes it.
type ResearchResult struct {
	Summary   string   `json:"summary"`
	Sources   []Source `json:"sources"`
	Citations []string `json:"citations"`
}

// State is the session's mutable record.
// The zero value is not useful; construct with NewState.
type State struct {
	mu sync.RWMutex

	currentInput string
	sessionEnded bool

	history []Turn

	// Research staging area: a completed but not-yet-synthesized payload.
	researchResults *ResearchResult
	hasNewResearch  bool
}

// NewState creates an empty session state.
func NewState() *State {
	return &State{}
}

// SetCurrentInput records the message currently being processed.
func (s *State) SetCurrentInput(input string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentInput = input
}

// CurrentInput returns the message currently being processed.
func (s *State) CurrentInput() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentInput
}

// End marks the session terminal. Once ended, no further turns are processed.
func (s *State) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionEnded = true
}

// Ended reports whether the session has been terminated.
func (s *State) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionEnded
}

// AppendTurn appends one completed turn to the conversation history.
func (s *State) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
}

// History returns a copy of the conversation history in chronological order.
func (s *State) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// TurnCount returns the number of recorded turns.
func (s *State) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// SeedIfEmpty installs prior turns (folded from a client-supplied message
// list) only when the session has no history of its own. An established
// server-side history always wins over the client's view.
func (s *State) SeedIfEmpty(turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > 0 || len(turns) == 0 {
		return
	}
	s.history = append(s.history, turns...)
}

// StageResearch stores a completed research payload for synthesis.
func (s *State) StageResearch(r *ResearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.researchResults = r
	s.hasNewResearch = r != nil
}

// TakeResearch returns the staged research payload and clears the staging
// area. Returns nil when nothing is staged.
func (s *State) TakeResearch() *ResearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.researchResults
	s.researchResults = nil
	s.hasNewResearch = false
	return r
}

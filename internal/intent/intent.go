// Package intent classifies user messages into the three intents the chat
// orchestrator routes on.
//
// The classifier contract is deliberately failure-proof: Classify always
// returns exactly one of Search, Chat or Exit. Any classification failure
// (model error, timeout, malformed output) degrades to Chat with the verbatim
// message as query — a misread message becomes small talk, never a dropped
// turn.
package intent

import (
	"context"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/session"
)

// Intent is the classification of a user message's purpose.
type Intent string

const (
	// Search means the user wants web research on a topic.
	Search Intent = "SEARCH"
	// Chat means the user wants a normal conversational reply.
	Chat Intent = "CHAT"
	// Exit means the user wants to end the session.
	Exit Intent = "EXIT"
)

// Classifier maps (message, history) to an intent and a self-contained query.
//
// The query defaults to the verbatim message; it is only rewritten when the
// message is a follow-up that depends on prior turns ("And in Europe?"), in
// which case the conversational context is folded into one standalone query
// string for the research pipeline.
type Classifier interface {
	Classify(ctx context.Context, message string, history []session.Turn) (Intent, string)
}

// classifyTimeout caps the classification call; on expiry the turn proceeds
// as Chat.
const classifyTimeout = 10 * time.Second

// historyContextTurns is how many recent turns are shown to the classifier
// for follow-up detection.
const historyContextTurns = 3

// GenkitClassifier implements Classifier with a single small LLM call.
type GenkitClassifier struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger
}

// NewGenkitClassifier creates a classifier bound to the given Genkit instance
// and provider-qualified model name.
func NewGenkitClassifier(g *genkit.Genkit, modelName string, logger log.Logger) *GenkitClassifier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GenkitClassifier{g: g, modelName: modelName, logger: logger}
}

// Classify implements Classifier. Never returns an error: failures map to
// (Chat, message).
func (c *GenkitClassifier) Classify(ctx context.Context, message string, history []session.Turn) (Intent, string) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithSystem(classifierPrompt()),
		ai.WithPrompt("%s\n\nUser's current message: %s", historyContext(history), message),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: 0.1}),
	}
	if c.modelName != "" {
		opts = append(opts, ai.WithModelName(c.modelName))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		c.logger.Debug("intent classification failed, defaulting to CHAT", "error", err)
		return Chat, message
	}

	return parseClassification(resp.Text(), message)
}

// parseClassification extracts the intent tag and expanded query from the
// model's "INTENT: ... / QUERY: ..." reply. Anything unparseable falls back
// to (Chat, message); a missing or empty QUERY line falls back to the
// verbatim message.
func parseClassification(text, message string) (Intent, string) {
	intent := Chat
	query := message

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "INTENT:"):
			tag := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "INTENT:")))
			switch Intent(tag) {
			case Search, Chat, Exit:
				intent = Intent(tag)
			}
		case strings.HasPrefix(line, "QUERY:"):
			if q := strings.TrimSpace(strings.TrimPrefix(line, "QUERY:")); q != "" {
				query = q
			}
		}
	}

	return intent, query
}

// historyContext renders the last few turns for follow-up detection.
func historyContext(history []session.Turn) string {
	if len(history) == 0 {
		return "This is the start of the conversation."
	}

	var b strings.Builder
	b.WriteString("Recent conversation history:")
	start := len(history) - historyContextTurns
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		b.WriteString("\nUser: ")
		b.WriteString(turn.Input)
		b.WriteString("\nAssistant: ")
		b.WriteString(turn.Response)
	}
	return b.String()
}

package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Folken2/ag-ui-research/internal/session"
)

// ErrEmptyResponse indicates the model returned no usable text.
var ErrEmptyResponse = errors.New("empty model response")

const (
	replyTimeout      = 30 * time.Second
	synthesizeTimeout = 60 * time.Second

	// replyHistoryTurns is how many recent turns a chat reply sees.
	replyHistoryTurns = 3
)

// GenkitResponder implements Responder with LLM calls through Genkit.
type GenkitResponder struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitResponder creates a responder bound to the given Genkit instance
// and provider-qualified model name.
func NewGenkitResponder(g *genkit.Genkit, modelName string) *GenkitResponder {
	return &GenkitResponder{g: g, modelName: modelName}
}

// Reply implements Responder. The model sees the last few turns as real
// conversation messages, not a flattened transcript.
func (r *GenkitResponder) Reply(ctx context.Context, history []session.Turn, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	messages := make([]*ai.Message, 0, 2*replyHistoryTurns+1)
	start := len(history) - replyHistoryTurns
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart(turn.Input)),
			ai.NewModelMessage(ai.NewTextPart(turn.Response)),
		)
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(message)))

	opts := []ai.GenerateOption{
		ai.WithSystem(chatSystemPrompt()),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: 0.7}),
	}
	if r.modelName != "" {
		opts = append(opts, ai.WithModelName(r.modelName))
	}

	resp, err := genkit.Generate(ctx, r.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}

	return nonEmptyText(resp.Text(), "reply")
}

// Synthesize implements Responder.
func (r *GenkitResponder) Synthesize(ctx context.Context, message string, research *session.ResearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithSystem(synthesisPrompt(message, research)),
		ai.WithPrompt("Format this research into a professional response: %s", message),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: 0.7}),
	}
	if r.modelName != "" {
		opts = append(opts, ai.WithModelName(r.modelName))
	}

	resp, err := genkit.Generate(ctx, r.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating synthesis: %w", err)
	}

	return nonEmptyText(resp.Text(), "synthesis")
}

// nonEmptyText trims model output and rejects blank responses.
func nonEmptyText(text, op string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return text, nil
}

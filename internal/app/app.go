// Package app provides application initialization and dependency wiring.
//
// Setup builds the full object graph: Genkit with the Google AI plugin, the
// event bus, the search clients, the research crew, the chat orchestrator and
// the streaming adapter. Call Close to flush traces and release resources.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/Folken2/ag-ui-research/internal/bus"
	"github.com/Folken2/ag-ui-research/internal/chatbot"
	"github.com/Folken2/ag-ui-research/internal/config"
	"github.com/Folken2/ag-ui-research/internal/intent"
	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/observability"
	"github.com/Folken2/ag-ui-research/internal/research"
	"github.com/Folken2/ag-ui-research/internal/stream"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit  *genkit.Genkit
	Bus     *bus.Bus
	Crew    *research.Crew
	Adapter *stream.Adapter

	otelShutdown func(context.Context) error
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be ready before Genkit initializes its TracerProvider.
	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, observability.Config{
			AgentHost:   cfg.Tracing.AgentHost,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.otelShutdown = shutdown
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}
	a.Genkit = g
	logger.Info("initialized Genkit", "provider", cfg.Provider, "model", cfg.ModelName)

	a.Bus = bus.New(cfg.BusCapacity, logger)

	crew, err := buildCrew(cfg, g, a.Bus, logger)
	if err != nil {
		return nil, fmt.Errorf("building research crew: %w", err)
	}
	a.Crew = crew

	a.Adapter = stream.NewAdapter(a.NewSession(), a.Bus, logger)

	return a, nil
}

// NewSession creates a fresh orchestrator session wired to the app's crew and
// model. Used at startup and by the reset endpoint.
func (a *App) NewSession() *chatbot.Session {
	modelName := a.Config.FullModelName()
	return chatbot.New(
		intent.NewGenkitClassifier(a.Genkit, modelName, a.Logger),
		a.Crew,
		chatbot.NewGenkitResponder(a.Genkit, modelName),
		a.Logger,
	)
}

// buildCrew assembles the research pipeline from the configured providers.
// Serper and the page enricher are optional; Exa search is required.
func buildCrew(cfg *config.Config, g *genkit.Genkit, b *bus.Bus, logger log.Logger) (*research.Crew, error) {
	if cfg.ExaAPIKey == "" {
		return nil, fmt.Errorf("%w: EXA_API_KEY environment variable not set", config.ErrMissingAPIKey)
	}

	exa := research.NewExaClient(cfg.ExaAPIKey)

	crewCfg := research.Config{
		Search:     exa,
		Answer:     exa,
		Summarizer: research.NewGenkitSummarizer(g, cfg.FullModelName()),
		Bus:        b,
		Logger:     logger,
		NumResults: cfg.NumResults,
		Enricher: research.NewPageEnricher(research.EnricherConfig{
			Parallelism: cfg.WebScraper.Parallelism,
			Delay:       time.Duration(cfg.WebScraper.DelayMs) * time.Millisecond,
			Timeout:     time.Duration(cfg.WebScraper.TimeoutMs) * time.Millisecond,
		}, logger),
	}
	if cfg.SerperAPIKey != "" {
		crewCfg.Supplement = research.NewSerperClient(cfg.SerperAPIKey, research.WithSerperNews())
	}

	return research.NewCrew(crewCfg)
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			return fmt.Errorf("shutting down trace exporter: %w", err)
		}
	}

	return nil
}
